package regalloc

// intervalArena owns every LiveInterval for one function allocation,
// indexed by ID. It never reaches across function boundaries, so two
// goroutines allocating different methods concurrently (§5) never share
// one.
type intervalArena struct {
	intervals []*LiveInterval
	byValue   map[*Value]int
}

func newIntervalArena() *intervalArena {
	return &intervalArena{byValue: map[*Value]int{}}
}

func (a *intervalArena) get(id int) *LiveInterval { return a.intervals[id] }

// intervalFor returns the (parent, un-split) interval for v, creating it
// on first reference.
func (a *intervalArena) intervalFor(v *Value) *LiveInterval {
	id, ok := a.byValue[v]
	if ok {
		return a.intervals[id]
	}
	id = len(a.intervals)
	li := newInterval(id, v)
	if v.IsConstant {
		li.Rematerializable = true
		li.ConstValue = v.ConstValue
	}
	a.intervals = append(a.intervals, li)
	a.byValue[v] = id
	return li
}

// split creates a new interval covering [from, parent.To()) for an
// existing interval (which may itself already be a split child), records
// the link in the arena and in the original root's SplitChildren, and
// returns it. Ranges/Uses at or after from are moved onto the new
// interval; the original interval is truncated to end at from.
func (a *intervalArena) split(parent *LiveInterval, from int) *LiveInterval {
	child := newInterval(len(a.intervals), parent.Value)
	child.ParentID = parent.ID
	child.Rematerializable = parent.Rematerializable
	child.ConstValue = parent.ConstValue
	child.SpillSlot = parent.SpillSlot
	child.RegisterHint = parent.RegisterHint
	child.hintSource = parent.hintSource
	child.IsInvokeRangeArg = parent.IsInvokeRangeArg
	child.MonitorHeld = parent.MonitorHeld

	var keepRanges, moveRanges []LiveRange
	for _, r := range parent.Ranges {
		switch {
		case r.To <= from:
			keepRanges = append(keepRanges, r)
		case r.From >= from:
			moveRanges = append(moveRanges, r)
		default:
			keepRanges = append(keepRanges, LiveRange{From: r.From, To: from})
			moveRanges = append(moveRanges, LiveRange{From: from, To: r.To})
		}
	}
	parent.Ranges = keepRanges
	child.Ranges = moveRanges

	var keepUses, moveUses []LiveIntervalsUse
	for _, u := range parent.Uses {
		if u.Pos >= from {
			moveUses = append(moveUses, u)
		} else {
			keepUses = append(keepUses, u)
		}
	}
	parent.Uses = keepUses
	child.Uses = moveUses

	a.intervals = append(a.intervals, child)

	root := a.root(parent)
	root.SplitChildren = append(root.SplitChildren, child.ID)
	return child
}

// root walks a split chain back to the original interval covering v.
func (a *intervalArena) root(li *LiveInterval) *LiveInterval {
	for li.ParentID != noParent {
		li = a.intervals[li.ParentID]
	}
	return li
}

// childCovering returns whichever split descendant of root (root itself,
// or one of its SplitChildren) covers pos, per §4.A's lookup contract for
// GetRegisterForValue.
func (a *intervalArena) childCovering(root *LiveInterval, pos int) (*LiveInterval, bool) {
	if root.CoversPosition(pos) {
		return root, true
	}
	for _, id := range root.SplitChildren {
		c := a.intervals[id]
		if c.CoversPosition(pos) {
			return c, true
		}
	}
	return nil, false
}

// buildLiveness runs the backward data-flow liveness analysis described
// in Wimmer & Mössenböck fig. 4, producing one interval per value with its
// full set of live ranges and recorded uses. It is grounded directly on
// the teacher's Allocator.computeLiveness, generalized from a single
// def/use position pair per value into the full range+hole structure
// splitting requires.
func buildLiveness(fn *Function, opts *Options) *intervalArena {
	arena := newIntervalArena()

	liveIn := make(map[*Block]map[*Value]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		liveIn[b] = map[*Value]bool{}
	}

	// Pass 1: iterate to a fixed point over live-in sets. Only the
	// membership matters here; ranges are built in pass 2 once the sets
	// are stable, so each use/def is recorded exactly once.
	changed := true
	for changed {
		changed = false
		for _, b := range fn.PostOrder() {
			live := blockExitLiveSet(b, liveIn)
			walkBlockBackwardSets(b, live)
			if !sameSet(live, liveIn[b]) {
				liveIn[b] = live
				changed = true
			}
		}
	}

	// Pass 2: single backward walk per block building actual ranges and
	// use records against the now-stable liveIn sets.
	for _, b := range fn.Blocks {
		live := blockExitLiveSet(b, liveIn)
		normal, exceptionalOnly := splitLiveByEdgeKind(b, liveIn, live)

		for v := range normal {
			arena.intervalFor(v).addRange(b.Start, b.End)
		}
		excEnd := b.LastThrowingInstrPos() + 1
		if excEnd <= b.Start {
			excEnd = b.End
		}
		for v := range exceptionalOnly {
			arena.intervalFor(v).addRange(b.Start, excEnd)
		}

		for i := len(b.Instructions) - 1; i >= 0; i-- {
			inst := b.Instructions[i]
			if opts != nil && opts.Debug {
				for _, v := range append(append([]*Value{}, inst.DebugStarts...), inst.DebugEnds...) {
					li := arena.intervalFor(v)
					li.addRange(b.Start, inst.Pos+1)
					li.addUse(LiveIntervalsUse{Pos: inst.Pos, Limit: Width16Bit})
					live[v] = true
				}
			}
			if inst.Def != nil && inst.Def.NeedsRegister {
				li := arena.intervalFor(inst.Def)
				li.setFrom(inst.Pos)
				li.addUse(LiveIntervalsUse{Pos: inst.Pos, Limit: inst.DefLimit, IsDef: true})
				delete(live, inst.Def)
			}
			for k, use := range inst.Uses {
				if !use.NeedsRegister {
					continue
				}
				limit := Width16Bit
				if k < len(inst.UseLimits) {
					limit = inst.UseLimits[k]
				}
				li := arena.intervalFor(use)
				li.addRange(b.Start, inst.Pos)
				li.addUse(LiveIntervalsUse{Pos: inst.Pos, Limit: limit})
				if inst.Op == OpMonitorEnter || inst.Op == OpMonitorExit {
					li.MonitorHeld = true
				}
				live[use] = true
			}
		}

		for _, phi := range b.Phis {
			li := arena.intervalFor(phi.Def)
			li.setFrom(phi.Pos)
			li.addUse(LiveIntervalsUse{Pos: phi.Pos, Limit: phi.DefLimit, IsDef: true})
			delete(live, phi.Def)
		}
	}

	seedArguments(fn, arena)
	return arena
}

// seedArguments gives every incoming argument a live range starting at
// position 0, the method's conceptual entry point, matching the
// pre-seeded [0, firstUse) intervals real calling-convention lowering
// needs before the first instruction can reference them.
func seedArguments(fn *Function, arena *intervalArena) {
	for _, v := range fn.Args {
		if !v.NeedsRegister {
			continue
		}
		li := arena.intervalFor(v)
		li.setFrom(0)
		li.addUse(LiveIntervalsUse{Pos: 0, Limit: Width16Bit, IsDef: true})
	}
}

// setFrom shrinks the earliest recorded range's start down to pos (the
// def point), or creates a single-point range if the value turned out to
// be dead (no range recorded from any use).
func (li *LiveInterval) setFrom(pos int) {
	if len(li.Ranges) == 0 {
		li.Ranges = []LiveRange{{From: pos, To: pos + 1}}
		return
	}
	if pos < li.Ranges[0].From {
		li.Ranges[0].From = pos
	}
}

func blockExitLiveSet(b *Block, liveIn map[*Block]map[*Value]bool) map[*Value]bool {
	live := map[*Value]bool{}
	for _, s := range b.Succs {
		for v := range liveIn[s] {
			live[v] = true
		}
		for _, phi := range s.Phis {
			for i, pred := range phi.PhiPreds {
				if pred == b {
					live[phi.PhiValues[i]] = true
				}
			}
		}
	}
	for _, s := range b.ExceptionalSuccs {
		for v := range liveIn[s] {
			live[v] = true
		}
	}
	return live
}

// splitLiveByEdgeKind partitions a block's exit live set into values
// reachable via a normal control-flow successor (or phi input) versus
// values reachable ONLY through an exceptional successor, so the latter
// can be truncated to the block's last throwing instruction (§4.B).
func splitLiveByEdgeKind(b *Block, liveIn map[*Block]map[*Value]bool, all map[*Value]bool) (normal, exceptionalOnly map[*Value]bool) {
	normal = map[*Value]bool{}
	for _, s := range b.Succs {
		for v := range liveIn[s] {
			normal[v] = true
		}
		for _, phi := range s.Phis {
			for i, pred := range phi.PhiPreds {
				if pred == b {
					normal[phi.PhiValues[i]] = true
				}
			}
		}
	}
	exceptionalOnly = map[*Value]bool{}
	for v := range all {
		if !normal[v] {
			exceptionalOnly[v] = true
		}
	}
	return normal, exceptionalOnly
}

// walkBlockBackwardSets updates live in place by the def/use rules,
// without touching interval ranges — used only during the pass-1 fixed
// point over set membership.
func walkBlockBackwardSets(b *Block, live map[*Value]bool) {
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		inst := b.Instructions[i]
		if inst.Def != nil {
			delete(live, inst.Def)
		}
		for _, use := range inst.Uses {
			if use.NeedsRegister {
				live[use] = true
			}
		}
	}
	for _, phi := range b.Phis {
		delete(live, phi.Def)
	}
}

func sameSet(a, b map[*Value]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}
