package regalloc

import "sort"

// DebugLocalEntry names one source-level local's location over one
// stretch of the method, the unit debug-info reconstruction hands to the
// caller (§4.I).
type DebugLocalEntry struct {
	Local LocalInfo
	Value *Value
	Loc   Location
	From  int
	To    int
}

// DebugLocalsChange is the delta between two adjacent program points:
// locals that stopped being valid at exactly this point, and locals that
// became valid (or changed location) at this point. Emitting changes
// instead of a full snapshot at every instruction keeps debug-info output
// proportional to how often locals actually move, not proportional to
// method size.
type DebugLocalsChange struct {
	Pos      int
	Ending   []DebugLocalEntry
	Starting []DebugLocalEntry
}

// buildDebugLocals reconstructs, for every value carrying LocalInfo, the
// sequence of (location, [from, to)) tuples its split chain produced,
// then orders those tuples by position, emitting only the changes between
// consecutive points — no-op changes (a split boundary that didn't
// actually move the value, e.g. two segments the scheduler happened to
// assign the same register) are suppressed.
func buildDebugLocals(fn *Function, arena *intervalArena) []DebugLocalsChange {
	entries := collectLocalEntries(fn, arena)
	if len(entries) == 0 {
		return nil
	}

	byPos := map[int]*DebugLocalsChange{}
	order := []int{}
	at := func(pos int) *DebugLocalsChange {
		c, ok := byPos[pos]
		if !ok {
			c = &DebugLocalsChange{Pos: pos}
			byPos[pos] = c
			order = append(order, pos)
		}
		return c
	}

	for _, e := range entries {
		at(e.From).Starting = append(at(e.From).Starting, e)
		at(e.To).Ending = append(at(e.To).Ending, e)
	}

	sort.Ints(order)

	changes := make([]DebugLocalsChange, 0, len(order))
	for _, pos := range order {
		c := byPos[pos]
		ending := suppressNoOp(c.Ending, c.Starting)
		starting := suppressNoOp(c.Starting, c.Ending)
		c.Ending, c.Starting = ending, starting
		if len(c.Ending) == 0 && len(c.Starting) == 0 {
			continue
		}
		changes = append(changes, *c)
	}
	return changes
}

// suppressNoOp drops each entry of its first list that has a match in the
// second (same value, same location) at the same point; buildDebugLocals
// applies it in both directions, so both halves of the pair go: the local never
// actually moved, it just crossed a split boundary that didn't change
// anything observable.
func suppressNoOp(ending, starting []DebugLocalEntry) []DebugLocalEntry {
	var out []DebugLocalEntry
	for _, end := range ending {
		dup := false
		for _, start := range starting {
			if start.Value == end.Value && start.Loc.Equal(end.Loc) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, end)
		}
	}
	return out
}

func collectLocalEntries(fn *Function, arena *intervalArena) []DebugLocalEntry {
	var entries []DebugLocalEntry
	seen := map[*Value]bool{}

	visit := func(v *Value) {
		if v == nil || !v.HasLocalInfo || seen[v] {
			return
		}
		seen[v] = true
		root := arena.root(arena.intervalFor(v))
		chain := splitChainInOrder(arena, root)
		for _, seg := range chain {
			if len(seg.Ranges) == 0 {
				continue
			}
			entries = append(entries, DebugLocalEntry{
				Local: v.LocalInfo,
				Value: v,
				Loc:   locationOf(seg),
				From:  seg.From(),
				To:    seg.To(),
			})
		}
	}

	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			visit(phi.Def)
		}
		for _, inst := range b.Instructions {
			visit(inst.Def)
			for _, u := range inst.Uses {
				visit(u)
			}
			for _, v := range inst.DebugStarts {
				visit(v)
			}
			for _, v := range inst.DebugEnds {
				visit(v)
			}
		}
	}
	for _, v := range fn.Args {
		visit(v)
	}
	return entries
}
