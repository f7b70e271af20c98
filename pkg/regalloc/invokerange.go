package regalloc

// invokeRangePlan pre-plans a consecutive register block for every
// invoke-range call site (§4.F) before the main scan loop runs, so the
// ordinary free-register search never has to reason about contiguity —
// it just asks invokeRangePlan whether an interval already has a home.
type invokeRangePlan struct {
	arena *intervalArena

	// regOf maps an invoke-range argument's root interval to its planned
	// register.
	regOf map[*LiveInterval]int
}

func newInvokeRangePlan(arena *intervalArena) *invokeRangePlan {
	return &invokeRangePlan{arena: arena, regOf: map[*LiveInterval]int{}}
}

// build walks every OpInvokeRange instruction in the function and assigns
// its arguments (plus, when HasOutValue is set, one extra slot for the
// result at the bottom of the block, below the arguments) a consecutive
// block of registers starting at base,
// growing base as needed. Bridge-method calls whose arguments are already
// a prefix of a prior consecutive block reuse it instead of planning a
// fresh one, avoiding a redundant copy the way a real DEX back end's
// range-invoke optimizer does.
func (p *invokeRangePlan) build(fn *Function, arena *intervalArena, regs *registerSet) {
	base := 0
	var lastArgs []*Value

	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op != OpInvokeRange {
				continue
			}
			if sharesPrefix(lastArgs, inst.Uses) {
				continue
			}

			start := base
			reg := start
			if inst.HasOutValue && inst.Def != nil {
				li := arena.intervalFor(inst.Def)
				li.IsInvokeRangeArg = true
				p.regOf[li] = reg
				reg += inst.Def.Slots()
			}
			for _, v := range inst.Uses {
				li := arena.intervalFor(v)
				li.IsInvokeRangeArg = true
				p.regOf[li] = reg
				reg += v.Slots()
			}
			regs.ensure(reg-1, false)
			base = reg
			lastArgs = inst.Uses
		}
	}
}

// sharesPrefix reports whether prev is a non-empty prefix of cur (the
// bridge-method reuse case: cur's leading arguments are exactly prev).
func sharesPrefix(prev, cur []*Value) bool {
	if len(prev) == 0 || len(prev) > len(cur) {
		return false
	}
	for i, v := range prev {
		if cur[i] != v {
			return false
		}
	}
	return true
}

// regFor returns the pre-planned register for li, resolving through the
// split chain back to the root interval the plan was built against — an
// invoke-range argument's span is short enough around its call site that
// it is never expected to split, but resolving via the root keeps this
// correct even if an earlier mode attempt did split it.
func (p *invokeRangePlan) regFor(li *LiveInterval) (int, bool) {
	if r, ok := p.regOf[li]; ok {
		return r, true
	}
	root := p.arena.root(li)
	r, ok := p.regOf[root]
	return r, ok
}
