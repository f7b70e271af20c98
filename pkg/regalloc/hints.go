package regalloc

import "sort"

// hintEngine implements the copy-coalescing rules of §4.E: it precomputes
// a preferred register request for intervals whose value flows through a
// check-cast, a 2-address binop, or a phi, so allocate() can
// try to hand out the register that avoids an otherwise-unnecessary move.
//
// Grounded on the teacher's Allocator.selectRegister preference for
// callee-saved registers across calls — the same "prefer a specific
// register when one choice avoids future cost" shape, generalized from a
// static callee/caller-saved split into per-value hint propagation.
type hintEngine struct {
	arena *intervalArena

	// phiInsts maps a phi's def value to its defining instruction, so
	// registerFor/candidates can look up its operands and predecessors
	// when resolving the phi's frequency-histogram hint (§4.E).
	phiInsts map[*Value]*Instruction
}

func newHintEngine(arena *intervalArena) *hintEngine {
	return &hintEngine{arena: arena, phiInsts: map[*Value]*Instruction{}}
}

// build walks the function once, before the main scan, recording every
// phi instruction in phiInsts and a same-value preference edge
// (hintSource) wherever a cheap copy could be elided.
func (h *hintEngine) build(fn *Function) {
	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			h.phiInsts[phi.Def] = phi
		}
		for _, inst := range b.Instructions {
			switch inst.Op {
			case OpCheckCast:
				// check-cast's destination and source share debug-local
				// info and, in the common case, the same register: hint
				// the destination toward whatever the source ends up in.
				if inst.CheckCastSharesLocalInfo && len(inst.Uses) == 1 {
					h.linkSameValuePreference(inst.Def, inst.Uses[0])
				}
			case OpBinOp:
				// a 2-address binop (dst = a op b) is cheapest when
				// dst reuses a's register, since the encoding can
				// overwrite it in place; the left operand is hinted
				// whether or not the op is commutative.
				if len(inst.Uses) >= 1 && inst.Def != nil {
					h.linkSameValuePreference(inst.Def, inst.Uses[0])
				}
			}
		}
	}
}

// linkSameValuePreference hints dst toward whatever register src ends up
// holding, provided src is already assigned by the time dst is
// considered — resolved lazily via registerFor at allocate()-time instead
// of eagerly here, since scan order determines which of the two is
// assigned first.
func (h *hintEngine) linkSameValuePreference(dst, src *Value) {
	if dst == nil || src == nil {
		return
	}
	dstI := h.arena.intervalFor(dst)
	if dstI.RegisterHint == noReg {
		dstI.hintSource = src
	}
}

// registerFor returns the register allocate() should try first for li, or
// -1 if none is known yet.
func (h *hintEngine) registerFor(li *LiveInterval) int {
	if regs := h.candidates(li); len(regs) > 0 {
		return regs[0]
	}
	return noReg
}

// candidates returns every register allocate() should try, in priority
// order, for li. For an ordinary value this is at most the single
// check-cast/2-addr hint; for a phi it is the full frequency histogram
// named in §4.E, so a caller whose top candidate is unusable (blocked,
// excluded by a target workaround) can fall through to the next most
// frequent operand register instead of abandoning the hint entirely.
func (h *hintEngine) candidates(li *LiveInterval) []int {
	if li.RegisterHint != noReg {
		return []int{li.RegisterHint}
	}
	if phi, ok := h.phiInsts[li.Value]; ok {
		return h.phiRegisterCandidates(phi)
	}
	if li.hintSource == nil {
		return nil
	}
	srcRoot := h.arena.intervalFor(li.hintSource)
	if srcRoot.AssignedReg != noReg {
		return []int{srcRoot.AssignedReg}
	}
	for _, id := range srcRoot.SplitChildren {
		if c := h.arena.get(id); c.AssignedReg != noReg {
			return []int{c.AssignedReg}
		}
	}
	return nil
}

// phiRegisterCandidates implements §4.E's phi hint: tally how often each
// register already occupies a phi operand at its predecessor's exit
// (following that operand's split chain to whichever segment covers the
// edge), and return the registers in descending frequency, ties broken by
// register number for determinism (§5).
func (h *hintEngine) phiRegisterCandidates(phi *Instruction) []int {
	freq := map[int]int{}
	for i, v := range phi.PhiValues {
		pred := phi.PhiPreds[i]
		root := h.arena.intervalFor(v)
		seg, ok := h.arena.childCovering(h.arena.root(root), pred.End-2)
		if !ok || seg.AssignedReg == noReg {
			continue
		}
		freq[seg.AssignedReg]++
	}
	regs := make([]int, 0, len(freq))
	for r := range freq {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool {
		if freq[regs[i]] != freq[regs[j]] {
			return freq[regs[i]] > freq[regs[j]]
		}
		return regs[i] < regs[j]
	})
	return regs
}

// propagate records the register just assigned to li as li's own
// RegisterHint, which split children later inherit. Intervals whose
// hintSource is li's value are not touched here; candidates() reads the
// source's assigned register when they are allocated.
func (h *hintEngine) propagate(li *LiveInterval, reg int) {
	li.RegisterHint = reg
}

// blockedHintEviction implements the rescue path named in §4.D: when the
// ordinary blocked-register search would spill current, but current holds
// a live hint naming a register currently occupied by an interval with no
// near-future use, evict that interval instead of spilling current — a
// copy-coalescing win is worth a little extra spill pressure elsewhere.
func (h *hintEngine) blockedHintEviction(current *LiveInterval, active []*LiveInterval, limit RegWidth) (int, bool) {
	hint := h.registerFor(current)
	if hint < 0 || RegWidth(hint) >= limit {
		return 0, false
	}
	for _, li := range active {
		if li.AssignedReg != hint {
			continue
		}
		use, ok := li.NextUseAtOrAfter(current.From())
		if !ok || use.Pos > current.To() {
			return hint, true
		}
		return 0, false
	}
	return hint, true
}
