package regalloc

import (
	"container/heap"

	"github.com/GriffinCanCode/dex-regalloc/pkg/logger"
)

// intervalHeap is a min-heap over live intervals ordered by start
// position, used for the unhandled set. Grounded on the teacher's
// approach of sorting intervals by Start before the scan loop, widened
// into a real priority queue since splitting requeues intervals mid-scan
// instead of only once up front.
type intervalHeap []*LiveInterval

func (h intervalHeap) Len() int            { return len(h) }
func (h intervalHeap) Less(i, j int) bool  { return h[i].From() < h[j].From() }
func (h intervalHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intervalHeap) Push(x interface{}) { *h = append(*h, x.(*LiveInterval)) }
func (h *intervalHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// scanState holds the four interval sets linear scan partitions unhandled
// intervals into as the position cursor advances (§4.D).
type scanState struct {
	a *Allocator

	unhandled intervalHeap
	active    []*LiveInterval
	inactive  []*LiveInterval
	handled   []*LiveInterval
}

func newScanState(a *Allocator) *scanState {
	return &scanState{a: a}
}

// buildUnhandled seeds the unhandled heap with every interval the
// liveness pass produced, excluding values that never need a register.
func (s *scanState) buildUnhandled() {
	for _, li := range s.a.arena.intervals {
		if li.isSplit() {
			// split children are requeued explicitly when created.
			continue
		}
		if len(li.Ranges) == 0 {
			continue
		}
		heap.Push(&s.unhandled, li)
	}
	heap.Init(&s.unhandled)
}

// run executes the linear-scan main loop (§4.D), returning the first
// error allocate reports. An *ErrNoFreeRegister means the current mode's
// width limit left no register to take or evict; runWithModeLadder
// retries the method in the next mode when it sees one.
func (s *scanState) run() error {
	s.buildUnhandled()
	for s.unhandled.Len() > 0 {
		current := heap.Pop(&s.unhandled).(*LiveInterval)
		pos := current.From()
		s.retireExpired(pos)
		s.reactivateInactive(pos)
		if err := s.allocate(current, pos); err != nil {
			return err
		}
	}
	return nil
}

// retireExpired moves active intervals that ended, or that have entered a
// lifetime hole, out of the active set into handled/inactive.
func (s *scanState) retireExpired(pos int) {
	var stillActive []*LiveInterval
	for _, li := range s.active {
		switch {
		case li.To() <= pos:
			s.a.regs.release(s.a.assignedReg(li), li.Value.Wide)
			s.handled = append(s.handled, li)
		case !li.CoversPosition(pos):
			s.a.regs.release(s.a.assignedReg(li), li.Value.Wide)
			s.inactive = append(s.inactive, li)
		default:
			stillActive = append(stillActive, li)
		}
	}
	s.active = stillActive
}

// reactivateInactive moves inactive intervals back into active once the
// position cursor re-enters one of their live ranges, or retires them if
// they have ended.
func (s *scanState) reactivateInactive(pos int) {
	var stillInactive []*LiveInterval
	for _, li := range s.inactive {
		switch {
		case li.To() <= pos:
			s.handled = append(s.handled, li)
		case li.CoversPosition(pos):
			s.a.regs.take(s.a.assignedReg(li), li.Value.Wide)
			s.active = append(s.active, li)
		default:
			stillInactive = append(stillInactive, li)
		}
	}
	s.inactive = stillInactive
}

// allocate implements §4.D's allocate(I): try a free register for the
// whole remaining interval, else split at the furthest point one stays
// free, else fall through to the blocked-register path.
func (s *scanState) allocate(current *LiveInterval, pos int) error {
	if current.IsInvokeRangeArg && s.a.invokePlan != nil {
		if reg, ok := s.a.invokePlan.regFor(current); ok {
			s.assign(current, reg)
			return nil
		}
	}

	limit := s.effectiveLimit(current)
	wide := current.Value.Wide

	freeUntil := s.freeUntilPositions(current, limit)

	for _, hint := range s.a.hints.candidates(current) {
		if hint < 0 || hint >= int(limit) || hint >= len(freeUntil) {
			continue
		}
		if s.regUsable(hint, wide, limit) && !s.violatesTargetWorkaround(current, hint) && freeUntil[hint] >= current.To() {
			s.assign(current, hint)
			return nil
		}
	}

	bestReg, bestFree := -1, -1
	for r := 0; r < int(limit) && r < s.a.regs.capacity; r++ {
		if !s.regUsable(r, wide, limit) {
			continue
		}
		if s.violatesTargetWorkaround(current, r) {
			continue
		}
		if freeUntil[r] > bestFree {
			bestFree, bestReg = freeUntil[r], r
		}
	}

	if bestFree <= current.From() && s.regUsable(s.a.regs.capacity, wide, limit) {
		s.a.regs.grow(regWidth(wide))
		return s.allocate(current, pos)
	}

	if bestReg < 0 {
		return s.allocateBlocked(current, pos, limit)
	}
	if bestFree >= current.To() {
		s.assign(current, bestReg)
		return nil
	}
	if bestFree > current.From() {
		s.assign(current, bestReg)
		tail := s.a.arena.split(current, bestFree)
		heap.Push(&s.unhandled, tail)
		return nil
	}
	return s.allocateBlocked(current, pos, limit)
}

// freeUntilPositions reports, per register below limit, the position at
// which it next becomes occupied with respect to current: 0 if an active
// interval already holds it, the first intersection point if an inactive
// interval will reclaim it once its hole ends, or a very large sentinel
// if current could hold it for its entire remaining lifetime.
func (s *scanState) freeUntilPositions(current *LiveInterval, limit RegWidth) []int {
	const free = 1 << 30
	out := make([]int, s.a.regs.capacity)
	for i := range out {
		out[i] = free
	}
	for _, li := range s.active {
		r := s.a.assignedReg(li)
		if r >= 0 && r < len(out) {
			out[r] = 0
		}
	}
	for _, li := range s.inactive {
		r := s.a.assignedReg(li)
		if r < 0 || r >= len(out) {
			continue
		}
		if pos, ok := current.FirstIntersection(li); ok && pos < out[r] {
			out[r] = pos
		}
	}
	return out
}

// regUsable reports whether register r (and its wide partner, if any) is
// within limit and not pessimistically blocked for testing. Target
// workaround exclusions are checked separately by
// violatesTargetWorkaround, since they depend on the candidate's
// defining instruction rather than just its width.
func (s *scanState) regUsable(r int, wide bool, limit RegWidth) bool {
	if r < 0 || RegWidth(r) >= limit {
		return false
	}
	if wide && RegWidth(r+1) >= limit {
		return false
	}
	if s.a.opts.ForcePessimisticAllocation && r > 0 {
		return false
	}
	return true
}

// effectiveLimit is the tightest register-width limit the current mode or
// any recorded use of this interval imposes; allocate() never hands out a
// register at or above it.
func (s *scanState) effectiveLimit(li *LiveInterval) RegWidth {
	limit := s.a.mode.limit()
	for _, u := range li.Uses {
		if u.Limit < limit {
			limit = u.Limit
		}
	}
	return limit
}

func (s *scanState) assign(li *LiveInterval, reg int) {
	s.a.setAssignedReg(li, reg)
	s.a.regs.take(reg, li.Value.Wide)
	s.active = append(s.active, li)
	s.a.hints.propagate(li, reg)
}

// allocateBlocked implements the blocked-register path (§4.D): find the
// register used furthest in the future among active+inactive, and either
// evict it (spilling the victim from pos onward) if current needs it more
// urgently, or spill current itself before its first register-requiring
// use.
func (s *scanState) allocateBlocked(current *LiveInterval, pos int, limit RegWidth) error {
	if reg, ok := s.a.hints.blockedHintEviction(current, s.active, limit); ok {
		s.evictAndAssign(current, reg, pos)
		return nil
	}

	nextUse := make([]int, s.a.regs.capacity)
	owner := make([]*LiveInterval, s.a.regs.capacity)
	for i := range nextUse {
		nextUse[i] = 1 << 30
	}
	for _, li := range append(append([]*LiveInterval{}, s.active...), s.inactive...) {
		r := s.a.assignedReg(li)
		if r < 0 || r >= len(nextUse) || RegWidth(r) >= limit {
			continue
		}
		if u, ok := li.NextUseAtOrAfter(pos); ok && u.Pos < nextUse[r] {
			nextUse[r] = u.Pos
			owner[r] = li
		}
	}

	// Preference order (§4.D blocked-register allocation): among
	// candidates, prefer evicting a rematerializable interval first, an
	// ordinary value second, and a monitor-held object only as a last
	// resort — displacing a monitor can trip the verifier's lock-balance
	// check. Within a category, the candidate used furthest in the
	// future wins, same as the un-categorized search this replaces.
	var byCategory [3]struct{ reg, pos int }
	for i := range byCategory {
		byCategory[i].reg = -1
	}
	for r := 0; r < len(nextUse); r++ {
		if RegWidth(r) >= limit || (current.Value.Wide && RegWidth(r+1) >= limit) {
			continue
		}
		if owner[r] == nil {
			continue
		}
		if s.violatesTargetWorkaround(current, r) {
			continue
		}
		cat := evictionCategory(owner[r])
		if nextUse[r] > byCategory[cat].pos {
			byCategory[cat] = struct{ reg, pos int }{r, nextUse[r]}
		}
	}

	bestReg, bestPos := -1, -1
	for _, c := range byCategory {
		if c.reg >= 0 {
			bestReg, bestPos = c.reg, c.pos
			break
		}
	}
	if bestReg < 0 {
		return &ErrNoFreeRegister{Value: current.Value.String(), Pos: pos, Width: limit}
	}

	currentFirstUse, hasUse := current.NextUseAtOrAfter(pos)
	if !hasUse || bestPos > currentFirstUse.Pos {
		s.spillCurrent(current, pos)
		return nil
	}
	s.evictAndAssign(current, bestReg, pos)
	return nil
}

func (s *scanState) evictAndAssign(current *LiveInterval, reg int, pos int) {
	var victim *LiveInterval
	var fromActive bool
	for i, li := range s.active {
		if s.a.assignedReg(li) == reg {
			victim = li
			s.active = append(s.active[:i], s.active[i+1:]...)
			fromActive = true
			break
		}
	}
	if victim == nil {
		for i, li := range s.inactive {
			if s.a.assignedReg(li) == reg {
				victim = li
				s.inactive = append(s.inactive[:i], s.inactive[i+1:]...)
				break
			}
		}
	}
	if victim != nil {
		s.a.regs.release(reg, victim.Value.Wide)
		tail := s.a.arena.split(victim, pos)
		logger.LogSplit(s.a.fn.Name, victim.Value.String(), pos)
		s.a.spillInterval(tail)
		logger.LogSpill(s.a.fn.Name, tail.Value.String(), tail.SpillSlot)
		heap.Push(&s.unhandled, tail)
		_ = fromActive
	}
	s.assign(current, reg)
}

// spillCurrent splits current just before its first use that actually
// needs a register, assigns the pre-split head a spill slot, and
// requeues the split-off tail.
func (s *scanState) spillCurrent(current *LiveInterval, pos int) {
	use, ok := current.NextUseAtOrAfter(pos)
	splitPos := current.To()
	if ok {
		splitPos = use.Pos
		if splitPos <= pos {
			splitPos = pos + 1
		}
	}
	s.a.spillInterval(current)
	logger.LogSpill(s.a.fn.Name, current.Value.String(), current.SpillSlot)
	if splitPos < current.To() {
		tail := s.a.arena.split(current, splitPos)
		heap.Push(&s.unhandled, tail)
	}
}

// evictionCategory ranks a blocked-register candidate by how safe it is
// to displace (§4.D): rematerializable constants first (cheapest to
// reload, since no spill slot needs to be reloaded either), ordinary
// values second, and monitor-held objects last.
func evictionCategory(li *LiveInterval) int {
	switch {
	case li.Rematerializable:
		return 0
	case li.MonitorHeld:
		return 2
	default:
		return 1
	}
}

// violatesTargetWorkaround reports whether assigning register r to
// current's result would trigger one of the target-specific interpreter
// bugs named in §4.D, given the Options quirk predicates and whichever
// operand registers are already assigned at this position.
func (s *scanState) violatesTargetWorkaround(current *LiveInterval, r int) bool {
	inst := current.Value.Def
	if inst == nil {
		return false
	}
	opts := s.a.opts
	switch inst.Op {
	case OpArrayGetWide:
		if opts.CanUseSameArrayAndResultRegisterInArrayGetWide() || len(inst.Uses) == 0 {
			return false
		}
		arrayReg, ok := s.operandReg(inst.Uses[0], current.From())
		return ok && regsOverlap(r, regWidth(current.Value.Wide), arrayReg, regWidth(inst.Uses[0].Wide))
	case OpCmpLong:
		if !opts.CanHaveCmpLongBug() {
			return false
		}
		return s.overlapsAnyOperand(inst, current, r)
	case OpLongToInt:
		if !opts.CanHaveLongToIntBug() {
			return false
		}
		return s.overlapsAnyOperand(inst, current, r)
	case OpLongBinOp:
		if !opts.CanHaveOverlappingLongRegisterBug() {
			return false
		}
		return s.overlapsAnyOperand(inst, current, r)
	default:
		return false
	}
}

// overlapsAnyOperand implements isLongResultOverlappingLongOperands
// (§9): it blocks a half overlap with *either* operand, not only the
// second, the conservative behavior the design notes call out as
// deliberate and not to be narrowed.
func (s *scanState) overlapsAnyOperand(inst *Instruction, current *LiveInterval, r int) bool {
	resWidth := regWidth(current.Value.Wide)
	for _, u := range inst.Uses {
		opReg, ok := s.operandReg(u, current.From())
		if !ok {
			continue
		}
		if regsOverlap(r, resWidth, opReg, regWidth(u.Wide)) {
			return true
		}
	}
	return false
}

// operandReg resolves the register already assigned to v's split segment
// covering pos, if any. Operands are always defined before the
// instruction that uses them, so by the time the def's own result is
// being allocated its operands' intervals are active or inactive with a
// known register.
func (s *scanState) operandReg(v *Value, pos int) (int, bool) {
	root, ok := s.a.arena.byValue[v]
	if !ok {
		return 0, false
	}
	seg, ok := s.a.arena.childCovering(s.a.arena.get(root), pos)
	if !ok || seg.AssignedReg == noReg {
		return 0, false
	}
	return seg.AssignedReg, true
}

func regWidth(wide bool) int {
	if wide {
		return 2
	}
	return 1
}

func regsOverlap(r1, w1, r2, w2 int) bool {
	return r1 < r2+w2 && r2 < r1+w1
}
