// Package regalloc's Allocator ties the components described across
// interval.go, liveness.go, regset.go, scan.go, hints.go, invokerange.go,
// mode.go, spillmove.go, debuglocals.go and validate.go into the single
// entry point a compiler driver calls per method (§6).
package regalloc

import "github.com/GriffinCanCode/dex-regalloc/pkg/logger"

// Allocator runs linear-scan register allocation for exactly one
// function. It holds no state shared with any other Allocator instance,
// so a driver allocating many methods concurrently (§5, pkg/driver) may
// construct and run one per goroutine safely.
type Allocator struct {
	fn   *Function
	opts *Options

	mode allocationMode

	arena      *intervalArena
	regs       *registerSet
	hints      *hintEngine
	invokePlan *invokeRangePlan

	spillSlots    map[int]int // root interval ID -> slot
	nextSpillSlot int

	result *AllocationResult
}

// NewAllocator constructs an allocator for fn using opts. opts is held by
// reference and read throughout allocation (§9); the caller must not
// mutate it concurrently with a running AllocateRegisters call.
func NewAllocator(fn *Function, opts *Options) *Allocator {
	if opts == nil {
		opts = &Options{}
	}
	return &Allocator{fn: fn, opts: opts}
}

// AllocationResult is everything a caller needs to finish lowering a
// method once allocation succeeds: the moves needed to make split chains
// and CFG edges behave like continuous values, the debug-info delta
// stream, and the final frame shape.
type AllocationResult struct {
	IntraBlockMoves []Move
	EdgeOutMoves    map[*Block][]Move
	EdgeInMoves     map[*Block][]Move
	DebugLocals     []DebugLocalsChange

	FrameSize      int
	RegistersUsed  int
	ArgumentsStart int
}

// AllocateRegisters runs the full pipeline: liveness (B), invoke-range
// planning (F), the mode-escalation ladder driving the main scan (D) with
// hints (E), spill/edge-move resolution (H), argument/unused-register
// compaction (C), and debug-locals reconstruction (I), in that order.
func (a *Allocator) AllocateRegisters() (*AllocationResult, error) {
	if err := a.runWithModeLadder(); err != nil {
		logger.LogAllocationFailed(a.fn.Name, err)
		return nil, err
	}
	unsplitArguments(a.arena)

	intra := buildIntraIntervalMoves(a.arena)
	edges := resolveControlFlow(a.fn, a.arena)

	for b, moves := range edges.EdgeOut {
		edges.EdgeOut[b] = scheduleParallelMoves(moves, firstParallelMoveTemporary(a.regs))
	}
	for b, moves := range edges.EdgeIn {
		edges.EdgeIn[b] = scheduleParallelMoves(moves, firstParallelMoveTemporary(a.regs))
	}

	a.compactAndRemap()

	if a.opts.Debug {
		if err := a.invariantsHold(); err != nil {
			return nil, err
		}
	}

	debugLocals := buildDebugLocals(a.fn, a.arena)

	a.result = &AllocationResult{
		IntraBlockMoves: intra,
		EdgeOutMoves:    edges.EdgeOut,
		EdgeInMoves:     edges.EdgeIn,
		DebugLocals:     debugLocals,
		FrameSize:       a.regs.capacity,
		RegistersUsed:   a.highestUsedRegister() + 1,
		ArgumentsStart:  a.regs.capacity - a.fn.NumArgWords,
	}
	logger.LogAllocationComplete(a.fn.Name, a.result.RegistersUsed, a.result.FrameSize)
	return a.result, nil
}

// GetRegisterForValue returns the register (or spill slot, reported as a
// Location) a value occupies at a given program position, resolving
// through its split chain (§6's external-interface contract).
func (a *Allocator) GetRegisterForValue(value *Value, pos int) (Location, error) {
	root, ok := a.arena.byValue[value]
	if !ok {
		return Location{}, &ErrValueWithoutInterval{Value: value.String()}
	}
	seg, ok := a.arena.childCovering(a.arena.get(root), pos)
	if !ok {
		return Location{}, &ErrValueWithoutInterval{Value: value.String()}
	}
	return locationOf(seg), nil
}

// RegistersUsed returns the number of distinct physical registers this
// allocation occupies.
func (a *Allocator) RegistersUsed() int {
	if a.result == nil {
		return 0
	}
	return a.result.RegistersUsed
}

// HighestUsedRegister returns the highest physical register index in use.
func (a *Allocator) HighestUsedRegister() int { return a.highestUsedRegister() }

func (a *Allocator) highestUsedRegister() int {
	max := -1
	for _, li := range a.arena.intervals {
		if li.AssignedReg > max {
			max = li.AssignedReg
		}
	}
	return max
}

// HasEqualTypesAtEntry reports whether every phi-equivalent value live
// into both b1 and b2 is guaranteed the same register, the check a
// caller merging two blocks (e.g. tail-duplication) must make first
// (§6).
func (a *Allocator) HasEqualTypesAtEntry(b1, b2 *Block) bool {
	reg := func(b *Block, v *Value) (int, bool) {
		seg, ok := a.arena.childCovering(a.arena.root(a.arena.intervalFor(v)), b.Start)
		if !ok || seg.AssignedReg == noReg {
			return 0, false
		}
		return seg.AssignedReg, true
	}
	for _, phi := range b1.Phis {
		r1, ok1 := reg(b1, phi.Def)
		r2, ok2 := reg(b2, phi.Def)
		if ok1 && ok2 && r1 != r2 {
			return false
		}
	}
	return true
}

func (a *Allocator) baseRegisterCount() int {
	if a.fn.NumArgWords > 0 {
		return a.fn.NumArgWords
	}
	return 8
}

func (a *Allocator) assignedReg(li *LiveInterval) int { return li.AssignedReg }

func (a *Allocator) setAssignedReg(li *LiveInterval, reg int) { li.AssignedReg = reg }

// spillInterval assigns li's root a spill slot (reusing one already given
// to an earlier split sibling, since every segment of one original value
// shares a slot, §4.H) and clears li's own register assignment.
func (a *Allocator) spillInterval(li *LiveInterval) {
	root := a.arena.root(li)
	slot, ok := a.spillSlots[root.ID]
	if !ok {
		slot = a.nextSpillSlot
		a.nextSpillSlot++
		a.spillSlots[root.ID] = slot
	}
	li.SpillSlot = slot
	li.AssignedReg = noReg
}

// compactAndRemap performs the post-allocation register renumbering
// described in §4.C. It builds one permutation of the register indices
// actually used and applies it uniformly to every interval: registers
// never left occupied at the end of allocation are dropped from the
// dense range, and whichever indices the arguments happen to hold at
// position 0 are permuted to the top of the resulting frame, in
// argument order. Because it is a single bijection over the whole
// register file, applying it everywhere (not just to argument-owned
// intervals) preserves every other interval's assignment even where a
// register was reused for an unrelated local later in the method.
func (a *Allocator) compactAndRemap() {
	used := make([]bool, a.regs.capacity)
	for _, li := range a.arena.intervals {
		if li.AssignedReg != noReg {
			used[li.AssignedReg] = true
			if li.Value.Wide && li.AssignedReg+1 < len(used) {
				used[li.AssignedReg+1] = true
			}
		}
	}
	compact := compactUnused(used)

	localCount := 0
	for _, ok := range used {
		if ok {
			localCount++
		}
	}

	argRegs := make([]int, 0, len(a.fn.Args))
	for _, v := range a.fn.Args {
		li := a.arena.intervals[a.arena.byValue[v]]
		seg, ok := a.arena.childCovering(li, 0)
		if !ok || seg.AssignedReg == noReg {
			continue
		}
		argRegs = append(argRegs, compact[seg.AssignedReg])
	}

	top := remapArgumentsToTop(argRegs, localCount)

	argSet := make(map[int]bool, len(argRegs))
	for _, r := range argRegs {
		argSet[r] = true
	}
	others := make([]int, 0, localCount-len(argRegs))
	for r := 0; r < localCount; r++ {
		if !argSet[r] {
			others = append(others, r)
		}
	}

	perm := make(map[int]int, localCount)
	for i, r := range others {
		perm[r] = i
	}
	for r, final := range top {
		perm[r] = final
	}

	for _, li := range a.arena.intervals {
		if li.AssignedReg == noReg {
			continue
		}
		li.AssignedReg = perm[compact[li.AssignedReg]]
	}
	a.regs.capacity = localCount
}

func (a *Allocator) finalRegisterOf(v *Value) (int, bool) {
	root, ok := a.arena.byValue[v]
	if !ok {
		return 0, false
	}
	li := a.arena.get(root)
	seg, ok := a.arena.childCovering(li, li.From())
	if !ok || seg.AssignedReg == noReg {
		return 0, false
	}
	return seg.AssignedReg, true
}
