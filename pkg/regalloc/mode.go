package regalloc

import (
	"sort"

	"github.com/GriffinCanCode/dex-regalloc/pkg/logger"
)

// allocationMode is one rung of the mode-escalation retry ladder (§4.G).
// Each attempt either accepts progressively wider register encodings or
// relaxes an optimization that competes with register width, in the order
// a real DEX back end retries a method that doesn't fit in 4-bit
// registers the first time.
type allocationMode int

const (
	// modeAllowArgumentReuse4Bit is the first, cheapest attempt: allow
	// the scan to reuse an argument's incoming register for a local
	// value once the argument's own lifetime ends, and restrict every
	// interval to the 4-bit encoding.
	modeAllowArgumentReuse4Bit allocationMode = iota

	// modeAllowArgumentReuse8Bit is the same argument-reuse policy at the
	// 8-bit encoding.
	modeAllowArgumentReuse8Bit

	// mode8BitRefinement retries at 8 bits with hint-driven
	// copy-coalescing disabled, trading slightly more moves for fewer
	// forced spills.
	mode8BitRefinement

	// mode8BitRetry is a final 8-bit attempt with invoke-range planning
	// disabled, so range-invoke arguments compete for registers through
	// the ordinary path instead of a reserved consecutive block.
	mode8BitRetry

	// mode16Bit is the last rung: every register fits the 16-bit
	// encoding, so allocation can never fail here barring a genuine
	// internal error.
	mode16Bit
)

var modeLadder = []allocationMode{
	modeAllowArgumentReuse4Bit,
	modeAllowArgumentReuse8Bit,
	mode8BitRefinement,
	mode8BitRetry,
	mode16Bit,
}

func (m allocationMode) limit() RegWidth {
	switch m {
	case modeAllowArgumentReuse4Bit:
		return Width4Bit
	case modeAllowArgumentReuse8Bit, mode8BitRefinement, mode8BitRetry:
		return Width8Bit
	default:
		return Width16Bit
	}
}

func (m allocationMode) hintsEnabled() bool {
	return m != mode8BitRefinement && m != mode8BitRetry
}

func (m allocationMode) invokeRangePlanningEnabled() bool {
	return m != mode8BitRetry
}

func (m allocationMode) String() string {
	switch m {
	case modeAllowArgumentReuse4Bit:
		return "allow-argument-reuse-4bit"
	case modeAllowArgumentReuse8Bit:
		return "allow-argument-reuse-8bit"
	case mode8BitRefinement:
		return "8bit-refinement"
	case mode8BitRetry:
		return "8bit-retry"
	default:
		return "16bit"
	}
}

// reset starts a new mode attempt from a clean arena. Split children
// introduced by a failed attempt are discarded because reset rebuilds the
// arena from scratch rather than reusing it, since a different mode's
// register-width ceiling can make an earlier split point meaningless.
func (a *Allocator) reset(mode allocationMode) {
	a.mode = mode
	a.arena = buildLiveness(a.fn, a.opts)
	a.regs = newRegisterSet(a.baseRegisterCount())
	a.hints = newHintEngine(a.arena)
	if mode.hintsEnabled() {
		a.hints.build(a.fn)
	}
	a.spillSlots = map[int]int{}
	a.nextSpillSlot = 0

	if mode.invokeRangePlanningEnabled() {
		a.invokePlan = newInvokeRangePlan(a.arena)
		a.invokePlan.build(a.fn, a.arena, a.regs)
	} else {
		a.invokePlan = nil
	}
}

// unsplitArguments implements §4.G's post-success cleanup: once a mode
// has produced a complete allocation, check for each argument whether
// every one of its splits could simply have stayed in its incoming
// register for the argument's entire lifetime — no invoke-range pin, no
// use whose encoding limit excludes the incoming register, and no other
// interval occupying that register while the split was live. When so,
// the split chain is merged back into the root interval pinned to the
// incoming register, which removes the argument moves buildIntraIntervalMoves
// would otherwise emit at each former split boundary. Must run once after
// the mode ladder succeeds, against the winning mode's arena — not from
// reset(), since an attempt that fails never gets to keep its splits
// anyway.
func unsplitArguments(arena *intervalArena) {
	for _, root := range arena.intervals {
		if root.isSplit() || root.AssignedReg == noReg || len(root.SplitChildren) == 0 {
			continue
		}
		if !root.Value.IsArg {
			continue
		}
		children := childrenOf(arena, root)
		incomingReg := root.AssignedReg
		if !canUnsplitArgument(arena, root, children, incomingReg) {
			continue
		}
		mergeArgumentSplits(root, children, incomingReg)
	}
}

// canUnsplitArgument reports whether root and every one of its splits
// could have used incomingReg for their entire span: none may be an
// invoke-range pin, none may carry a use whose limit excludes
// incomingReg, and no other interval in the arena may already occupy
// incomingReg while any of these segments is live.
func canUnsplitArgument(arena *intervalArena, root *LiveInterval, children []*LiveInterval, incomingReg int) bool {
	segs := append([]*LiveInterval{root}, children...)
	for _, seg := range segs {
		if seg.IsInvokeRangeArg {
			return false
		}
		for _, u := range seg.Uses {
			if RegWidth(incomingReg) >= u.Limit {
				return false
			}
			if root.Value.Wide && RegWidth(incomingReg+1) >= u.Limit {
				return false
			}
		}
	}
	for _, other := range arena.intervals {
		if belongsTo(segs, other) || other.AssignedReg != incomingReg {
			continue
		}
		for _, seg := range segs {
			if seg.Intersects(other) {
				return false
			}
		}
	}
	return true
}

func belongsTo(segs []*LiveInterval, li *LiveInterval) bool {
	for _, s := range segs {
		if s == li {
			return true
		}
	}
	return false
}

// mergeArgumentSplits folds children's ranges and uses back into root,
// retires the (now-empty) child segments, and pins root to incomingReg
// for its merged lifetime.
func mergeArgumentSplits(root *LiveInterval, children []*LiveInterval, incomingReg int) {
	for _, c := range children {
		root.Ranges = append(root.Ranges, c.Ranges...)
		root.Uses = append(root.Uses, c.Uses...)
		c.Ranges = nil
		c.Uses = nil
		c.AssignedReg = noReg
	}
	sort.Slice(root.Ranges, func(i, j int) bool { return root.Ranges[i].From < root.Ranges[j].From })
	root.Ranges = mergeAdjacentRanges(root.Ranges)
	sort.Slice(root.Uses, func(i, j int) bool { return root.Uses[i].Pos < root.Uses[j].Pos })
	root.AssignedReg = incomingReg
	root.SplitChildren = nil
}

func mergeAdjacentRanges(ranges []LiveRange) []LiveRange {
	if len(ranges) == 0 {
		return ranges
	}
	out := []LiveRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.From <= last.To {
			if r.To > last.To {
				last.To = r.To
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// runWithModeLadder drives the escalation ladder described in §4.G: try
// each mode in order, accepting the first that completes without a
// width-exhaustion error.
func (a *Allocator) runWithModeLadder() error {
	var lastErr error
	for i, mode := range modeLadder {
		logger.LogModeAttempt(a.fn.Name, mode.String())
		a.reset(mode)
		err := newScanState(a).run()
		if err == nil {
			return nil
		}
		if _, widthErr := err.(*ErrNoFreeRegister); !widthErr {
			return err
		}
		if i+1 < len(modeLadder) {
			logger.LogModeEscalation(a.fn.Name, mode.String(), modeLadder[i+1].String(), err.Error())
		}
		lastErr = err
	}
	if lastErr != nil {
		return &ErrModeExhausted{Method: a.fn.Name}
	}
	return nil
}
