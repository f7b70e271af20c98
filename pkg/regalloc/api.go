// Package regalloc implements the Wimmer-style linear-scan register
// allocator for a Dalvik/DEX bytecode compiler back end.
//
// Design: linear scan on SSA with lifetime holes, splitting, spilling and
// rematerialization, following Wimmer & Mössenböck, "Linear Scan Register
// Allocation on SSA Form" — the same lineage the teacher compiler's own
// pkg/codegen/regalloc.Allocator cites, generalized here to the full
// split/mode-ladder/invoke-range machinery a real DEX back end needs.
package regalloc

import (
	"github.com/Masterminds/semver/v3"

	"github.com/GriffinCanCode/dex-regalloc/pkg/dexir"
)

// Options carries the ISA-quirk predicates and debug/release switches the
// allocator consults. It is held by reference on the Allocator and never
// threaded through individual function arguments (§9 design notes).
type Options struct {
	// Debug enables invariantsHold auditing, run once on the finished
	// allocation after compaction (not at each step of the main loop),
	// and routes internal-invariant violations through panics instead of
	// a returned InternalError (§7). Without Debug the audit does not run.
	Debug bool

	// ThisInDebugMode reserves the `this` register in debug builds so a
	// debugger can always find it.
	ThisInDebugMode bool

	// MoveExceptionRegisterIsLastLocal controls where the dedicated
	// move-exception register is placed: immediately after the arguments
	// (false) or as the very last local register (true).
	MoveExceptionRegisterIsLastLocal bool

	// ForcePessimisticAllocation is a test-only escape hatch (§6) used to
	// exercise the blocked-register and blocked-hint-eviction paths
	// without constructing huge fixtures: it makes allocate() pretend
	// every register beyond the first allocatable one is blocked.
	ForcePessimisticAllocation bool

	// MinAPILevel is the lowest Android API level this method must run
	// on. Each target-workaround predicate below gates on a semver
	// constraint over this value instead of a bare boolean the caller
	// must precompute, letting one Options value describe a whole
	// multi-release deployment target the way a real compiler driver
	// would configure it from a build file.
	MinAPILevel *semver.Version

	// affectedAPIs, when non-nil, overrides the hard-coded constraint
	// table below for testing.
	affectedAPIs map[quirk]*semver.Constraints
}

type quirk int

const (
	quirkOverlappingLongRegister quirk = iota
	quirkCmpLong
	quirkLongToInt
	quirkArrayGetWideSameReg
	quirkThisTypeVerifier
	quirkThisJitDebugging
)

// defaultQuirkRanges records the API-level ranges the six DEX-interpreter
// bugs spec.md names are known to affect, mirroring how a real compiler
// driver would encode "this bug exists on API 19-22" from release notes.
var defaultQuirkRanges = map[quirk]string{
	quirkOverlappingLongRegister: "<=22.0.0",
	quirkCmpLong:                 "<=19.0.0",
	quirkLongToInt:               "<=19.0.0",
	quirkArrayGetWideSameReg:     "<=20.0.0",
	quirkThisTypeVerifier:        "<=19.0.0",
	quirkThisJitDebugging:        "<=22.0.0",
}

func (o *Options) quirkActive(q quirk) bool {
	if o.MinAPILevel == nil {
		return false
	}
	constraints := o.affectedAPIs
	if constraints == nil {
		constraints = map[quirk]*semver.Constraints{}
		for k, raw := range defaultQuirkRanges {
			c, err := semver.NewConstraint(raw)
			if err != nil {
				panic("regalloc: invalid built-in quirk constraint: " + err.Error())
			}
			constraints[k] = c
		}
	}
	c, ok := constraints[q]
	if !ok {
		return false
	}
	return c.Check(o.MinAPILevel)
}

// CanHaveOverlappingLongRegisterBug reports whether the target's add/sub/
// or/xor/and on long may compute a wrong result when the 64-bit result
// register half-overlaps either operand.
func (o *Options) CanHaveOverlappingLongRegisterBug() bool { return o.quirkActive(quirkOverlappingLongRegister) }

// CanHaveCmpLongBug reports the cmp-long result/operand overlap bug.
func (o *Options) CanHaveCmpLongBug() bool { return o.quirkActive(quirkCmpLong) }

// CanHaveLongToIntBug reports the long-to-int result/operand overlap bug.
func (o *Options) CanHaveLongToIntBug() bool { return o.quirkActive(quirkLongToInt) }

// CanUseSameArrayAndResultRegisterInArrayGetWide reports whether
// aget-wide is SAFE to alias its array and result registers: i.e. the
// workaround is needed when this returns false.
func (o *Options) CanUseSameArrayAndResultRegisterInArrayGetWide() bool {
	return !o.quirkActive(quirkArrayGetWideSameReg)
}

// CanHaveThisTypeVerifierBug reports whether the verifier may reject a
// method whose `this` register changes mid-method.
func (o *Options) CanHaveThisTypeVerifierBug() bool { return o.quirkActive(quirkThisTypeVerifier) }

// CanHaveThisJitCodeDebuggingBug reports whether a JIT/debugger bug
// requires `this` to stay in a fixed register.
func (o *Options) CanHaveThisJitCodeDebuggingBug() bool { return o.quirkActive(quirkThisJitDebugging) }

// Function, Block, Instruction and Value are the concrete façade types the
// allocator consumes; see pkg/dexir. The allocator only ever reads them
// (and calls the few mutator helpers below) — SSA construction, CFG
// building, and bytecode emission remain the caller's responsibility
// per §1's scope boundary.
type (
	Function    = dexir.Function
	Block       = dexir.Block
	Instruction = dexir.Instruction
	Value       = dexir.Value

	RegWidth  = dexir.RegWidth
	Opcode    = dexir.Opcode
	BinOpKind = dexir.BinOpKind
	LocalInfo = dexir.LocalInfo
)

// Register-width limits, mirrored from pkg/dexir so every file in this
// package can reason about use-site width constraints without importing
// dexir directly.
const (
	Width4Bit  = dexir.Width4Bit
	Width8Bit  = dexir.Width8Bit
	Width16Bit = dexir.Width16Bit
)

// Opcodes the allocator's hint engine, invoke-range planner and
// move-elimination pass switch on.
const (
	OpConst         = dexir.OpConst
	OpMove          = dexir.OpMove
	OpCheckCast     = dexir.OpCheckCast
	OpBinOp         = dexir.OpBinOp
	OpArrayGetWide  = dexir.OpArrayGetWide
	OpCmpLong       = dexir.OpCmpLong
	OpLongToInt     = dexir.OpLongToInt
	OpLongBinOp     = dexir.OpLongBinOp
	OpInvoke        = dexir.OpInvoke
	OpInvokeRange   = dexir.OpInvokeRange
	OpMoveException = dexir.OpMoveException
	OpMonitorEnter  = dexir.OpMonitorEnter
	OpMonitorExit   = dexir.OpMonitorExit
	OpNewInstance   = dexir.OpNewInstance
	OpPhi           = dexir.OpPhi
	OpReturn        = dexir.OpReturn
	OpReturnVoid    = dexir.OpReturnVoid
	OpGoto          = dexir.OpGoto
	OpIf            = dexir.OpIf
	OpThrow         = dexir.OpThrow
)
