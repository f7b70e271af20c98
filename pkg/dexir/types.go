// Package dexir is the minimal IR façade the register allocator consumes.
//
// Design: a read-only view over an already-lowered SSA method body, the
// same shape as the teacher compiler's pkg/ir + pkg/ssa, but reshaped for a
// Dalvik/DEX target: values carry register-width limits instead of x86
// addressing modes, and instructions carry the handful of DEX-specific
// flags (can-throw, invoke-range, move-exception) the allocator needs.
// Front-end concerns (parsing, SSA construction, CFG building) live
// upstream of this package and are out of scope here.
package dexir

import "fmt"

// RegWidth bounds the register index an operand may be assigned to,
// mirroring the three DEX instruction-width encodings. The allocator
// treats it as an exclusive bound: an operand with limit L is kept in
// registers below L, so register L itself is never used for it.
type RegWidth int

const (
	Width4Bit  RegWidth = 15  // vA/vB nibble forms (e.g. add-int/2addr)
	Width8Bit  RegWidth = 255 // vAA byte forms
	Width16Bit RegWidth = 65535
)

// Value is an SSA value: an argument, a phi destination, or the result of
// an instruction. Constants are marked rematerializable; see
// LiveInterval.Rematerializable.
type Value struct {
	ID   int
	Name string

	// Wide values (long/double) occupy two consecutive registers.
	Wide bool

	IsArg    bool
	ArgIndex int // -1 when IsArg is false

	IsPhi bool

	// Def is the instruction that defines this value. nil for arguments.
	Def *Instruction

	// NeedsRegister is false for values that never require a physical
	// register (e.g. a no-op cast whose operand is reused directly).
	NeedsRegister bool

	// ConstValue holds the constant operand when IsConstant is true; the
	// liveness analyzer uses it to decide rematerializability.
	IsConstant bool
	ConstValue int64

	// HasLocalInfo/LocalInfo drive debug-locals reconstruction (§4.I).
	HasLocalInfo bool
	LocalInfo    LocalInfo

	// NextConsecutive links argument values that must land in contiguous
	// incoming registers (the first argument points at the second, etc).
	NextConsecutive *Value
}

// LocalInfo names the source-level local variable a Value represents.
type LocalInfo struct {
	Name string
	Type string
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("v%d", v.ID)
}

// Slots returns how many consecutive registers this value occupies.
func (v *Value) Slots() int {
	if v.Wide {
		return 2
	}
	return 1
}

// Opcode enumerates the instruction shapes the allocator must reason
// about. Most opcodes are generic (BinOp, Move, Call); a few exist purely
// to drive target-workaround and hint logic (§4.D, §4.E).
type Opcode int

const (
	OpConst Opcode = iota
	OpMove
	OpCheckCast
	OpBinOp         // generic arithmetic; may permit a 2-address form
	OpArrayGetWide  // aget-wide: result pair must not reuse array register
	OpCmpLong       // cmp-long: 32-bit result must not overlap either long half
	OpLongToInt     // long-to-int: same constraint as CmpLong
	OpLongBinOp     // add/sub/or/xor/and on long: 64-bit result vs 64-bit operands
	OpInvoke        // ordinary call
	OpInvokeRange   // call requiring a consecutive register block
	OpMoveException // must be the first instruction of a catch block
	OpMonitorEnter
	OpMonitorExit
	OpNewInstance
	OpPhi
	OpReturn
	OpReturnVoid
	OpGoto
	OpIf
	OpThrow
)

// BinOpKind refines OpBinOp/OpLongBinOp for 2-address-hint and overlap-bug
// purposes.
type BinOpKind int

const (
	BinOpAdd BinOpKind = iota
	BinOpSub
	BinOpMul
	BinOpOr
	BinOpXor
	BinOpAnd
)

func (k BinOpKind) Commutative() bool {
	switch k {
	case BinOpAdd, BinOpOr, BinOpXor, BinOpAnd, BinOpMul:
		return true
	default:
		return false
	}
}

// Instruction is one DEX-level operation. Def/Uses give the register
// allocator its def-use view; UseLimits is parallel to Uses and records
// the register-width limit the encoding imposes on that operand.
type Instruction struct {
	Op    Opcode
	Block *Block

	// Pos is the even program position assigned by Function.Number. It is
	// local to the owning Function, so concurrent allocation of distinct
	// functions (§5) never touches the same Instruction.
	Pos int

	Def       *Value
	DefLimit  RegWidth
	Uses      []*Value
	UseLimits []RegWidth

	BinKind BinOpKind

	// CanThrow marks an instruction whose exceptional successors extend
	// the liveness of values used only in a handler (§4.B).
	CanThrow bool

	// HasOutValue is set on invoke instructions whose result needs a
	// register reserved at the bottom of the consecutive block (§4.F).
	HasOutValue bool

	// CheckCastSharesLocalInfo mirrors the source/dest sharing debug-local
	// info in the hint-engine's check-cast rule (§4.E).
	CheckCastSharesLocalInfo bool

	// PhiPreds/PhiValues are parallel slices: PhiValues[i] flows in from
	// PhiPreds[i]. Only populated when Op == OpPhi.
	PhiPreds  []*Block
	PhiValues []*Value

	// Debug-value annotations attached to this instruction (§4.I): values
	// that must stay live for their declared scope even without a "real"
	// use, plus explicit scope-end markers.
	DebugStarts []*Value
	DebugEnds   []*Value
}

func (i *Instruction) String() string {
	return fmt.Sprintf("inst(op=%d def=%s)", i.Op, i.Def)
}
