package dexir

// Builder constructs Function bodies by hand: the allocator's test suite
// and the JSON-driven CLI both go through it instead of poking at
// Function/Block/Value fields directly. Mirrors the teacher's
// pkg/ir.Builder (stateful, single-pass, explicit block/value bookkeeping)
// but builds already-in-SSA bodies rather than lowering from an AST.
type Builder struct {
	fn        *Function
	nextValID int
	cur       *Block
}

// NewBuilder starts building a function named name.
func NewBuilder(name string) *Builder {
	return &Builder{fn: &Function{Name: name}}
}

// Arg declares the next incoming argument. Arguments must be declared in
// calling-convention order before any block is added.
func (b *Builder) Arg(name string, wide bool) *Value {
	v := &Value{
		ID:            b.nextValID,
		Name:          name,
		Wide:          wide,
		IsArg:         true,
		ArgIndex:      len(b.fn.Args),
		NeedsRegister: true,
	}
	b.nextValID++
	b.fn.Args = append(b.fn.Args, v)
	b.fn.NumArgWords += v.Slots()
	if n := len(b.fn.Args); n > 1 {
		b.fn.Args[n-2].NextConsecutive = v
	}
	return v
}

// Block starts (and switches the builder to) a new basic block.
func (b *Builder) Block() *Block {
	bl := &Block{}
	b.fn.AddBlock(bl)
	b.cur = bl
	return bl
}

// Label allocates a block without adding it to the function or switching
// the builder's current block, so a forward branch target can be named
// before its contents are built. Place it once its turn in layout order
// arrives.
func (b *Builder) Label() *Block { return &Block{} }

// Place adds a previously-allocated Label to the function in layout
// order and switches the builder to it.
func (b *Builder) Place(bl *Block) {
	b.fn.AddBlock(bl)
	b.cur = bl
}

// SetCatchHandler marks the current block as a catch-handler entry.
func (b *Builder) SetCatchHandler() {
	b.cur.IsCatchHandler = true
}

func (b *Builder) newValue(name string, wide bool) *Value {
	v := &Value{ID: b.nextValID, Name: name, Wide: wide, ArgIndex: -1, NeedsRegister: true}
	b.nextValID++
	return v
}

// Inst appends a generic instruction with the given def (may be nil) and
// uses to the current block, returning the def for chaining.
func (b *Builder) Inst(op Opcode, name string, wide bool, canThrow bool, uses ...*Value) *Value {
	var def *Value
	if name != "" {
		def = b.newValue(name, wide)
	}
	inst := &Instruction{
		Op:        op,
		Def:       def,
		DefLimit:  Width16Bit,
		Uses:      uses,
		UseLimits: widthsFor(uses, Width16Bit),
		CanThrow:  canThrow,
	}
	if def != nil {
		def.Def = inst
	}
	b.cur.AddInstr(inst)
	if op == OpMoveException {
		b.fn.MoveExceptionValues = append(b.fn.MoveExceptionValues, def)
	}
	return def
}

// Const appends a constant-load instruction; the resulting value is
// rematerializable.
func (b *Builder) Const(name string, val int64, wide bool) *Value {
	def := b.newValue(name, wide)
	def.IsConstant = true
	def.ConstValue = val
	inst := &Instruction{Op: OpConst, Def: def, DefLimit: Width16Bit}
	def.Def = inst
	b.cur.AddInstr(inst)
	return def
}

// Phi appends a phi node at the top of the current block.
func (b *Builder) Phi(name string, wide bool, preds []*Block, values []*Value) *Value {
	def := b.newValue(name, wide)
	def.IsPhi = true
	phi := &Instruction{Op: OpPhi, Def: def, DefLimit: Width16Bit, PhiPreds: preds, PhiValues: values, Uses: values, UseLimits: widthsFor(values, Width16Bit)}
	def.Def = phi
	b.cur.AddPhi(phi)
	return def
}

// InvokeRange appends a call whose arguments occupy a consecutive register
// block (§4.F); hasOut reserves room for a non-void result.
func (b *Builder) InvokeRange(name string, wide bool, hasOut bool, args ...*Value) *Value {
	var def *Value
	if name != "" {
		def = b.newValue(name, wide)
	}
	inst := &Instruction{
		Op:          OpInvokeRange,
		Def:         def,
		DefLimit:    Width8Bit,
		Uses:        args,
		UseLimits:   widthsFor(args, Width16Bit),
		HasOutValue: hasOut,
		CanThrow:    true,
	}
	if def != nil {
		def.Def = inst
	}
	b.cur.AddInstr(inst)
	return def
}

func widthsFor(vs []*Value, w RegWidth) []RegWidth {
	out := make([]RegWidth, len(vs))
	for i := range vs {
		out[i] = w
	}
	return out
}

// Goto terminates the current block with an unconditional branch and
// links the CFG edge.
func (b *Builder) Goto(target *Block) {
	b.cur.EndsWithGoto = true
	Link(b.cur, target)
}

// If terminates the current block with a conditional branch.
func (b *Builder) If(cond *Value, thenBlk, elseBlk *Block) {
	b.cur.AddInstr(&Instruction{Op: OpIf, Uses: []*Value{cond}, UseLimits: []RegWidth{Width16Bit}})
	Link(b.cur, thenBlk)
	Link(b.cur, elseBlk)
}

// Return terminates the current block.
func (b *Builder) Return(val *Value) {
	var uses []*Value
	var limits []RegWidth
	if val != nil {
		uses = []*Value{val}
		limits = []RegWidth{Width16Bit}
	}
	b.cur.AddInstr(&Instruction{Op: OpReturn, Uses: uses, UseLimits: limits})
}

// Throws marks an exceptional CFG edge from the current block to handler.
func (b *Builder) Throws(handler *Block) {
	LinkExceptional(b.cur, handler)
}

// Finish returns the built function, numbered and ready for allocation.
func (b *Builder) Finish() *Function {
	b.fn.Number()
	return b.fn
}
