package dexir

// Block is a basic block: straight-line code, optional phis at entry, an
// optional set of exceptional successors (catch handlers reachable from
// any throwing instruction in this block).
type Block struct {
	ID int

	Phis         []*Instruction
	Instructions []*Instruction

	Preds []*Block
	Succs []*Block

	// ExceptionalSuccs are catch-handler blocks reachable from any
	// throwing instruction in this block.
	ExceptionalSuccs []*Block

	// IsCatchHandler marks a block whose first instruction must be
	// OpMoveException with nothing preceding it (§4.D, invariant 4).
	IsCatchHandler bool

	// EndsWithGoto marks a block terminated by an unconditional branch
	// (set by Builder.Goto). resolveControlFlow chooses between
	// out-resolution (copy at the end of this block) and in-resolution
	// (copy at the successor's entry) by successor count, not by this
	// flag; a goto block has one successor and so gets out-resolution.
	EndsWithGoto bool

	// Start/End are even program positions assigned by Function.Number.
	Start, End int
}

// LastThrowingInstrPos returns the position of the last instruction in
// this block whose CanThrow flag is set, or -1 if none. Values live only
// on an exceptional edge are truncated to this position (§4.B).
func (b *Block) LastThrowingInstrPos() int {
	pos := -1
	for _, inst := range b.Instructions {
		if inst.CanThrow {
			pos = inst.Pos
		}
	}
	return pos
}

// Function is one method body: its argument values in incoming order and
// its blocks. Blocks[0] is always the entry block.
type Function struct {
	Name        string
	Args        []*Value
	Blocks      []*Block
	NumArgWords int // sum of Slots() over Args, i.e. incoming register count

	// MoveExceptionValues are the destinations of every OpMoveException
	// instruction in the function, in block order.
	MoveExceptionValues []*Value

	postorder        []*Block
	reversePostorder []*Block
	topoBuilt        bool
}

// AddBlock appends a block and wires it into the function.
func (f *Function) AddBlock(b *Block) {
	b.ID = len(f.Blocks)
	f.Blocks = append(f.Blocks, b)
	f.topoBuilt = false
}

func (b *Block) AddInstr(i *Instruction) {
	i.Block = b
	b.Instructions = append(b.Instructions, i)
}

func (b *Block) AddPhi(i *Instruction) {
	i.Op = OpPhi
	i.Block = b
	b.Phis = append(b.Phis, i)
}

// Link wires pred->succ (and back-reference) for normal control flow.
func Link(pred, succ *Block) {
	pred.Succs = append(pred.Succs, succ)
	succ.Preds = append(succ.Preds, pred)
}

// LinkExceptional wires pred->handler for an exceptional edge.
func LinkExceptional(pred, handler *Block) {
	pred.ExceptionalSuccs = append(pred.ExceptionalSuccs, handler)
	handler.Preds = append(handler.Preds, pred)
}

// Number assigns even positions at stride 2 to every instruction in
// topological order, per §3: even numbers are instructions, the preceding
// odd number is the gap where spill/restore moves may be inserted.
func (f *Function) Number() {
	pos := 0
	for _, b := range f.TopologicalOrder() {
		b.Start = pos
		for _, phi := range b.Phis {
			phi.Pos = pos
			pos += 2
		}
		for _, inst := range b.Instructions {
			inst.Pos = pos
			pos += 2
		}
		b.End = pos
	}
}

// TopologicalOrder returns blocks in a CFG topological order (entry
// first, every block after all of its non-back-edge predecessors),
// computed once and memoized until the next AddBlock.
func (f *Function) TopologicalOrder() []*Block {
	if f.topoBuilt {
		return f.reversePostorder
	}
	f.buildOrders()
	return f.reversePostorder
}

// PostOrder returns blocks in post-order (used by the liveness analyzer's
// backward data-flow fixed point, §4.B).
func (f *Function) PostOrder() []*Block {
	if !f.topoBuilt {
		f.buildOrders()
	}
	return f.postorder
}

func (f *Function) buildOrders() {
	visited := make(map[*Block]bool, len(f.Blocks))
	var post []*Block
	var visit func(b *Block)
	visit = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		for _, s := range b.ExceptionalSuccs {
			visit(s)
		}
		post = append(post, b)
	}
	if len(f.Blocks) > 0 {
		visit(f.Blocks[0])
	}
	// Any block unreachable from entry by the walk above (shouldn't
	// happen in well-formed input) is still included, deterministically,
	// in declaration order, so callers never silently drop a block.
	for _, b := range f.Blocks {
		visit(b)
	}
	rpo := make([]*Block, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	f.postorder = post
	f.reversePostorder = rpo
	f.topoBuilt = true
}

// Entry returns the function's entry block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}
