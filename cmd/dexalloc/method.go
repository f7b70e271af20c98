package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/GriffinCanCode/dex-regalloc/pkg/dexir"
)

// methodDoc is the on-disk JSON shape a caller (a real bytecode lowering
// pass, in production) hands the allocator: one already-in-SSA method
// body. It exists so the CLI has something concrete to drive without
// depending on an actual DEX front end, which is out of scope (§1).
type methodDoc struct {
	Name   string      `json:"name"`
	Args   []argDoc    `json:"args"`
	Blocks []blockDoc  `json:"blocks"`
}

type argDoc struct {
	Name string `json:"name"`
	Wide bool   `json:"wide"`
}

type blockDoc struct {
	CatchHandler bool        `json:"catchHandler"`
	Phis         []phiDoc    `json:"phis"`
	Instructions []instDoc   `json:"instructions"`
	Term         *termDoc    `json:"term"`
	Throws       []int       `json:"throws"`
}

type phiDoc struct {
	Name   string   `json:"name"`
	Wide   bool     `json:"wide"`
	Preds  []int    `json:"preds"`
	Values []string `json:"values"`
}

type instDoc struct {
	Op       string   `json:"op"`
	Name     string   `json:"name"`
	Wide     bool     `json:"wide"`
	CanThrow bool     `json:"canThrow"`
	HasOut   bool     `json:"hasOut"`
	Value    int64    `json:"value"`
	Kind     string   `json:"kind"`
	Uses     []string `json:"uses"`
}

type termDoc struct {
	Kind   string `json:"kind"`
	Target int    `json:"target"`
	Cond   string `json:"cond"`
	Then   int    `json:"then"`
	Else   int    `json:"else"`
	Value  string `json:"value"`
}

// loadMethod parses a methodDoc from r and builds the corresponding
// dexir.Function via dexir.Builder, in two passes: first allocating one
// dexir.Block label per entry so branches can reference blocks that
// appear later in the file, then filling each block's contents in order.
func loadMethod(r io.Reader) (*dexir.Function, error) {
	var doc methodDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode method doc: %w", err)
	}
	return buildFromDoc(&doc)
}

func buildFromDoc(doc *methodDoc) (*dexir.Function, error) {
	b := dexir.NewBuilder(doc.Name)

	values := map[string]*dexir.Value{}
	for _, ad := range doc.Args {
		values[ad.Name] = b.Arg(ad.Name, ad.Wide)
	}

	labels := make([]*dexir.Block, len(doc.Blocks))
	for i := range doc.Blocks {
		labels[i] = b.Label()
	}

	use := func(name string) (*dexir.Value, error) {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("undefined value %q", name)
		}
		return v, nil
	}
	uses := func(names []string) ([]*dexir.Value, error) {
		out := make([]*dexir.Value, len(names))
		for i, n := range names {
			v, err := use(n)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	for i, bd := range doc.Blocks {
		b.Place(labels[i])
		if bd.CatchHandler {
			b.SetCatchHandler()
		}

		for _, pd := range bd.Phis {
			preds := make([]*dexir.Block, len(pd.Preds))
			for j, p := range pd.Preds {
				if p < 0 || p >= len(labels) {
					return nil, fmt.Errorf("block %d: phi %q references out-of-range pred %d", i, pd.Name, p)
				}
				preds[j] = labels[p]
			}
			vals, err := uses(pd.Values)
			if err != nil {
				return nil, fmt.Errorf("block %d: phi %q: %w", i, pd.Name, err)
			}
			values[pd.Name] = b.Phi(pd.Name, pd.Wide, preds, vals)
		}

		for _, id := range bd.Instructions {
			if err := applyInst(b, values, uses, id); err != nil {
				return nil, fmt.Errorf("block %d: instruction %q: %w", i, id.Name, err)
			}
		}

		for _, h := range bd.Throws {
			if h < 0 || h >= len(labels) {
				return nil, fmt.Errorf("block %d: out-of-range exception handler %d", i, h)
			}
			b.Throws(labels[h])
		}

		if err := applyTerm(b, values, labels, bd.Term, i); err != nil {
			return nil, err
		}
	}

	return b.Finish(), nil
}

func applyInst(b *dexir.Builder, values map[string]*dexir.Value, uses func([]string) ([]*dexir.Value, error), id instDoc) error {
	switch id.Op {
	case "const":
		values[id.Name] = b.Const(id.Name, id.Value, id.Wide)
	case "invoke_range":
		args, err := uses(id.Uses)
		if err != nil {
			return err
		}
		values[id.Name] = b.InvokeRange(id.Name, id.Wide, id.HasOut, args...)
	default:
		args, err := uses(id.Uses)
		if err != nil {
			return err
		}
		op, err := opcodeFor(id.Op)
		if err != nil {
			return err
		}
		def := b.Inst(op, id.Name, id.Wide, id.CanThrow, args...)
		if (op == dexir.OpBinOp || op == dexir.OpLongBinOp) && def != nil {
			kind, err := binOpKindFor(id.Kind)
			if err != nil {
				return err
			}
			def.Def.BinKind = kind
		}
		values[id.Name] = def
	}
	return nil
}

func binOpKindFor(name string) (dexir.BinOpKind, error) {
	switch name {
	case "", "add":
		return dexir.BinOpAdd, nil
	case "sub":
		return dexir.BinOpSub, nil
	case "mul":
		return dexir.BinOpMul, nil
	case "or":
		return dexir.BinOpOr, nil
	case "xor":
		return dexir.BinOpXor, nil
	case "and":
		return dexir.BinOpAnd, nil
	default:
		return 0, fmt.Errorf("unknown binop kind %q", name)
	}
}

func opcodeFor(name string) (dexir.Opcode, error) {
	switch name {
	case "move":
		return dexir.OpMove, nil
	case "check_cast":
		return dexir.OpCheckCast, nil
	case "binop":
		return dexir.OpBinOp, nil
	case "array_get_wide":
		return dexir.OpArrayGetWide, nil
	case "cmp_long":
		return dexir.OpCmpLong, nil
	case "long_to_int":
		return dexir.OpLongToInt, nil
	case "long_binop":
		return dexir.OpLongBinOp, nil
	case "invoke":
		return dexir.OpInvoke, nil
	case "move_exception":
		return dexir.OpMoveException, nil
	case "monitor_enter":
		return dexir.OpMonitorEnter, nil
	case "monitor_exit":
		return dexir.OpMonitorExit, nil
	case "new_instance":
		return dexir.OpNewInstance, nil
	default:
		return 0, fmt.Errorf("unknown opcode %q", name)
	}
}

func applyTerm(b *dexir.Builder, values map[string]*dexir.Value, labels []*dexir.Block, term *termDoc, blockIdx int) error {
	if term == nil {
		return fmt.Errorf("block %d: missing terminator", blockIdx)
	}
	switch term.Kind {
	case "goto":
		if term.Target < 0 || term.Target >= len(labels) {
			return fmt.Errorf("block %d: goto target %d out of range", blockIdx, term.Target)
		}
		b.Goto(labels[term.Target])
	case "if":
		cond, ok := values[term.Cond]
		if !ok {
			return fmt.Errorf("block %d: undefined condition %q", blockIdx, term.Cond)
		}
		if term.Then < 0 || term.Then >= len(labels) || term.Else < 0 || term.Else >= len(labels) {
			return fmt.Errorf("block %d: if branch target out of range", blockIdx)
		}
		b.If(cond, labels[term.Then], labels[term.Else])
	case "return":
		v, ok := values[term.Value]
		if !ok {
			return fmt.Errorf("block %d: undefined return value %q", blockIdx, term.Value)
		}
		b.Return(v)
	case "return_void":
		b.Return(nil)
	default:
		return fmt.Errorf("block %d: unknown terminator kind %q", blockIdx, term.Kind)
	}
	return nil
}
