package regalloc

import (
	"testing"

	"github.com/GriffinCanCode/dex-regalloc/pkg/dexir"
)

func buildDiamond(t *testing.T) (*Function, map[string]*Value) {
	t.Helper()
	b := dexir.NewBuilder("diamond")
	x := b.Arg("x", false)

	thenBlk := b.Label()
	elseBlk := b.Label()
	merge := b.Label()

	b.Block() // entry
	c1 := b.Const("c1", 1, false)
	cond := b.Inst(dexir.OpBinOp, "cond", false, false, x, c1)
	b.If(cond, thenBlk, elseBlk)

	b.Place(thenBlk)
	tv := b.Const("tv", 2, false)
	b.Goto(merge)

	b.Place(elseBlk)
	ev := b.Const("ev", 3, false)
	b.Goto(merge)

	b.Place(merge)
	p := b.Phi("p", false, []*Block{thenBlk, elseBlk}, []*Value{tv, ev})
	b.Return(p)

	fn := b.Finish()
	return fn, map[string]*Value{"x": x, "cond": cond, "tv": tv, "ev": ev, "p": p}
}

func TestLivenessBasicSpan(t *testing.T) {
	fn, vals := buildDiamond(t)
	arena := buildLiveness(fn, &Options{})

	x := arena.intervalFor(vals["x"])
	if len(x.Ranges) == 0 {
		t.Fatal("argument x should have a live range")
	}
	if x.From() != 0 {
		t.Errorf("x.From() = %d, want 0 (pre-seeded at entry)", x.From())
	}

	cond := arena.intervalFor(vals["cond"])
	if len(cond.Uses) == 0 {
		t.Fatal("cond should have at least its own def recorded as a use")
	}
}

func TestLivenessPhiDefAtMergeEntry(t *testing.T) {
	fn, vals := buildDiamond(t)
	arena := buildLiveness(fn, &Options{})

	p := arena.intervalFor(vals["p"])
	if len(p.Ranges) == 0 {
		t.Fatal("phi result should have a live range covering its use in return")
	}

	merge := fn.Blocks[len(fn.Blocks)-1]
	if p.From() != merge.Start {
		t.Errorf("phi def position = %d, want merge block start %d", p.From(), merge.Start)
	}
}

func TestLivenessDeadValueHasOnePointRange(t *testing.T) {
	b := dexir.NewBuilder("deadval")
	b.Block()
	b.Const("unused", 42, false)
	v := b.Const("live", 1, false)
	b.Return(v)
	fn := b.Finish()

	arena := buildLiveness(fn, &Options{})
	for val, id := range arena.byValue {
		if val.Name == "unused" {
			li := arena.get(id)
			if len(li.Ranges) != 1 {
				t.Errorf("dead value should get exactly a one-point defining range, got %d ranges", len(li.Ranges))
			}
		}
	}
}
