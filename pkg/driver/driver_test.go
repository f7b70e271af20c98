package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dex-regalloc/pkg/dexir"
	"github.com/GriffinCanCode/dex-regalloc/pkg/regalloc"
)

func buildMethod(name string, numArgs int) *regalloc.Function {
	b := dexir.NewBuilder(name)
	args := make([]*dexir.Value, numArgs)
	for i := range args {
		args[i] = b.Arg("a", false)
	}
	b.Block()
	acc := args[0]
	for i := 1; i < numArgs; i++ {
		acc = b.Inst(dexir.OpBinOp, "t", false, false, acc, args[i])
	}
	b.Return(acc)
	return b.Finish()
}

func TestDriverAllocatesConcurrently(t *testing.T) {
	fns := []*regalloc.Function{
		buildMethod("m1", 3),
		buildMethod("m2", 4),
		buildMethod("m3", 2),
	}

	d := New(&regalloc.Options{}, 2)
	reports, err := d.AllocateAll(context.Background(), fns)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	for i, r := range reports {
		assert.Equal(t, fns[i].Name, r.Method)
		assert.Greater(t, r.RegistersUsed, 0)
	}
}

func TestSortedByMethodIsDeterministic(t *testing.T) {
	reports := []MethodReport{{Method: "zeta"}, {Method: "alpha"}, {Method: "mid"}}
	sorted := SortedByMethod(reports)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{sorted[0].Method, sorted[1].Method, sorted[2].Method})
}
