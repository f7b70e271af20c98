package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dex-regalloc/pkg/dexir"
)

func buildStraightLine(numArgs int) *Function {
	b := dexir.NewBuilder("straight")
	args := make([]*Value, numArgs)
	for i := 0; i < numArgs; i++ {
		args[i] = b.Arg("a"+string(rune('0'+i)), false)
	}
	b.Block()

	acc := args[0]
	for i := 1; i < numArgs; i++ {
		acc = b.Inst(dexir.OpBinOp, "t", false, false, acc, args[i])
	}
	b.Return(acc)
	return b.Finish()
}

func TestAllocatorSimpleChainSucceeds(t *testing.T) {
	fn := buildStraightLine(4)
	a := NewAllocator(fn, &Options{})

	result, err := a.AllocateRegisters()
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Greater(t, result.RegistersUsed, 0)
	assert.GreaterOrEqual(t, result.FrameSize, result.RegistersUsed)
}

func TestAllocatorArgumentsLandAtTop(t *testing.T) {
	fn := buildStraightLine(3)
	a := NewAllocator(fn, &Options{})
	result, err := a.AllocateRegisters()
	require.NoError(t, err)

	for i, arg := range fn.Args {
		reg, ok := a.finalRegisterOf(arg)
		require.True(t, ok, "argument %d should have a final register", i)
		assert.GreaterOrEqual(t, reg, result.ArgumentsStart, "argument %d should be in the top register block", i)
	}
}

func TestAllocatorGetRegisterForValue(t *testing.T) {
	fn := buildStraightLine(2)
	a := NewAllocator(fn, &Options{})
	_, err := a.AllocateRegisters()
	require.NoError(t, err)

	for _, arg := range fn.Args {
		loc, err := a.GetRegisterForValue(arg, 0)
		require.NoError(t, err)
		assert.True(t, loc.IsRegister)
	}
}

func TestAllocatorUnknownValueErrors(t *testing.T) {
	fn := buildStraightLine(1)
	a := NewAllocator(fn, &Options{})
	_, err := a.AllocateRegisters()
	require.NoError(t, err)

	stray := &Value{ID: 999, Name: "stray", NeedsRegister: true}
	_, err = a.GetRegisterForValue(stray, 0)
	assert.Error(t, err)
	var target *ErrValueWithoutInterval
	assert.ErrorAs(t, err, &target)
}

func TestAllocatorForcesPessimisticSpillPath(t *testing.T) {
	fn := buildStraightLine(6)
	a := NewAllocator(fn, &Options{ForcePessimisticAllocation: true})

	result, err := a.AllocateRegisters()
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestAllocatorDebugModeRunsInvariantChecks(t *testing.T) {
	fn := buildStraightLine(3)
	a := NewAllocator(fn, &Options{Debug: true})

	_, err := a.AllocateRegisters()
	assert.NoError(t, err)
}
