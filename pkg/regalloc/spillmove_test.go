package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleParallelMovesNoCycle(t *testing.T) {
	moves := []Move{
		{Value: &Value{Name: "a"}, From: regLoc(0), To: regLoc(1)},
		{Value: &Value{Name: "b"}, From: regLoc(1), To: regLoc(2)},
	}
	scheduled := scheduleParallelMoves(moves, regLoc(9))
	require := assert.New(t)
	require.Len(scheduled, 2)
	// b must move out of r1 before a overwrites it.
	require.Equal("b", scheduled[0].Value.Name)
	require.Equal("a", scheduled[1].Value.Name)
}

func TestScheduleParallelMovesBreaksCycle(t *testing.T) {
	moves := []Move{
		{Value: &Value{Name: "a"}, From: regLoc(0), To: regLoc(1)},
		{Value: &Value{Name: "b"}, From: regLoc(1), To: regLoc(0)},
	}
	scheduled := scheduleParallelMoves(moves, regLoc(9))
	assert.Len(t, scheduled, 3)

	seen := map[string]bool{}
	for _, m := range scheduled {
		seen[m.Value.Name] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])

	// The temp register absorbs one of the two colliding values, and
	// running the sequence leaves each value in its destination, so no
	// move read a location after it was overwritten.
	contents := map[Location]string{regLoc(0): "a", regLoc(1): "b"}
	for _, m := range scheduled {
		contents[m.To] = contents[m.From]
	}
	assert.Equal(t, "a", contents[regLoc(1)])
	assert.Equal(t, "b", contents[regLoc(0)])
}

func TestFirstParallelMoveTemporaryGrowsWhenFull(t *testing.T) {
	regs := newRegisterSet(2)
	regs.take(0, false)
	regs.take(1, false)

	loc := firstParallelMoveTemporary(regs)
	assert.Equal(t, 2, loc.Reg)
	assert.Equal(t, 3, regs.capacity)
}

func TestLocationEqual(t *testing.T) {
	assert.True(t, regLoc(3).Equal(regLoc(3)))
	assert.False(t, regLoc(3).Equal(regLoc(4)))
	assert.False(t, regLoc(3).Equal(slotLoc(3)))
	assert.True(t, slotLoc(5).Equal(slotLoc(5)))
}
