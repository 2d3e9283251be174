package commandable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/tag"
)

// TestPriorityArrayScenario pins the spec's priority-array scenario:
// write 80.0 at priority 8, then 50.0 at priority 3; PresentValue
// tracks the higher-priority (lower-numbered) write, and relinquishing
// it falls back to the next occupied slot, then to the default.
func TestPriorityArrayScenario(t *testing.T) {
	a := NewArray(tag.Real(0))

	require.NoError(t, a.Write(8, tag.Real(80.0)))
	v, p := a.Present()
	assert.Equal(t, float32(80.0), v.Real)
	assert.Equal(t, 8, p)

	require.NoError(t, a.Write(3, tag.Real(50.0)))
	v, p = a.Present()
	assert.Equal(t, float32(50.0), v.Real)
	assert.Equal(t, 3, p)

	require.NoError(t, a.Relinquish(3))
	v, p = a.Present()
	assert.Equal(t, float32(80.0), v.Real)
	assert.Equal(t, 8, p)

	require.NoError(t, a.Relinquish(8))
	v, p = a.Present()
	assert.Equal(t, float32(0), v.Real)
	assert.Equal(t, 0, p)
}

func TestReservedSlotDenied(t *testing.T) {
	a := NewArray(tag.Real(0))
	err := a.Write(ReservedSlot, tag.Real(1))
	assert.ErrorIs(t, err, ErrReservedPriority)
}

func TestPriorityOutOfRange(t *testing.T) {
	a := NewArray(tag.Real(0))
	assert.ErrorIs(t, a.Write(0, tag.Real(1)), ErrPriorityOutOfRange)
	assert.ErrorIs(t, a.Write(17, tag.Real(1)), ErrPriorityOutOfRange)
}

func TestOnChangeFiresOnWriteAndRelinquish(t *testing.T) {
	a := NewArray(tag.Real(0))
	var calls []int
	a.OnChange = func(v tag.Value, priority int) { calls = append(calls, priority) }

	require.NoError(t, a.Write(5, tag.Real(1)))
	require.NoError(t, a.Relinquish(5))
	assert.Equal(t, []int{5, 0}, calls)
}
