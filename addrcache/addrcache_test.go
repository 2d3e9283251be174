package addrcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/transport"
)

func TestUpdateThenLookup(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	addr := transport.Local(1, 2, 3)
	c.Update(5, addr, 1476, 2, 999)

	b, ok := c.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, addr, b.Address)
	assert.Equal(t, uint32(1476), b.MaxAPDULength)
	assert.Equal(t, uint32(2), b.SegmentationSupported)
	assert.Equal(t, uint32(999), b.VendorIdentifier)
	assert.False(t, b.LastSeen.IsZero())
}

func TestLookupMissReturnsFalse(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)
	_, ok := c.Lookup(42)
	assert.False(t, ok)
}

func TestForgetRemovesBinding(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)
	c.Update(1, transport.Local(1), 1476, 0, 0)
	c.Forget(1)
	_, ok := c.Lookup(1)
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	c.Update(1, transport.Local(1), 0, 0, 0)
	c.Update(2, transport.Local(2), 0, 0, 0)
	c.Update(3, transport.Local(3), 0, 0, 0) // evicts 1

	_, ok := c.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}
