package tsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/transport"
)

// TestTimeoutAndRetrySchedule pins the spec scenario: APDU_Timeout of
// 1000ms with Number_Of_APDU_Retries of 2 retries at t=1000 and
// t=2000, then times out at t=3000.
func TestTimeoutAndRetrySchedule(t *testing.T) {
	pool := NewPool(1000*time.Millisecond, 2)
	peer := transport.Local(1)
	var result Result
	slot, err := pool.Allocate(peer, []byte{0xDE, 0xAD}, func(r Result) { result = r })
	require.NoError(t, err)

	base := time.Now()
	slot.Deadline = base.Add(1000 * time.Millisecond)

	// t=1000: first timeout check fires, retransmit #1.
	expired := pool.PollTimeouts(base.Add(1000 * time.Millisecond))
	require.Len(t, expired, 1)
	req, exhausted := pool.Retransmit(slot.InvokeID)
	assert.Equal(t, []byte{0xDE, 0xAD}, req)
	assert.False(t, exhausted)

	// t=2000: second timeout check fires, retransmit #2.
	expired = pool.PollTimeouts(base.Add(2000 * time.Millisecond))
	require.Len(t, expired, 1)
	req, exhausted = pool.Retransmit(slot.InvokeID)
	assert.Equal(t, []byte{0xDE, 0xAD}, req)
	assert.False(t, exhausted)

	// t=3000: third timeout check fires, retry budget exhausted -> fail.
	expired = pool.PollTimeouts(base.Add(3000 * time.Millisecond))
	require.Len(t, expired, 1)
	_, exhausted = pool.Retransmit(slot.InvokeID)
	assert.True(t, exhausted)
	pool.Fail(slot.InvokeID, Timeout, 0, 0, 0)

	assert.Equal(t, Timeout, result.State)
	assert.True(t, pool.IsInvokeIDFree(slot.InvokeID))
	assert.True(t, pool.IsInvokeIDFailed(slot.InvokeID) == false) // slot freed, no longer tracked
}

func TestAllocateSkipsInUseInvokeIDs(t *testing.T) {
	pool := NewPool(time.Second, 0)
	peer := transport.Local(1)
	first, err := pool.Allocate(peer, nil, nil)
	require.NoError(t, err)
	second, err := pool.Allocate(peer, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.InvokeID, second.InvokeID)
}

func TestLookupRejectsWrongPeer(t *testing.T) {
	pool := NewPool(time.Second, 0)
	slot, err := pool.Allocate(transport.Local(1), nil, nil)
	require.NoError(t, err)
	_, err = pool.Lookup(slot.InvokeID, transport.Local(2))
	assert.ErrorIs(t, err, ErrUnknownInvokeID)

	got, err := pool.Lookup(slot.InvokeID, transport.Local(1))
	require.NoError(t, err)
	assert.Equal(t, slot.InvokeID, got.InvokeID)
}

func TestCompleteInvokesCallbackAndFreesSlot(t *testing.T) {
	pool := NewPool(time.Second, 0)
	done := make(chan Result, 1)
	slot, err := pool.Allocate(transport.Local(1), nil, func(r Result) { done <- r })
	require.NoError(t, err)

	pool.Complete(slot.InvokeID, []byte{0x01, 0x02})
	r := <-done
	assert.Equal(t, Complete, r.State)
	assert.Equal(t, []byte{0x01, 0x02}, r.APDU)
	assert.True(t, pool.IsInvokeIDFree(slot.InvokeID))
}

func TestSegmentedReassembly(t *testing.T) {
	pool := NewPool(time.Second, 0)
	slot, err := pool.Allocate(transport.Local(1), nil, nil)
	require.NoError(t, err)

	pool.BeginSegmentedResponse(slot.InvokeID, 2)
	windowFull, ok := pool.ReceiveSegment(slot.InvokeID, 0, []byte{0xAA}, true)
	require.True(t, ok)
	assert.False(t, windowFull)

	windowFull, ok = pool.ReceiveSegment(slot.InvokeID, 1, []byte{0xBB}, true)
	require.True(t, ok)
	assert.True(t, windowFull)

	_, ok = pool.ReceiveSegment(slot.InvokeID, 2, []byte{0xCC}, false)
	require.True(t, ok)

	pool.Complete(slot.InvokeID, slot.Assembled())
}
