// Package tsm implements the Transaction State Machine: the
// invoke-ID-keyed slot pool that tracks each outstanding confirmed
// request, drives retry/timeout, and reassembles segmented responses.
package tsm

import (
	"errors"
	"sync"
	"time"

	"github.com/greenridge/bacstack/transport"
)

// State is a TSM slot's lifecycle state.
type State uint8

const (
	Idle State = iota
	AwaitingResponse
	AwaitingSegmentACK
	Complete
	Timeout
	Aborted
	Rejected
	Errored
)

// ErrNoFreeInvokeID is returned when every slot in the pool is in use.
var ErrNoFreeInvokeID = errors.New("tsm: no free invoke id")

// ErrUnknownInvokeID is returned when a lookup or cancel addresses a
// slot that does not exist or belongs to a different peer.
var ErrUnknownInvokeID = errors.New("tsm: unknown invoke id")

// Result is delivered to a slot's completion callback.
type Result struct {
	State      State
	APDU       []byte // assembled application payload, Complete only
	ErrorClass uint8
	ErrorCode  uint8
	RejectOrAbortReason uint8
}

// Slot tracks one outstanding confirmed request.
type Slot struct {
	InvokeID    uint8
	Peer        transport.Address
	State       State
	RetryCount  int
	Deadline    time.Time
	segments    [][]byte
	windowSize  uint8
	nextSeq     uint8
	request     []byte // retained for retransmit
	onComplete  func(Result)
}

// Pool is a fixed-capacity pool of 256 invoke-ID slots, one TSM per
// peer-facing transaction originator (a client.Client typically owns
// exactly one).
type Pool struct {
	mu       sync.Mutex
	slots    map[uint8]*Slot // keyed by invoke ID only: one TSM serves one peer relationship at a time via distinct Pool instances
	next     uint8
	Timeout  time.Duration
	Retries  int
}

// NewPool builds a pool with the given retry timeout and retry count
// (Number_Of_APDU_Retries / APDU_Timeout, clause 5.4.5).
func NewPool(timeout time.Duration, retries int) *Pool {
	return &Pool{
		slots:   make(map[uint8]*Slot),
		Timeout: timeout,
		Retries: retries,
	}
}

// Allocate reserves a free invoke ID for peer, rotating mod 256 and
// skipping IDs currently in use, and stores request for retransmit.
func (p *Pool) Allocate(peer transport.Address, request []byte, onComplete func(Result)) (*Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.slots) >= 256 {
		return nil, ErrNoFreeInvokeID
	}
	start := p.next
	for {
		if _, used := p.slots[p.next]; !used {
			break
		}
		p.next++
		if p.next == start {
			return nil, ErrNoFreeInvokeID
		}
	}
	id := p.next
	p.next++

	s := &Slot{
		InvokeID:   id,
		Peer:       peer,
		State:      AwaitingResponse,
		Deadline:   time.Now().Add(p.Timeout),
		request:    request,
		onComplete: onComplete,
	}
	p.slots[id] = s
	return s, nil
}

// Free releases a slot's invoke ID back to the pool.
func (p *Pool) Free(invokeID uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.slots, invokeID)
}

// Lookup returns the slot for invokeID, matching peer to guard against
// a stray reply from a different address reusing the same ID.
func (p *Pool) Lookup(invokeID uint8, peer transport.Address) (*Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[invokeID]
	if !ok || s.Peer.Key() != peer.Key() {
		return nil, ErrUnknownInvokeID
	}
	return s, nil
}

// IsInvokeIDFree reports whether invokeID currently has no slot.
func (p *Pool) IsInvokeIDFree(invokeID uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, used := p.slots[invokeID]
	return !used
}

// IsInvokeIDFailed reports whether invokeID's slot is in a terminal
// failure state (Timeout, Aborted, Rejected, Errored). Fail, Cancel and
// Complete remove the slot, so a finished transaction reads as free
// here, not as failed.
func (p *Pool) IsInvokeIDFailed(invokeID uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[invokeID]
	if !ok {
		return false
	}
	switch s.State {
	case Timeout, Aborted, Rejected, Errored:
		return true
	default:
		return false
	}
}

// Complete transitions a slot to Complete with the assembled payload
// and invokes its completion callback, then frees the slot.
func (p *Pool) Complete(invokeID uint8, apdu []byte) {
	p.finish(invokeID, Result{State: Complete, APDU: apdu})
}

// Fail transitions a slot to one of the terminal failure states.
func (p *Pool) Fail(invokeID uint8, state State, errClass, errCode, reason uint8) {
	p.finish(invokeID, Result{
		State:               state,
		ErrorClass:          errClass,
		ErrorCode:           errCode,
		RejectOrAbortReason: reason,
	})
}

func (p *Pool) finish(invokeID uint8, r Result) {
	p.mu.Lock()
	s, ok := p.slots[invokeID]
	if ok {
		delete(p.slots, invokeID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	s.State = r.State
	if s.onComplete != nil {
		s.onComplete(r)
	}
}

// BeginSegmentedResponse switches a slot into segment-reassembly mode.
func (p *Pool) BeginSegmentedResponse(invokeID uint8, windowSize uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[invokeID]
	if !ok {
		return
	}
	s.State = AwaitingSegmentACK
	if windowSize == 0 {
		windowSize = 1
	}
	s.windowSize = windowSize
	s.segments = nil
	s.nextSeq = 0
}

// ReceiveSegment appends an in-order segment and reports whether the
// window is now full (caller should send a SegmentACK) and whether the
// slot exists and is awaiting segments (ok). An out-of-sequence segment
// is dropped and still reports ok; after the segment with moreFollows
// false the caller should assemble and Complete.
func (p *Pool) ReceiveSegment(invokeID uint8, seq uint8, payload []byte, moreFollows bool) (windowFull bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, exists := p.slots[invokeID]
	if !exists || s.State != AwaitingSegmentACK {
		return false, false
	}
	if seq != s.nextSeq {
		return false, true // out of sequence, caller should ignore (duplicate/retransmit)
	}
	s.segments = append(s.segments, payload)
	s.nextSeq++
	if !moreFollows {
		return false, true
	}
	windowFull = int(s.nextSeq)%int(s.windowSize) == 0
	return windowFull, true
}

// Assembled concatenates a slot's received segments.
func (s *Slot) Assembled() []byte {
	total := 0
	for _, seg := range s.segments {
		total += len(seg)
	}
	out := make([]byte, 0, total)
	for _, seg := range s.segments {
		out = append(out, seg...)
	}
	return out
}

// Retransmit returns the stored request bytes and increments the
// retry counter, reporting whether the retry budget is exhausted (the
// caller should then Fail the slot with Timeout).
func (p *Pool) Retransmit(invokeID uint8) (request []byte, exhausted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[invokeID]
	if !ok {
		return nil, true
	}
	s.RetryCount++
	s.Deadline = time.Now().Add(p.Timeout)
	return s.request, s.RetryCount > p.Retries
}

// PollTimeouts scans every AwaitingResponse or AwaitingSegmentACK
// slot whose deadline has
// passed relative to now and returns them for the caller to retry or
// fail. now is passed in (rather than time.Now) so callers can drive
// the state machine deterministically in tests.
func (p *Pool) PollTimeouts(now time.Time) []uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []uint8
	for id, s := range p.slots {
		if (s.State == AwaitingResponse || s.State == AwaitingSegmentACK) && !now.Before(s.Deadline) {
			expired = append(expired, id)
		}
	}
	return expired
}

// Cancel aborts an in-flight transaction locally without notifying
// the peer (e.g. the caller gave up waiting).
func (p *Pool) Cancel(invokeID uint8) {
	p.Fail(invokeID, Aborted, 0, 0, 0)
}
