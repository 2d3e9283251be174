package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/addrcache"
	"github.com/greenridge/bacstack/apdu"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport"
)

// loopbackLink records every Send and optionally echoes a canned
// response back into the originating Client via Receive, simulating a
// peer that's actually a function of this test rather than a socket.
type loopbackLink struct {
	mu       sync.Mutex
	sent     [][]byte
	sentTo   []transport.Address
	respond  func(apduBytes []byte) (peer transport.Address, reply []byte, ok bool)
	receiver *Client
}

func (l *loopbackLink) Send(addr transport.Address, npdu []byte) error {
	l.mu.Lock()
	l.sent = append(l.sent, npdu)
	l.sentTo = append(l.sentTo, addr)
	l.mu.Unlock()

	if l.respond == nil {
		return nil
	}
	n, err := transport.Decode(npdu)
	if err != nil {
		return err
	}
	peer, reply, ok := l.respond(n.APDU)
	if !ok {
		return nil
	}
	return l.receiver.Receive(peer, reply)
}

func wrapNPDU(t *testing.T, apduBytes []byte) []byte {
	t.Helper()
	n := transport.NPDU{Version: 1}
	nl := transport.Encode(nil, n, apduBytes)
	buf := make([]byte, nl)
	transport.Encode(buf, n, apduBytes)
	return buf
}

func TestWhoIsBroadcastsUnconfirmed(t *testing.T) {
	link := &loopbackLink{}
	c := New(link, 50*time.Millisecond, 0)

	require.NoError(t, c.WhoIs(0, tag.WildcardInstance))

	require.Len(t, link.sent, 1)
	assert.Equal(t, transport.Broadcast, link.sentTo[0])

	n, err := transport.Decode(link.sent[0])
	require.NoError(t, err)
	h, err := apdu.Decode(n.APDU)
	require.NoError(t, err)
	assert.Equal(t, apdu.UnconfirmedRequest, h.Type)
	assert.Equal(t, apdu.ServiceUnconfirmedWhoIs, h.ServiceChoice)
}

func TestReadPropertyRoundTrip(t *testing.T) {
	link := &loopbackLink{}
	c := New(link, 50*time.Millisecond, 0)
	link.receiver = c
	peer := transport.Local(1)
	obj := tag.ObjectID{Type: 0, Instance: 1}

	link.respond = func(reqAPDU []byte) (transport.Address, []byte, bool) {
		h, err := apdu.Decode(reqAPDU)
		require.NoError(t, err)
		assert.Equal(t, apdu.ServiceConfirmedReadProperty, h.ServiceChoice)

		bn := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(obj))
		bn += tag.EncodeContext(nil, 1, tag.Enumerated(85))
		bn += tag.EncodeOpening(nil, 3)
		bn += tag.EncodeApplication(nil, tag.Real(21.5))
		bn += tag.EncodeClosing(nil, 3)
		body := make([]byte, bn)
		off := tag.EncodeContext(body, 0, tag.ObjectIdentifier(obj))
		off += tag.EncodeContext(body[off:], 1, tag.Enumerated(85))
		off += tag.EncodeOpening(body[off:], 3)
		off += tag.EncodeApplication(body[off:], tag.Real(21.5))
		tag.EncodeClosing(body[off:], 3)

		ackHeaderLen := apdu.EncodeComplexACK(nil, apdu.Header{InvokeID: h.InvokeID, ServiceChoice: apdu.ServiceConfirmedReadProperty})
		ack := make([]byte, ackHeaderLen+len(body))
		apdu.EncodeComplexACK(ack, apdu.Header{InvokeID: h.InvokeID, ServiceChoice: apdu.ServiceConfirmedReadProperty})
		copy(ack[ackHeaderLen:], body)

		return peer, wrapNPDU(t, ack), true
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	values, err := c.ReadProperty(ctx, peer, obj, 85, 0, false)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, float32(21.5), values[0].Real)
}

func TestReadPropertyRemoteErrorReturnsWrappedError(t *testing.T) {
	link := &loopbackLink{}
	c := New(link, 50*time.Millisecond, 0)
	link.receiver = c
	peer := transport.Local(1)

	link.respond = func(reqAPDU []byte) (transport.Address, []byte, bool) {
		h, err := apdu.Decode(reqAPDU)
		require.NoError(t, err)

		bn := tag.EncodeApplication(nil, tag.Enumerated(uint32(apdu.ErrorClassProperty)))
		bn += tag.EncodeApplication(nil, tag.Enumerated(uint32(apdu.ErrorCodeUnknownProperty)))
		body := make([]byte, bn)
		off := tag.EncodeApplication(body, tag.Enumerated(uint32(apdu.ErrorClassProperty)))
		tag.EncodeApplication(body[off:], tag.Enumerated(uint32(apdu.ErrorCodeUnknownProperty)))

		errHeaderLen := apdu.EncodeError(nil, h.InvokeID, apdu.ServiceConfirmedReadProperty)
		errAPDU := make([]byte, errHeaderLen+len(body))
		apdu.EncodeError(errAPDU, h.InvokeID, apdu.ServiceConfirmedReadProperty)
		copy(errAPDU[errHeaderLen:], body)

		return peer, wrapNPDU(t, errAPDU), true
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.ReadProperty(ctx, peer, tag.ObjectID{Instance: 1}, 999, 0, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteError)
}

func TestReadPropertyContextCancelCancelsSlot(t *testing.T) {
	link := &loopbackLink{} // no respond func: request is never answered
	c := New(link, time.Hour, 0)
	peer := transport.Local(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ReadProperty(ctx, peer, tag.ObjectID{Instance: 1}, 85, 0, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, link.sent, 1)
}

func TestReceiveIAmUpdatesAddressCache(t *testing.T) {
	link := &loopbackLink{}
	c := New(link, 50*time.Millisecond, 0)
	cache, err := addrcache.New(8)
	require.NoError(t, err)
	c.AddressCache = cache

	remote := tag.ObjectID{Type: 8, Instance: 55}
	hn := apdu.EncodeUnconfirmedRequest(nil, apdu.ServiceUnconfirmedIAm)
	bn := tag.EncodeApplication(nil, tag.ObjectIdentifier(remote))
	bn += tag.EncodeApplication(nil, tag.Unsigned(480))
	bn += tag.EncodeApplication(nil, tag.Enumerated(0))
	bn += tag.EncodeApplication(nil, tag.Unsigned(10))
	buf := make([]byte, hn+bn)
	off := apdu.EncodeUnconfirmedRequest(buf, apdu.ServiceUnconfirmedIAm)
	off += tag.EncodeApplication(buf[off:], tag.ObjectIdentifier(remote))
	off += tag.EncodeApplication(buf[off:], tag.Unsigned(480))
	off += tag.EncodeApplication(buf[off:], tag.Enumerated(0))
	tag.EncodeApplication(buf[off:], tag.Unsigned(10))

	peer := transport.Local(3)
	require.NoError(t, c.Receive(peer, wrapNPDU(t, buf)))

	b, ok := cache.Lookup(55)
	require.True(t, ok)
	assert.Equal(t, peer, b.Address)
	assert.Equal(t, uint32(480), b.MaxAPDULength)
}

func TestSubscribeCOVRoutesMatchingNotification(t *testing.T) {
	link := &loopbackLink{}
	c := New(link, 50*time.Millisecond, 0)
	link.receiver = c
	peer := transport.Local(4)
	obj := tag.ObjectID{Type: 0, Instance: 1}

	link.respond = func(reqAPDU []byte) (transport.Address, []byte, bool) {
		h, err := apdu.Decode(reqAPDU)
		if err != nil || h.ServiceChoice != apdu.ServiceConfirmedSubscribeCOV {
			return transport.Address{}, nil, false
		}
		ackLen := apdu.EncodeSimpleACK(nil, h.InvokeID, apdu.ServiceConfirmedSubscribeCOV)
		ack := make([]byte, ackLen)
		apdu.EncodeSimpleACK(ack, h.InvokeID, apdu.ServiceConfirmedSubscribeCOV)
		return peer, wrapNPDU(t, ack), true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifications, errs := c.SubscribeCOV(ctx, peer, obj, 1, false, 60)

	require.Eventually(t, func() bool {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		_, ok := c.subs[subscriptionKey(peer, obj)]
		return ok
	}, time.Second, time.Millisecond)

	bn := tag.EncodeContext(nil, 0, tag.Unsigned(1))
	bn += tag.EncodeContext(nil, 1, tag.ObjectIdentifier(tag.ObjectID{Type: 8, Instance: 2}))
	bn += tag.EncodeContext(nil, 2, tag.ObjectIdentifier(obj))
	bn += tag.EncodeContext(nil, 3, tag.Unsigned(60))
	bn += tag.EncodeOpening(nil, 4)
	bn += tag.EncodeContext(nil, 0, tag.Enumerated(85))
	bn += tag.EncodeOpening(nil, 2)
	bn += tag.EncodeApplication(nil, tag.Real(99.0))
	bn += tag.EncodeClosing(nil, 2)
	bn += tag.EncodeClosing(nil, 4)
	body := make([]byte, bn)
	off := tag.EncodeContext(body, 0, tag.Unsigned(1))
	off += tag.EncodeContext(body[off:], 1, tag.ObjectIdentifier(tag.ObjectID{Type: 8, Instance: 2}))
	off += tag.EncodeContext(body[off:], 2, tag.ObjectIdentifier(obj))
	off += tag.EncodeContext(body[off:], 3, tag.Unsigned(60))
	off += tag.EncodeOpening(body[off:], 4)
	off += tag.EncodeContext(body[off:], 0, tag.Enumerated(85))
	off += tag.EncodeOpening(body[off:], 2)
	off += tag.EncodeApplication(body[off:], tag.Real(99.0))
	off += tag.EncodeClosing(body[off:], 2)
	tag.EncodeClosing(body[off:], 4)

	hn := apdu.EncodeUnconfirmedRequest(nil, apdu.ServiceUnconfirmedCOVNotification)
	notifyAPDU := make([]byte, hn+len(body))
	noff := apdu.EncodeUnconfirmedRequest(notifyAPDU, apdu.ServiceUnconfirmedCOVNotification)
	copy(notifyAPDU[noff:], body)

	go func() {
		_ = c.Receive(peer, wrapNPDU(t, notifyAPDU))
	}()

	select {
	case n := <-notifications:
		assert.Equal(t, obj, n.MonitoredObject)
		require.Len(t, n.Values, 1)
		assert.Equal(t, float32(99.0), n.Values[0].Values[0].Real)
	case err := <-errs:
		t.Fatalf("unexpected subscription error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for COV notification")
	}

	cancel()
}
