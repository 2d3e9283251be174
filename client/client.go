// Package client is the outgoing-request side of a BACnet node: the
// Who-Is/ReadProperty/ReadPropertyMultiple/WriteProperty/SubscribeCOV
// calls a supervisory application makes of other devices, generalizing
// the teacher's one-shot request.go/subscribe.go functions into a
// tsm.Pool-backed façade that works over any transport.Link.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/greenridge/bacstack/addrcache"
	"github.com/greenridge/bacstack/apdu"
	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport"
	"github.com/greenridge/bacstack/tsm"
)

// Confirmed-request header fields this client always sends: no
// segmentation of its own requests (every call here fits one APDU),
// maximum segments/APDU length accepted from a reply set generously
// (clause 5.4's encoding, matching the teacher's literal 0x75 byte).
const (
	maxSegmentsAccepted   = 7 // "no limit"
	maxAPDULengthAccepted = 5 // 1476 octets, clause 5.4.3's largest unsegmented class
)

// ErrRemoteError is returned when a confirmed request comes back as a
// BACnet Error PDU.
var ErrRemoteError = errors.New("client: remote error")

// ErrRejected is returned for a Reject PDU.
var ErrRejected = errors.New("client: request rejected")

// ErrAborted is returned for an Abort PDU or a local TSM timeout.
var ErrAborted = errors.New("client: request aborted")

// CovNotification is one decoded UnconfirmedCOVNotification.
type CovNotification struct {
	Peer             transport.Address
	MonitoredObject  tag.ObjectID
	InitiatingDevice tag.ObjectID
	TimeRemaining    uint32
	Values           []encoding.PropertyValue
}

// Client is the outgoing half of a node: it allocates TSM slots,
// builds request APDUs, and hands them to Link; Receive is the
// entrypoint the host feeds inbound NPDUs into.
type Client struct {
	Pool *tsm.Pool
	Link transport.Link

	// AddressCache, if set, is updated by I-Am/I-Have as Receive
	// decodes them.
	AddressCache *addrcache.Cache

	covHandler func(CovNotification)

	subsMu sync.Mutex
	subs   map[string]chan<- CovNotification
}

// New builds a Client whose Pool uses timeout/retries (clause 5.4.5's
// APDU_Timeout and Number_Of_APDU_Retries).
func New(link transport.Link, timeout time.Duration, retries int) *Client {
	return &Client{Pool: tsm.NewPool(timeout, retries), Link: link, subs: make(map[string]chan<- CovNotification)}
}

// SetCovHandler registers the callback Receive invokes for every
// UnconfirmedCOVNotification it decodes.
func (c *Client) SetCovHandler(h func(CovNotification)) { c.covHandler = h }

func (c *Client) sendNPDU(peer transport.Address, apduBytes []byte, expectingReply bool) error {
	n := transport.NPDU{Version: 1, ExpectingReply: expectingReply}
	nl := transport.Encode(nil, n, apduBytes)
	buf := make([]byte, nl)
	transport.Encode(buf, n, apduBytes)
	return c.Link.Send(peer, buf)
}

// WhoIs broadcasts a Who-Is, optionally bounded to [low, high]; pass
// 0, tag.WildcardInstance for an unrestricted Who-Is. Responses arrive
// asynchronously as I-Am PDUs through Receive.
func (c *Client) WhoIs(low, high uint32) error {
	var payload []byte
	if low != 0 || high != tag.WildcardInstance {
		n := tag.EncodeContext(nil, 0, tag.Unsigned(low))
		n += tag.EncodeContext(nil, 1, tag.Unsigned(high))
		payload = make([]byte, n)
		off := tag.EncodeContext(payload, 0, tag.Unsigned(low))
		tag.EncodeContext(payload[off:], 1, tag.Unsigned(high))
	}
	hn := apdu.EncodeUnconfirmedRequest(nil, apdu.ServiceUnconfirmedWhoIs)
	buf := make([]byte, hn+len(payload))
	off := apdu.EncodeUnconfirmedRequest(buf, apdu.ServiceUnconfirmedWhoIs)
	copy(buf[off:], payload)
	return c.sendNPDU(transport.Broadcast, buf, false)
}

// requestConfirmed allocates a TSM slot, sends the confirmed request,
// and blocks until ctx is done or the slot completes. The invoke-ID
// byte is patched into the request after Allocate assigns it; this
// only holds for the never-segmented requests this package sends,
// where the invoke ID always sits at a fixed offset (clause 20.1.2's
// third octet).
func (c *Client) requestConfirmed(ctx context.Context, peer transport.Address, serviceChoice uint8, payload []byte) ([]byte, error) {
	h := apdu.Header{MaxSegments: maxSegmentsAccepted, MaxAPDULength: maxAPDULengthAccepted, ServiceChoice: serviceChoice}
	hn := apdu.EncodeConfirmedRequest(nil, h)
	buf := make([]byte, hn+len(payload))
	apdu.EncodeConfirmedRequest(buf, h)
	copy(buf[hn:], payload)

	done := make(chan tsm.Result, 1)
	slot, err := c.Pool.Allocate(peer, buf, func(r tsm.Result) { done <- r })
	if err != nil {
		return nil, err
	}
	buf[2] = slot.InvokeID

	if err := c.sendNPDU(peer, buf, true); err != nil {
		c.Pool.Cancel(slot.InvokeID)
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.Pool.Cancel(slot.InvokeID)
		return nil, ctx.Err()
	case r := <-done:
		switch r.State {
		case tsm.Complete:
			return r.APDU, nil
		case tsm.Errored:
			return nil, fmt.Errorf("class %d code %d: %w", r.ErrorClass, r.ErrorCode, ErrRemoteError)
		case tsm.Rejected:
			return nil, fmt.Errorf("reason %d: %w", r.RejectOrAbortReason, ErrRejected)
		default:
			return nil, fmt.Errorf("reason %d: %w", r.RejectOrAbortReason, ErrAborted)
		}
	}
}

// ReadProperty reads one property (or array element/ARRAY_ALL) from
// peer's object.
func (c *Client) ReadProperty(ctx context.Context, peer transport.Address, obj tag.ObjectID, propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	n := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(obj))
	n += tag.EncodeContext(nil, 1, tag.Enumerated(propertyID))
	if hasIndex {
		n += tag.EncodeContext(nil, 2, tag.Unsigned(arrayIndex))
	}
	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.ObjectIdentifier(obj))
	off += tag.EncodeContext(payload[off:], 1, tag.Enumerated(propertyID))
	if hasIndex {
		tag.EncodeContext(payload[off:], 2, tag.Unsigned(arrayIndex))
	}

	ack, err := c.requestConfirmed(ctx, peer, apdu.ServiceConfirmedReadProperty, payload)
	if err != nil {
		return nil, err
	}
	return decodeReadPropertyAck(ack)
}

func decodeReadPropertyAck(buf []byte) ([]tag.Value, error) {
	_, n, err := tag.DecodeContext(buf, 0, tag.KindObjectIdentifier)
	if err != nil {
		return nil, fmt.Errorf("decode ReadProperty ack object: %w", err)
	}
	_, n2, err := tag.DecodeContext(buf[n:], 1, tag.KindEnumerated)
	if err != nil {
		return nil, fmt.Errorf("decode ReadProperty ack property: %w", err)
	}
	n += n2
	if h, herr := tag.PeekHeader(buf[n:]); herr == nil && h.Class == tag.Context && h.Number == 2 {
		_, n3, err := tag.DecodeContext(buf[n:], 2, tag.KindUnsigned)
		if err == nil {
			n += n3
		}
	}
	h, hn, err := tag.DecodeHeader(buf[n:])
	if err != nil || !h.IsOpening() || h.Number != 3 {
		return nil, fmt.Errorf("decode ReadProperty ack: expected opening tag 3: %w", tag.ErrInvalidTag)
	}
	n += hn
	var values []tag.Value
	for {
		ph, perr := tag.PeekHeader(buf[n:])
		if perr != nil {
			return nil, perr
		}
		if ph.IsClosing() && ph.Number == 3 {
			break
		}
		v, vn, verr := tag.DecodeApplication(buf[n:])
		if verr != nil {
			return nil, verr
		}
		values = append(values, v)
		n += vn
	}
	return values, nil
}

// ReadPropertyMultiple reads every reference in each spec from peer.
func (c *Client) ReadPropertyMultiple(ctx context.Context, peer transport.Address, specs []encoding.ReadAccessSpecification) ([]encoding.PropertyValue, error) {
	n := 0
	for _, s := range specs {
		n += encoding.EncodeReadAccessSpecification(nil, s)
	}
	payload := make([]byte, n)
	off := 0
	for _, s := range specs {
		off += encoding.EncodeReadAccessSpecification(payload[off:], s)
	}

	ack, err := c.requestConfirmed(ctx, peer, apdu.ServiceConfirmedReadPropertyMultiple, payload)
	if err != nil {
		return nil, err
	}
	return decodeReadPropertyMultipleAck(ack)
}

func decodeReadPropertyMultipleAck(buf []byte) ([]encoding.PropertyValue, error) {
	var out []encoding.PropertyValue
	n := 0
	for n < len(buf) {
		_, on, err := tag.DecodeContext(buf[n:], 0, tag.KindObjectIdentifier)
		if err != nil {
			return nil, fmt.Errorf("decode RPM ack object: %w", err)
		}
		n += on
		h, hn, err := tag.DecodeHeader(buf[n:])
		if err != nil || !h.IsOpening() || h.Number != 1 {
			return nil, fmt.Errorf("decode RPM ack: expected opening tag 1: %w", tag.ErrInvalidTag)
		}
		n += hn
		for {
			ph, perr := tag.PeekHeader(buf[n:])
			if perr != nil {
				return nil, perr
			}
			if ph.IsClosing() && ph.Number == 1 {
				_, cn, _ := tag.DecodeHeader(buf[n:])
				n += cn
				break
			}
			pid, pn, err := tag.DecodeContext(buf[n:], 2, tag.KindEnumerated)
			if err != nil {
				return nil, fmt.Errorf("decode RPM ack property: %w", err)
			}
			n += pn
			vh, vhn, err := tag.DecodeHeader(buf[n:])
			if err != nil || !vh.IsOpening() || vh.Number != 4 {
				return nil, fmt.Errorf("decode RPM ack: expected opening tag 4: %w", tag.ErrInvalidTag)
			}
			n += vhn
			var values []tag.Value
			for {
				vph, vperr := tag.PeekHeader(buf[n:])
				if vperr != nil {
					return nil, vperr
				}
				if vph.IsClosing() && vph.Number == 4 {
					_, cn, _ := tag.DecodeHeader(buf[n:])
					n += cn
					break
				}
				v, vn, verr := tag.DecodeApplication(buf[n:])
				if verr != nil {
					return nil, verr
				}
				values = append(values, v)
				n += vn
			}
			out = append(out, encoding.PropertyValue{
				Reference: encoding.PropertyReference{PropertyID: pid.Uint},
				Values:    values,
			})
		}
	}
	return out, nil
}

// WriteProperty writes values (len 1 except for an ARRAY_ALL write) to
// peer's object at the given priority (0 for non-commandable properties).
func (c *Client) WriteProperty(ctx context.Context, peer transport.Address, obj tag.ObjectID, propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	n := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(obj))
	n += tag.EncodeContext(nil, 1, tag.Enumerated(propertyID))
	if hasIndex {
		n += tag.EncodeContext(nil, 2, tag.Unsigned(arrayIndex))
	}
	n += tag.EncodeOpening(nil, 3)
	for _, v := range values {
		n += tag.EncodeApplication(nil, v)
	}
	n += tag.EncodeClosing(nil, 3)
	if priority != 0 {
		n += tag.EncodeContext(nil, 4, tag.Unsigned(uint32(priority)))
	}

	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.ObjectIdentifier(obj))
	off += tag.EncodeContext(payload[off:], 1, tag.Enumerated(propertyID))
	if hasIndex {
		off += tag.EncodeContext(payload[off:], 2, tag.Unsigned(arrayIndex))
	}
	off += tag.EncodeOpening(payload[off:], 3)
	for _, v := range values {
		off += tag.EncodeApplication(payload[off:], v)
	}
	off += tag.EncodeClosing(payload[off:], 3)
	if priority != 0 {
		tag.EncodeContext(payload[off:], 4, tag.Unsigned(uint32(priority)))
	}

	_, err := c.requestConfirmed(ctx, peer, apdu.ServiceConfirmedWriteProperty, payload)
	return err
}

func subscriptionKey(peer transport.Address, obj tag.ObjectID) string {
	return fmt.Sprintf("%s/%d:%d", peer.Key(), obj.Type, obj.Instance)
}

func (c *Client) sendSubscribeCOVRequest(ctx context.Context, peer transport.Address, obj tag.ObjectID, subscriberProcessID uint32, confirmed bool, lifetime uint8) error {
	n := tag.EncodeContext(nil, 0, tag.Unsigned(subscriberProcessID))
	n += tag.EncodeContext(nil, 1, tag.ObjectIdentifier(obj))
	n += tag.EncodeContext(nil, 2, tag.Bool(confirmed))
	n += tag.EncodeContext(nil, 3, tag.Unsigned(uint32(lifetime)))
	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.Unsigned(subscriberProcessID))
	off += tag.EncodeContext(payload[off:], 1, tag.ObjectIdentifier(obj))
	off += tag.EncodeContext(payload[off:], 2, tag.Bool(confirmed))
	tag.EncodeContext(payload[off:], 3, tag.Unsigned(uint32(lifetime)))

	_, err := c.requestConfirmed(ctx, peer, apdu.ServiceConfirmedSubscribeCOV, payload)
	return err
}

// SubscribeCOV subscribes to peer's obj and returns a channel fed by
// Receive as matching UnconfirmedCOVNotification PDUs arrive, plus an
// error channel for subscription-lifecycle failures (the initial
// SimpleACK timing out, or a re-subscription that never lands before
// lifetime expires). Cancel ctx to end the subscription; the caller
// should keep draining both channels until they close.
func (c *Client) SubscribeCOV(ctx context.Context, peer transport.Address, obj tag.ObjectID, subscriberProcessID uint32, confirmed bool, lifetime uint8) (<-chan CovNotification, <-chan error) {
	notifications := make(chan CovNotification)
	errs := make(chan error, 1)
	key := subscriptionKey(peer, obj)

	go func() {
		defer close(notifications)
		defer close(errs)
		defer func() {
			c.subsMu.Lock()
			delete(c.subs, key)
			c.subsMu.Unlock()
		}()

		if err := c.sendSubscribeCOVRequest(ctx, peer, obj, subscriberProcessID, confirmed, lifetime); err != nil {
			errs <- fmt.Errorf("initial SubscribeCOV: %w", err)
			return
		}

		c.subsMu.Lock()
		c.subs[key] = notifications
		c.subsMu.Unlock()

		interval := time.Duration(float64(lifetime)*0.8) * time.Second
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.sendSubscribeCOVRequest(ctx, peer, obj, subscriberProcessID, confirmed, lifetime); err != nil {
					errs <- fmt.Errorf("re-subscribe: %w", err)
					return
				}
			}
		}
	}()

	return notifications, errs
}

// Receive decodes one inbound NPDU's APDU payload and routes it: a
// SimpleACK/unsegmented-ComplexACK/Error/Reject/Abort completes the
// matching TSM slot; a segmented ComplexACK feeds slot reassembly and
// sends the SegmentACK the peer needs to continue; I-Am/I-Have update
// AddressCache; an UnconfirmedCOVNotification is decoded and forwarded
// to the matching SubscribeCOV channel, or to the generic covHandler
// if no subscription matches.
func (c *Client) Receive(peer transport.Address, npduBytes []byte) error {
	n, err := transport.Decode(npduBytes)
	if err != nil {
		return fmt.Errorf("client: decode npdu: %w", err)
	}
	if n.NetworkMessage || len(n.APDU) == 0 {
		return nil
	}
	h, err := apdu.Decode(n.APDU)
	if err != nil {
		return fmt.Errorf("client: decode apdu: %w", err)
	}
	body := n.APDU[h.Offset:]

	switch h.Type {
	case apdu.SimpleACK:
		c.Pool.Complete(h.InvokeID, nil)
	case apdu.ComplexACK:
		return c.receiveComplexACK(peer, h, body)
	case apdu.Error:
		class, code, err := decodeErrorBody(body)
		if err != nil {
			return err
		}
		c.Pool.Fail(h.InvokeID, tsm.Errored, class, code, 0)
	case apdu.Reject:
		c.Pool.Fail(h.InvokeID, tsm.Rejected, 0, 0, h.RejectReason)
	case apdu.Abort:
		c.Pool.Fail(h.InvokeID, tsm.Aborted, 0, 0, h.AbortReason)
	case apdu.UnconfirmedRequest:
		c.receiveUnconfirmed(peer, h.ServiceChoice, body)
	}
	return nil
}

func (c *Client) receiveComplexACK(peer transport.Address, h apdu.Header, body []byte) error {
	if !h.Segmented {
		c.Pool.Complete(h.InvokeID, body)
		return nil
	}
	slot, err := c.Pool.Lookup(h.InvokeID, peer)
	if err != nil {
		return nil // stray segment for an invoke ID we no longer track
	}
	if h.SequenceNumber == 0 {
		c.Pool.BeginSegmentedResponse(h.InvokeID, h.WindowSize)
	}
	windowFull, ok := c.Pool.ReceiveSegment(h.InvokeID, h.SequenceNumber, body, h.MoreFollows)
	if !ok {
		return nil
	}
	if !h.MoreFollows {
		c.Pool.Complete(h.InvokeID, slot.Assembled())
		return nil
	}
	if windowFull {
		ackBuf := make([]byte, apdu.EncodeSegmentACK(nil, apdu.Header{}))
		apdu.EncodeSegmentACK(ackBuf, apdu.Header{InvokeID: h.InvokeID, SequenceNumber: h.SequenceNumber, WindowSize: h.WindowSize})
		return c.sendNPDU(peer, ackBuf, false)
	}
	return nil
}

func decodeErrorBody(body []byte) (class, code uint8, err error) {
	cv, n, err := tag.DecodeApplication(body)
	if err != nil {
		return 0, 0, fmt.Errorf("client: decode error class: %w", err)
	}
	ov, _, err := tag.DecodeApplication(body[n:])
	if err != nil {
		return 0, 0, fmt.Errorf("client: decode error code: %w", err)
	}
	return uint8(cv.Uint), uint8(ov.Uint), nil
}

func (c *Client) receiveUnconfirmed(peer transport.Address, serviceChoice uint8, payload []byte) {
	switch serviceChoice {
	case apdu.ServiceUnconfirmedIAm:
		c.receiveIAm(peer, payload)
	case apdu.ServiceUnconfirmedIHave:
		c.receiveIHave(peer, payload)
	case apdu.ServiceUnconfirmedCOVNotification:
		c.receiveCovNotification(peer, payload)
	}
}

func (c *Client) receiveIAm(peer transport.Address, payload []byte) {
	if c.AddressCache == nil {
		return
	}
	idv, n, err := tag.DecodeApplication(payload)
	if err != nil || idv.Kind != tag.KindObjectIdentifier {
		return
	}
	maxAPDU, n2, err := tag.DecodeApplication(payload[n:])
	if err != nil {
		return
	}
	n += n2
	seg, n3, err := tag.DecodeApplication(payload[n:])
	if err != nil {
		return
	}
	n += n3
	vendor, _, err := tag.DecodeApplication(payload[n:])
	if err != nil {
		return
	}
	c.AddressCache.Update(idv.Object.Instance, peer, maxAPDU.Uint, seg.Uint, vendor.Uint)
}

func (c *Client) receiveIHave(peer transport.Address, payload []byte) {
	if c.AddressCache == nil {
		return
	}
	devID, _, err := tag.DecodeApplication(payload)
	if err != nil || devID.Kind != tag.KindObjectIdentifier {
		return
	}
	c.AddressCache.Update(devID.Object.Instance, peer, 0, 0, 0)
}

// receiveCovNotification decodes clause 13.1's ProcessIdentifier(0),
// InitiatingDeviceIdentifier(1), MonitoredObjectIdentifier(2),
// TimeRemaining(3), ListOfValues(4).
func (c *Client) receiveCovNotification(peer transport.Address, payload []byte) {
	n := 0
	if _, sn, err := tag.DecodeContext(payload, 0, tag.KindUnsigned); err == nil {
		n += sn
	}
	issuer, in, err := tag.DecodeContext(payload[n:], 1, tag.KindObjectIdentifier)
	if err != nil {
		return
	}
	n += in
	monitored, on, err := tag.DecodeContext(payload[n:], 2, tag.KindObjectIdentifier)
	if err != nil {
		return
	}
	n += on
	remaining, rn, err := tag.DecodeContext(payload[n:], 3, tag.KindUnsigned)
	if err == nil {
		n += rn
	}
	h, hn, err := tag.DecodeHeader(payload[n:])
	if err != nil || !h.IsOpening() {
		return
	}
	n += hn
	var values []encoding.PropertyValue
	for {
		ph, perr := tag.PeekHeader(payload[n:])
		if perr != nil {
			break
		}
		if ph.IsClosing() {
			_, cn, _ := tag.DecodeHeader(payload[n:])
			n += cn
			break
		}
		ref, rn2, err := encoding.DecodePropertyReference(payload[n:])
		if err != nil {
			break
		}
		n += rn2
		vh, vhn, err := tag.DecodeHeader(payload[n:])
		if err != nil || !vh.IsOpening() {
			break
		}
		n += vhn
		var vs []tag.Value
		for {
			vph, vperr := tag.PeekHeader(payload[n:])
			if vperr != nil {
				break
			}
			if vph.IsClosing() {
				_, cn, _ := tag.DecodeHeader(payload[n:])
				n += cn
				break
			}
			v, vn, verr := tag.DecodeApplication(payload[n:])
			if verr != nil {
				break
			}
			vs = append(vs, v)
			n += vn
		}
		values = append(values, encoding.PropertyValue{Reference: ref, Values: vs})
	}

	notification := CovNotification{
		Peer:             peer,
		MonitoredObject:  monitored.Object,
		InitiatingDevice: issuer.Object,
		TimeRemaining:    remaining.Uint,
		Values:           values,
	}

	key := subscriptionKey(peer, monitored.Object)
	c.subsMu.Lock()
	ch, ok := c.subs[key]
	c.subsMu.Unlock()
	if ok {
		ch <- notification
		return
	}
	if c.covHandler != nil {
		c.covHandler(notification)
	}
}
