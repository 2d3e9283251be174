// Package dispatch routes decoded APDUs to confirmed/unconfirmed
// service handlers by service choice, the core's equivalent of the
// teacher's hand-rolled per-service parse-and-branch in parser.go and
// request.go generalized into a handler table.
package dispatch

import (
	"github.com/greenridge/bacstack/apdu"
	"github.com/greenridge/bacstack/transport"
)

// Outgoing is one APDU this package wants sent back to a peer.
type Outgoing struct {
	Peer transport.Address
	NPDU []byte
}

// ConfirmedHandler processes one confirmed-request service payload
// and returns the bytes of the ACK/error/reject service payload (not
// including the APDU header, which the dispatcher supplies) plus
// whether to wrap it in a ComplexACK (true) or a SimpleACK (false). A non-nil err
// causes the dispatcher to emit Reject(Other); handlers that need a
// specific error/reject/abort reason should return a *ServiceError.
type ConfirmedHandler func(peer transport.Address, invokeID uint8, payload []byte) (response []byte, complex bool, err error)

// UnconfirmedHandler processes one unconfirmed-request service
// payload. It has no response to send.
type UnconfirmedHandler func(peer transport.Address, payload []byte)

// ServiceError lets a handler request a specific Error, Reject, or
// Abort response instead of the dispatcher's generic fallback.
type ServiceError struct {
	Kind   Kind
	Class  uint8 // Error only
	Code   uint8 // Error only
	Reason uint8 // Reject/Abort only
}

func (e *ServiceError) Error() string { return "dispatch: service error" }

// Kind distinguishes which negative response a ServiceError wants.
type Kind uint8

const (
	KindError Kind = iota
	KindReject
	KindAbort
)

// Dispatcher routes decoded confirmed/unconfirmed APDUs to registered
// handlers and turns replies and ACKs into wire bytes.
type Dispatcher struct {
	confirmed   map[uint8]ConfirmedHandler
	unconfirmed map[uint8]UnconfirmedHandler
}

// New builds an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		confirmed:   make(map[uint8]ConfirmedHandler),
		unconfirmed: make(map[uint8]UnconfirmedHandler),
	}
}

// HandleConfirmed registers the handler for a confirmed service choice.
func (d *Dispatcher) HandleConfirmed(service uint8, h ConfirmedHandler) {
	d.confirmed[service] = h
}

// HandleUnconfirmed registers the handler for an unconfirmed service choice.
func (d *Dispatcher) HandleUnconfirmed(service uint8, h UnconfirmedHandler) {
	d.unconfirmed[service] = h
}

// Dispatch decodes one APDU received from peer and, for confirmed
// requests, returns the reply APDU bytes ready to hand to transport.
// For unconfirmed requests and ACKs/errors directed elsewhere it
// returns a nil reply.
func (d *Dispatcher) Dispatch(peer transport.Address, buf []byte) (reply []byte, err error) {
	h, err := apdu.Decode(buf)
	if err != nil {
		return nil, err
	}

	switch h.Type {
	case apdu.ConfirmedRequest:
		return d.dispatchConfirmed(peer, h, buf[h.Offset:])
	case apdu.UnconfirmedRequest:
		if handler, ok := d.unconfirmed[h.ServiceChoice]; ok {
			handler(peer, buf[h.Offset:])
		}
		return nil, nil
	default:
		// SimpleACK/ComplexACK/SegmentACK/Error/Reject/Abort are routed
		// to the originating tsm.Pool by the client, not by Dispatcher.
		return nil, nil
	}
}

func (d *Dispatcher) dispatchConfirmed(peer transport.Address, h apdu.Header, payload []byte) ([]byte, error) {
	handler, ok := d.confirmed[h.ServiceChoice]
	if !ok {
		n := apdu.EncodeReject(nil, h.InvokeID, apdu.RejectUnrecognizedService)
		buf := make([]byte, n)
		apdu.EncodeReject(buf, h.InvokeID, apdu.RejectUnrecognizedService)
		return buf, nil
	}

	body, complex, err := handler(peer, h.InvokeID, payload)
	if err != nil {
		if se, ok := err.(*ServiceError); ok {
			return encodeServiceError(h.InvokeID, h.ServiceChoice, se), nil
		}
		n := apdu.EncodeReject(nil, h.InvokeID, apdu.RejectOther)
		buf := make([]byte, n)
		apdu.EncodeReject(buf, h.InvokeID, apdu.RejectOther)
		return buf, nil
	}

	if !complex {
		n := apdu.EncodeSimpleACK(nil, h.InvokeID, h.ServiceChoice)
		buf := make([]byte, n+len(body))
		apdu.EncodeSimpleACK(buf, h.InvokeID, h.ServiceChoice)
		copy(buf[n:], body)
		return buf, nil
	}

	ackHeader := apdu.Header{InvokeID: h.InvokeID, ServiceChoice: h.ServiceChoice}
	n := apdu.EncodeComplexACK(nil, ackHeader)
	buf := make([]byte, n+len(body))
	apdu.EncodeComplexACK(buf, ackHeader)
	copy(buf[n:], body)
	return buf, nil
}

func encodeServiceError(invokeID, serviceChoice uint8, se *ServiceError) []byte {
	switch se.Kind {
	case KindReject:
		n := apdu.EncodeReject(nil, invokeID, se.Reason)
		buf := make([]byte, n)
		apdu.EncodeReject(buf, invokeID, se.Reason)
		return buf
	case KindAbort:
		n := apdu.EncodeAbort(nil, invokeID, se.Reason, true)
		buf := make([]byte, n)
		apdu.EncodeAbort(buf, invokeID, se.Reason, true)
		return buf
	default:
		hn := apdu.EncodeError(nil, invokeID, serviceChoice)
		body := make([]byte, errorBodyLen(se))
		encodeErrorBody(body, se)
		buf := make([]byte, hn+len(body))
		apdu.EncodeError(buf, invokeID, serviceChoice)
		copy(buf[hn:], body)
		return buf
	}
}
