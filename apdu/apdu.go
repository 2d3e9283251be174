// Package apdu parses and builds the BACnet Application Protocol Data
// Unit headers (ANSI/ASHRAE 135 clause 20): the confirmed/unconfirmed
// request, simple/complex ACK, segment ACK, error, reject, and abort
// forms, plus the joint segments/max-APDU-length octet.
package apdu

import (
	"errors"
	"fmt"

	"github.com/greenridge/bacstack/tag"
)

// Type is the PDU type carried in the high nibble of the first octet.
type Type uint8

const (
	ConfirmedRequest Type = iota
	UnconfirmedRequest
	SimpleACK
	ComplexACK
	SegmentACK
	Error
	Reject
	Abort
)

// Control-byte bit masks shared across PDU types that carry them.
const (
	segmentedFlag        = 0x08
	moreFollowsFlag       = 0x04
	segmentedResponseFlag = 0x02
)

// ErrMalformed is returned when the buffer is too short or carries a
// PDU type the framer does not recognize.
var ErrMalformed = errors.New("apdu: malformed header")

// Header is the decoded, type-specific fixed portion of an APDU. Not
// every field is meaningful for every Type; see the per-type encode
// functions for which fields apply.
type Header struct {
	Type Type

	Segmented         bool // SEG bit (confirmed request / complex ACK)
	MoreFollows       bool // MOR bit
	SegmentedResponse bool // SA bit, "segmented response accepted"

	MaxSegments    uint8 // confirmed request only, raw 3-bit field
	MaxAPDULength  uint8 // confirmed request only, raw 4-bit field
	InvokeID       uint8
	SequenceNumber uint8 // segmented PDUs / segment ACK
	WindowSize     uint8 // segmented PDUs / segment ACK
	NAK            bool  // segment ACK only
	ServerFlag     bool  // segment ACK only: responder is a server

	ServiceChoice uint8 // confirmed/unconfirmed request, simple/complex ACK

	// ErrorClass/ErrorCode apply to Type == Error; RejectReason to
	// Type == Reject; AbortReason to Type == Abort.
	ErrorClass   uint8
	ErrorCode    uint8
	RejectReason uint8
	AbortReason  uint8
	// AbortServer is true when the abort was generated by the PDU's
	// originator-side server rather than relayed from the peer.
	AbortServer bool

	// Offset is the byte offset of the first byte of the
	// service-specific payload (the decoded service parameters or
	// error/reject/abort body), relative to the start of the buffer
	// handed to Decode.
	Offset int
}

// Decode parses the APDU header from the front of buf.
func Decode(buf []byte) (Header, error) {
	if len(buf) < 2 {
		return Header{}, fmt.Errorf("apdu: header: %w", ErrMalformed)
	}
	first := buf[0]
	h := Header{Type: Type(first >> 4)}

	switch h.Type {
	case ConfirmedRequest:
		h.Segmented = first&segmentedFlag != 0
		h.MoreFollows = first&moreFollowsFlag != 0
		h.SegmentedResponse = first&segmentedResponseFlag != 0
		if len(buf) < 4 {
			return Header{}, fmt.Errorf("apdu: confirmed request: %w", ErrMalformed)
		}
		h.MaxSegments = (buf[1] >> 4) & 0x07
		h.MaxAPDULength = buf[1] & 0x0F
		h.InvokeID = buf[2]
		off := 3
		if h.Segmented {
			if len(buf) < 6 {
				return Header{}, fmt.Errorf("apdu: segmented confirmed request: %w", ErrMalformed)
			}
			h.SequenceNumber = buf[3]
			h.WindowSize = buf[4]
			off = 5
		}
		h.ServiceChoice = buf[off]
		h.Offset = off + 1

	case UnconfirmedRequest:
		h.ServiceChoice = buf[1]
		h.Offset = 2

	case SimpleACK:
		if len(buf) < 3 {
			return Header{}, fmt.Errorf("apdu: simple ack: %w", ErrMalformed)
		}
		h.InvokeID = buf[1]
		h.ServiceChoice = buf[2]
		h.Offset = 3

	case ComplexACK:
		h.Segmented = first&segmentedFlag != 0
		h.MoreFollows = first&moreFollowsFlag != 0
		if len(buf) < 3 {
			return Header{}, fmt.Errorf("apdu: complex ack: %w", ErrMalformed)
		}
		h.InvokeID = buf[1]
		off := 2
		if h.Segmented {
			if len(buf) < 5 {
				return Header{}, fmt.Errorf("apdu: segmented complex ack: %w", ErrMalformed)
			}
			h.SequenceNumber = buf[2]
			h.WindowSize = buf[3]
			off = 4
		}
		h.ServiceChoice = buf[off]
		h.Offset = off + 1

	case SegmentACK:
		h.NAK = first&segmentedFlag != 0
		h.ServerFlag = first&moreFollowsFlag != 0
		if len(buf) < 4 {
			return Header{}, fmt.Errorf("apdu: segment ack: %w", ErrMalformed)
		}
		h.InvokeID = buf[1]
		h.SequenceNumber = buf[2]
		h.WindowSize = buf[3]
		h.Offset = 4

	case Error:
		if len(buf) < 3 {
			return Header{}, fmt.Errorf("apdu: error: %w", ErrMalformed)
		}
		h.InvokeID = buf[1]
		h.ServiceChoice = buf[2]
		h.Offset = 3
		if class, n, err := tag.DecodeApplication(buf[3:]); err == nil {
			h.ErrorClass = uint8(class.Uint)
			if code, _, err := tag.DecodeApplication(buf[3+n:]); err == nil {
				h.ErrorCode = uint8(code.Uint)
			}
		}

	case Reject:
		if len(buf) < 3 {
			return Header{}, fmt.Errorf("apdu: reject: %w", ErrMalformed)
		}
		h.InvokeID = buf[1]
		h.RejectReason = buf[2]
		h.Offset = 3

	case Abort:
		h.AbortServer = first&0x01 != 0
		if len(buf) < 3 {
			return Header{}, fmt.Errorf("apdu: abort: %w", ErrMalformed)
		}
		h.InvokeID = buf[1]
		h.AbortReason = buf[2]
		h.Offset = 3

	default:
		return Header{}, fmt.Errorf("apdu: unknown PDU type %d: %w", h.Type, ErrMalformed)
	}

	return h, nil
}

// EncodeConfirmedRequest writes a (possibly segmented) confirmed
// request header, returning the byte count (a nil buf predicts it).
func EncodeConfirmedRequest(buf []byte, h Header) int {
	n := 0
	write := func(b byte) {
		if buf != nil {
			buf[n] = b
		}
		n++
	}
	first := byte(ConfirmedRequest) << 4
	if h.Segmented {
		first |= segmentedFlag
	}
	if h.MoreFollows {
		first |= moreFollowsFlag
	}
	if h.SegmentedResponse {
		first |= segmentedResponseFlag
	}
	write(first)
	write((h.MaxSegments&0x07)<<4 | (h.MaxAPDULength & 0x0F))
	write(h.InvokeID)
	if h.Segmented {
		write(h.SequenceNumber)
		write(h.WindowSize)
	}
	write(h.ServiceChoice)
	return n
}

// EncodeUnconfirmedRequest writes an unconfirmed request header.
func EncodeUnconfirmedRequest(buf []byte, serviceChoice uint8) int {
	if buf == nil {
		return 2
	}
	buf[0] = byte(UnconfirmedRequest) << 4
	buf[1] = serviceChoice
	return 2
}

// EncodeSimpleACK writes a simple-ACK header.
func EncodeSimpleACK(buf []byte, invokeID, serviceChoice uint8) int {
	if buf == nil {
		return 3
	}
	buf[0] = byte(SimpleACK) << 4
	buf[1] = invokeID
	buf[2] = serviceChoice
	return 3
}

// EncodeComplexACK writes a (possibly segmented) complex-ACK header.
func EncodeComplexACK(buf []byte, h Header) int {
	n := 0
	write := func(b byte) {
		if buf != nil {
			buf[n] = b
		}
		n++
	}
	first := byte(ComplexACK) << 4
	if h.Segmented {
		first |= segmentedFlag
	}
	if h.MoreFollows {
		first |= moreFollowsFlag
	}
	write(first)
	write(h.InvokeID)
	if h.Segmented {
		write(h.SequenceNumber)
		write(h.WindowSize)
	}
	write(h.ServiceChoice)
	return n
}

// EncodeSegmentACK writes a segment-ACK header.
func EncodeSegmentACK(buf []byte, h Header) int {
	if buf == nil {
		return 4
	}
	first := byte(SegmentACK) << 4
	if h.NAK {
		first |= segmentedFlag
	}
	if h.ServerFlag {
		first |= moreFollowsFlag
	}
	buf[0] = first
	buf[1] = h.InvokeID
	buf[2] = h.SequenceNumber
	buf[3] = h.WindowSize
	return 4
}

// EncodeError writes an error header.
func EncodeError(buf []byte, invokeID, serviceChoice uint8) int {
	if buf == nil {
		return 3
	}
	buf[0] = byte(Error) << 4
	buf[1] = invokeID
	buf[2] = serviceChoice
	return 3
}

// EncodeReject writes a reject header.
func EncodeReject(buf []byte, invokeID, reason uint8) int {
	if buf == nil {
		return 3
	}
	buf[0] = byte(Reject) << 4
	buf[1] = invokeID
	buf[2] = reason
	return 3
}

// EncodeAbort writes an abort header.
func EncodeAbort(buf []byte, invokeID, reason uint8, server bool) int {
	if buf == nil {
		return 3
	}
	first := byte(Abort) << 4
	if server {
		first |= 0x01
	}
	buf[0] = first
	buf[1] = invokeID
	buf[2] = reason
	return 3
}
