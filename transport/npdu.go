package transport

import "fmt"

// NPDU control-byte bits (clause 6.2.2).
const (
	ctrlDestinationPresent   = 0x20
	ctrlSourcePresent        = 0x08
	ctrlExpectingReply       = 0x04
	ctrlNetworkLayerMessage  = 0x80
	ctrlPriorityMask         = 0x03
)

// Priority is the 2-bit network priority field.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityUrgent
	PriorityCritical
	PriorityLifeSafety
)

// NPDU is the decoded Network Protocol Data Unit header. APDU holds
// the remaining bytes (the application-layer payload) for a data NPDU;
// it is empty when NetworkMessage is true (routing traffic, out of
// scope for the core — the caller should drop these).
type NPDU struct {
	Version        uint8
	NetworkMessage bool
	ExpectingReply bool
	Priority       Priority

	HasDestination bool
	Destination    Address
	HasSource      bool
	Source         Address
	HopCount       uint8

	APDU []byte
}

// Decode parses an NPDU from buf.
func Decode(buf []byte) (NPDU, error) {
	if len(buf) < 2 {
		return NPDU{}, fmt.Errorf("npdu: %w", ErrMalformed)
	}
	n := NPDU{Version: buf[0]}
	control := buf[1]
	n.NetworkMessage = control&ctrlNetworkLayerMessage != 0
	n.ExpectingReply = control&ctrlExpectingReply != 0
	n.Priority = Priority(control & ctrlPriorityMask)

	i := 2
	if control&ctrlDestinationPresent != 0 {
		if len(buf) < i+3 {
			return NPDU{}, fmt.Errorf("npdu destination: %w", ErrMalformed)
		}
		n.HasDestination = true
		n.Destination.Net = uint16(buf[i])<<8 | uint16(buf[i+1])
		dlen := buf[i+2]
		i += 3
		if len(buf) < i+int(dlen) {
			return NPDU{}, fmt.Errorf("npdu destination mac: %w", ErrMalformed)
		}
		n.Destination.MacLen = dlen
		copy(n.Destination.Mac[:], buf[i:i+int(dlen)])
		i += int(dlen)
	}
	if control&ctrlSourcePresent != 0 {
		if len(buf) < i+3 {
			return NPDU{}, fmt.Errorf("npdu source: %w", ErrMalformed)
		}
		n.HasSource = true
		n.Source.Net = uint16(buf[i])<<8 | uint16(buf[i+1])
		slen := buf[i+2]
		i += 3
		if len(buf) < i+int(slen) {
			return NPDU{}, fmt.Errorf("npdu source mac: %w", ErrMalformed)
		}
		n.Source.MacLen = slen
		copy(n.Source.Mac[:], buf[i:i+int(slen)])
		i += int(slen)
	}
	if n.HasDestination {
		if len(buf) < i+1 {
			return NPDU{}, fmt.Errorf("npdu hop count: %w", ErrMalformed)
		}
		n.HopCount = buf[i]
		i++
	}
	if n.NetworkMessage {
		n.APDU = nil
	} else {
		n.APDU = buf[i:]
	}
	return n, nil
}

// Encode writes an NPDU header followed by apdu into buf (nil
// predicts length).
func Encode(buf []byte, n NPDU, apduPayload []byte) int {
	total := 2
	if n.HasDestination {
		total += 3 + int(n.Destination.MacLen)
	}
	if n.HasSource {
		total += 3 + int(n.Source.MacLen)
	}
	if n.HasDestination {
		total++ // hop count
	}
	total += len(apduPayload)
	if buf == nil {
		return total
	}

	buf[0] = n.Version
	control := byte(n.Priority) & ctrlPriorityMask
	if n.ExpectingReply {
		control |= ctrlExpectingReply
	}
	if n.HasDestination {
		control |= ctrlDestinationPresent
	}
	if n.HasSource {
		control |= ctrlSourcePresent
	}
	buf[1] = control
	i := 2
	if n.HasDestination {
		buf[i] = byte(n.Destination.Net >> 8)
		buf[i+1] = byte(n.Destination.Net)
		buf[i+2] = n.Destination.MacLen
		i += 3
		copy(buf[i:], n.Destination.Mac[:n.Destination.MacLen])
		i += int(n.Destination.MacLen)
	}
	if n.HasSource {
		buf[i] = byte(n.Source.Net >> 8)
		buf[i+1] = byte(n.Source.Net)
		buf[i+2] = n.Source.MacLen
		i += 3
		copy(buf[i:], n.Source.Mac[:n.Source.MacLen])
		i += int(n.Source.MacLen)
	}
	if n.HasDestination {
		buf[i] = n.HopCount
		i++
	}
	copy(buf[i:], apduPayload)
	return total
}

// ErrMalformed is returned for a truncated or inconsistent NPDU.
var ErrMalformed = fmt.Errorf("npdu malformed")
