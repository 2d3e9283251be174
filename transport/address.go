// Package transport defines the link-layer boundary: the opaque
// send/receive interface the core uses to exchange NPDUs with
// whatever physical transport (BACnet/IP, MS/TP, Ethernet, ARCNET) the
// host embeds, plus the NPDU header the core itself parses.
package transport

import "fmt"

// Address identifies a BACnet network-layer peer. Net 0 means local;
// Net 0xFFFF means global broadcast.
type Address struct {
	Net    uint16
	MacLen uint8
	Mac    [7]byte
	HasAdr bool
	Adr    [7]byte
}

const (
	NetworkLocal  uint16 = 0x0000
	NetworkGlobal uint16 = 0xFFFF
)

// Local builds a local (Net 0) address from a MAC.
func Local(mac ...byte) Address {
	a := Address{Net: NetworkLocal, MacLen: uint8(len(mac))}
	copy(a.Mac[:], mac)
	return a
}

// Broadcast is the global-broadcast address.
var Broadcast = Address{Net: NetworkGlobal}

// Key returns a value usable as a map key for address-keyed lookups
// (TSM slot matching is keyed on (peer address, invoke ID)).
func (a Address) Key() string {
	return fmt.Sprintf("%04x:%x", a.Net, a.Mac[:a.MacLen])
}

func (a Address) String() string { return a.Key() }

// Link is the host-supplied send half of the link-layer boundary. The
// core calls Send to emit one NPDU; the host calls whatever method it
// wires to the core's receive entrypoint (see transport.Receiver) for
// each NPDU it receives.
type Link interface {
	Send(addr Address, npdu []byte) error
}

// Receiver is implemented by the core component that accepts inbound
// NPDUs from the link layer (typically a dispatch.Dispatcher or
// client.Client wired together by device.Device).
type Receiver interface {
	Receive(addr Address, npdu []byte)
}

// LinkFunc adapts a plain function to Link.
type LinkFunc func(addr Address, npdu []byte) error

func (f LinkFunc) Send(addr Address, npdu []byte) error { return f(addr, npdu) }
