// Package bacip is the BACnet/IP (Annex J) binding of transport.Link:
// it wraps outgoing NPDUs in a BVLC header and unwraps inbound UDP
// datagrams back into NPDU bytes, the way the teacher's request.go
// built one BVLC header by hand per call, generalized here into a
// reusable Link the core dispatches through instead of a one-shot
// net.UDPConn.
package bacip

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/greenridge/bacstack/transport"
)

// DefaultPort is the well-known BACnet/IP UDP port (clause J.1).
const DefaultPort = 47808

const (
	bvlcTypeBACnetIP          byte = 0x81
	bvlcOriginalUnicastNPDU   byte = 0x0a
	bvlcOriginalBroadcastNPDU byte = 0x0b
	bvlcHeaderLen                  = 4
)

// ErrMalformed is returned for any datagram too short to be a valid
// BVLC frame.
type ErrMalformed struct{ Reason string }

func (e ErrMalformed) Error() string { return "bacip: malformed frame: " + e.Reason }

// AddressToUDP recovers a *net.UDPAddr from a transport.Address built
// by UDPToAddress: the first 4 MAC bytes are the IPv4 octets, the
// last 2 are the big-endian port.
func AddressToUDP(a transport.Address) (*net.UDPAddr, error) {
	if a.MacLen != 6 {
		return nil, fmt.Errorf("bacip: address %s has no embedded IPv4:port MAC", a)
	}
	ip := net.IPv4(a.Mac[0], a.Mac[1], a.Mac[2], a.Mac[3])
	port := int(binary.BigEndian.Uint16(a.Mac[4:6]))
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

// UDPToAddress packs a UDP peer into a local transport.Address whose
// MAC is the 4-octet IPv4 address followed by the 2-octet port, the
// BACnet/IP convention for a B/IP MAC address (clause J.2).
func UDPToAddress(udp *net.UDPAddr) transport.Address {
	ip4 := udp.IP.To4()
	a := transport.Address{Net: transport.NetworkLocal, MacLen: 6}
	copy(a.Mac[:4], ip4)
	binary.BigEndian.PutUint16(a.Mac[4:6], uint16(udp.Port))
	return a
}

func encodeBVLC(function byte, npdu []byte) []byte {
	buf := make([]byte, bvlcHeaderLen+len(npdu))
	buf[0] = bvlcTypeBACnetIP
	buf[1] = function
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	copy(buf[bvlcHeaderLen:], npdu)
	return buf
}

func decodeBVLC(datagram []byte) (function byte, npdu []byte, err error) {
	if len(datagram) < bvlcHeaderLen {
		return 0, nil, ErrMalformed{"shorter than the BVLC header"}
	}
	if datagram[0] != bvlcTypeBACnetIP {
		return 0, nil, ErrMalformed{fmt.Sprintf("unexpected BVLC type 0x%02x", datagram[0])}
	}
	length := binary.BigEndian.Uint16(datagram[2:4])
	if int(length) != len(datagram) {
		return 0, nil, ErrMalformed{"BVLC length field does not match datagram size"}
	}
	return datagram[1], datagram[bvlcHeaderLen:], nil
}

// Link is a transport.Link backed by a bound UDP socket. Broadcast
// sends use BVLC-Original-Broadcast-NPDU to the broadcast address given
// to Listen;
// every other send uses BVLC-Original-Unicast-NPDU to the peer
// recovered from the destination transport.Address.
type Link struct {
	conn          *net.UDPConn
	broadcastAddr *net.UDPAddr
}

// Listen opens a UDP socket bound to localAddr (nil picks an
// unspecified IPv4 address on DefaultPort) and targeting broadcastAddr
// for transport.Broadcast sends.
func Listen(localAddr, broadcastAddr *net.UDPAddr) (*Link, error) {
	if localAddr == nil {
		localAddr = &net.UDPAddr{IP: net.IPv4zero, Port: DefaultPort}
	}
	conn, err := net.ListenUDP("udp4", localAddr)
	if err != nil {
		return nil, fmt.Errorf("bacip: listen: %w", err)
	}
	return &Link{conn: conn, broadcastAddr: broadcastAddr}, nil
}

// Close releases the underlying socket.
func (l *Link) Close() error { return l.conn.Close() }

// Send implements transport.Link.
func (l *Link) Send(addr transport.Address, npdu []byte) error {
	var (
		udp      *net.UDPAddr
		function byte
	)
	if addr == transport.Broadcast {
		if l.broadcastAddr == nil {
			return fmt.Errorf("bacip: no broadcast address configured")
		}
		udp = l.broadcastAddr
		function = bvlcOriginalBroadcastNPDU
	} else {
		var err error
		udp, err = AddressToUDP(addr)
		if err != nil {
			return err
		}
		function = bvlcOriginalUnicastNPDU
	}

	datagram := encodeBVLC(function, npdu)
	_, err := l.conn.WriteToUDP(datagram, udp)
	return err
}

// Serve reads datagrams until the socket is closed, handing every
// BVLC-Original-{Unicast,Broadcast}-NPDU's payload to recv. Other BVLC
// functions (BDT/FDT management, forwarded NPDUs) are silently
// dropped; this link only ever joins a network directly, it never
// acts as a BBMD.
func (l *Link) Serve(recv transport.Receiver) error {
	buf := make([]byte, 1500)
	for {
		n, peer, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		function, npdu, derr := decodeBVLC(buf[:n])
		if derr != nil {
			continue
		}
		switch function {
		case bvlcOriginalUnicastNPDU, bvlcOriginalBroadcastNPDU:
			recv.Receive(UDPToAddress(peer), npdu)
		}
	}
}
