// Package ifaceutil resolves a network interface name to the local
// IPv4 address and subnet broadcast address a bacip.Link binds to,
// the same interface-walking logic each of the teacher's command-line
// examples repeated inline.
package ifaceutil

import (
	"fmt"
	"net"
)

// Resolve returns the first non-loopback IPv4 address on ifaceName
// together with that subnet's broadcast address.
func Resolve(ifaceName string) (local, broadcast net.IP, err error) {
	intf, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, nil, fmt.Errorf("ifaceutil: find interface %s: %w", ifaceName, err)
	}
	addrs, err := intf.Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("ifaceutil: addresses for %s: %w", ifaceName, err)
	}

	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		bcast := make(net.IP, len(ip4))
		for i := range ip4 {
			bcast[i] = ip4[i] | ^ipnet.Mask[i]
		}
		return ip4, bcast, nil
	}
	return nil, nil, fmt.Errorf("ifaceutil: no usable IPv4 address on %s", ifaceName)
}
