package transport

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// SSDPMulticastAddr is the well-known SSDP multicast group (spec.md §6).
const SSDPMulticastAddr = "239.255.255.250:1900"

// setMulticastTTL sets the outbound multicast hop limit. net.UDPConn
// has no direct setter for this; golang.org/x/net/ipv4 wraps the
// socket option the same way the broader ecosystem does for
// multicast-sending UDP sockets.
func setMulticastTTL(conn *net.UDPConn, ttl int) error {
	pc := ipv4.NewPacketConn(conn)
	return pc.SetMulticastTTL(ttl)
}

// Interfaces returns the multicast-capable interfaces matching the
// configured include/exclude selector (spec.md §6 "interfaceSelector").
func Interfaces(include, exclude []string) ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate interfaces: %w", err)
	}
	inSet := toSet(include)
	exSet := toSet(exclude)

	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if len(inSet) > 0 && !inSet[iface.Name] {
			continue
		}
		if exSet[iface.Name] {
			continue
		}
		out = append(out, iface)
	}
	return out, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
