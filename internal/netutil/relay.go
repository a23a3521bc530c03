// Package netutil inspects the local network setup.
package netutil

import (
	"net"
	"strings"
)

// cgnat is 100.64.0.0/10, used by carrier-grade NAT, Tailscale and
// Cloudflare WARP.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// tunnelPrefixes are interface name fragments of common VPN adapters.
var tunnelPrefixes = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// ShouldForceRelay reports whether this machine looks like it sits behind a
// VPN or CGNAT, where direct peer-to-peer paths usually fail.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && InCGNAT(ipnet.IP) {
				return true
			}
		}
	}

	return false
}

// InCGNAT reports whether ip lies in the shared address space 100.64.0.0/10.
func InCGNAT(ip net.IP) bool {
	return ip != nil && cgnat.Contains(ip)
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, p := range tunnelPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
