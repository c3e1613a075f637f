// Package net implements the `@std/net` built-in: an HTTP client routed
// through internal/bridge so a script's `net.request` call suspends the
// calling thread rather than blocking the VM, an HTTP server for
// `net.serve`, WebSocket upgrades, and URL encoding helpers.
//
// The client dials SSRF-safely: resolve the host, refuse to connect to
// any address in a private/reserved range, dial the resolved IP
// directly rather than trusting a second DNS lookup to return the same
// answer.
package net

import (
	"context"
	"fmt"
	"net"
)

// ssrfSafeEnabled is a test escape hatch: tests targeting httptest
// servers on 127.0.0.1 set this false.
var ssrfSafeEnabled = true

var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8",
		"169.254.0.0/16", "172.16.0.0/12", "192.0.0.0/24", "192.0.2.0/24",
		"192.168.0.0/16", "198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24",
		"240.0.0.0/4",
		"::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR: " + cidr)
		}
		privateRanges = append(privateRanges, n)
	}
}

// IsPrivateIP reports whether ip falls in a private, loopback, or
// otherwise non-routable reserved range.
func IsPrivateIP(ip net.IP) bool {
	for _, r := range privateRanges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

func ssrfSafeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if !ssrfSafeEnabled {
		return (&net.Dialer{}).DialContext(ctx, network, addr)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	for _, ip := range ips {
		if !IsPrivateIP(ip.IP) {
			return (&net.Dialer{}).DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
		}
	}
	return nil, fmt.Errorf("net.request: refusing to connect to a private address for %s", host)
}
