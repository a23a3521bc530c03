// Package dns resolves the signaling server's host name, falling back to
// public resolvers when the system resolver fails (captive or broken local
// DNS is common on the networks people join calls from).
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	mdns "github.com/miekg/dns"
)

// publicServers are queried directly, in parallel, when the system resolver
// fails.
var publicServers = []string{
	"1.1.1.1",         // Cloudflare
	"1.0.0.1",         // Cloudflare
	"8.8.8.8",         // Google
	"8.8.4.4",         // Google
	"9.9.9.9",         // Quad9
	"149.112.112.112", // Quad9
	"208.67.222.222",  // OpenDNS
	"2606:4700:4700::1111",
	"2001:4860:4860::8888",
}

var ErrNoAddress = errors.New("no address found")

// Resolver looks up host addresses.
type Resolver struct {
	Servers      []string
	LocalTimeout time.Duration
	RaceTimeout  time.Duration

	system *net.Resolver
	client *mdns.Client
}

func NewResolver() *Resolver {
	return &Resolver{
		Servers:      publicServers,
		LocalTimeout: 1 * time.Second,
		RaceTimeout:  2 * time.Second,
		system:       net.DefaultResolver,
		client:       &mdns.Client{Net: "udp", Timeout: 2 * time.Second},
	}
}

// Lookup returns one address for host, preferring IPv4. IP literals are
// returned as they are.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	local, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	addrs, err := r.system.LookupHost(local, host)
	cancel()
	if err == nil {
		if ip, ok := preferIPv4(addrs); ok {
			return ip, nil
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return r.race(ctx, host)
}

// DialContext dials addr after resolving its host with Lookup. It fits
// websocket.Dialer.NetDialContext.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

// race asks every public server at once and returns the first answer.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.RaceTimeout)
	defer cancel()

	type result struct {
		ip  string
		err error
	}
	results := make(chan result, len(r.Servers))
	for _, server := range r.Servers {
		go func() {
			ip, err := r.query(ctx, host, server)
			results <- result{ip: ip, err: err}
		}()
	}

	failures := 0
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("public dns lookup of %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("failed to resolve %s: all %d public servers failed", host, failures)
}

// query asks one server for an A record, then for AAAA.
func (r *Resolver) query(ctx context.Context, host, server string) (string, error) {
	for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
		msg := new(mdns.Msg)
		msg.SetQuestion(mdns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		in, _, err := r.client.ExchangeContext(ctx, msg, net.JoinHostPort(server, "53"))
		if err != nil {
			return "", err
		}
		if ip, ok := firstAddress(in); ok {
			return ip, nil
		}
	}
	return "", ErrNoAddress
}

func firstAddress(msg *mdns.Msg) (string, bool) {
	if msg == nil || msg.Rcode != mdns.RcodeSuccess {
		return "", false
	}
	for _, rr := range msg.Answer {
		switch rec := rr.(type) {
		case *mdns.A:
			return rec.A.String(), true
		case *mdns.AAAA:
			return rec.AAAA.String(), true
		}
	}
	return "", false
}

func preferIPv4(addrs []string) (string, bool) {
	if len(addrs) == 0 {
		return "", false
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, true
		}
	}
	return addrs[0], true
}
