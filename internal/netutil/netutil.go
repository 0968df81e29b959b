// Package netutil provides a small DNS round-robin resolver used by the
// output connectors, so a reconnect that exhausts its address list
// re-resolves the hostname instead of giving up.
package netutil

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/mlatclient/edgeclient/internal/logging"
)

// ErrNoAddresses is returned once a resolver's address list is exhausted
// and a fresh DNS lookup also yields nothing.
var ErrNoAddresses = errors.New("netutil: no resolved addresses available")

// Resolver hands out addresses for one host:port pair in round-robin order,
// re-resolving via DNS once the current list is exhausted. Built once per
// target and rebuilt (via Reset) rather than continuously re-queried, the
// same "build once, rebuild on reset" shape the teacher's HTTP client
// builder uses.
type Resolver struct {
	host string
	port string

	mu        sync.Mutex
	addrs     []string
	next      int
	resolveFn func(ctx context.Context, host string) ([]string, error)
}

// NewResolver creates a Resolver for host:port, using the standard resolver
// unless a test overrides resolveFn via NewResolverWithLookup.
func NewResolver(host, port string) *Resolver {
	return NewResolverWithLookup(host, port, defaultLookup)
}

// NewResolverWithLookup is NewResolver with an injectable lookup function,
// used by tests to avoid live DNS.
func NewResolverWithLookup(host, port string, lookup func(ctx context.Context, host string) ([]string, error)) *Resolver {
	return &Resolver{host: host, port: port, resolveFn: lookup}
}

func defaultLookup(ctx context.Context, host string) ([]string, error) {
	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	return ips, nil
}

// Next returns the next address to dial, re-resolving the hostname if the
// current round-robin list is empty or exhausted.
func (r *Resolver) Next(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.addrs) {
		ips, err := r.resolveFn(ctx, r.host)
		if err != nil || len(ips) == 0 {
			r.addrs = nil
			r.next = 0
			if err != nil {
				return "", err
			}
			return "", ErrNoAddresses
		}
		logging.Debugf("netutil resolved host=%s addresses=%d", r.host, len(ips))
		r.addrs = ips
		r.next = 0
	}

	addr := net.JoinHostPort(r.addrs[r.next], r.port)
	r.next++
	return addr, nil
}

// Reset drops the cached address list so the next call to Next performs a
// fresh DNS lookup, used when the caller wants to force re-resolution
// (e.g. after a long run of consecutive connection failures).
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = nil
	r.next = 0
}

// ReconnectDelay returns the base 10s + uniform(0,5)s jittered reconnect
// delay used by the event loop when retrying the server connection, given
// a jitter source in [0,1).
func ReconnectDelay(jitter float64) time.Duration {
	const base = 10 * time.Second
	extra := time.Duration(jitter * float64(5*time.Second))
	return base + extra
}
