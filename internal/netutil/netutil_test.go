package netutil

import (
	"context"
	"errors"
	"testing"
)

func TestResolverRoundRobin(t *testing.T) {
	calls := 0
	r := NewResolverWithLookup("example.test", "1234", func(ctx context.Context, host string) ([]string, error) {
		calls++
		return []string{"10.0.0.1", "10.0.0.2"}, nil
	})

	a1, err := r.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a2, err := r.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Fatalf("expected round-robin addresses, got %s twice", a1)
	}

	// exhausted after two, should re-resolve.
	if _, err := r.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 DNS lookups after exhausting the list, got %d", calls)
	}
}

func TestResolverNoAddresses(t *testing.T) {
	r := NewResolverWithLookup("example.test", "1234", func(ctx context.Context, host string) ([]string, error) {
		return nil, nil
	})
	_, err := r.Next(context.Background())
	if !errors.Is(err, ErrNoAddresses) {
		t.Fatalf("expected ErrNoAddresses, got %v", err)
	}
}

func TestReconnectDelayBounds(t *testing.T) {
	lo := ReconnectDelay(0)
	hi := ReconnectDelay(0.999999)
	if lo.Seconds() < 10 || lo.Seconds() >= 10.001 {
		t.Errorf("ReconnectDelay(0) = %v, want ~10s", lo)
	}
	if hi.Seconds() < 14.99 || hi.Seconds() > 15.0 {
		t.Errorf("ReconnectDelay(~1) = %v, want ~15s", hi)
	}
}
