package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowExhaustsBurst(t *testing.T) {
	l := New()
	for i := 0; i < 2; i++ {
		if !l.Allow("client-a", 0.001, 2) {
			t.Fatalf("call %d should be allowed within burst", i)
		}
	}
	if l.Allow("client-a", 0.001, 2) {
		t.Fatalf("third call should exceed burst")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("client-a", 0.001, 1) {
		t.Fatalf("first key should be allowed")
	}
	if l.Allow("client-a", 0.001, 1) {
		t.Fatalf("first key should be exhausted")
	}
	if !l.Allow("client-b", 0.001, 1) {
		t.Fatalf("second key has its own bucket")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New()
	if err := l.Wait(context.Background(), "paced", 1000, 1); err != nil {
		t.Fatalf("first wait should pass immediately: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "slow", 0.001, 1); err != nil {
		t.Fatalf("burst token should be available: %v", err)
	}
	if err := l.Wait(ctx, "slow", 0.001, 1); err == nil {
		t.Fatalf("expected context deadline while waiting for refill")
	}
}
