package ratelimit

import (
	"testing"
	"time"
)

func TestAllowExhaustsBurst(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("request %d rejected inside burst", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatalf("request allowed past capacity")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 50) {
		t.Fatalf("first request rejected")
	}
	if l.Allow("k", 1, 50) {
		t.Fatalf("empty bucket allowed a request")
	}

	time.Sleep(40 * time.Millisecond) // 50/s refill restores the token
	if !l.Allow("k", 1, 50) {
		t.Fatalf("bucket never refilled")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("first key rejected")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("second key shares the first key's bucket")
	}
}
