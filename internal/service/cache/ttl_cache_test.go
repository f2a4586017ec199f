package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[int]()
	c.Set("k", 42, time.Minute)

	v, ok := c.Get("k")
	if !ok {
		t.Fatalf("key missing")
	}
	if v != 42 {
		t.Fatalf("value %v", v)
	}
	if _, ok := c.Get("other"); ok {
		t.Fatalf("unknown key returned a value")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string]()
	c.Set("k", "v", 10*time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("key expired immediately")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("key survived its ttl")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string]()
	c.Set("k", "v", 0)
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("zero-ttl entry expired")
	}
}

func TestTTLCacheOverwriteResetsExpiry(t *testing.T) {
	c := NewTTLCache[string]()
	c.Set("k", "old", 10*time.Millisecond)
	c.Set("k", "new", time.Minute)

	time.Sleep(20 * time.Millisecond)
	v, ok := c.Get("k")
	if !ok {
		t.Fatalf("overwritten entry kept the old expiry")
	}
	if v != "new" {
		t.Fatalf("value %q", v)
	}
}

func TestTTLCacheMissReturnsZeroValue(t *testing.T) {
	c := NewTTLCache[*int]()
	if v, ok := c.Get("absent"); ok || v != nil {
		t.Fatalf("miss returned %v, %v", v, ok)
	}
}
