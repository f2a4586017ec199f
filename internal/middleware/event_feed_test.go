package middleware

import (
	"fmt"
	"testing"
)

func TestEventFeedNewestFirst(t *testing.T) {
	f := NewEventFeed(8)
	f.Publish("scheduler", "started", nil)
	f.Publish("trigger", "hard_touch", map[string]string{"detail": "BTCUSDT stop_loss"})
	f.Publish("round", "completed", nil)

	got := f.Recent(0)
	if len(got) != 3 {
		t.Fatalf("events = %d", len(got))
	}
	if got[0].Detail != "completed" || got[2].Detail != "started" {
		t.Fatalf("order %v, want newest first", got)
	}
	if got[1].Fields["detail"] != "BTCUSDT stop_loss" {
		t.Fatalf("fields %v", got[1].Fields)
	}
}

func TestEventFeedLimit(t *testing.T) {
	f := NewEventFeed(8)
	for i := 0; i < 5; i++ {
		f.Publish("job", fmt.Sprintf("run-%d", i), nil)
	}
	got := f.Recent(2)
	if len(got) != 2 {
		t.Fatalf("events = %d, want limit respected", len(got))
	}
	if got[0].Detail != "run-4" || got[1].Detail != "run-3" {
		t.Fatalf("order %v", got)
	}
}

func TestEventFeedOverwritesOldest(t *testing.T) {
	f := NewEventFeed(3)
	for i := 0; i < 5; i++ {
		f.Publish("job", fmt.Sprintf("run-%d", i), nil)
	}
	got := f.Recent(0)
	if len(got) != 3 {
		t.Fatalf("events = %d, want ring capacity", len(got))
	}
	if got[0].Detail != "run-4" || got[2].Detail != "run-2" {
		t.Fatalf("ring kept %v", got)
	}
}

func TestEventFeedDefaultSize(t *testing.T) {
	f := NewEventFeed(0)
	f.Publish("scheduler", "started", nil)
	if len(f.Recent(0)) != 1 {
		t.Fatalf("default-size feed dropped the event")
	}
}
