package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	if logs, ok := payload.([]AggregatedEntry); ok {
		p.batches = append(p.batches, logs)
	}
	return nil
}

func (p *capturePublisher) entries() []AggregatedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorAggregatesRepeatedLines(t *testing.T) {
	pub := &capturePublisher{}
	c := NewCollector(&CollectionConfig{
		TimeInterval:   time.Hour, // no periodic flush during the test
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "redis connect failed", map[string]interface{}{"addr": "localhost"}, "a.go:1")
	}
	c.AddLog("error", "kafka write failed", nil, "b.go:2")

	c.Close() // final flush, waited out by Close

	entries := pub.entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 aggregated entries, got %d", len(entries))
	}
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Message] = e.Count
	}
	if counts["redis connect failed"] != 3 {
		t.Errorf("repeated line count = %d, want 3", counts["redis connect failed"])
	}
	if counts["kafka write failed"] != 1 {
		t.Errorf("single line count = %d, want 1", counts["kafka write failed"])
	}
	if pub.topic != "logs" {
		t.Errorf("published to topic %q, want logs", pub.topic)
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "first", nil, "a.go:1")
	c.AddLog("error", "second", nil, "a.go:2")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(pub.entries()) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("threshold flush never delivered; got %d entries", len(pub.entries()))
}

func TestCollectorDistinguishesFields(t *testing.T) {
	pub := &capturePublisher{}
	c := NewCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	c.AddLog("error", "fetch failed", map[string]interface{}{"symbol": "BTCUSDT"}, "a.go:1")
	c.AddLog("error", "fetch failed", map[string]interface{}{"symbol": "ETHUSDT"}, "a.go:1")

	c.Close()

	if got := len(pub.entries()); got != 2 {
		t.Fatalf("distinct fields must not aggregate: got %d entries, want 2", got)
	}
}
