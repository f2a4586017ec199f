package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarkWatch/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordTick(float64)                   {}
func (nopMetrics) RecordTrigger(string)                 {}
func (nopMetrics) RecordRoundRejected()                 {}
func (nopMetrics) RecordRound(string, float64)          {}
func (nopMetrics) RecordJobRun(string, string, float64) {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLastPrice(string, float64)      {}
func (nopMetrics) RecordPublished(string, int)          {}
func (nopMetrics) RecordLatency(string, float64)        {}
func (nopMetrics) SetRunning(bool)                      {}

type recordingProc struct {
	mu    sync.Mutex
	ticks []*models.MarkPriceTick
	err   error
}

func (r *recordingProc) Process(_ context.Context, t *models.MarkPriceTick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ticks = append(r.ticks, t)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func tick(symbol string, price float64) *models.MarkPriceTick {
	return &models.MarkPriceTick{Symbol: symbol, MarkPrice: price, EventTime: time.Now()}
}

func TestPipelineForwardsValidTicks(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, nopMetrics{})

	if err := p.Process(context.Background(), tick("BTCUSDT", 64250.5)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded %d ticks", proc.count())
	}
}

func TestPipelineRejectsMalformedTicks(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, nopMetrics{})

	cases := []*models.MarkPriceTick{
		nil,
		{MarkPrice: 100, EventTime: time.Now()},               // no symbol
		{Symbol: "BTCUSDT", MarkPrice: 100},                   // no event time
		{Symbol: "BTCUSDT", MarkPrice: 0, EventTime: time.Now()},
		{Symbol: "BTCUSDT", MarkPrice: -3, EventTime: time.Now()},
	}
	for i, c := range cases {
		if err := p.Process(context.Background(), c); err == nil {
			t.Errorf("case %d accepted", i)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("malformed ticks reached downstream: %d", proc.count())
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, nopMetrics{}, WithMaxRPS(1))

	// second BTC tick inside the same second is dropped without error
	if err := p.Process(context.Background(), tick("BTCUSDT", 64000)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := p.Process(context.Background(), tick("BTCUSDT", 64001)); err != nil {
		t.Fatalf("throttled tick should drop silently: %v", err)
	}
	// a different symbol has its own budget
	if err := p.Process(context.Background(), tick("ETHUSDT", 3200)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("forwarded %d ticks, want 2", proc.count())
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{err: errors.New("clickhouse down")}
	p := NewTickPipeline(proc, nopMetrics{}, WithBufferSize(4))

	if err := p.Process(context.Background(), tick("BTCUSDT", 64000)); err == nil {
		t.Fatalf("downstream error swallowed")
	}
	if n := len(p.bufCh); n != 1 {
		t.Fatalf("buffered %d ticks, want 1", n)
	}

	// the flusher drains the buffer once downstream recovers
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if proc.count() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("buffered tick never flushed")
}
