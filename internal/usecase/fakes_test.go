package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarkWatch/internal/domain/models"
	"MarkWatch/pkg/logger"
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

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "fatal", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

// waitUntil polls cond until it holds or the deadline passes. Rounds and
// jobs finish in goroutines, so assertions on their after-effects need a
// bounded wait.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within 2s")
}

// stubRunner is a scriptable RoundExecutor. With gate set, Run blocks until
// the gate closes, which lets a test hold a round in flight.
type stubRunner struct {
	mu    sync.Mutex
	calls []models.RoundRequest
	gate  chan struct{}
	err   error
	boom  any // non-nil makes Run panic
}

func (s *stubRunner) Run(_ context.Context, req models.RoundRequest) (*models.RoundRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.gate != nil {
		<-s.gate
	}
	if s.boom != nil {
		panic(s.boom)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.RoundRecord{
		ID:     "round-1",
		Reason: req.Reason,
		Detail: req.Detail,
		Assets: req.Assets,
		Status: models.RoundCompleted,
	}, nil
}

func (s *stubRunner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubRunner) last() models.RoundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return models.RoundRequest{}
	}
	return s.calls[len(s.calls)-1]
}

type fakeBands struct {
	mu       sync.Mutex
	bands    map[string]*models.AlertBand
	puts     []*models.AlertBand
	clears   []string
	listErr  error
	putErr   error
	clearErr error
}

func newFakeBands(bands map[string]*models.AlertBand) *fakeBands {
	if bands == nil {
		bands = map[string]*models.AlertBand{}
	}
	return &fakeBands{bands: bands}
}

func (f *fakeBands) Get(_ context.Context, asset string) (*models.AlertBand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bands[asset], nil
}

func (f *fakeBands) List(_ context.Context, assets []string) (map[string]*models.AlertBand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]*models.AlertBand, len(assets))
	for _, a := range assets {
		if b, ok := f.bands[a]; ok {
			out[a] = b
		}
	}
	return out, nil
}

func (f *fakeBands) Put(_ context.Context, band *models.AlertBand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.bands[band.Asset] = band
	f.puts = append(f.puts, band)
	return nil
}

func (f *fakeBands) Clear(_ context.Context, asset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.bands, asset)
	f.clears = append(f.clears, asset)
	return nil
}

type fakeStamp struct {
	mu      sync.Mutex
	loaded  time.Time
	loadErr error
	saves   []time.Time
	saveErr error
}

func (f *fakeStamp) Load(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded, f.loadErr
}

func (f *fakeStamp) Save(_ context.Context, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, t)
	return nil
}

func (f *fakeStamp) saved() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type fakeJobState struct {
	mu      sync.Mutex
	last    map[string]time.Time
	loadErr error
	saves   map[string]time.Time
}

func newFakeJobState(last map[string]time.Time) *fakeJobState {
	if last == nil {
		last = map[string]time.Time{}
	}
	return &fakeJobState{last: last, saves: map[string]time.Time{}}
}

func (f *fakeJobState) LoadLastRuns(context.Context) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]time.Time, len(f.last))
	for k, v := range f.last {
		out[k] = v
	}
	return out, nil
}

func (f *fakeJobState) SaveLastRun(_ context.Context, name string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves[name] = t
	return nil
}

func (f *fakeJobState) savedAt(name string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.saves[name]
	return t, ok
}

type fakePrices struct {
	prices map[string]float64
	errs   map[string]error
}

func (f *fakePrices) MarkPrice(_ context.Context, symbol string) (float64, error) {
	if err := f.errs[symbol]; err != nil {
		return 0, err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("no price for " + symbol)
	}
	return p, nil
}

func testRunConfig(assets ...string) models.RunConfig {
	if len(assets) == 0 {
		assets = []string{"BTCUSDT"}
	}
	return models.RunConfig{
		Assets:           assets,
		Capital:          1000,
		LeverageMin:      1,
		LeverageMax:      5,
		NearThresholdPct: 0.002,
		Cooldown:         15 * time.Minute,
		Staleness:        4 * time.Hour,
	}
}
