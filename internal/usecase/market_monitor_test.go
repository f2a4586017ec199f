package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"MarkWatch/internal/domain/models"
)

func newMonitor(t *testing.T, bands *fakeBands, prices *fakePrices, runner *stubRunner, stamp *fakeStamp) (*MarketMonitor, *AnalysisGuard) {
	t.Helper()
	lgr := testLogger(t)
	guard := NewAnalysisGuard(runner, stamp, nil, lgr, nopMetrics{})
	mon := NewMarketMonitor(bands, prices, guard, nil, lgr, nopMetrics{})
	return mon, guard
}

func TestTickHardTouchRequestsRound(t *testing.T) {
	stop := 60000.0
	bands := newFakeBands(map[string]*models.AlertBand{
		"BTCUSDT": {Asset: "BTCUSDT", Side: models.SideLong, StopLoss: &stop},
	})
	prices := &fakePrices{prices: map[string]float64{"BTCUSDT": 59900}}
	runner := &stubRunner{}
	mon, _ := newMonitor(t, bands, prices, runner, &fakeStamp{})
	mon.SetConfig(testRunConfig())

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	waitUntil(t, func() bool { return runner.count() == 1 })
	req := runner.last()
	if req.Reason != models.ReasonHardTouch {
		t.Fatalf("reason = %s, want hard_touch", req.Reason)
	}
	if !strings.Contains(req.Detail, "stop_loss") {
		t.Fatalf("detail %q should name the crossed level", req.Detail)
	}
	if len(req.Assets) != 1 || req.Assets[0] != "BTCUSDT" {
		t.Fatalf("assets %v", req.Assets)
	}
}

func TestTickHardTouchBeatsNear(t *testing.T) {
	btcStop, ethStop := 60000.0, 3000.0
	bands := newFakeBands(map[string]*models.AlertBand{
		"BTCUSDT": {Asset: "BTCUSDT", Side: models.SideLong, StopLoss: &btcStop},
		"ETHUSDT": {Asset: "ETHUSDT", Side: models.SideLong, StopLoss: &ethStop},
	})
	// BTC sits 0.08% above its stop (near), ETH crossed its stop (hard)
	prices := &fakePrices{prices: map[string]float64{"BTCUSDT": 60050, "ETHUSDT": 2990}}
	runner := &stubRunner{}
	mon, _ := newMonitor(t, bands, prices, runner, &fakeStamp{})
	mon.SetConfig(testRunConfig("BTCUSDT", "ETHUSDT"))

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	waitUntil(t, func() bool { return runner.count() == 1 })
	req := runner.last()
	if req.Reason != models.ReasonHardTouch {
		t.Fatalf("reason = %s, want hard_touch", req.Reason)
	}
	if !strings.Contains(req.Detail, "ETHUSDT") {
		t.Fatalf("detail %q should name the hard-touched asset", req.Detail)
	}

	// two qualifying assets still produce a single round request
	time.Sleep(30 * time.Millisecond)
	if n := runner.count(); n != 1 {
		t.Fatalf("rounds requested = %d, want 1 per tick", n)
	}
}

func TestTickNearTouchAfterCooldown(t *testing.T) {
	stop := 60000.0
	bands := newFakeBands(map[string]*models.AlertBand{
		"BTCUSDT": {Asset: "BTCUSDT", Side: models.SideLong, StopLoss: &stop},
	})
	prices := &fakePrices{prices: map[string]float64{"BTCUSDT": 60050}}
	runner := &stubRunner{}
	stamp := &fakeStamp{loaded: time.Now().Add(-30 * time.Minute)}
	mon, guard := newMonitor(t, bands, prices, runner, stamp)
	guard.Restore(context.Background())
	mon.SetConfig(testRunConfig())

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	waitUntil(t, func() bool { return runner.count() == 1 })
	if req := runner.last(); req.Reason != models.ReasonNearTouch {
		t.Fatalf("reason = %s, want near_touch", req.Reason)
	}
}

func TestTickCooldownSuppressesNearAndStale(t *testing.T) {
	stop := 60000.0
	bands := newFakeBands(map[string]*models.AlertBand{
		"BTCUSDT": {Asset: "BTCUSDT", Side: models.SideLong, StopLoss: &stop},
	})
	prices := &fakePrices{prices: map[string]float64{"BTCUSDT": 60050}}
	runner := &stubRunner{}
	stamp := &fakeStamp{loaded: time.Now().Add(-10 * time.Minute)}
	mon, guard := newMonitor(t, bands, prices, runner, stamp)
	guard.Restore(context.Background())

	// staleness shorter than cooldown: if the suppressed near touch fell
	// through to the stale check, this tick would still fire a round
	cfg := testRunConfig()
	cfg.Cooldown = time.Hour
	cfg.Staleness = time.Minute
	mon.SetConfig(cfg)

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if n := runner.count(); n != 0 {
		t.Fatalf("rounds requested = %d, want cooldown suppression", n)
	}
}

func TestTickStaleWithoutTouches(t *testing.T) {
	runner := &stubRunner{}
	stamp := &fakeStamp{loaded: time.Now().Add(-5 * time.Hour)}
	mon, guard := newMonitor(t, newFakeBands(nil), &fakePrices{}, runner, stamp)
	guard.Restore(context.Background())
	mon.SetConfig(testRunConfig())

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	waitUntil(t, func() bool { return runner.count() == 1 })
	req := runner.last()
	if req.Reason != models.ReasonStale {
		t.Fatalf("reason = %s, want stale", req.Reason)
	}
	if !strings.Contains(req.Detail, "ago") {
		t.Fatalf("detail %q should say how old the last analysis is", req.Detail)
	}
}

func TestTickStaleWhenNeverAnalyzed(t *testing.T) {
	runner := &stubRunner{}
	mon, _ := newMonitor(t, newFakeBands(nil), &fakePrices{}, runner, &fakeStamp{})
	mon.SetConfig(testRunConfig())

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	waitUntil(t, func() bool { return runner.count() == 1 })
	req := runner.last()
	if req.Reason != models.ReasonStale {
		t.Fatalf("reason = %s, want stale", req.Reason)
	}
	if req.Detail != "no analysis completed yet" {
		t.Fatalf("detail %q", req.Detail)
	}
}

func TestTickFreshAnalysisStaysQuiet(t *testing.T) {
	runner := &stubRunner{}
	stamp := &fakeStamp{loaded: time.Now().Add(-time.Minute)}
	mon, guard := newMonitor(t, newFakeBands(nil), &fakePrices{}, runner, stamp)
	guard.Restore(context.Background())
	mon.SetConfig(testRunConfig())

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if n := runner.count(); n != 0 {
		t.Fatalf("rounds requested = %d, want none", n)
	}
}

func TestTickPriceFailureSkipsAsset(t *testing.T) {
	btcStop, ethStop := 60000.0, 3000.0
	bands := newFakeBands(map[string]*models.AlertBand{
		"BTCUSDT": {Asset: "BTCUSDT", Side: models.SideLong, StopLoss: &btcStop},
		"ETHUSDT": {Asset: "ETHUSDT", Side: models.SideLong, StopLoss: &ethStop},
	})
	prices := &fakePrices{
		prices: map[string]float64{"ETHUSDT": 2990},
		errs:   map[string]error{"BTCUSDT": errors.New("binance down")},
	}
	runner := &stubRunner{}
	mon, _ := newMonitor(t, bands, prices, runner, &fakeStamp{loaded: time.Now()})
	mon.SetConfig(testRunConfig("BTCUSDT", "ETHUSDT"))

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick should survive a failed price fetch: %v", err)
	}
	waitUntil(t, func() bool { return runner.count() == 1 })
	if req := runner.last(); !strings.Contains(req.Detail, "ETHUSDT") {
		t.Fatalf("detail %q, want the asset that still had a price", req.Detail)
	}
}

func TestTickBandStoreErrorFailsTick(t *testing.T) {
	bands := newFakeBands(nil)
	bands.listErr = errors.New("redis down")
	runner := &stubRunner{}
	mon, _ := newMonitor(t, bands, &fakePrices{}, runner, &fakeStamp{})
	mon.SetConfig(testRunConfig())

	if err := mon.Tick(context.Background()); err == nil {
		t.Fatalf("expected error when the band store is unreachable")
	}
	if n := runner.count(); n != 0 {
		t.Fatalf("rounds requested = %d after failed band load", n)
	}
}

func TestTickWithoutConfigIsNoop(t *testing.T) {
	bands := newFakeBands(nil)
	bands.listErr = errors.New("must not be called")
	mon, _ := newMonitor(t, bands, &fakePrices{}, &stubRunner{}, &fakeStamp{})

	if err := mon.Tick(context.Background()); err != nil {
		t.Fatalf("tick without assets: %v", err)
	}
}
