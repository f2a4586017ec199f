package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"MarkWatch/pkg/logger"
)

type fetchPayload struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

func TestParsePayloadFromRawMessage(t *testing.T) {
	raw := json.RawMessage(`{"symbol":"BTCUSDT","interval":"1h","limit":200}`)

	got, err := ParsePayload[fetchPayload](raw)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if got.Symbol != "BTCUSDT" || got.Interval != "1h" || got.Limit != 200 {
		t.Errorf("got %+v", got)
	}
}

func TestParsePayloadFromTypedValue(t *testing.T) {
	want := fetchPayload{Symbol: "ETHUSDT", Interval: "5m", Limit: 50}

	got, err := ParsePayload[fetchPayload](want)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if *got != want {
		t.Errorf("value: got %+v want %+v", *got, want)
	}

	got, err = ParsePayload[fetchPayload](&want)
	if err != nil {
		t.Fatalf("pointer: %v", err)
	}
	if got != &want {
		t.Errorf("pointer payload should pass through unchanged")
	}
}

func TestParsePayloadFromMap(t *testing.T) {
	// json.Unmarshal into interface{} produces this shape.
	m := map[string]interface{}{
		"symbol":   "SOLUSDT",
		"interval": "15m",
		"limit":    float64(100),
	}

	got, err := ParsePayload[fetchPayload](m)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if got.Symbol != "SOLUSDT" || got.Limit != 100 {
		t.Errorf("got %+v", got)
	}
}

func TestParsePayloadRejectsUnknownType(t *testing.T) {
	if _, err := ParsePayload[fetchPayload](42); err == nil {
		t.Fatal("expected error for int payload")
	}
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	lgr, err := logger.New(&logger.Config{Level: "fatal", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	q := NewRedisQueue(lgr, &QueueConfig{RetryDelay: time.Second}, nil, ModeProducerOnly)

	err = q.Enqueue(context.Background(), "kline.fetch", fetchPayload{Symbol: "BTCUSDT"})
	if err == nil {
		t.Fatal("expected error before Start")
	}
	if !strings.Contains(err.Error(), "not running") {
		t.Errorf("unexpected error: %v", err)
	}
}
