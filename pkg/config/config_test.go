package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
environment: test
pipeline:
  base_url: http://localhost:8100
scheduler:
  assets: [BTCUSDT]
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Server.Port != 8080 {
		t.Errorf("server port %d", c.Server.Port)
	}
	if c.Logger.Level != "info" || c.Logger.Format != "console" {
		t.Errorf("logger defaults %+v", c.Logger)
	}
	if c.Redis.Addr != "localhost:6379" || c.Redis.Prefix != "markwatch" {
		t.Errorf("redis defaults %+v", c.Redis)
	}
	if c.Kafka.Topics.MarkPrices != "markwatch.mark_prices" || c.Kafka.Topics.Rounds != "markwatch.rounds" {
		t.Errorf("kafka topics %+v", c.Kafka.Topics)
	}
	if c.Scheduler.Capital != 1000 || c.Scheduler.LeverageMin != 1 || c.Scheduler.LeverageMax != 5 {
		t.Errorf("scheduler defaults %+v", c.Scheduler)
	}
	if c.Scheduler.Monitor.TickPeriod != 60*time.Second {
		t.Errorf("tick period %v", c.Scheduler.Monitor.TickPeriod)
	}
	if c.Scheduler.Monitor.Cooldown != 900*time.Second || c.Scheduler.Monitor.Staleness != 14400*time.Second {
		t.Errorf("monitor windows %+v", c.Scheduler.Monitor)
	}
	if c.Scheduler.Jobs.Longform != 86400*time.Second {
		t.Errorf("longform period %v", c.Scheduler.Jobs.Longform)
	}
	if c.Queue.Workers != 4 || c.Queue.Name != "markwatch:fetch" {
		t.Errorf("queue defaults %+v", c.Queue)
	}
	// validate backfills the interval list when the file omits it
	if len(c.Scheduler.KlineIntervals) == 0 {
		t.Errorf("kline intervals not backfilled")
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: production
server:
  port: 9999
pipeline:
  base_url: http://pipeline:8100
scheduler:
  assets: [ethusdt, BTCUSDT]
  capital: 2500
  kline_intervals: [5m, 1h]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9999 {
		t.Errorf("port %d overridden by default", c.Server.Port)
	}
	if c.Scheduler.Capital != 2500 {
		t.Errorf("capital %v overridden by default", c.Scheduler.Capital)
	}
	if n := len(c.Scheduler.KlineIntervals); n != 2 {
		t.Errorf("kline intervals %v", c.Scheduler.KlineIntervals)
	}
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing environment", `
pipeline:
  base_url: http://localhost:8100
scheduler:
  assets: [BTCUSDT]
`},
		{"missing assets", `
environment: test
pipeline:
  base_url: http://localhost:8100
`},
		{"missing pipeline url", `
environment: test
scheduler:
  assets: [BTCUSDT]
`},
		{"near threshold out of range", `
environment: test
pipeline:
  base_url: http://localhost:8100
scheduler:
  assets: [BTCUSDT]
  monitor:
    near_threshold_pct: 1.5
`},
		{"inverted leverage bounds", `
environment: test
pipeline:
  base_url: http://localhost:8100
scheduler:
  assets: [BTCUSDT]
  leverage_min: 10
`},
	}
	for _, c := range cases {
		if _, err := Load(writeConfig(t, c.body)); err == nil {
			t.Errorf("%s: accepted", c.name)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
	if _, err := Load(writeConfig(t, "environment: [broken")); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key-from-env")
	t.Setenv("BINANCE_SECRET_KEY", "secret-from-env")
	t.Setenv("REDIS_ADDR", "redis-prod:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ASSETS", "SOLUSDT,XRPUSDT")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Exchange.APIKey != "key-from-env" || c.Exchange.SecretKey != "secret-from-env" {
		t.Errorf("exchange creds %+v", c.Exchange)
	}
	if c.Redis.Addr != "redis-prod:6379" {
		t.Errorf("redis addr %s", c.Redis.Addr)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[0] != "k1:9092" {
		t.Errorf("brokers %v", c.Kafka.Brokers)
	}
	if len(c.Scheduler.Assets) != 2 || c.Scheduler.Assets[0] != "SOLUSDT" {
		t.Errorf("assets %v", c.Scheduler.Assets)
	}
}
