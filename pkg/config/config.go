package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"markwatch"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"markwatch"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			MarkPrices string `yaml:"mark_prices" default:"markwatch.mark_prices"`
			Rounds     string `yaml:"rounds" default:"markwatch.rounds"`
			Logs       string `yaml:"logs" default:"markwatch.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID         string        `yaml:"group_id" default:"markwatch-history"`
			AutoOffsetReset string        `yaml:"auto_offset_reset" default:"earliest"`
			Workers         int           `yaml:"workers" default:"2"`
			BufferSize      int           `yaml:"buffer_size" default:"1000"`
			RetryMax        int           `yaml:"retry_max" default:"3"`
			BackoffMin      time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax      time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes" default:"1"`
			MaxBytes        int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Exchange struct {
		APIKey         string        `yaml:"api_key"`
		SecretKey      string        `yaml:"secret_key"`
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://fstream.binance.com/ws"`
		UseTestnet     bool          `yaml:"use_testnet"`
		RequestsPerSec float64       `yaml:"requests_per_sec" default:"8"`
		Burst          int           `yaml:"burst" default:"16"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"exchange"`
	Pipeline struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"10m"`
	} `yaml:"pipeline"`
	News struct {
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout" default:"15s"`
		PageSize int           `yaml:"page_size" default:"50"`
	} `yaml:"news"`
	Queue struct {
		Name       string        `yaml:"name" default:"markwatch:fetch"`
		Workers    int           `yaml:"workers" default:"4"`
		QueueSize  int           `yaml:"queue_size" default:"256"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"queue"`
	Scheduler struct {
		Autostart   bool     `yaml:"autostart"`
		Assets      []string `yaml:"assets"`
		Capital     float64  `yaml:"capital" default:"1000"`
		LeverageMin int      `yaml:"leverage_min" default:"1"`
		LeverageMax int      `yaml:"leverage_max" default:"5"`
		Monitor     struct {
			TickPeriod       time.Duration `yaml:"tick_period" default:"60s"`
			NearThresholdPct float64       `yaml:"near_threshold_pct" default:"0.002"`
			Cooldown         time.Duration `yaml:"cooldown" default:"900s"`
			Staleness        time.Duration `yaml:"staleness" default:"14400s"`
		} `yaml:"monitor"`
		Jobs struct {
			MarketData time.Duration `yaml:"market_data" default:"900s"`
			Newsflash  time.Duration `yaml:"newsflash" default:"900s"`
			Articles   time.Duration `yaml:"articles" default:"3600s"`
			Longform   time.Duration `yaml:"longform" default:"86400s"`
		} `yaml:"jobs"`
		KlineIntervals []string `yaml:"kline_intervals"`
		KlineLimit     int      `yaml:"kline_limit" default:"200"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill zero-valued fields from the default tags before validating.
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Exchange.SecretKey = v
	}
	if v := os.Getenv("PIPELINE_URL"); v != "" {
		c.Pipeline.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ASSETS"); v != "" {
		c.Scheduler.Assets = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Scheduler.Assets) == 0 {
		return fmt.Errorf("scheduler.assets cannot be empty")
	}
	if c.Scheduler.Monitor.NearThresholdPct <= 0 || c.Scheduler.Monitor.NearThresholdPct >= 1 {
		return fmt.Errorf("scheduler.monitor.near_threshold_pct must be in (0, 1), got %v", c.Scheduler.Monitor.NearThresholdPct)
	}
	if c.Scheduler.Monitor.TickPeriod <= 0 {
		return fmt.Errorf("scheduler.monitor.tick_period must be positive")
	}
	if c.Scheduler.Monitor.Cooldown <= 0 || c.Scheduler.Monitor.Staleness <= 0 {
		return fmt.Errorf("scheduler.monitor cooldown and staleness must be positive")
	}
	if c.Scheduler.Monitor.Staleness < c.Scheduler.Monitor.Cooldown {
		return fmt.Errorf("scheduler.monitor.staleness %v below cooldown %v",
			c.Scheduler.Monitor.Staleness, c.Scheduler.Monitor.Cooldown)
	}
	if c.Scheduler.LeverageMin < 1 || c.Scheduler.LeverageMax < c.Scheduler.LeverageMin {
		return fmt.Errorf("scheduler leverage bounds invalid: min=%d max=%d", c.Scheduler.LeverageMin, c.Scheduler.LeverageMax)
	}
	if c.Pipeline.BaseURL == "" {
		return fmt.Errorf("pipeline.base_url is required")
	}
	if len(c.Scheduler.KlineIntervals) == 0 {
		c.Scheduler.KlineIntervals = []string{"1h", "4h"}
	}
	return nil
}
