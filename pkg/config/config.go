package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Instrument is the per-symbol configuration table entry. Pip sizing differs
// between instrument classes (0.0001 for FX majors, 0.01 for metals).
type Instrument struct {
	Symbol             string  `yaml:"symbol"`
	BasePrice          float64 `yaml:"base_price"`
	DailyRangePips     int     `yaml:"daily_range_pips"`
	SpreadPips         float64 `yaml:"spread_pips"`
	PipSize            float64 `yaml:"pip_size"`
	BreakThresholdPips int     `yaml:"break_threshold_pips"`
	TouchTolerancePips int     `yaml:"touch_tolerance_pips"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Feed struct {
		Mode string `yaml:"mode"` // simulator or live
		Seed int64  `yaml:"seed"`
	} `yaml:"feed"`
	Scheduler struct {
		M1Interval     time.Duration `yaml:"m1_interval"`
		M5Interval     time.Duration `yaml:"m5_interval"`
		M30Interval    time.Duration `yaml:"m30_interval"`
		RetentionDays  int           `yaml:"retention_days"`
		StorageTimeout time.Duration `yaml:"storage_timeout"`
	} `yaml:"scheduler"`
	Instruments []Instrument `yaml:"instruments"`
	Signals     struct {
		StopBufferPips int     `yaml:"stop_buffer_pips"`
		Target1RR      float64 `yaml:"target1_rr"`
		Target2RR      float64 `yaml:"target2_rr"`
		MinMomentum    float64 `yaml:"min_momentum"`
	} `yaml:"signals"`
	News struct {
		URL           string        `yaml:"url"`
		Timeout       time.Duration `yaml:"timeout"`
		WithinMinutes int           `yaml:"within_minutes"`
	} `yaml:"news"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		BatchSize    int           `yaml:"batch_size"`
		Linger       time.Duration `yaml:"linger"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxAttempts  int           `yaml:"max_attempts"`
		Consumer     struct {
			CandlesTopic string        `yaml:"candles_topic"`
			GroupID      string        `yaml:"group_id"`
			Workers      int           `yaml:"workers"`
			BufferSize   int           `yaml:"buffer_size"`
			RetryMax     int           `yaml:"retry_max"`
			BackoffMin   time.Duration `yaml:"backoff_min"`
			BackoffMax   time.Duration `yaml:"backoff_max"`
			DLQTopic     string        `yaml:"dlq_topic"`
			MinBytes     int           `yaml:"min_bytes"`
			MaxBytes     int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Broker struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"broker"`
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

	c.applyDefaults()

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

	if v := os.Getenv("FEED_MODE"); v != "" {
		c.Feed.Mode = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Scheduler.M1Interval <= 0 {
		c.Scheduler.M1Interval = time.Minute
	}
	if c.Scheduler.M5Interval <= 0 {
		c.Scheduler.M5Interval = 5 * time.Minute
	}
	if c.Scheduler.M30Interval <= 0 {
		c.Scheduler.M30Interval = 30 * time.Minute
	}
	if c.Scheduler.RetentionDays <= 0 {
		c.Scheduler.RetentionDays = 30
	}
	if c.Scheduler.StorageTimeout <= 0 {
		c.Scheduler.StorageTimeout = 5 * time.Second
	}
	if c.Signals.StopBufferPips <= 0 {
		c.Signals.StopBufferPips = 5
	}
	if c.Signals.Target1RR <= 0 {
		c.Signals.Target1RR = 1.5
	}
	if c.Signals.Target2RR <= 0 {
		c.Signals.Target2RR = 2.5
	}
	if c.Signals.MinMomentum <= 0 {
		c.Signals.MinMomentum = 0.6
	}
	if c.News.WithinMinutes <= 0 {
		c.News.WithinMinutes = 120
	}
	if c.News.Timeout <= 0 {
		c.News.Timeout = 3 * time.Second
	}
	for i := range c.Instruments {
		in := &c.Instruments[i]
		if in.PipSize <= 0 {
			in.PipSize = 0.0001
		}
		if in.BreakThresholdPips <= 0 {
			in.BreakThresholdPips = 8
		}
		if in.TouchTolerancePips <= 0 {
			in.TouchTolerancePips = 3
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Feed.Mode != "simulator" && c.Feed.Mode != "live" {
		return fmt.Errorf("feed.mode must be 'simulator' or 'live', got '%s'", c.Feed.Mode)
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments cannot be empty")
	}
	for _, in := range c.Instruments {
		if in.Symbol == "" || len(in.Symbol) > 10 {
			return fmt.Errorf("instrument symbol '%s' invalid", in.Symbol)
		}
		if in.BasePrice <= 0 {
			return fmt.Errorf("instrument %s base_price must be positive", in.Symbol)
		}
		if in.DailyRangePips <= 0 {
			return fmt.Errorf("instrument %s daily_range_pips must be positive", in.Symbol)
		}
	}
	if c.Feed.Mode == "live" && c.Broker.WebSocketURL == "" {
		return fmt.Errorf("broker.websocket_url is required in live mode")
	}
	return nil
}

// Instrument returns the config entry for a symbol, false if unsupported.
func (c *Config) Instrument(symbol string) (Instrument, bool) {
	for _, in := range c.Instruments {
		if in.Symbol == symbol {
			return in, true
		}
	}
	return Instrument{}, false
}

// Symbols lists the configured instrument symbols.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Instruments))
	for _, in := range c.Instruments {
		out = append(out, in.Symbol)
	}
	return out
}
