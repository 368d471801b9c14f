package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"10000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level        string `yaml:"level" default:"info"`
		Format       string `yaml:"format" default:"console"`
		Output       string `yaml:"output" default:"stdout"`
		CollectTopic string `yaml:"collect_topic"`
	} `yaml:"log"`
	Finnhub struct {
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url" default:"https://finnhub.io/api/v1"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
		RatePerSec float64       `yaml:"rate_per_sec" default:"25"`
		Burst      int           `yaml:"burst" default:"5"`
		Breaker    struct {
			MaxRequests         uint32        `yaml:"max_requests" default:"3"`
			Interval            time.Duration `yaml:"interval" default:"60s"`
			Timeout             time.Duration `yaml:"timeout" default:"30s"`
			ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"10"`
		} `yaml:"breaker"`
	} `yaml:"finnhub"`
	Gates struct {
		PriceMax             float64  `yaml:"price_max" default:"30"`
		FloatMax             float64  `yaml:"float_max" default:"150000000"`
		EnforceFloatGate     bool     `yaml:"enforce_float_gate"`
		VolumeSharesGate     int64    `yaml:"volume_shares_gate" default:"2000000"`
		FallbackVolGate      float64  `yaml:"fallback_vol_gate" default:"300000"`
		FallbackAllowPct     float64  `yaml:"fallback_allow_pct" default:"0.003"`
		TriggerPct           float64  `yaml:"trigger_pct" default:"0.02"`
		RealCatalystKeywords []string `yaml:"real_catalyst_keywords" default:"[\"earnings\",\"guidance\",\"m&a\",\"acquisition\",\"merger\",\"takeover\",\"13d\",\"13g\",\"insider\",\"buyback\",\"repurchase\",\"contract\",\"partnership\",\"deal\"]"`
		SpeculativeKeywords  []string `yaml:"speculative_keywords" default:"[\"strategic review\",\"pipeline\",\"explore options\"]"`
	} `yaml:"gates"`
	Universe struct {
		SymbolFiles   []string `yaml:"symbol_files" default:"[\"https://ftp.nasdaqtrader.com/dynamic/SymDir/nasdaqlisted.txt\",\"https://ftp.nasdaqtrader.com/dynamic/SymDir/otherlisted.txt\"]"`
		MaxCandidates int      `yaml:"max_candidates" default:"1200"`
		MaxLiquid     int      `yaml:"max_liquid" default:"600"`
		BatchSize     int      `yaml:"batch_size" default:"180"`
		LookbackDays  int      `yaml:"lookback_days" default:"10"`
	} `yaml:"universe"`
	Scan struct {
		Concurrency int           `yaml:"concurrency" default:"8"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"30m"`
	} `yaml:"scan"`
	News struct {
		MaxHeadlines int           `yaml:"max_headlines" default:"15"`
		Lookback     time.Duration `yaml:"lookback" default:"72h"`
	} `yaml:"news"`
	Board struct {
		StaleAfter time.Duration `yaml:"stale_after" default:"15m"`
		MaxRows    int           `yaml:"max_rows"`
	} `yaml:"board"`
	Schedule struct {
		ScanInterval     time.Duration `yaml:"scan_interval" default:"15m"`
		UniverseInterval time.Duration `yaml:"universe_interval" default:"24h"`
		ScanOnStart      bool          `yaml:"scan_on_start"`
	} `yaml:"schedule"`
	Cache struct {
		ProfileTTL time.Duration `yaml:"profile_ttl" default:"24h"`
		NewsTTL    time.Duration `yaml:"news_ttl" default:"10m"`
		CandlesTTL time.Duration `yaml:"candles_ttl" default:"1h"`
		MemorySize    int           `yaml:"memory_size" default:"5000"`
		MemoryCleanup time.Duration `yaml:"memory_cleanup" default:"5m"`
		L1TTL         time.Duration `yaml:"l1_ttl" default:"1m"`
		Redis         struct {
			Enabled     bool          `yaml:"enabled"`
			Host        string        `yaml:"host" default:"localhost"`
			Port        int           `yaml:"port" default:"6379"`
			Password    string        `yaml:"password"`
			DB          int           `yaml:"db"`
			Prefix      string        `yaml:"prefix" default:"finscan"`
			PoolSize    int           `yaml:"pool_size" default:"10"`
			MinIdle     int           `yaml:"min_idle" default:"5"`
			PoolTimeout time.Duration `yaml:"pool_timeout" default:"30s"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"finscan.board"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"finscan"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async" default:"true"`
		MaxExecTime  time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// LoadDefault returns a configuration populated only from struct defaults.
func LoadDefault() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := LoadDefault()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (when present), overrides with environment
// variables and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		c, err = LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		c.Finnhub.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, err := splitHostPort(v)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Host = host
		c.Cache.Redis.Port = port
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCAN_INTERVAL: %w", err)
		}
		c.Schedule.ScanInterval = d
	}
	if v := os.Getenv("UNIVERSE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("UNIVERSE_INTERVAL: %w", err)
		}
		c.Schedule.UniverseInterval = d
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if c.Finnhub.RatePerSec <= 0 {
		return fmt.Errorf("finnhub.rate_per_sec must be positive")
	}
	if c.Gates.PriceMax <= 0 {
		return fmt.Errorf("gates.price_max must be positive")
	}
	if c.Gates.TriggerPct <= 0 {
		return fmt.Errorf("gates.trigger_pct must be positive")
	}
	if c.Universe.BatchSize <= 0 {
		return fmt.Errorf("universe.batch_size must be positive")
	}
	if c.Universe.MaxLiquid > c.Universe.MaxCandidates {
		return fmt.Errorf("universe.max_liquid (%d) cannot exceed universe.max_candidates (%d)",
			c.Universe.MaxLiquid, c.Universe.MaxCandidates)
	}
	if len(c.Universe.SymbolFiles) == 0 {
		return fmt.Errorf("universe.symbol_files cannot be empty")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	return nil
}

// splitHostPort accepts host, host:port, [v6] and [v6]:port; the port
// defaults to 6379.
func splitHostPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		var aerr *net.AddrError
		if errors.As(err, &aerr) && aerr.Err == "missing port in address" {
			return strings.Trim(addr, "[]"), 6379, nil
		}
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
