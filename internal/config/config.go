// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DEPTHCRAWL_CRAWLER_WORKERS.
const EnvPrefix = "DEPTHCRAWL"

// Fetcher kinds.
const (
	FetcherColly    = "colly"
	FetcherHeadless = "headless"
)

// Frontier backends.
const (
	FrontierMemory = "memory"
	FrontierRedis  = "redis"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"seed":      "crawler.seed",
	"max-depth": "crawler.max_depth",
	"workers":   "crawler.workers",
	"frontier":  "frontier.backend",
	"fetcher":   "fetcher.kind",
	"serve":     "server.addr",
	"log-level": "logging.level",
}

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Frontier FrontierConfig `mapstructure:"frontier"`
	Progress ProgressConfig `mapstructure:"progress"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl itself and the worker pool.
type CrawlerConfig struct {
	Seed          string `mapstructure:"seed"`
	MaxDepth      int    `mapstructure:"max_depth"`
	Workers       int    `mapstructure:"workers"`
	QueueCapacity int    `mapstructure:"queue_capacity"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Kind                string        `mapstructure:"kind"`
	UserAgent           string        `mapstructure:"user_agent"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxBodyBytes        int           `mapstructure:"max_body_bytes"`
	HeadlessMaxParallel int           `mapstructure:"headless_max_parallel"`
	HeadlessNavTimeout  time.Duration `mapstructure:"headless_nav_timeout"`

	// Headers are sent with every request. Keys are case-insensitive.
	Headers map[string]string `mapstructure:"headers"`
}

// FrontierConfig selects where claimed addresses live.
type FrontierConfig struct {
	Backend       string        `mapstructure:"backend"`
	Shards        int           `mapstructure:"shards"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ProgressConfig tunes the progress event hub and its sinks.
type ProgressConfig struct {
	BufferSize  int           `mapstructure:"buffer_size"`
	BatchEvents int           `mapstructure:"batch_events"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
	Lines       bool          `mapstructure:"lines"`
}

// ServerConfig controls the optional ops HTTP server. An empty Addr
// disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file at path, DEPTHCRAWL_*
// environment variables and any changed flags in flags, in increasing order
// of precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seed", "")
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.workers", 8)
	v.SetDefault("crawler.queue_capacity", 0)
	v.SetDefault("fetcher.kind", FetcherColly)
	v.SetDefault("fetcher.user_agent", "depthcrawl/0.1")
	v.SetDefault("fetcher.timeout", 15*time.Second)
	v.SetDefault("fetcher.max_body_bytes", 10<<20)
	v.SetDefault("fetcher.headless_max_parallel", 2)
	v.SetDefault("fetcher.headless_nav_timeout", 45*time.Second)
	v.SetDefault("frontier.backend", FrontierMemory)
	v.SetDefault("frontier.shards", 32)
	v.SetDefault("frontier.redis_addr", "localhost:6379")
	v.SetDefault("frontier.redis_password", "")
	v.SetDefault("frontier.redis_db", 0)
	v.SetDefault("frontier.key_prefix", "depthcrawl:frontier:")
	v.SetDefault("frontier.ttl", 24*time.Hour)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.batch_events", 256)
	v.SetDefault("progress.batch_wait", 100*time.Millisecond)
	v.SetDefault("progress.lines", true)
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits. The seed itself
// is validated when the crawl starts.
func (c Config) Validate() error {
	var errs []error
	if c.Crawler.MaxDepth < 0 {
		errs = append(errs, errors.New("crawler.max_depth must be >= 0"))
	}
	if c.Crawler.Workers <= 0 {
		errs = append(errs, errors.New("crawler.workers must be > 0"))
	}
	if c.Crawler.QueueCapacity < 0 {
		errs = append(errs, errors.New("crawler.queue_capacity must be >= 0"))
	}
	switch c.Fetcher.Kind {
	case FetcherColly:
	case FetcherHeadless:
		if c.Fetcher.HeadlessMaxParallel <= 0 {
			errs = append(errs, errors.New("fetcher.headless_max_parallel must be > 0 for the headless fetcher"))
		}
	default:
		errs = append(errs, fmt.Errorf("fetcher.kind must be %q or %q, got %q", FetcherColly, FetcherHeadless, c.Fetcher.Kind))
	}
	if c.Fetcher.Timeout <= 0 {
		errs = append(errs, errors.New("fetcher.timeout must be > 0"))
	}
	switch c.Frontier.Backend {
	case FrontierMemory:
	case FrontierRedis:
		if c.Frontier.RedisAddr == "" {
			errs = append(errs, errors.New("frontier.redis_addr must be set for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("frontier.backend must be %q or %q, got %q", FrontierMemory, FrontierRedis, c.Frontier.Backend))
	}
	if c.Progress.BufferSize <= 0 {
		errs = append(errs, errors.New("progress.buffer_size must be > 0"))
	}
	return errors.Join(errs...)
}
