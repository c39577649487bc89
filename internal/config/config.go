// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig             `mapstructure:"crawl"`
	DB      DBConfig                `mapstructure:"db"`
	Archive ArchiveConfig           `mapstructure:"archive"`
	PubSub  PubSubConfig            `mapstructure:"pubsub"`
	Server  ServerConfig            `mapstructure:"server"`
	Logging LoggingConfig           `mapstructure:"logging"`
	Sources map[string]SourceConfig `mapstructure:"sources"`
}

// CrawlConfig governs the orchestration engine.
type CrawlConfig struct {
	MaxConcurrent       int `mapstructure:"max_concurrent"`
	MaxItemsPerSource   int `mapstructure:"max_items_per_source"`
	MaxRetries          int `mapstructure:"max_retries"`
	BackoffBaseMs       int `mapstructure:"backoff_base_ms"`
	BackoffMaxMs        int `mapstructure:"backoff_max_ms"`
	DequeueWaitMs       int `mapstructure:"dequeue_wait_ms"`
	ProgressEvery       int `mapstructure:"progress_every"`
	ProgressIntervalSec int `mapstructure:"progress_interval_seconds"`
	// ChunkSize is reserved for batch-oriented persistence.
	ChunkSize int `mapstructure:"chunk_size"`
}

// SourceConfig describes one remote catalog source.
type SourceConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	SitemapURL     string  `mapstructure:"sitemap_url"`
	CallsPerSecond float64 `mapstructure:"calls_per_second"`
	TimeoutSec     int     `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the Postgres sink. An empty DSN selects the
// in-memory sink, which is only suitable for development.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig selects the raw payload archive backend.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for ingest event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HISTORIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	v.SetDefault("crawl.max_concurrent", 50)
	v.SetDefault("crawl.max_items_per_source", 0)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.backoff_base_ms", 1000)
	v.SetDefault("crawl.backoff_max_ms", 60000)
	v.SetDefault("crawl.dequeue_wait_ms", 1000)
	v.SetDefault("crawl.progress_every", 100)
	v.SetDefault("crawl.progress_interval_seconds", 30)
	v.SetDefault("crawl.chunk_size", 100)
	v.SetDefault("db.table", "artworks")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("sources.met.base_url", "https://collectionapi.metmuseum.org/public/collection/v1/")
	v.SetDefault("sources.met.calls_per_second", 80)
	v.SetDefault("sources.met.timeout_seconds", 30)
	v.SetDefault("sources.louvre.base_url", "https://collections.louvre.fr/")
	v.SetDefault("sources.louvre.sitemap_url", "https://collections.louvre.fr/sitemap.xml")
	v.SetDefault("sources.louvre.calls_per_second", 80)
	v.SetDefault("sources.louvre.timeout_seconds", 30)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.MaxConcurrent <= 0 {
		return fmt.Errorf("crawl.max_concurrent must be > 0")
	}
	if c.Crawl.MaxRetries < 1 {
		return fmt.Errorf("crawl.max_retries must be >= 1")
	}
	if c.Crawl.MaxItemsPerSource < 0 {
		return fmt.Errorf("crawl.max_items_per_source must be >= 0")
	}
	if c.Crawl.DequeueWaitMs <= 0 {
		return fmt.Errorf("crawl.dequeue_wait_ms must be > 0")
	}
	switch c.Archive.Provider {
	case "noop", "memory", "gcs":
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	for name, src := range c.Sources {
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url must be set", name)
		}
		if src.CallsPerSecond <= 0 {
			return fmt.Errorf("sources.%s.calls_per_second must be > 0", name)
		}
	}
	return nil
}

// BackoffBase returns the first retry delay.
func (c CrawlConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c CrawlConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// DequeueWait returns the bounded wait used by worker dequeues. It also
// bounds shutdown latency: a signal is observed within roughly one interval.
func (c CrawlConfig) DequeueWait() time.Duration {
	return time.Duration(c.DequeueWaitMs) * time.Millisecond
}

// ProgressInterval returns the period between orchestrator progress summaries.
func (c CrawlConfig) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalSec) * time.Second
}

// Timeout returns the per-request timeout for a source's HTTP client.
func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSec) * time.Second
}
