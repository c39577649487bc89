package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  max_concurrent: 8
  max_items_per_source: 500
  max_retries: 5
  backoff_base_ms: 250
  backoff_max_ms: 4000
  dequeue_wait_ms: 200
  progress_every: 10
  progress_interval_seconds: 5
db:
  dsn: postgres://localhost/historium
  table: artworks_test
  max_conns: 2
archive:
  provider: gcs
  bucket: historium-raw
  prefix: payloads
pubsub:
  project_id: historium-dev
  topic_name: catalog-ingest
server:
  port: 9090
logging:
  development: false
sources:
  met:
    base_url: https://met.test/v1/
    calls_per_second: 10
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", cfg.Crawl.MaxConcurrent)
	}
	if cfg.Crawl.MaxItemsPerSource != 500 {
		t.Errorf("MaxItemsPerSource = %d, want 500", cfg.Crawl.MaxItemsPerSource)
	}
	if got := cfg.Crawl.BackoffBase(); got != 250*time.Millisecond {
		t.Errorf("BackoffBase() = %v, want 250ms", got)
	}
	if got := cfg.Crawl.DequeueWait(); got != 200*time.Millisecond {
		t.Errorf("DequeueWait() = %v, want 200ms", got)
	}
	if cfg.DB.Table != "artworks_test" {
		t.Errorf("DB.Table = %q", cfg.DB.Table)
	}
	if cfg.Archive.Provider != "gcs" || cfg.Archive.Bucket != "historium-raw" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if cfg.Logging.Development {
		t.Error("Logging.Development = true, want false")
	}
	met, ok := cfg.Sources["met"]
	if !ok {
		t.Fatal("expected met source")
	}
	if met.BaseURL != "https://met.test/v1/" || met.CallsPerSecond != 10 {
		t.Errorf("met source = %+v", met)
	}
	// Defaults survive partial overrides.
	if _, ok := cfg.Sources["louvre"]; !ok {
		t.Error("expected louvre defaults to remain")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.MaxConcurrent != 50 {
		t.Errorf("default MaxConcurrent = %d, want 50", cfg.Crawl.MaxConcurrent)
	}
	if cfg.Crawl.MaxRetries != 3 {
		t.Errorf("default MaxRetries = %d, want 3", cfg.Crawl.MaxRetries)
	}
	if cfg.Archive.Provider != "noop" {
		t.Errorf("default archive provider = %q, want noop", cfg.Archive.Provider)
	}
	if cfg.Server.Port != 0 {
		t.Errorf("default server port = %d, want 0 (disabled)", cfg.Server.Port)
	}
	if cfg.Sources["louvre"].SitemapURL == "" {
		t.Error("expected louvre sitemap default")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func(t *testing.T) Config {
		t.Helper()
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Crawl.MaxConcurrent = 0 },
			wantErr: "max_concurrent",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Crawl.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "unknown archive provider",
			mutate:  func(c *Config) { c.Archive.Provider = "s3" },
			wantErr: "archive provider",
		},
		{
			name: "gcs without bucket",
			mutate: func(c *Config) {
				c.Archive.Provider = "gcs"
				c.Archive.Bucket = ""
			},
			wantErr: "archive.bucket",
		},
		{
			name:    "topic without project",
			mutate:  func(c *Config) { c.PubSub.TopicName = "events" },
			wantErr: "pubsub.project_id",
		},
		{
			name: "source without rate",
			mutate: func(c *Config) {
				src := c.Sources["met"]
				src.CallsPerSecond = 0
				c.Sources["met"] = src
			},
			wantErr: "calls_per_second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
