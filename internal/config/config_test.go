package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
upstream:
  base_url: https://mirror.example.com
  user_agent: test-agent
  timeout: 45s
  rate_per_second: 2.5
  burst: 3
  respect_robots: false
  page_stagger: 250ms
ingest:
  concurrency: 4
  max_meets: 25
store:
  driver: sqlite
sqlite:
  path: /tmp/xc.db
archive:
  driver: gcs
  bucket: xc-pages
  prefix: raw
pubsub:
  project_id: proj
  topic: xc-meets
server:
  enabled: true
  addr: ":9090"
logging:
  development: false
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, "test-agent", cfg.Upstream.UserAgent)
	assert.Equal(t, 45*time.Second, cfg.Upstream.Timeout)
	assert.InDelta(t, 2.5, cfg.Upstream.RatePerSecond, 1e-9)
	assert.Equal(t, 3, cfg.Upstream.Burst)
	assert.False(t, cfg.Upstream.RespectRobots)
	assert.Equal(t, 250*time.Millisecond, cfg.Upstream.PageStagger)
	assert.Equal(t, IngestConfig{Concurrency: 4, MaxMeets: 25}, cfg.Ingest)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver())
	assert.Equal(t, "/tmp/xc.db", cfg.SQLite.Path)
	assert.Equal(t, ArchiveGCS, cfg.Archive.Driver)
	assert.Equal(t, "xc-pages", cfg.Archive.Bucket)
	assert.Equal(t, "text/html; charset=utf-8", cfg.Archive.ContentType)
	assert.Equal(t, PubSubConfig{ProjectID: "proj", Topic: "xc-meets"}, cfg.PubSub)
	assert.Equal(t, ServerConfig{Enabled: true, Addr: ":9090"}, cfg.Server)
	assert.Equal(t, LoggingConfig{Development: false, Level: "debug"}, cfg.Logging)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://www.tfrrs.org", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Upstream.PageStagger)
	assert.True(t, cfg.Upstream.RespectRobots)
	assert.Equal(t, 10, cfg.Ingest.Concurrency)
	assert.Zero(t, cfg.Ingest.MaxMeets)
	assert.Equal(t, ArchiveNone, cfg.Archive.Driver)
	assert.False(t, cfg.Server.Enabled)
}

// Environment overrides mutate process state, so this test is not parallel.
func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("XCCRAWLER_STORE_DRIVER", "postgres")
	t.Setenv("XCCRAWLER_DB_DSN", "postgres://xc@localhost/xc")
	t.Setenv("XCCRAWLER_INGEST_CONCURRENCY", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://xc@localhost/xc", cfg.DB.DSN)
	assert.Equal(t, 3, cfg.Ingest.Concurrency)
}

func TestLoadOverridesWin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\ningest:\n  concurrency: 8\n"), 0o600))

	cfg, err := Load(path,
		Override{Key: "ingest.concurrency", Value: 2},
		Override{Key: "ingest.max_meets", Value: 5},
		Override{Key: "ingest.dry_run", Value: true},
	)
	require.NoError(t, err)
	assert.Equal(t, IngestConfig{Concurrency: 2, MaxMeets: 5, DryRun: true}, cfg.Ingest)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestDryRunUsesMemoryStore(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DB.DSN = ""
	cfg.Ingest.DryRun = true
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreMemory, cfg.StoreDriver())
}

func validConfig() Config {
	return Config{
		Upstream: UpstreamConfig{BaseURL: "https://www.tfrrs.org", Timeout: time.Second},
		Ingest:   IngestConfig{Concurrency: 1},
		Store:    StoreConfig{Driver: StorePostgres},
		DB:       DBConfig{DSN: "postgres://localhost/xc"},
		Archive:  ArchiveConfig{Driver: ArchiveNone},
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.Upstream.BaseURL = "www.tfrrs.org" }, "upstream.base_url"},
		{"invalid timeout", func(c *Config) { c.Upstream.Timeout = 0 }, "upstream.timeout"},
		{"negative rate", func(c *Config) { c.Upstream.RatePerSecond = -1 }, "upstream.rate_per_second"},
		{"negative stagger", func(c *Config) { c.Upstream.PageStagger = -time.Second }, "upstream.page_stagger"},
		{"invalid concurrency", func(c *Config) { c.Ingest.Concurrency = 0 }, "ingest.concurrency"},
		{"negative max meets", func(c *Config) { c.Ingest.MaxMeets = -1 }, "ingest.max_meets"},
		{"postgres without dsn", func(c *Config) { c.DB.DSN = "" }, "db.dsn"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = StoreSQLite }, "sqlite.path"},
		{"unknown store", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"local archive without dir", func(c *Config) { c.Archive.Driver = ArchiveLocal }, "archive.base_dir"},
		{"gcs archive without bucket", func(c *Config) { c.Archive.Driver = ArchiveGCS }, "archive.bucket"},
		{"unknown archive", func(c *Config) { c.Archive.Driver = "s3" }, "archive.driver"},
		{"topic without project", func(c *Config) { c.PubSub.Topic = "xc-meets" }, "pubsub.project_id"},
		{"server without addr", func(c *Config) { c.Server.Enabled = true }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}

	require.NoError(t, validConfig().Validate())
}
