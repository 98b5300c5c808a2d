// Package config loads and validates ingestion configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// XCCRAWLER_DB_DSN sets db.dsn.
const EnvPrefix = "XCCRAWLER"

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Archive drivers.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Store    StoreConfig    `mapstructure:"store"`
	DB       DBConfig       `mapstructure:"db"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// UpstreamConfig describes the results site and how politely to fetch it.
type UpstreamConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	PageStagger   time.Duration `mapstructure:"page_stagger"`
}

// IngestConfig governs the scheduler.
type IngestConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	MaxMeets    int  `mapstructure:"max_meets"`
	DryRun      bool `mapstructure:"dry_run"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// SQLiteConfig points at the local database file.
type SQLiteConfig struct {
	Path  string `mapstructure:"path"`
	Debug bool   `mapstructure:"debug"`
}

// ArchiveConfig controls where raw meet pages are kept.
type ArchiveConfig struct {
	Driver      string `mapstructure:"driver"`
	BaseDir     string `mapstructure:"base_dir"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for ingest notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the status and metrics HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Override sets Key to Value with the highest precedence, above the file
// and the environment. Command-line flags use it.
type Override struct {
	Key   string
	Value any
}

// Load builds a Config from defaults, an optional file, the environment and
// overrides, in increasing order of precedence.
func Load(path string, overrides ...Override) (Config, error) {
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
	for _, o := range overrides {
		v.Set(o.Key, o.Value)
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
	v.SetDefault("upstream.base_url", "https://www.tfrrs.org")
	v.SetDefault("upstream.user_agent", "xccrawler/0.1 (+https://github.com/JakeFAU/xc-results-crawler)")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.rate_per_second", 0.0)
	v.SetDefault("upstream.burst", 1)
	v.SetDefault("upstream.respect_robots", true)
	v.SetDefault("upstream.page_stagger", 100*time.Millisecond)
	v.SetDefault("ingest.concurrency", 10)
	v.SetDefault("ingest.max_meets", 0)
	v.SetDefault("ingest.dry_run", false)
	v.SetDefault("store.driver", StorePostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.migrate", true)
	v.SetDefault("sqlite.path", "xc.db")
	v.SetDefault("sqlite.debug", false)
	v.SetDefault("archive.driver", ArchiveNone)
	v.SetDefault("archive.base_dir", "archive")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}
	if c.Upstream.RatePerSecond < 0 {
		return fmt.Errorf("upstream.rate_per_second must be >= 0")
	}
	if c.Upstream.PageStagger < 0 {
		return fmt.Errorf("upstream.page_stagger must be >= 0")
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be > 0")
	}
	if c.Ingest.MaxMeets < 0 {
		return fmt.Errorf("ingest.max_meets must be >= 0")
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.DB.DSN == "" && !c.Ingest.DryRun {
			return fmt.Errorf("db.dsn must be set when store.driver is postgres")
		}
	case StoreSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path must be set when store.driver is sqlite")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.driver must be one of postgres, sqlite, memory (got %q)", c.Store.Driver)
	}

	switch c.Archive.Driver {
	case ArchiveNone, "":
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.driver is local")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.driver is gcs")
		}
	default:
		return fmt.Errorf("archive.driver must be one of none, local, gcs (got %q)", c.Archive.Driver)
	}

	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set when the server is enabled")
	}
	return nil
}

// StoreDriver returns the driver actually used. Dry runs never touch a
// persistent store.
func (c Config) StoreDriver() string {
	if c.Ingest.DryRun {
		return StoreMemory
	}
	return c.Store.Driver
}
