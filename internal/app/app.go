// Package app builds the long-lived services of one process from its
// configuration and runs ingestion with them.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/clock/system"
	"github.com/JakeFAU/xc-results-crawler/internal/config"
	"github.com/JakeFAU/xc-results-crawler/internal/directory"
	"github.com/JakeFAU/xc-results-crawler/internal/discovery"
	"github.com/JakeFAU/xc-results-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/xc-results-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/xc-results-crawler/internal/hash/sha256"
	"github.com/JakeFAU/xc-results-crawler/internal/id/uuid"
	"github.com/JakeFAU/xc-results-crawler/internal/parser"
	"github.com/JakeFAU/xc-results-crawler/internal/policy/ratelimit"
	pubsubmemory "github.com/JakeFAU/xc-results-crawler/internal/publisher/memory"
	"github.com/JakeFAU/xc-results-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/xc-results-crawler/internal/storage/gcs"
	"github.com/JakeFAU/xc-results-crawler/internal/storage/local"
	"github.com/JakeFAU/xc-results-crawler/internal/storage/memory"
	"github.com/JakeFAU/xc-results-crawler/internal/storage/postgres"
	"github.com/JakeFAU/xc-results-crawler/internal/storage/sqlite"
	"github.com/JakeFAU/xc-results-crawler/internal/worker"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// archiveDigestLength is the number of hex characters of the page digest
// used in archive object names.
const archiveDigestLength = 16

// Option customises New.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	clock     xc.Clock
}

// WithTransport sends every upstream request through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithClock replaces the wall clock.
func WithClock(c xc.Clock) Option {
	return func(o *options) { o.clock = c }
}

// App holds the shared services of one process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Fetcher  *collyfetcher.Fetcher
	Store    xc.Store
	Parser   *parser.Parser
	Ingester *Ingester
	Seeder   *directory.Seeder

	closers []func()
}

// New initialises every service cfg asks for and fails fast if one cannot
// start. Dry runs keep the store, archive and notifications in memory.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: system.New()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger.Named("app")}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Upstream.RatePerSecond,
		DefaultBurst: cfg.Upstream.Burst,
	})
	a.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Upstream.UserAgent,
		RespectRobots:  cfg.Upstream.RespectRobots,
		Timeout:        cfg.Upstream.Timeout,
		MaxConcurrency: cfg.Ingest.Concurrency,
		Transport:      o.transport,
	}, limiter, logger)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	blobStore, err := a.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.Parser = parser.New(logger)
	w := worker.New(
		a.Fetcher,
		a.Parser,
		a.Store,
		blobStore,
		publisher,
		sha256.New(archiveDigestLength),
		o.clock,
		worker.Config{
			BaseURL:     cfg.Upstream.BaseURL,
			ContentType: cfg.Archive.ContentType,
			BlobPrefix:  cfg.Archive.Prefix,
			Topic:       cfg.PubSub.Topic,
		},
		logger,
	)
	disc := discovery.New(a.Fetcher, discovery.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		PageStagger: cfg.Upstream.PageStagger,
	}, logger)
	a.Ingester = NewIngester(
		disc,
		a.Store,
		dispatcher.New(w, cfg.Ingest.Concurrency, logger),
		uuid.New(),
		o.clock,
		cfg.Ingest.MaxMeets,
		logger,
	)
	a.Seeder = directory.New(a.Fetcher, a.Store, cfg.Upstream.BaseURL, logger)

	a.logger.Info("application services initialized",
		zap.String("store", cfg.StoreDriver()),
		zap.String("archive", archiveDriver(cfg)),
		zap.Bool("dry_run", cfg.Ingest.DryRun),
		zap.Int("concurrency", cfg.Ingest.Concurrency),
	)
	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context) (xc.Store, error) {
	switch a.cfg.StoreDriver() {
	case config.StorePostgres:
		store, err := postgres.NewMeetStore(ctx, postgres.Config{
			DSN:             a.cfg.DB.DSN,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		if a.cfg.DB.Migrate {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("initialize postgres store: %w", err)
			}
		}
		return store, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(sqlite.Config{Path: a.cfg.SQLite.Path, Debug: a.cfg.SQLite.Debug}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		return memory.NewMeetStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func (a *App) openArchive(ctx context.Context) (xc.BlobStore, error) {
	switch archiveDriver(a.cfg) {
	case config.ArchiveNone:
		return nil, nil
	case "memory":
		return memory.NewBlobStore(), nil
	case config.ArchiveLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local archive: %w", err)
		}
		return store, nil
	case config.ArchiveGCS:
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: a.cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archive: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close gcs archive", zap.Error(err))
			}
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", a.cfg.Archive.Driver)
	}
}

func (a *App) openPublisher(ctx context.Context) (xc.Publisher, error) {
	if a.cfg.PubSub.Topic == "" {
		return nil, nil
	}
	if a.cfg.Ingest.DryRun {
		return pubsubmemory.New(), nil
	}
	pub, err := pubsub.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("close pubsub publisher", zap.Error(err))
		}
	})
	return pub, nil
}

// archiveDriver returns the archive actually used. Dry runs archive to
// memory whenever an archive is configured.
func archiveDriver(cfg config.Config) string {
	driver := cfg.Archive.Driver
	if driver == "" {
		driver = config.ArchiveNone
	}
	if cfg.Ingest.DryRun && driver != config.ArchiveNone {
		return "memory"
	}
	return driver
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
