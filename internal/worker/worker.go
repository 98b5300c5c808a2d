// Package worker implements the per-meet ingestion pipeline.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/metrics"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// MeetParser turns a fetched results page into a Meet.
type MeetParser interface {
	Parse(summary xc.MeetSummary, body []byte) (xc.Meet, error)
}

// Config controls Worker behavior.
type Config struct {
	BaseURL     string
	ContentType string
	BlobPrefix  string
	Topic       string
}

// Worker fetches, parses and persists one meet at a time. The archive
// and the publisher are optional; their failures are logged, not returned.
type Worker struct {
	fetcher   xc.Fetcher
	parser    MeetParser
	store     xc.Store
	blobStore xc.BlobStore
	publisher xc.Publisher
	hasher    xc.Hasher
	clock     xc.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. blobStore, publisher and hasher may be nil.
func New(
	fetcher xc.Fetcher,
	parser MeetParser,
	store xc.Store,
	blobStore xc.BlobStore,
	publisher xc.Publisher,
	hasher xc.Hasher,
	clock xc.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Worker{
		fetcher:   fetcher,
		parser:    parser,
		store:     store,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("worker"),
	}
}

// MeetURL returns the results page URL of a meet.
func (w *Worker) MeetURL(sourceID int64) string {
	return fmt.Sprintf("%s/results/xc/%d", w.cfg.BaseURL, sourceID)
}

// Process ingests one meet. The returned error carries the failure class
// (*xc.FetchError, *xc.ParseError or *xc.WriteError).
func (w *Worker) Process(ctx context.Context, summary xc.MeetSummary) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.Int64("meet_id", summary.SourceID), zap.String("meet", summary.Name))
	url := w.MeetURL(summary.SourceID)
	start := time.Now()

	body, err := w.fetcher.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch meet page: %w", err)
	}

	meet, err := w.parser.Parse(summary, body)
	if err != nil {
		return fmt.Errorf("parse meet page: %w", err)
	}

	w.archive(ctx, summary.SourceID, body, logger)

	if err := w.store.CreateMeet(ctx, meet); err != nil {
		return fmt.Errorf("store meet: %w", err)
	}
	metrics.ObserveResultsIngested(meet.ResultCount())

	w.publish(ctx, meet, logger)

	logger.Info("meet ingested",
		zap.String("url", url),
		zap.Int("races", len(meet.Races)),
		zap.Int("results", meet.ResultCount()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (w *Worker) buildBlobPath(sourceID int64, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("meets/%d/%s.html", sourceID, hash)
	}
	return fmt.Sprintf("%s/meets/%d/%s.html", prefix, sourceID, hash)
}

func (w *Worker) archive(ctx context.Context, sourceID int64, body []byte, logger *zap.Logger) {
	if w.blobStore == nil || w.hasher == nil {
		return
	}
	hash, err := w.hasher.Hash(body)
	if err != nil {
		logger.Warn("hash meet page failed", zap.Error(err))
		return
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(sourceID, hash), w.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		logger.Warn("archive meet page failed", zap.Error(err))
		return
	}
	logger.Debug("meet page archived", zap.String("blob_uri", uri))
}

func (w *Worker) publish(ctx context.Context, meet xc.Meet, logger *zap.Logger) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"event":     "meet.ingested",
		"meet_id":   meet.SourceID,
		"name":      meet.Name,
		"date":      meet.Date.Format(time.DateOnly),
		"state":     meet.State,
		"races":     len(meet.Races),
		"results":   meet.ResultCount(),
		"timestamp": w.now().Format(time.RFC3339),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, payload)
	if err != nil {
		logger.Warn("publish meet.ingested failed", zap.String("topic", w.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("meet.ingested published", zap.String("topic", w.cfg.Topic), zap.String("message_id", id))
}

func (w *Worker) now() time.Time {
	if w.clock == nil {
		return time.Now().UTC()
	}
	return w.clock.Now()
}
