package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/dedup"
	"github.com/JakeFAU/xc-results-crawler/internal/dispatcher"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// Discoverer lists the meets currently published upstream.
type Discoverer interface {
	Discover(ctx context.Context) ([]xc.MeetSummary, error)
}

// Scheduler ingests a batch of meets under a concurrency cap.
type Scheduler interface {
	Run(ctx context.Context, meets []xc.MeetSummary) dispatcher.Report
}

// SourceIDLister reports which meets are already stored.
type SourceIDLister interface {
	MeetSourceIDs(ctx context.Context) (map[int64]struct{}, error)
}

// Summary describes one ingestion run.
type Summary struct {
	RunID           string               `json:"run_id"`
	StartedAt       time.Time            `json:"started_at"`
	FinishedAt      time.Time            `json:"finished_at"`
	Discovered      int                  `json:"discovered"`
	AlreadyIngested int                  `json:"already_ingested"`
	Scheduled       int                  `json:"scheduled"`
	Succeeded       int                  `json:"succeeded"`
	Failed          []dispatcher.Failure `json:"failed"`
	Skipped         int                  `json:"skipped"`
}

// Ingester runs discovery, dedup and scheduled ingestion in order.
type Ingester struct {
	discoverer Discoverer
	store      SourceIDLister
	scheduler  Scheduler
	ids        xc.IDGenerator
	clock      xc.Clock
	maxMeets   int
	logger     *zap.Logger

	mu   sync.RWMutex
	last *Summary
}

// NewIngester constructs an Ingester. maxMeets <= 0 schedules every new meet.
func NewIngester(
	discoverer Discoverer,
	store SourceIDLister,
	scheduler Scheduler,
	ids xc.IDGenerator,
	clock xc.Clock,
	maxMeets int,
	logger *zap.Logger,
) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		discoverer: discoverer,
		store:      store,
		scheduler:  scheduler,
		ids:        ids,
		clock:      clock,
		maxMeets:   maxMeets,
		logger:     logger.Named("ingest"),
	}
}

// Run performs one ingestion pass. Only a failed first listing page or an
// unreadable store aborts the run; per-meet failures land in the summary.
func (i *Ingester) Run(ctx context.Context) (Summary, error) {
	runID, err := i.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	summary := Summary{RunID: runID, StartedAt: i.clock.Now()}
	logger := i.logger.With(zap.String("run_id", runID))

	discovered, err := i.discoverer.Discover(ctx)
	if err != nil {
		return summary, fmt.Errorf("discover meets: %w", err)
	}
	existing, err := i.store.MeetSourceIDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("list ingested meets: %w", err)
	}

	pending := dedup.Filter(discovered, existing)
	summary.Discovered = uniqueCount(discovered)
	summary.AlreadyIngested = summary.Discovered - len(pending)
	pending = dedup.Limit(pending, i.maxMeets)
	summary.Scheduled = len(pending)
	logger.Info("ingestion scheduled",
		zap.Int("discovered", summary.Discovered),
		zap.Int("already_ingested", summary.AlreadyIngested),
		zap.Int("scheduled", summary.Scheduled),
	)

	report := i.scheduler.Run(ctx, pending)
	summary.Succeeded = len(report.Succeeded)
	summary.Failed = report.Failed
	summary.Skipped = report.Skipped
	summary.FinishedAt = i.clock.Now()

	i.logSummary(logger, summary)
	i.mu.Lock()
	i.last = &summary
	i.mu.Unlock()
	return summary, nil
}

// LastSummary returns the most recent completed run, if any.
func (i *Ingester) LastSummary() (Summary, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.last == nil {
		return Summary{}, false
	}
	return *i.last, true
}

func (i *Ingester) logSummary(logger *zap.Logger, s Summary) {
	for _, f := range s.Failed {
		logger.Warn("meet failed",
			zap.Int64("meet_id", f.SourceID),
			zap.String("meet", f.Name),
			zap.String("kind", f.Kind),
			zap.String("reason", f.Reason),
		)
	}
	logger.Info("ingestion finished",
		zap.Int("discovered", s.Discovered),
		zap.Int("already_ingested", s.AlreadyIngested),
		zap.Int("scheduled", s.Scheduled),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", len(s.Failed)),
		zap.Int("skipped", s.Skipped),
		zap.Duration("duration", s.FinishedAt.Sub(s.StartedAt)),
	)
}

func uniqueCount(meets []xc.MeetSummary) int {
	seen := make(map[int64]struct{}, len(meets))
	for _, m := range meets {
		seen[m.SourceID] = struct{}{}
	}
	return len(seen)
}
