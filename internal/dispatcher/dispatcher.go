// Package dispatcher runs the bounded worker pool over a batch of meets.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/metrics"
	"github.com/JakeFAU/xc-results-crawler/internal/queue/memory"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// Processor ingests a single meet. *worker.Worker satisfies it.
type Processor interface {
	Process(ctx context.Context, summary xc.MeetSummary) error
}

// Failure records one meet that could not be ingested.
type Failure struct {
	SourceID int64  `json:"source_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// Report summarises a Run. Skipped counts meets never attempted because
// the context was canceled.
type Report struct {
	Succeeded []int64   `json:"succeeded"`
	Failed    []Failure `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// Attempted returns the number of meets handed to a worker.
func (r Report) Attempted() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Dispatcher fans a fixed batch of meets out to a pool of workers.
type Dispatcher struct {
	processor Processor
	workers   int
	logger    *zap.Logger
}

// New creates a Dispatcher running the given number of workers.
func New(processor Processor, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		processor: processor,
		workers:   workers,
		logger:    logger.Named("dispatcher"),
	}
}

// Run attempts every meet at most once and blocks until the pool drains.
// A failing meet never stops the others. Once ctx is canceled, workers
// finish the meet they hold and take no new ones.
func (d *Dispatcher) Run(ctx context.Context, meets []xc.MeetSummary) Report {
	queue := memory.NewFilledQueue(meets)

	var (
		mu     sync.Mutex
		report Report
		wg     sync.WaitGroup
	)

	n := min(d.workers, len(meets))
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger := d.logger.With(zap.Int("worker_id", id))
			for {
				item, err := queue.Dequeue(ctx)
				if err != nil {
					if !errors.Is(err, memory.ErrClosed) {
						logger.Debug("worker stopping", zap.Error(err))
					}
					return
				}

				err = d.processor.Process(ctx, item)

				mu.Lock()
				if err != nil {
					failure := Failure{
						SourceID: item.SourceID,
						Name:     item.Name,
						Kind:     xc.ErrorKind(err),
						Reason:   err.Error(),
					}
					report.Failed = append(report.Failed, failure)
					mu.Unlock()
					metrics.ObserveMeet(failure.Kind)
					logger.Warn("meet failed",
						zap.Int64("meet_id", item.SourceID),
						zap.String("meet", item.Name),
						zap.String("kind", failure.Kind),
						zap.Error(err),
					)
					continue
				}
				report.Succeeded = append(report.Succeeded, item.SourceID)
				mu.Unlock()
				metrics.ObserveMeet("succeeded")
			}
		}(i)
	}
	wg.Wait()

	report.Skipped = queue.Len()
	if report.Skipped > 0 {
		d.logger.Warn("run canceled before all meets were attempted", zap.Int("skipped", report.Skipped))
	}
	return report
}
