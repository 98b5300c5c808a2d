// Package memory provides the in-process work queue the scheduler drains.
package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// ErrClosed is returned by Dequeue once every item has been handed out.
var ErrClosed = errors.New("queue closed")

// Queue is an immutable batch of meets. It is filled and closed when
// built, so workers only ever drain it.
type Queue struct {
	ch chan xc.MeetSummary
}

// NewFilledQueue returns a closed queue holding items in order.
func NewFilledQueue(items []xc.MeetSummary) *Queue {
	ch := make(chan xc.MeetSummary, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return &Queue{ch: ch}
}

// Dequeue pops the next meet, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (xc.MeetSummary, error) {
	if err := ctx.Err(); err != nil {
		return xc.MeetSummary{}, fmt.Errorf("dequeue canceled: %w", err)
	}
	item, ok := <-q.ch
	if !ok {
		return xc.MeetSummary{}, ErrClosed
	}
	return item, nil
}

// Len reports the number of queued items not yet dequeued.
func (q *Queue) Len() int {
	return len(q.ch)
}
