// Package dedup decides which discovered meets still need ingesting.
package dedup

import (
	"cmp"
	"slices"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// Filter drops meets whose SourceID is in existing, collapses repeated
// discoveries of one SourceID (the first seen wins), and orders the rest
// most recent first. Equal dates fall back to the larger SourceID first.
func Filter(discovered []xc.MeetSummary, existing map[int64]struct{}) []xc.MeetSummary {
	seen := make(map[int64]struct{}, len(discovered))
	out := make([]xc.MeetSummary, 0, len(discovered))
	for _, m := range discovered {
		if _, ok := existing[m.SourceID]; ok {
			continue
		}
		if _, ok := seen[m.SourceID]; ok {
			continue
		}
		seen[m.SourceID] = struct{}{}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b xc.MeetSummary) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.SourceID, a.SourceID)
	})
	return out
}

// Limit returns at most n meets from the head of meets. n <= 0 means no limit.
func Limit(meets []xc.MeetSummary, n int) []xc.MeetSummary {
	if n <= 0 || n >= len(meets) {
		return meets
	}
	return meets[:n]
}
