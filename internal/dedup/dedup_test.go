package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

func day(d int) time.Time {
	return time.Date(2023, 10, d, 0, 0, 0, 0, time.UTC)
}

func thirtyMeets() []xc.MeetSummary {
	meets := make([]xc.MeetSummary, 0, 30)
	for i := 0; i < 30; i++ {
		meets = append(meets, xc.MeetSummary{SourceID: int64(1001 + i), Date: day(1 + i%28)})
	}
	return meets
}

func ids(meets []xc.MeetSummary) []int64 {
	out := make([]int64, 0, len(meets))
	for _, m := range meets {
		out = append(out, m.SourceID)
	}
	return out
}

func TestFilterEmptyStoreKeepsAllOrdered(t *testing.T) {
	t.Parallel()

	got := Filter(thirtyMeets(), map[int64]struct{}{})
	require.Len(t, got, 30)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		assert.False(t, cur.Date.After(prev.Date), "dates must not increase")
		if cur.Date.Equal(prev.Date) {
			assert.Less(t, cur.SourceID, prev.SourceID)
		}
	}
	// Days 27 and 28 appear once, days 1 and 2 twice (ids 1001/1029, 1002/1030).
	assert.Equal(t, int64(1028), got[0].SourceID)
	assert.Equal(t, []int64{1029, 1001}, ids(got[28:]))
}

func TestFilterDropsExisting(t *testing.T) {
	t.Parallel()

	got := Filter(thirtyMeets(), map[int64]struct{}{1001: {}})
	require.Len(t, got, 29)
	assert.NotContains(t, ids(got), int64(1001))
}

func TestFilterCollapsesDuplicateDiscoveries(t *testing.T) {
	t.Parallel()

	discovered := []xc.MeetSummary{
		{SourceID: 7, Name: "first", Date: day(3)},
		{SourceID: 8, Date: day(4)},
		{SourceID: 7, Name: "again", Date: day(3)},
	}
	got := Filter(discovered, nil)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{8, 7}, ids(got))
	assert.Equal(t, "first", got[1].Name)
}

func TestFilterIsIdempotentAgainstIngested(t *testing.T) {
	t.Parallel()

	discovered := thirtyMeets()
	existing := make(map[int64]struct{})
	for _, m := range discovered {
		existing[m.SourceID] = struct{}{}
	}
	assert.Empty(t, Filter(discovered, existing))
}

func TestLimit(t *testing.T) {
	t.Parallel()

	meets := thirtyMeets()
	assert.Len(t, Limit(meets, 0), 30)
	assert.Len(t, Limit(meets, 50), 30)
	assert.Equal(t, ids(meets[:5]), ids(Limit(meets, 5)))
}
