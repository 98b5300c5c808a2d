package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/clock/system"
	"github.com/JakeFAU/xc-results-crawler/internal/dispatcher"
	"github.com/JakeFAU/xc-results-crawler/internal/storage/memory"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

type fakeDiscoverer struct {
	meets []xc.MeetSummary
	err   error
}

func (f fakeDiscoverer) Discover(context.Context) ([]xc.MeetSummary, error) {
	return f.meets, f.err
}

type fixedIDs struct{ n int }

func (f *fixedIDs) NewID() (string, error) {
	f.n++
	return fmt.Sprintf("run-%d", f.n), nil
}

// storingProcessor writes a one-result meet per summary, failing the ids in fail.
type storingProcessor struct {
	store xc.Store
	fail  map[int64]error
}

func (p storingProcessor) Process(ctx context.Context, s xc.MeetSummary) error {
	if err := p.fail[s.SourceID]; err != nil {
		return err
	}
	place := 1
	secs := 1000.0
	return p.store.CreateMeet(ctx, xc.Meet{
		SourceID: s.SourceID,
		Name:     s.Name,
		Date:     s.Date,
		Sport:    xc.SportXC,
		Races: []xc.Race{{
			SourceEventID: s.SourceID * 10,
			Name:          "Men 8K",
			Gender:        xc.GenderMale,
			Results: []xc.Result{{
				Place:       &place,
				TimeSeconds: &secs,
				ClassYear:   xc.ClassYearSenior,
				Team:        &xc.Team{SourceID: "CA_college_m_foo", Name: "Foo"},
				Athlete:     &xc.Athlete{SourceID: 77, Name: "Shared Runner"},
			}},
		}},
	})
}

func summaries(ids ...int64) []xc.MeetSummary {
	out := make([]xc.MeetSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, xc.MeetSummary{
			SourceID: id,
			Name:     fmt.Sprintf("Meet %d", id),
			Date:     time.Date(2023, 10, int(id%28)+1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func newTestIngester(disc Discoverer, store xc.Store, proc dispatcher.Processor, maxMeets int) *Ingester {
	clock := system.Fixed(time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC))
	return NewIngester(disc, store, dispatcher.New(proc, 3, zap.NewNop()), &fixedIDs{}, clock, maxMeets, zap.NewNop())
}

func TestIngesterRunIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewMeetStore()
	ing := newTestIngester(fakeDiscoverer{meets: summaries(1, 2, 3, 2)}, store, storingProcessor{store: store}, 0)

	first, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, 3, first.Discovered)
	assert.Zero(t, first.AlreadyIngested)
	assert.Equal(t, 3, first.Scheduled)
	assert.Equal(t, 3, first.Succeeded)
	assert.Empty(t, first.Failed)

	meets, teams, athletes, _ := store.Counts()
	require.Equal(t, []int{3, 1, 1}, []int{meets, teams, athletes})

	second, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, second.AlreadyIngested)
	assert.Zero(t, second.Scheduled)
	assert.Zero(t, second.Succeeded)

	meets2, teams2, athletes2, _ := store.Counts()
	assert.Equal(t, []int{meets, teams, athletes}, []int{meets2, teams2, athletes2})

	last, ok := ing.LastSummary()
	require.True(t, ok)
	assert.Equal(t, "run-2", last.RunID)
}

func TestIngesterOnlyNewMeetsScheduled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewMeetStore()
	proc := storingProcessor{store: store}
	require.NoError(t, proc.Process(ctx, summaries(1001)[0]))
	require.NoError(t, proc.Process(ctx, summaries(1003)[0]))

	ing := newTestIngester(fakeDiscoverer{meets: summaries(1001, 1002, 1003, 1004)}, store, proc, 0)
	s, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Discovered)
	assert.Equal(t, 2, s.AlreadyIngested)
	assert.Equal(t, 2, s.Scheduled)
	assert.Equal(t, 2, s.Succeeded)

	ids, err := store.MeetSourceIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestIngesterRecordsFailures(t *testing.T) {
	t.Parallel()

	store := memory.NewMeetStore()
	proc := storingProcessor{store: store, fail: map[int64]error{
		2: &xc.FetchError{URL: "https://www.tfrrs.org/results/xc/2", StatusCode: 404, Err: errors.New("Not Found")},
	}}
	ing := newTestIngester(fakeDiscoverer{meets: summaries(1, 2, 3)}, store, proc, 0)

	s, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Succeeded)
	require.Len(t, s.Failed, 1)
	assert.Equal(t, int64(2), s.Failed[0].SourceID)
	assert.Equal(t, "fetch", s.Failed[0].Kind)
}

func TestIngesterMaxMeetsTakesMostRecent(t *testing.T) {
	t.Parallel()

	store := memory.NewMeetStore()
	ing := newTestIngester(fakeDiscoverer{meets: summaries(1, 5, 3, 4)}, store, storingProcessor{store: store}, 2)

	s, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, s.Discovered)
	assert.Equal(t, 2, s.Scheduled)

	ids, err := store.MeetSourceIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{5: {}, 4: {}}, ids)
}

func TestIngesterDiscoveryFailureAborts(t *testing.T) {
	t.Parallel()

	store := memory.NewMeetStore()
	ing := newTestIngester(fakeDiscoverer{err: errors.New("listing down")}, store, storingProcessor{store: store}, 0)

	_, err := ing.Run(context.Background())
	require.Error(t, err)
	_, ok := ing.LastSummary()
	assert.False(t, ok)
}

func TestIngesterCanceledRunSkipsEverything(t *testing.T) {
	t.Parallel()

	store := memory.NewMeetStore()
	ing := newTestIngester(fakeDiscoverer{meets: summaries(1, 2, 3)}, store, storingProcessor{store: store}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Scheduled)
	assert.Zero(t, s.Succeeded)
	assert.Equal(t, 3, s.Skipped+len(s.Failed))
}
