package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

func meetWithTeam(id int64, team xc.Team, athlete xc.Athlete) xc.Meet {
	place := 1
	secs := 900.0
	return xc.Meet{
		SourceID: id,
		Name:     "Meet",
		Date:     time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
		Races: []xc.Race{{
			SourceEventID: id * 10,
			Name:          "Women 6K",
			Gender:        xc.GenderFemale,
			Results: []xc.Result{{
				Place:       &place,
				TimeSeconds: &secs,
				ClassYear:   xc.ClassYearJunior,
				Team:        &team,
				Athlete:     &athlete,
			}},
		}},
	}
}

func TestMeetStoreCreateAndList(t *testing.T) {
	t.Parallel()

	store := NewMeetStore()
	ctx := context.Background()
	team := xc.Team{SourceID: "CA_college_f_Foo", Name: "Foo", State: "CA", Level: xc.LevelCollege, Gender: xc.GenderFemale}

	require.NoError(t, store.CreateMeet(ctx, meetWithTeam(1001, team, xc.Athlete{SourceID: 1, Name: "A"})))
	ids, err := store.MeetSourceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{1001: {}}, ids)

	m, ok := store.Meet(1001)
	require.True(t, ok)
	assert.Equal(t, xc.SportXC, m.Sport)
}

func TestMeetStoreIsolatesStoredMeetFromCallers(t *testing.T) {
	t.Parallel()

	store := NewMeetStore()
	loc := "Golf Course"
	meet := meetWithTeam(1001, xc.Team{SourceID: "CA_college_f_Foo", Name: "Foo"}, xc.Athlete{SourceID: 1, Name: "A"})
	meet.Location = &loc
	meet.Attributes = map[string]string{"Host": "Foo"}
	require.NoError(t, store.CreateMeet(context.Background(), meet))

	meet.Attributes["Host"] = "Bar"
	loc = "Track"
	*meet.Races[0].Results[0].TimeSeconds = 1
	meet.Races[0].Results[0].Team.Name = "Renamed"

	got, ok := store.Meet(1001)
	require.True(t, ok)
	assert.Equal(t, "Foo", got.Attributes["Host"])
	assert.Equal(t, "Golf Course", *got.Location)
	assert.InDelta(t, 900.0, *got.Races[0].Results[0].TimeSeconds, 0)
	assert.Equal(t, "Foo", got.Races[0].Results[0].Team.Name)

	// Readers get copies too.
	got.Attributes["Host"] = "Baz"
	again, _ := store.Meet(1001)
	assert.Equal(t, "Foo", again.Attributes["Host"])
}

func TestMeetStoreDuplicateMeetIsWriteError(t *testing.T) {
	t.Parallel()

	store := NewMeetStore()
	ctx := context.Background()
	team := xc.Team{SourceID: "CA_college_f_Foo", Name: "Foo"}
	require.NoError(t, store.CreateMeet(ctx, meetWithTeam(1001, team, xc.Athlete{SourceID: 1, Name: "A"})))

	err := store.CreateMeet(ctx, meetWithTeam(1001, team, xc.Athlete{SourceID: 2, Name: "B"}))
	assert.Equal(t, "write", xc.ErrorKind(err))
	_, _, athletes, _ := store.Counts()
	assert.Equal(t, 1, athletes, "a rejected meet writes nothing")
}

func TestMeetStoreConnectsExistingTeamWithoutOverwrite(t *testing.T) {
	t.Parallel()

	store := NewMeetStore()
	ctx := context.Background()
	original := xc.Team{SourceID: "CA_college_f_Foo", Name: "Foo University", State: "CA", Level: xc.LevelCollege, Gender: xc.GenderFemale}
	n, err := store.UpsertTeams(ctx, []xc.Team{original})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	renamed := original
	renamed.Name = "Foo"
	require.NoError(t, store.CreateMeet(ctx, meetWithTeam(1001, renamed, xc.Athlete{SourceID: 1, Name: "A"})))

	_, teams, _, _ := store.Counts()
	assert.Equal(t, 1, teams)
	got, _ := store.Team("CA_college_f_Foo")
	assert.Equal(t, "Foo University", got.Name)

	m, _ := store.Meet(1001)
	assert.Equal(t, "Foo University", m.Races[0].Results[0].Team.Name)
}

func TestMeetStoreUpsertConferencesIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMeetStore()
	confs := []xc.Conference{{SourceID: 1, Name: "Pac-12"}, {SourceID: 2, Name: "Big Ten"}}
	n, err := store.UpsertConferences(context.Background(), confs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.UpsertConferences(context.Background(), confs)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMeetStoreCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMeetStore().CreateMeet(ctx, xc.Meet{SourceID: 1})
	var writeErr *xc.WriteError
	require.ErrorAs(t, err, &writeErr)
}
