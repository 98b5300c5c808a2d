package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

func TestTeamIDFromHref(t *testing.T) {
	t.Parallel()

	id, ok := TeamIDFromHref("https://www.tfrrs.org/teams/xc/CA_college_f_Stanford.html")
	require.True(t, ok)
	assert.Equal(t, "CA_college_f_Stanford", id)

	id, ok = TeamIDFromHref("//www.tfrrs.org/teams/xc/NY_jcollege_m_St_John%27s.html")
	require.True(t, ok)
	assert.Equal(t, "NY_jcollege_m_St_John%27s", id)

	id, ok = TeamIDFromHref("https://www.tfrrs.org/teams/Club-Runners.html")
	require.True(t, ok)
	assert.Equal(t, "Club-Runners", id)

	_, ok = TeamIDFromHref("https://www.directathletics.com/teams/xc/12345.html")
	assert.False(t, ok, "numeric ids are dropped")

	_, ok = TeamIDFromHref("")
	assert.False(t, ok)
}

func TestParseTeamID(t *testing.T) {
	t.Parallel()

	key, ok := ParseTeamID("CA_college_f_foo")
	require.True(t, ok)
	assert.Equal(t, xc.TeamKey{State: "CA", Level: xc.LevelCollege, Gender: xc.GenderFemale}, key)

	key, ok = ParseTeamID("TX_jcollege_m_Some_School")
	require.True(t, ok)
	assert.Equal(t, xc.TeamKey{State: "TX", Level: xc.LevelJCollege, Gender: xc.GenderMale}, key)

	for _, in := range []string{"", "Club-Runners", "ca_college_f_foo", "CA_highschool_f_foo", "CA_college_x_foo"} {
		_, ok := ParseTeamID(in)
		assert.False(t, ok, in)
	}
}

func TestNewTeam(t *testing.T) {
	t.Parallel()

	native := NewTeam("CA_college_f_foo", "  Foo\n University ")
	assert.Equal(t, xc.Team{
		SourceID: "CA_college_f_foo",
		Name:     "Foo University",
		State:    "CA",
		Level:    xc.LevelCollege,
		Gender:   xc.GenderFemale,
	}, native)

	foreign := NewTeam("Club-Runners", "Club Runners")
	assert.Equal(t, xc.Team{SourceID: "Club-Runners", Name: "Club Runners"}, foreign)
}

func TestAthleteIDFromHref(t *testing.T) {
	t.Parallel()

	id, ok := AthleteIDFromHref("https://www.tfrrs.org/athletes/7654321/Stanford/Jane_Doe.html")
	require.True(t, ok)
	assert.Equal(t, int64(7654321), id)

	id, ok = AthleteIDFromHref("//www.tfrrs.org/athletes/track/42.html")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = AthleteIDFromHref("https://www.tfrrs.org/athletes/abc/")
	assert.False(t, ok)
}

func TestMeetIDFromHref(t *testing.T) {
	t.Parallel()

	id, ok := MeetIDFromHref("https://www.tfrrs.org/results/xc/1001/Fall_Classic")
	require.True(t, ok)
	assert.Equal(t, int64(1001), id)

	id, ok = MeetIDFromHref("/results/xc/22")
	require.True(t, ok)
	assert.Equal(t, int64(22), id)

	_, ok = MeetIDFromHref("/results/tf/1001/Indoor")
	assert.False(t, ok)
}

func TestEventAndConferenceIDs(t *testing.T) {
	t.Parallel()

	id, ok := EventIDFromHref("#event123")
	require.True(t, ok)
	assert.Equal(t, int64(123), id)

	_, ok = EventIDFromHref("#team-scores")
	assert.False(t, ok)

	id, ok = ConferenceIDFromHref("https://www.tfrrs.org/leagues/49.html")
	require.True(t, ok)
	assert.Equal(t, int64(49), id)

	_, ok = ConferenceIDFromHref("https://www.tfrrs.org/leagues/abc.html")
	assert.False(t, ok)
}
