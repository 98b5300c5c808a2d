package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// Identifier patterns. Each extractor documents its fallback.
var (
	teamHrefPattern       = regexp.MustCompile(`/([\w\-%]+)\.html`)
	teamIDPattern         = regexp.MustCompile(`^([A-Z]{2})_(j?college)_([mf])_.+`)
	athleteHrefPattern    = regexp.MustCompile(`athletes(?:/track)?/(\d+)(?:\.html|/)`)
	meetHrefPattern       = regexp.MustCompile(`/xc/(\d+)(?:/|\.html|$)`)
	conferenceHrefPattern = regexp.MustCompile(`/leagues/(\d+)\.html`)
	numericID             = regexp.MustCompile(`^\d+$`)
)

// TeamIDFromHref returns the team id embedded as the file name of a team
// link, e.g. ".../teams/xc/CA_college_f_Stanford.html". Purely numeric ids
// belong to another results provider and cannot be resolved, so they report
// false just like links without an id.
func TeamIDFromHref(href string) (string, bool) {
	matches := teamHrefPattern.FindAllStringSubmatch(href, -1)
	if len(matches) == 0 {
		return "", false
	}
	id := matches[len(matches)-1][1]
	if numericID.MatchString(id) {
		return "", false
	}
	return id, true
}

// ParseTeamID derives state, level and gender from a native team id of the
// form "<ST>_<college|jcollege>_<m|f>_<name>". Foreign ids report false.
func ParseTeamID(id string) (xc.TeamKey, bool) {
	m := teamIDPattern.FindStringSubmatch(id)
	if m == nil {
		return xc.TeamKey{}, false
	}
	return xc.TeamKey{
		State:  m[1],
		Level:  xc.Level(m[2]),
		Gender: xc.Gender(strings.ToUpper(m[3])),
	}, true
}

// NewTeam builds a Team from its id and display name. Foreign ids keep the
// raw id with empty derived fields.
func NewTeam(id, name string) xc.Team {
	team := xc.Team{SourceID: id, Name: CollapseSpace(name)}
	if key, ok := ParseTeamID(id); ok {
		team.State = key.State
		team.Level = key.Level
		team.Gender = key.Gender
	}
	return team
}

// AthleteIDFromHref returns the numeric athlete id of an athlete link.
func AthleteIDFromHref(href string) (int64, bool) {
	return firstInt(athleteHrefPattern, href)
}

// MeetIDFromHref returns the numeric meet id of an XC results link.
func MeetIDFromHref(href string) (int64, bool) {
	return firstInt(meetHrefPattern, href)
}

// ConferenceIDFromHref returns the numeric id of a league link.
func ConferenceIDFromHref(href string) (int64, bool) {
	return firstInt(conferenceHrefPattern, href)
}

// EventIDFromHref reads the event id of a quick link such as "#event123".
func EventIDFromHref(href string) (int64, bool) {
	raw := strings.TrimPrefix(strings.TrimSpace(href), "#")
	raw = strings.TrimPrefix(raw, "event")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func firstInt(pattern *regexp.Regexp, s string) (int64, bool) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
