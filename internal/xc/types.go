package xc

import "time"

// SportXC is the sport tag stored on every ingested meet.
const SportXC = "xc"

// Gender of a race or team.
type Gender string

// Gender values as stored upstream.
const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Level is the competition level embedded in a native team id.
type Level string

// Level values recognised in team ids.
const (
	LevelCollege  Level = "college"
	LevelJCollege Level = "jcollege"
)

// ClassYear is a canonical academic year.
type ClassYear string

// Canonical class years. ClassYearUnknown is used for empty or unrecognised input.
const (
	ClassYearFreshman  ClassYear = "FR"
	ClassYearSophomore ClassYear = "SO"
	ClassYearJunior    ClassYear = "JR"
	ClassYearSenior    ClassYear = "SR"
	ClassYearUnknown   ClassYear = "unknown"
)

// MeetSummary is one row of the upstream meet listing. It only decides what
// to fetch and is never persisted on its own.
type MeetSummary struct {
	SourceID int64     `json:"source_id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	State    string    `json:"state"`
}

// Meet is a fully parsed competition, written once per SourceID.
type Meet struct {
	SourceID   int64             `json:"source_id"`
	Name       string            `json:"name"`
	Date       time.Time         `json:"date"`
	State      string            `json:"state"`
	Sport      string            `json:"sport"`
	Location   *string           `json:"location,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Races      []Race            `json:"races"`
}

// Race is one scored event inside a meet.
type Race struct {
	SourceEventID  int64    `json:"source_event_id"`
	Name           string   `json:"name"`
	Gender         Gender   `json:"gender"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Results        []Result `json:"results"`
}

// Result is one finisher inside a race.
type Result struct {
	Place       *int      `json:"place,omitempty"`
	Score       *int      `json:"score,omitempty"`
	ClassYear   ClassYear `json:"class_year"`
	TimeSeconds *float64  `json:"time_seconds,omitempty"`
	Athlete     *Athlete  `json:"athlete,omitempty"`
	Team        *Team     `json:"team,omitempty"`
}

// Team is referenced by results and upserted by SourceID. State, Level and
// Gender are empty for foreign (non-native) teams.
type Team struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	State    string `json:"state,omitempty"`
	Level    Level  `json:"level,omitempty"`
	Gender   Gender `json:"gender,omitempty"`
}

// TeamKey holds the fields derived from a native team id.
type TeamKey struct {
	State  string
	Level  Level
	Gender Gender
}

// Athlete is referenced by results and upserted by SourceID.
type Athlete struct {
	SourceID int64  `json:"source_id"`
	Name     string `json:"name"`
}

// Conference is a league listed in the site directory.
type Conference struct {
	SourceID int64  `json:"source_id"`
	Name     string `json:"name"`
}

// ResultCount returns the number of results across all races.
func (m Meet) ResultCount() int {
	n := 0
	for _, r := range m.Races {
		n += len(r.Results)
	}
	return n
}
