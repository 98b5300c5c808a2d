package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// MeetStore is a mutex-guarded xc.Store. A CreateMeet either applies in
// full under the lock or not at all.
type MeetStore struct {
	mu          sync.RWMutex
	meets       map[int64]xc.Meet
	teams       map[string]xc.Team
	athletes    map[int64]xc.Athlete
	conferences map[int64]xc.Conference
}

var _ xc.Store = (*MeetStore)(nil)

// NewMeetStore constructs an empty MeetStore.
func NewMeetStore() *MeetStore {
	return &MeetStore{
		meets:       make(map[int64]xc.Meet),
		teams:       make(map[string]xc.Team),
		athletes:    make(map[int64]xc.Athlete),
		conferences: make(map[int64]xc.Conference),
	}
}

// MeetSourceIDs returns the SourceID of every stored meet.
func (s *MeetStore) MeetSourceIDs(context.Context) (map[int64]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]struct{}, len(s.meets))
	for id := range s.meets {
		out[id] = struct{}{}
	}
	return out, nil
}

// CreateMeet stores meet. Known teams and athletes keep their stored
// fields and the meet's results point at the stored rows.
func (s *MeetStore) CreateMeet(ctx context.Context, meet xc.Meet) error {
	if err := ctx.Err(); err != nil {
		return &xc.WriteError{SourceID: meet.SourceID, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.meets[meet.SourceID]; exists {
		return &xc.WriteError{SourceID: meet.SourceID, Err: fmt.Errorf("meet %d already ingested", meet.SourceID)}
	}
	if meet.Sport == "" {
		meet.Sport = xc.SportXC
	}

	stored := cloneMeet(meet)
	for i := range stored.Races {
		for j := range stored.Races[i].Results {
			r := &stored.Races[i].Results[j]
			if r.Team != nil {
				team := s.connectTeam(*r.Team)
				r.Team = &team
			}
			if r.Athlete != nil {
				athlete := s.connectAthlete(*r.Athlete)
				r.Athlete = &athlete
			}
		}
	}
	s.meets[meet.SourceID] = stored
	return nil
}

// cloneMeet deep-copies m so the store shares no map, slice or pointer
// with callers.
func cloneMeet(m xc.Meet) xc.Meet {
	out := m
	out.Attributes = maps.Clone(m.Attributes)
	out.Location = clonePtr(m.Location)
	if m.Races == nil {
		return out
	}
	out.Races = make([]xc.Race, len(m.Races))
	for i, race := range m.Races {
		race.DistanceMeters = clonePtr(race.DistanceMeters)
		if race.Results == nil {
			out.Races[i] = race
			continue
		}
		results := make([]xc.Result, len(race.Results))
		for j, r := range race.Results {
			r.Place = clonePtr(r.Place)
			r.Score = clonePtr(r.Score)
			r.TimeSeconds = clonePtr(r.TimeSeconds)
			r.Team = clonePtr(r.Team)
			r.Athlete = clonePtr(r.Athlete)
			results[j] = r
		}
		race.Results = results
		out.Races[i] = race
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (s *MeetStore) connectTeam(team xc.Team) xc.Team {
	if existing, ok := s.teams[team.SourceID]; ok {
		return existing
	}
	s.teams[team.SourceID] = team
	return team
}

func (s *MeetStore) connectAthlete(athlete xc.Athlete) xc.Athlete {
	if existing, ok := s.athletes[athlete.SourceID]; ok {
		return existing
	}
	s.athletes[athlete.SourceID] = athlete
	return athlete
}

// UpsertTeams inserts unknown teams and returns how many were new.
func (s *MeetStore) UpsertTeams(_ context.Context, teams []xc.Team) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, t := range teams {
		if _, ok := s.teams[t.SourceID]; ok {
			continue
		}
		s.teams[t.SourceID] = t
		inserted++
	}
	return inserted, nil
}

// UpsertConferences inserts unknown conferences and returns how many were new.
func (s *MeetStore) UpsertConferences(_ context.Context, conferences []xc.Conference) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, c := range conferences {
		if _, ok := s.conferences[c.SourceID]; ok {
			continue
		}
		s.conferences[c.SourceID] = c
		inserted++
	}
	return inserted, nil
}

// Close is a no-op.
func (s *MeetStore) Close() {}

// Meet returns the stored meet with the given SourceID.
func (s *MeetStore) Meet(sourceID int64) (xc.Meet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meets[sourceID]
	if !ok {
		return xc.Meet{}, false
	}
	return cloneMeet(m), true
}

// Team returns the stored team with the given SourceID.
func (s *MeetStore) Team(sourceID string) (xc.Team, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[sourceID]
	return t, ok
}

// Counts reports the number of stored meets, teams, athletes and conferences.
func (s *MeetStore) Counts() (meets, teams, athletes, conferences int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meets), len(s.teams), len(s.athletes), len(s.conferences)
}
