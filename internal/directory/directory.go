// Package directory seeds teams and conferences from the upstream site's
// navigation autocomplete script.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/normalize"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

const scriptPath = "/js/navbar_autocomplete.js"

var (
	teamsPattern       = regexp.MustCompile(`(?s)var autocomplete_teams = (\[.+?\]);`)
	conferencesPattern = regexp.MustCompile(`(?s)var autocomplete_conferences = (\[.+?\]);`)
	// Object keys in the script are bare identifiers; quote them so the
	// arrays decode as JSON.
	bareKeyPattern = regexp.MustCompile(`([{,]\s*)(url|text)\s*:`)
)

type entry struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Store is the subset of xc.Store the seeder writes to.
type Store interface {
	UpsertTeams(ctx context.Context, teams []xc.Team) (int, error)
	UpsertConferences(ctx context.Context, conferences []xc.Conference) (int, error)
}

// Result summarises one seeding run.
type Result struct {
	TeamsFound          int `json:"teams_found"`
	TeamsInserted       int `json:"teams_inserted"`
	ConferencesFound    int `json:"conferences_found"`
	ConferencesInserted int `json:"conferences_inserted"`
}

// Seeder fetches the directory script and upserts what it lists.
type Seeder struct {
	fetcher xc.Fetcher
	store   Store
	baseURL string
	logger  *zap.Logger
}

// New constructs a Seeder.
func New(fetcher xc.Fetcher, store Store, baseURL string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		fetcher: fetcher,
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("directory"),
	}
}

// ScriptURL returns the location of the autocomplete script.
func (s *Seeder) ScriptURL() string {
	return s.baseURL + scriptPath
}

// Seed inserts every team and conference not yet stored. Stored rows are
// never modified.
func (s *Seeder) Seed(ctx context.Context) (Result, error) {
	body, err := s.fetcher.Get(ctx, s.ScriptURL())
	if err != nil {
		return Result{}, fmt.Errorf("fetch directory script: %w", err)
	}
	teams, conferences, err := Parse(body)
	if err != nil {
		return Result{}, err
	}

	res := Result{TeamsFound: len(teams), ConferencesFound: len(conferences)}
	if res.TeamsInserted, err = s.store.UpsertTeams(ctx, teams); err != nil {
		return res, fmt.Errorf("seed teams: %w", err)
	}
	if res.ConferencesInserted, err = s.store.UpsertConferences(ctx, conferences); err != nil {
		return res, fmt.Errorf("seed conferences: %w", err)
	}

	s.logger.Info("directory seeded",
		zap.Int("teams_found", res.TeamsFound),
		zap.Int("teams_inserted", res.TeamsInserted),
		zap.Int("conferences_found", res.ConferencesFound),
		zap.Int("conferences_inserted", res.ConferencesInserted),
	)
	return res, nil
}

// Parse extracts teams and conferences from the autocomplete script. Entries
// whose link carries no usable id are skipped; repeated ids keep the first
// entry.
func Parse(script []byte) ([]xc.Team, []xc.Conference, error) {
	teamEntries, err := extract(script, teamsPattern, "autocomplete_teams")
	if err != nil {
		return nil, nil, err
	}
	confEntries, err := extract(script, conferencesPattern, "autocomplete_conferences")
	if err != nil {
		return nil, nil, err
	}

	seenTeams := make(map[string]struct{}, len(teamEntries))
	teams := make([]xc.Team, 0, len(teamEntries))
	for _, e := range teamEntries {
		id, ok := normalize.TeamIDFromHref(e.URL)
		if !ok {
			continue
		}
		if _, dup := seenTeams[id]; dup {
			continue
		}
		seenTeams[id] = struct{}{}
		teams = append(teams, normalize.NewTeam(id, e.Text))
	}

	seenConfs := make(map[int64]struct{}, len(confEntries))
	conferences := make([]xc.Conference, 0, len(confEntries))
	for _, e := range confEntries {
		id, ok := normalize.ConferenceIDFromHref(e.URL)
		if !ok {
			continue
		}
		if _, dup := seenConfs[id]; dup {
			continue
		}
		seenConfs[id] = struct{}{}
		conferences = append(conferences, xc.Conference{SourceID: id, Name: normalize.CollapseSpace(e.Text)})
	}
	return teams, conferences, nil
}

func extract(script []byte, pattern *regexp.Regexp, section string) ([]entry, error) {
	m := pattern.FindSubmatch(script)
	if m == nil {
		return nil, &xc.ParseError{Section: section}
	}
	quoted := bareKeyPattern.ReplaceAll(m[1], []byte(`$1"$2":`))
	var entries []entry
	if err := json.Unmarshal(quoted, &entries); err != nil {
		return nil, &xc.ParseError{Section: section, Detail: err.Error()}
	}
	return entries, nil
}
