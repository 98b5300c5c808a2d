// Package postgres provides the Postgres-backed meet store.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

var resultColumns = []string{"race_id", "place", "score", "class_year", "time_seconds", "athlete_id", "team_id"}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// MeetStore implements xc.Store on Postgres. Each meet is one transaction;
// teams and athletes are connected or created with INSERT ... ON CONFLICT
// so concurrent meets referencing the same team never race.
type MeetStore struct {
	pool pool
}

var _ xc.Store = (*MeetStore)(nil)

// NewMeetStore connects a pgx pool using cfg.
func NewMeetStore(ctx context.Context, cfg Config) (*MeetStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &MeetStore{pool: p}, nil
}

// NewMeetStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewMeetStoreWithPool(p pool) (*MeetStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &MeetStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *MeetStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *MeetStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// MeetSourceIDs returns the SourceID of every stored meet.
func (s *MeetStore) MeetSourceIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT source_id FROM meets`)
	if err != nil {
		return nil, fmt.Errorf("query meet source ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan meet source ids: %w", err)
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// CreateMeet writes meet with its races, results, teams and athletes in a
// single transaction. Any failure rolls back and returns *xc.WriteError.
func (s *MeetStore) CreateMeet(ctx context.Context, meet xc.Meet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &xc.WriteError{SourceID: meet.SourceID, Err: fmt.Errorf("begin tx: %w", err)}
	}
	if err := writeMeet(ctx, tx, meet); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return &xc.WriteError{SourceID: meet.SourceID, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &xc.WriteError{SourceID: meet.SourceID, Err: fmt.Errorf("commit tx: %w", err)}
	}
	return nil
}

func writeMeet(ctx context.Context, tx pgx.Tx, meet xc.Meet) error {
	attributes := meet.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	sport := meet.Sport
	if sport == "" {
		sport = xc.SportXC
	}

	var meetID int64
	err = tx.QueryRow(ctx, `
INSERT INTO meets (source_id, name, date, state, sport, location, attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		meet.SourceID, meet.Name, meet.Date, meet.State, sport, meet.Location, attrsJSON,
	).Scan(&meetID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("meet %d already ingested: %w", meet.SourceID, err)
		}
		return fmt.Errorf("insert meet: %w", err)
	}

	refs, err := resolveRefs(ctx, tx, meet)
	if err != nil {
		return err
	}
	for _, race := range meet.Races {
		if err := writeRace(ctx, tx, meetID, race, refs); err != nil {
			return err
		}
	}
	return nil
}

func writeRace(ctx context.Context, tx pgx.Tx, meetID int64, race xc.Race, refs refIDs) error {
	var raceID int64
	err := tx.QueryRow(ctx, `
INSERT INTO races (meet_id, source_event_id, name, gender, distance_meters)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		meetID, race.SourceEventID, race.Name, string(race.Gender), race.DistanceMeters,
	).Scan(&raceID)
	if err != nil {
		return fmt.Errorf("insert race %d: %w", race.SourceEventID, err)
	}
	if len(race.Results) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(race.Results))
	for _, r := range race.Results {
		var athleteID, teamID *int64
		if r.Athlete != nil {
			id := refs.athletes[r.Athlete.SourceID]
			athleteID = &id
		}
		if r.Team != nil {
			id := refs.teams[r.Team.SourceID]
			teamID = &id
		}
		rows = append(rows, []any{raceID, r.Place, r.Score, string(r.ClassYear), r.TimeSeconds, athleteID, teamID})
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy results for race %d: %w", race.SourceEventID, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy results for race %d: wrote %d of %d rows", race.SourceEventID, n, len(rows))
	}
	return nil
}

// refIDs maps upstream source ids to row ids for one meet.
type refIDs struct {
	teams    map[string]int64
	athletes map[int64]int64
}

// resolveRefs connects or creates every team and athlete the meet
// references, before any result is written. Teams go first, then athletes,
// each sorted by source id, so concurrent meets sharing references take
// row locks in one global order. Existing rows are read, never updated, so
// committed teams and athletes are not locked at all.
func resolveRefs(ctx context.Context, tx pgx.Tx, meet xc.Meet) (refIDs, error) {
	teams := map[string]xc.Team{}
	athletes := map[int64]xc.Athlete{}
	for _, race := range meet.Races {
		for _, r := range race.Results {
			if r.Team != nil {
				if _, seen := teams[r.Team.SourceID]; !seen {
					teams[r.Team.SourceID] = *r.Team
				}
			}
			if r.Athlete != nil {
				if _, seen := athletes[r.Athlete.SourceID]; !seen {
					athletes[r.Athlete.SourceID] = *r.Athlete
				}
			}
		}
	}

	refs := refIDs{
		teams:    make(map[string]int64, len(teams)),
		athletes: make(map[int64]int64, len(athletes)),
	}
	for _, sourceID := range slices.Sorted(maps.Keys(teams)) {
		team := teams[sourceID]
		id, err := connectOrCreate(ctx, tx, `
INSERT INTO teams (source_id, name, state, level, gender)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_id) DO NOTHING
RETURNING id`,
			`SELECT id FROM teams WHERE source_id = $1`,
			[]any{team.SourceID, team.Name, team.State, string(team.Level), string(team.Gender)},
		)
		if err != nil {
			return refIDs{}, fmt.Errorf("upsert team %s: %w", sourceID, err)
		}
		refs.teams[sourceID] = id
	}
	for _, sourceID := range slices.Sorted(maps.Keys(athletes)) {
		athlete := athletes[sourceID]
		id, err := connectOrCreate(ctx, tx, `
INSERT INTO athletes (source_id, name)
VALUES ($1, $2)
ON CONFLICT (source_id) DO NOTHING
RETURNING id`,
			`SELECT id FROM athletes WHERE source_id = $1`,
			[]any{athlete.SourceID, athlete.Name},
		)
		if err != nil {
			return refIDs{}, fmt.Errorf("upsert athlete %d: %w", sourceID, err)
		}
		refs.athletes[sourceID] = id
	}
	return refs, nil
}

// connectOrCreate runs insert and returns the new id, or, when the row
// already exists, looks it up with lookup. args[0] must be the source id.
func connectOrCreate(ctx context.Context, tx pgx.Tx, insert, lookup string, args []any) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, insert, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if err := tx.QueryRow(ctx, lookup, args[0]).Scan(&id); err != nil {
		return 0, fmt.Errorf("select existing: %w", err)
	}
	return id, nil
}

// UpsertTeams inserts teams not yet stored and reports how many were new.
func (s *MeetStore) UpsertTeams(ctx context.Context, teams []xc.Team) (int, error) {
	return s.insertMissing(ctx, "teams", len(teams), func(i int) (string, []any) {
		t := teams[i]
		return `
INSERT INTO teams (source_id, name, state, level, gender)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_id) DO NOTHING`,
			[]any{t.SourceID, t.Name, t.State, string(t.Level), string(t.Gender)}
	})
}

// UpsertConferences inserts conferences not yet stored and reports how many were new.
func (s *MeetStore) UpsertConferences(ctx context.Context, conferences []xc.Conference) (int, error) {
	return s.insertMissing(ctx, "conferences", len(conferences), func(i int) (string, []any) {
		c := conferences[i]
		return `
INSERT INTO conferences (source_id, name)
VALUES ($1, $2)
ON CONFLICT (source_id) DO NOTHING`,
			[]any{c.SourceID, c.Name}
	})
}

func (s *MeetStore) insertMissing(
	ctx context.Context,
	kind string,
	n int,
	stmt func(i int) (string, []any),
) (int, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin %s tx: %w", kind, err)
	}
	inserted := 0
	for i := 0; i < n; i++ {
		query, args := stmt(i)
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return 0, fmt.Errorf("upsert %s: %w", kind, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s tx: %w", kind, err)
	}
	return inserted, nil
}
