// Package sqlite provides a single-file meet store for local runs, built on
// gorm and the gorm SQLite driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

const resultBatchSize = 500

// Config points the store at a database file.
type Config struct {
	Path string
	// Debug logs every SQL statement.
	Debug bool
}

// MeetStore implements xc.Store on SQLite.
type MeetStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ xc.Store = (*MeetStore)(nil)

// Open opens (creating if needed) the database at cfg.Path and migrates the
// schema.
func Open(cfg Config, log *zap.Logger) (*MeetStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite.path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sqlite handle: %w", err)
	}
	// One writer at a time; workers queue on the pool instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&meetRow{}, &raceRow{}, &teamRow{}, &athleteRow{}, &conferenceRow{}, &resultRow{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	log.Named("sqlite").Info("sqlite store ready", zap.String("path", cfg.Path))
	return &MeetStore{db: db, logger: log.Named("sqlite")}, nil
}

// Close releases the database handle.
func (s *MeetStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.Warn("close sqlite database", zap.Error(err))
	}
}

// MeetSourceIDs returns the SourceID of every stored meet.
func (s *MeetStore) MeetSourceIDs(ctx context.Context) (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&meetRow{}).Pluck("source_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("query meet source ids: %w", err)
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// CreateMeet writes meet and everything under it in one transaction.
func (s *MeetStore) CreateMeet(ctx context.Context, meet xc.Meet) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeMeet(tx, meet)
	})
	if err != nil {
		return &xc.WriteError{SourceID: meet.SourceID, Err: err}
	}
	return nil
}

func writeMeet(tx *gorm.DB, meet xc.Meet) error {
	row := meetRow{
		SourceID:   meet.SourceID,
		Name:       meet.Name,
		Date:       meet.Date,
		State:      meet.State,
		Sport:      meet.Sport,
		Location:   meet.Location,
		Attributes: meet.Attributes,
	}
	if row.Sport == "" {
		row.Sport = xc.SportXC
	}
	if row.Attributes == nil {
		row.Attributes = map[string]string{}
	}
	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("meet %d already ingested: %w", meet.SourceID, err)
		}
		return fmt.Errorf("insert meet: %w", err)
	}

	refs := newRefCache()
	for _, race := range meet.Races {
		if err := writeRace(tx, row.ID, race, refs); err != nil {
			return err
		}
	}
	return nil
}

func writeRace(tx *gorm.DB, meetID int64, race xc.Race, refs *refCache) error {
	row := raceRow{
		MeetID:         meetID,
		SourceEventID:  race.SourceEventID,
		Name:           race.Name,
		Gender:         string(race.Gender),
		DistanceMeters: race.DistanceMeters,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert race %d: %w", race.SourceEventID, err)
	}
	if len(race.Results) == 0 {
		return nil
	}

	results := make([]resultRow, 0, len(race.Results))
	for _, r := range race.Results {
		rr := resultRow{
			RaceID:      row.ID,
			Place:       r.Place,
			Score:       r.Score,
			ClassYear:   string(r.ClassYear),
			TimeSeconds: r.TimeSeconds,
		}
		if rr.ClassYear == "" {
			rr.ClassYear = string(xc.ClassYearUnknown)
		}
		if r.Athlete != nil {
			id, err := refs.athlete(tx, *r.Athlete)
			if err != nil {
				return err
			}
			rr.AthleteID = &id
		}
		if r.Team != nil {
			id, err := refs.team(tx, *r.Team)
			if err != nil {
				return err
			}
			rr.TeamID = &id
		}
		results = append(results, rr)
	}
	if err := tx.CreateInBatches(&results, resultBatchSize).Error; err != nil {
		return fmt.Errorf("insert results for race %d: %w", race.SourceEventID, err)
	}
	return nil
}

// refCache remembers team and athlete ids resolved within one transaction.
type refCache struct {
	teams    map[string]int64
	athletes map[int64]int64
}

func newRefCache() *refCache {
	return &refCache{teams: make(map[string]int64), athletes: make(map[int64]int64)}
}

func (c *refCache) team(tx *gorm.DB, team xc.Team) (int64, error) {
	if id, ok := c.teams[team.SourceID]; ok {
		return id, nil
	}
	row := teamRow{
		SourceID: team.SourceID,
		Name:     team.Name,
		State:    team.State,
		Level:    string(team.Level),
		Gender:   string(team.Gender),
	}
	id, err := connectOrCreate(tx, &row, &row.ID, team.SourceID)
	if err != nil {
		return 0, fmt.Errorf("upsert team %s: %w", team.SourceID, err)
	}
	c.teams[team.SourceID] = id
	return id, nil
}

func (c *refCache) athlete(tx *gorm.DB, athlete xc.Athlete) (int64, error) {
	if id, ok := c.athletes[athlete.SourceID]; ok {
		return id, nil
	}
	row := athleteRow{SourceID: athlete.SourceID, Name: athlete.Name}
	id, err := connectOrCreate(tx, &row, &row.ID, athlete.SourceID)
	if err != nil {
		return 0, fmt.Errorf("upsert athlete %d: %w", athlete.SourceID, err)
	}
	c.athletes[athlete.SourceID] = id
	return id, nil
}

// connectOrCreate inserts row unless its source_id exists, leaving any stored
// row untouched, and returns the stored primary key. SQLite serialises writers
// so the insert and the lookup see the same state.
func connectOrCreate(tx *gorm.DB, row any, id *int64, sourceID any) (int64, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 1 && *id != 0 {
		return *id, nil
	}
	var existing int64
	if err := tx.Model(row).Where("source_id = ?", sourceID).Pluck("id", &existing).Error; err != nil {
		return 0, err
	}
	if existing == 0 {
		return 0, fmt.Errorf("source id %v not found after insert", sourceID)
	}
	return existing, nil
}

// UpsertTeams inserts teams not yet stored and reports how many were new.
func (s *MeetStore) UpsertTeams(ctx context.Context, teams []xc.Team) (int, error) {
	if len(teams) == 0 {
		return 0, nil
	}
	rows := make([]teamRow, 0, len(teams))
	for _, t := range teams {
		rows = append(rows, teamRow{
			SourceID: t.SourceID,
			Name:     t.Name,
			State:    t.State,
			Level:    string(t.Level),
			Gender:   string(t.Gender),
		})
	}
	return insertMissing(ctx, s.db, "teams", rows)
}

// UpsertConferences inserts conferences not yet stored and reports how many were new.
func (s *MeetStore) UpsertConferences(ctx context.Context, conferences []xc.Conference) (int, error) {
	if len(conferences) == 0 {
		return 0, nil
	}
	rows := make([]conferenceRow, 0, len(conferences))
	for _, c := range conferences {
		rows = append(rows, conferenceRow{SourceID: c.SourceID, Name: c.Name})
	}
	return insertMissing(ctx, s.db, "conferences", rows)
}

func insertMissing[T any](ctx context.Context, db *gorm.DB, kind string, rows []T) (int, error) {
	inserted := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", kind, err)
	}
	return inserted, nil
}
