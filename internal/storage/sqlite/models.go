package sqlite

import "time"

type meetRow struct {
	ID         int64             `gorm:"primaryKey"`
	SourceID   int64             `gorm:"uniqueIndex;not null"`
	Name       string            `gorm:"not null"`
	Date       time.Time         `gorm:"not null"`
	State      string            `gorm:"not null;default:''"`
	Sport      string            `gorm:"not null;default:'xc'"`
	Location   *string
	Attributes map[string]string `gorm:"serializer:json"`
	IngestedAt time.Time         `gorm:"autoCreateTime"`
}

func (meetRow) TableName() string { return "meets" }

type raceRow struct {
	ID             int64 `gorm:"primaryKey"`
	MeetID         int64 `gorm:"index;not null"`
	SourceEventID  int64 `gorm:"not null"`
	Name           string
	Gender         string
	DistanceMeters *float64
}

func (raceRow) TableName() string { return "races" }

type teamRow struct {
	ID       int64  `gorm:"primaryKey"`
	SourceID string `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
	State    string
	Level    string
	Gender   string
}

func (teamRow) TableName() string { return "teams" }

type athleteRow struct {
	ID       int64  `gorm:"primaryKey"`
	SourceID int64  `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
}

func (athleteRow) TableName() string { return "athletes" }

type conferenceRow struct {
	ID       int64  `gorm:"primaryKey"`
	SourceID int64  `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
}

func (conferenceRow) TableName() string { return "conferences" }

type resultRow struct {
	ID          int64 `gorm:"primaryKey"`
	RaceID      int64 `gorm:"index;not null"`
	Place       *int
	Score       *int
	ClassYear   string `gorm:"not null;default:'unknown'"`
	TimeSeconds *float64
	AthleteID   *int64 `gorm:"index"`
	TeamID      *int64 `gorm:"index"`
}

func (resultRow) TableName() string { return "results" }
