package xc

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves an upstream document body.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Store is the persistent store contract.
type Store interface {
	// MeetSourceIDs returns the SourceID of every ingested meet.
	MeetSourceIDs(ctx context.Context) (map[int64]struct{}, error)
	// CreateMeet writes the meet, its races, its results and any new teams
	// or athletes in one transaction. Failures are returned as *WriteError.
	CreateMeet(ctx context.Context, meet Meet) error
	// UpsertTeams inserts teams whose SourceID is unknown and returns how
	// many rows were inserted. Existing rows are left untouched.
	UpsertTeams(ctx context.Context, teams []Team) (int, error)
	// UpsertConferences behaves like UpsertTeams for conferences.
	UpsertConferences(ctx context.Context, conferences []Conference) (int, error)
	Close()
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes ingest notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
