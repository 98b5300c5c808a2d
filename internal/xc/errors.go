package xc

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownDistanceUnit flags a distance whose unit is not recognised.
var ErrUnknownDistanceUnit = errors.New("unknown distance unit")

// FetchError reports a network failure, timeout or non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a required structural element missing from a page.
type ParseError struct {
	Section string
	Detail  string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parse %s: section not found", e.Section)
	}
	return fmt.Sprintf("parse %s: %s", e.Section, e.Detail)
}

// WriteError reports a failed meet transaction. Nothing of the meet is visible.
type WriteError struct {
	SourceID int64
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write meet %d: %v", e.SourceID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrorKind classifies err for failure records and metrics labels. Work
// abandoned because the run was canceled is "canceled" whatever its layer.
func ErrorKind(err error) string {
	var (
		fetchErr *FetchError
		parseErr *ParseError
		writeErr *WriteError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &writeErr):
		return "write"
	default:
		return "unknown"
	}
}
