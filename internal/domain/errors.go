package domain

import (
	"fmt"
	"strings"
)

// DataError reports a missing, empty, or malformed upstream feed.
// It is fatal for the request and is not retried.
type DataError struct {
	Op         string
	StationKey string
	Rows       int
	Err        error
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString("data error: ")
	b.WriteString(e.Op)
	if e.StationKey != "" {
		fmt.Fprintf(&b, " (station %q, rows=%d)", e.StationKey, e.Rows)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DataError) Unwrap() error { return e.Err }

// NotFoundError reports a station query that could not be resolved.
// Suggestions holds close matches, best first, and may be empty.
type NotFoundError struct {
	Query       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("station %q not found", e.Query)
	}
	return fmt.Sprintf("station %q not found, suggestions: %s", e.Query, strings.Join(e.Suggestions, ", "))
}

// InsufficientDataError reports a daily frame shorter than the training minimum.
type InsufficientDataError struct {
	StationKey string
	Rows       int
	Min        int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for station %q: %d daily rows, need at least %d", e.StationKey, e.Rows, e.Min)
}

// AlignmentError reports that feature/label alignment left no training rows.
type AlignmentError struct {
	StationKey string
	Rows       int // rows before alignment
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("train partition empty after alignment for station %q (%d rows before alignment)", e.StationKey, e.Rows)
}
