package database

import (
	"time"
)

// Site is one domain the crawler has looked at, across runs.
type Site struct {
	Domain      string
	Source      string
	FirstSeen   time.Time
	LastSeen    time.Time
	FetchStatus string
	StatusCode  int
	Title       string
	Relevance   int
	Outcome     string
}

// Run records one pipeline invocation.
type Run struct {
	ID         string
	Mode       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Candidates int
	Accepted   int
	Excluded   int
	Errored    int
	Unchanged  int
	Added      int
	Removed    int
	Changed    int
	Error      string
}
