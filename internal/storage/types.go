package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// JobRecord is one row of the job audit trail.
// Keep it compact and schema-stable.
type JobRecord struct {
	At       time.Time `json:"at"`
	JobID    string    `json:"job_id"`
	Kind     string    `json:"kind"` // login | publish
	Platform string    `json:"platform"`
	Account  string    `json:"account"`
	State    string    `json:"state"` // started | completed | failed
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}
