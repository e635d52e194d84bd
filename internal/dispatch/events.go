package dispatch

import "time"

// Bus event types emitted by the dispatcher.
const (
	EventJobStarted   = "job.started"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// JobEvent is the bus payload for job lifecycle events.
type JobEvent struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"` // login | publish
	Platform string        `json:"platform"`
	Account  string        `json:"account"`
	Took     time.Duration `json:"took"`
	Error    string        `json:"error,omitempty"`
}
