package models

import "time"

// JobStatus is the lifecycle state of a rendering job.
type JobStatus string

const (
	JobCreated   JobStatus = "created"
	JobPending   JobStatus = "pending"
	JobDone      JobStatus = "done"
	JobError     JobStatus = "error"
	JobAbandoned JobStatus = "abandoned"
)

// Terminal reports whether no further transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError || s == JobAbandoned
}

// VideoJob tracks one request to render the persona speaking a reply.
// JobID is the opaque identifier assigned by the rendering service and is
// the key everything else correlates on. ResultURL is set only once the
// job reaches JobDone.
type VideoJob struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	UserID       string    `json:"user_id"`
	SourceTurnID string    `json:"source_turn_id"`
	Status       JobStatus `json:"status"`
	ResultURL    string    `json:"result_url,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
