package model

import "time"

// JobStatus is the lifecycle state of a discovery job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobRequest is the inbound configuration for a discovery job.
type JobRequest struct {
	ClientID   string   `json:"client_id"`
	Locations  []string `json:"locations"`
	Industries []string `json:"industries"`
	Limit      int      `json:"limit"`
}

// JobCounters tallies per-phase output counts.
type JobCounters struct {
	PlacesFound   int `json:"places_found"`
	Enriched      int `json:"enriched"`
	ContactsFound int `json:"contacts_found"`
}

// DiscoveryJob owns every prospect it discovers. Immutable after completion
// except for status and counters.
type DiscoveryJob struct {
	ID        string      `json:"id"`
	ClientID  string      `json:"client_id"`
	Request   JobRequest  `json:"request"`
	Status    JobStatus   `json:"status"`
	Counters  JobCounters `json:"counters"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PhaseStatus is the progress state reported for one pipeline phase.
type PhaseStatus string

const (
	PhaseStarted    PhaseStatus = "started"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
)

// ProgressEvent is emitted at least at the start and completion of each
// pipeline phase. Delivery is best-effort and never blocks the phase.
type ProgressEvent struct {
	JobID    string      `json:"job_id"`
	Phase    string      `json:"phase"`
	Status   PhaseStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
	Counters JobCounters `json:"counters"`
	At       time.Time   `json:"at"`
}
