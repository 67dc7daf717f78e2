package ades

import "time"

// Status is a job status reported by the execution engine.
type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusRunning    Status = "running"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusDismissed  Status = "dismissed"
	// StatusCancelled is how dismissed jobs are surfaced to API clients.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status will not change any more.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusDismissed, StatusCancelled:
		return true
	}
	return false
}

// Normalize rewrites engine-internal statuses to their client-facing
// form. The engine says dismissed; clients see cancelled.
func (s Status) Normalize() Status {
	if s == StatusDismissed {
		return StatusCancelled
	}
	return s
}

// StatusInfo is the engine's job handle, per OGC API Processes.
type StatusInfo struct {
	JobID     string     `json:"jobID"`
	ProcessID string     `json:"processID"`
	Type      string     `json:"type,omitempty"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Created   *time.Time `json:"created,omitempty"`
	Started   *time.Time `json:"started,omitempty"`
	Updated   *time.Time `json:"updated,omitempty"`
	Finished  *time.Time `json:"finished,omitempty"`
	Progress  *int       `json:"progress,omitempty"`
	Links     []Link     `json:"links,omitempty"`
}

// JobList is the paged response of the jobs endpoint.
type JobList struct {
	Jobs           []StatusInfo `json:"jobs"`
	NumberMatched  int          `json:"numberMatched"`
	NumberReturned int          `json:"numberReturned"`
	Links          []Link       `json:"links,omitempty"`
}

// ProcessSummary describes a registered process.
type ProcessSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Links       []Link   `json:"links,omitempty"`
}

// ProcessList is the response of the processes endpoint.
type ProcessList struct {
	Processes []ProcessSummary `json:"processes"`
	Links     []Link           `json:"links,omitempty"`
}

// Link is an OGC API hyperlink.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel,omitempty"`
	Type string `json:"type,omitempty"`
}
