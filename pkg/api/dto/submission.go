package dto

import (
	"time"

	"github.com/eodatahub/action-creator/internal/ades"
	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/internal/history"
	"github.com/eodatahub/action-creator/internal/visualization"
	"github.com/eodatahub/action-creator/internal/workflow"
)

// SubmissionRequest wraps the client's workflow graph document.
type SubmissionRequest struct {
	Workflow workflow.Document `json:"workflow"`
}

// ValidationResponse is the body of a successful validation call.
type ValidationResponse struct {
	Valid bool `json:"valid"`
}

// Job is the handle returned when a submission is accepted.
type Job struct {
	JobID        string      `json:"job_id"`
	WorkflowSpec any         `json:"workflow_spec"`
	Status       ades.Status `json:"status"`
	SubmittedAt  *time.Time  `json:"submitted_at"`
}

// NewJob builds the submission response from the engine's handle.
func NewJob(info *ades.StatusInfo, workflowSpec any) Job {
	return Job{
		JobID:        info.JobID,
		WorkflowSpec: workflowSpec,
		Status:       info.Status.Normalize(),
		SubmittedAt:  info.Created,
	}
}

// JobSummary is the per-job status projection.
type JobSummary struct {
	SubmissionID       string      `json:"submission_id"`
	WorkflowIdentifier string      `json:"workflow_identifier"`
	Status             ades.Status `json:"status"`
	SubmittedAt        *time.Time  `json:"submitted_at"`
	FinishedAt         *time.Time  `json:"finished_at"`
	Successful         *bool       `json:"successful"`
	Message            string      `json:"message,omitempty"`
}

// NewJobSummary projects the engine's handle for clients.
func NewJobSummary(info *ades.StatusInfo) JobSummary {
	summary := JobSummary{
		SubmissionID:       info.JobID,
		WorkflowIdentifier: info.ProcessID,
		Status:             info.Status.Normalize(),
		SubmittedAt:        info.Created,
		FinishedAt:         info.Finished,
		Message:            info.Message,
	}
	switch info.Status {
	case ades.StatusSuccessful:
		v := true
		summary.Successful = &v
	case ades.StatusFailed:
		v := false
		summary.Successful = &v
	}
	return summary
}

// SubmissionHistory is the paginated history response.
type SubmissionHistory struct {
	Results    []history.Submission `json:"results"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	PerPage    *int                 `json:"per_page,omitempty"`
	TotalPages int                  `json:"total_pages"`
}

// FunctionsResponse lists the catalog entries a client may use.
type FunctionsResponse struct {
	Functions []catalog.FunctionSpec `json:"functions"`
	Total     int                    `json:"total"`
}

// Preset is a canned workflow offered to clients as a starting point.
type Preset struct {
	Identifier  string         `json:"identifier"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Workflow    map[string]any `json:"workflow"`
}

// PresetsResponse lists the available presets.
type PresetsResponse struct {
	Presets []Preset `json:"presets"`
	Total   int      `json:"total"`
}

// VisualizationResponse carries chart-ready series built from a
// submission's results catalog.
type VisualizationResponse struct {
	JobID          string                           `json:"job_id"`
	SpectralIndex  []visualization.LineSeries       `json:"spectral_index"`
	Classification []visualization.StackedBarSeries `json:"classification"`
	Items          int                              `json:"items"`
}

// WSFrame is one WebSocket message: a status code plus either a result
// document or an error detail list.
type WSFrame struct {
	StatusCode int `json:"status_code"`
	Result     any `json:"result"`
}
