package history

import (
	"sort"
	"strings"
	"time"

	"github.com/eodatahub/action-creator/internal/apperr"
	"github.com/eodatahub/action-creator/internal/ades"
)

// Submission is one row of the job history.
type Submission struct {
	SubmissionID       string      `json:"submission_id"`
	WorkflowIdentifier string      `json:"workflow_identifier"`
	Status             ades.Status `json:"status"`
	SubmittedAt        *time.Time  `json:"submitted_at"`
	FinishedAt         *time.Time  `json:"finished_at"`
	Successful         *bool       `json:"successful"`
}

// Page is a paginated slice of the history.
type Page struct {
	Results    []Submission `json:"results"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PerPage    *int         `json:"per_page"`
	TotalPages int          `json:"total_pages"`
}

// Sortable keys.
const (
	KeySubmissionID       = "submission_id"
	KeyStatus             = "status"
	KeyWorkflowIdentifier = "workflow_identifier"
	KeySubmittedAt        = "submitted_at"
	KeyFinishedAt         = "finished_at"
	KeySuccessful         = "successful"
)

var sortKeys = map[string]bool{
	KeySubmissionID:       true,
	KeyStatus:             true,
	KeyWorkflowIdentifier: true,
	KeySubmittedAt:        true,
	KeyFinishedAt:         true,
	KeySuccessful:         true,
}

// Query selects, orders and pages the history.
type Query struct {
	Statuses       []ades.Status
	OrderBy        string
	OrderDirection string // asc|desc
	PageNumber     int
	PerPage        *int
}

// Project maps engine jobs to history rows. The engine's dismissed
// status is surfaced as cancelled.
func Project(jobs []ades.StatusInfo) []Submission {
	rows := make([]Submission, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		row := Submission{
			SubmissionID:       job.JobID,
			WorkflowIdentifier: job.ProcessID,
			Status:             job.Status.Normalize(),
			SubmittedAt:        job.Created,
			FinishedAt:         job.Finished,
		}
		switch job.Status {
		case ades.StatusSuccessful:
			v := true
			row.Successful = &v
		case ades.StatusFailed:
			v := false
			row.Successful = &v
		}
		rows = append(rows, row)
	}
	return rows
}

// Run applies the query to the projected history.
func Run(jobs []ades.StatusInfo, q Query) (*Page, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	rows := filter(Project(jobs), q.Statuses)
	sortRows(rows, q.orderBy(), q.descending())
	return paginate(rows, q.PageNumber, q.PerPage), nil
}

func (q Query) validate() error {
	if q.OrderBy != "" && !sortKeys[q.OrderBy] {
		return apperr.New("invalid_order_by_error", "cannot order by "+q.OrderBy).
			With("order_by", q.OrderBy)
	}
	switch strings.ToLower(q.OrderDirection) {
	case "", "asc", "desc":
	default:
		return apperr.New("invalid_order_direction_error", "order direction must be asc or desc").
			With("order_direction", q.OrderDirection)
	}
	// PageNumber zero means unset and defaults to the first page.
	if q.PageNumber < 0 {
		return errInvalidPagination("page must be at least 1")
	}
	if q.PerPage != nil && (*q.PerPage < 1 || *q.PerPage > 100) {
		return errInvalidPagination("per_page must be between 1 and 100")
	}
	return nil
}

func errInvalidPagination(msg string) error {
	return apperr.New("invalid_pagination_error", msg)
}

func (q Query) orderBy() string {
	if q.OrderBy == "" {
		return KeySubmittedAt
	}
	return q.OrderBy
}

func (q Query) descending() bool {
	return strings.EqualFold(q.OrderDirection, "desc")
}

func filter(rows []Submission, statuses []ades.Status) []Submission {
	if len(statuses) == 0 {
		return rows
	}
	want := make(map[ades.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s.Normalize()] = true
	}
	out := rows[:0]
	for _, r := range rows {
		if want[r.Status] {
			out = append(out, r)
		}
	}
	return out
}

// sortRows orders rows by the key with a stable sort. Null values sort
// after every present value regardless of direction.
func sortRows(rows []Submission, key string, desc bool) {
	sort.SliceStable(rows, func(a, b int) bool {
		av, aNull := sortValue(&rows[a], key)
		bv, bNull := sortValue(&rows[b], key)
		if aNull != bNull {
			return !aNull
		}
		if aNull {
			return false
		}
		if desc {
			return bv < av
		}
		return av < bv
	})
}

// timeSortLayout keeps the fractional seconds fixed-width so lexical
// order matches chronological order. RFC3339Nano trims trailing zeroes,
// which puts "…:00.5Z" before "…:00Z".
const timeSortLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sortValue renders the key as a comparable string.
func sortValue(row *Submission, key string) (string, bool) {
	switch key {
	case KeySubmissionID:
		return row.SubmissionID, false
	case KeyStatus:
		return string(row.Status), false
	case KeyWorkflowIdentifier:
		return row.WorkflowIdentifier, false
	case KeySubmittedAt:
		if row.SubmittedAt == nil {
			return "", true
		}
		return row.SubmittedAt.UTC().Format(timeSortLayout), false
	case KeyFinishedAt:
		if row.FinishedAt == nil {
			return "", true
		}
		return row.FinishedAt.UTC().Format(timeSortLayout), false
	case KeySuccessful:
		if row.Successful == nil {
			return "", true
		}
		if *row.Successful {
			return "1", false
		}
		return "0", false
	default:
		return "", true
	}
}

func paginate(rows []Submission, page int, perPage *int) *Page {
	if page < 1 {
		page = 1
	}
	total := len(rows)

	if perPage == nil {
		return &Page{Results: rows, Total: total, Page: 1, TotalPages: 1}
	}

	size := *perPage
	totalPages := (total + size - 1) / size
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return &Page{
		Results:    rows[start:end],
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
