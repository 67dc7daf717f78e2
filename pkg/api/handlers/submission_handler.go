package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/internal/ades"
	"github.com/eodatahub/action-creator/internal/apperr"
	"github.com/eodatahub/action-creator/internal/cwl"
	"github.com/eodatahub/action-creator/internal/events"
	"github.com/eodatahub/action-creator/internal/history"
	"github.com/eodatahub/action-creator/internal/stac"
	"github.com/eodatahub/action-creator/internal/visualization"
	"github.com/eodatahub/action-creator/internal/workflow"
	"github.com/eodatahub/action-creator/pkg/api/dto"
	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

// EngineClient is the slice of the execution-engine client the
// submission handlers use.
type EngineClient interface {
	RegisterFresh(ctx context.Context, id string, cwl []byte) (*ades.ProcessSummary, error)
	Execute(ctx context.Context, processID string, inputs map[string]any) (*ades.StatusInfo, error)
	ListJobs(ctx context.Context, limit, skip int) (*ades.JobList, error)
	GetJob(ctx context.Context, jobID string) (*ades.StatusInfo, error)
	CancelJob(ctx context.Context, jobID string) error
}

// EngineFactory builds a workspace-scoped engine client per request.
type EngineFactory func(workspace, token string) EngineClient

// CatalogProber is the pre-flight STAC search.
type CatalogProber interface {
	Search(ctx context.Context, params stac.SearchParams) (int, error)
}

// CatalogReader fetches the items of a results collection.
type CatalogReader interface {
	CollectionItems(ctx context.Context, collection string, limit int) ([]stac.Item, error)
}

// SubmissionHandler validates, compiles and submits workflows, and
// serves the submission history.
type SubmissionHandler struct {
	validator   *workflow.Validator
	synthesizer *cwl.Synthesizer
	prober      CatalogProber
	reader      CatalogReader
	engines     EngineFactory
	publisher   *events.Publisher
	log         *logrus.Entry

	// historyWindow bounds how many jobs the history endpoints read.
	historyWindow int
}

// NewSubmissionHandler wires the submission pipeline.
func NewSubmissionHandler(
	validator *workflow.Validator,
	synthesizer *cwl.Synthesizer,
	prober CatalogProber,
	reader CatalogReader,
	engines EngineFactory,
	publisher *events.Publisher,
	log *logrus.Entry,
) *SubmissionHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SubmissionHandler{
		validator:     validator,
		synthesizer:   synthesizer,
		prober:        prober,
		reader:        reader,
		engines:       engines,
		publisher:     publisher,
		log:           log,
		historyWindow: ades.DefaultBatchWindow,
	}
}

func (h *SubmissionHandler) engine(c *gin.Context) EngineClient {
	return h.engines(middleware.Workspace(c), middleware.Bearer(c))
}

// abortEngineError surfaces a normalized engine error, or a 500 for
// anything else.
func abortEngineError(c *gin.Context, err error) {
	if engineErr, ok := ades.AsEngineError(err); ok {
		c.JSON(engineErr.Status, dto.NewErrorEnvelope([]string{"engine"}, engineErr.Code, engineErr.Detail, nil))
		c.Abort()
		return
	}
	middleware.AbortWithError(c, http.StatusInternalServerError, []string{"server"},
		"internal_server_error", "execution engine call failed")
}

// prepare runs the shared validate-probe-synthesize pipeline. On
// failure it writes the response and returns nil.
func (h *SubmissionHandler) prepare(c *gin.Context, doc *workflow.Document) *cwl.Artifact {
	if doc.Identifier != "" {
		normalized, err := workflow.NormalizeIdentifier(doc.Identifier)
		if err != nil {
			middleware.AbortWithValidationError(c, []string{"body", "workflow", "identifier"}, err)
			return nil
		}
		doc.Identifier = normalized
	}

	if err := h.validator.Validate(doc); err != nil {
		middleware.AbortWithValidationError(c, []string{"body", "workflow"}, err)
		return nil
	}

	count, err := h.prober.Search(c.Request.Context(), stac.SearchParams{
		Collection: doc.Inputs.Dataset,
		Intersects: doc.Inputs.Area,
		DateStart:  doc.Inputs.DateStart,
		DateEnd:    doc.Inputs.DateEnd,
	})
	if err != nil {
		h.log.WithError(err).Error("catalog pre-flight probe failed")
		middleware.AbortWithError(c, http.StatusInternalServerError, []string{"server"},
			"internal_server_error", "catalog probe failed")
		return nil
	}
	if count == 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, []string{"body", "workflow", "inputs"},
			"no_items_to_process_error", "no catalog items match the requested configuration")
		return nil
	}

	artifact, err := h.synthesizer.Synthesize(doc)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			middleware.AbortWithValidationError(c, []string{"body", "workflow"}, err)
			return nil
		}
		h.log.WithError(err).Error("application package synthesis failed")
		middleware.AbortWithError(c, http.StatusInternalServerError, []string{"server"},
			"internal_server_error", "workflow compilation failed")
		return nil
	}
	return artifact
}

// ValidateWorkflow runs the validator alone.
func (h *SubmissionHandler) ValidateWorkflow(c *gin.Context) {
	var req dto.SubmissionRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	doc := &req.Workflow
	if doc.Identifier != "" {
		normalized, err := workflow.NormalizeIdentifier(doc.Identifier)
		if err != nil {
			middleware.AbortWithValidationError(c, []string{"body", "workflow", "identifier"}, err)
			return
		}
		doc.Identifier = normalized
	}
	if err := h.validator.Validate(doc); err != nil {
		middleware.AbortWithValidationError(c, []string{"body", "workflow"}, err)
		return
	}
	c.JSON(http.StatusOK, dto.ValidationResponse{Valid: true})
}

// Submit validates, compiles, registers and executes a workflow.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req dto.SubmissionRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	artifact := h.prepare(c, &req.Workflow)
	if artifact == nil {
		return
	}

	engine := h.engine(c)
	ctx := c.Request.Context()

	spec := cwl.SubstitutePlaceholders(artifact.AppSpec)
	if _, err := engine.RegisterFresh(ctx, artifact.WorkflowID, spec); err != nil {
		abortEngineError(c, err)
		return
	}

	info, err := engine.Execute(ctx, artifact.WorkflowID, artifact.UserInputs)
	if err != nil {
		abortEngineError(c, err)
		return
	}

	h.publisher.Submitted(events.SubmissionEvent{
		JobID:      info.JobID,
		WorkflowID: artifact.WorkflowID,
		Workspace:  middleware.Workspace(c),
		Status:     string(info.Status.Normalize()),
		At:         time.Now().UTC(),
	})

	c.JSON(http.StatusAccepted, dto.NewJob(info, req.Workflow))
}

type historyQuery struct {
	OrderBy        string   `form:"order_by"`
	OrderDirection string   `form:"order_direction"`
	Page           int      `form:"page"`
	PerPage        *int     `form:"per_page"`
	Statuses       []string `form:"status"`
	Workspace      string   `form:"workspace"`
}

// List serves the paginated submission history.
func (h *SubmissionHandler) List(c *gin.Context) {
	var q historyQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	if q.Workspace != "" && q.Workspace != middleware.Workspace(c) {
		middleware.AbortWithError(c, http.StatusForbidden, []string{"query", "workspace"},
			"forbidden", "cannot read another workspace's submissions")
		return
	}

	list, err := h.engine(c).ListJobs(c.Request.Context(), h.historyWindow, 0)
	if err != nil {
		abortEngineError(c, err)
		return
	}

	statuses := make([]ades.Status, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses = append(statuses, ades.Status(s))
	}

	page, err := history.Run(list.Jobs, history.Query{
		Statuses:       statuses,
		OrderBy:        q.OrderBy,
		OrderDirection: q.OrderDirection,
		PageNumber:     q.Page,
		PerPage:        q.PerPage,
	})
	if err != nil {
		middleware.AbortWithValidationError(c, []string{"query"}, err)
		return
	}

	c.JSON(http.StatusOK, dto.SubmissionHistory{
		Results:    page.Results,
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	})
}

// Get serves one submission's summary. Jobs belonging to other
// workspaces surface as missing.
func (h *SubmissionHandler) Get(c *gin.Context) {
	info, err := h.engine(c).GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewJobSummary(info))
}

// Visualize builds chart-ready series from a finished submission's
// results catalog.
func (h *SubmissionHandler) Visualize(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	info, err := h.engine(c).GetJob(ctx, jobID)
	if err != nil {
		abortEngineError(c, err)
		return
	}
	if info.Status.Normalize() != ades.StatusSuccessful {
		middleware.AbortWithError(c, http.StatusBadRequest, []string{"path", "id"},
			"job_not_successful_error", "only successful submissions have results to visualize")
		return
	}

	items, err := h.reader.CollectionItems(ctx, stac.JobResultsCollection(jobID), 0)
	if err != nil {
		h.log.WithError(err).Error("reading results collection failed")
		middleware.AbortWithError(c, http.StatusInternalServerError, []string{"server"},
			"internal_server_error", "reading results catalog failed")
		return
	}

	c.JSON(http.StatusOK, dto.VisualizationResponse{
		JobID:          jobID,
		SpectralIndex:  visualization.SpectralIndexSeries(items),
		Classification: visualization.ClassificationSeries(items),
		Items:          len(items),
	})
}

// Delete cancels a running submission or deletes a finished one.
func (h *SubmissionHandler) Delete(c *gin.Context) {
	if err := h.engine(c).CancelJob(c.Request.Context(), c.Param("id")); err != nil {
		abortEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
