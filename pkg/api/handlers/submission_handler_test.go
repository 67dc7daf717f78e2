package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eodatahub/action-creator/internal/ades"
	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/internal/cwl"
	"github.com/eodatahub/action-creator/internal/stac"
	"github.com/eodatahub/action-creator/internal/workflow"
	"github.com/eodatahub/action-creator/pkg/api/dto"
	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

const testAreaJSON = `{"type":"Polygon","coordinates":[[[-0.51,51.46],[-0.42,51.46],[-0.42,51.49],[-0.51,51.49],[-0.51,51.46]]]}`

type fakeEngine struct {
	workspace string

	registered []string
	executed   []string
	cancelled  []string

	registerErr error
	executeErr  error
	listErr     error
	getErr      error
	cancelErr   error

	jobs []ades.StatusInfo
	job  *ades.StatusInfo
}

func (f *fakeEngine) RegisterFresh(_ context.Context, id string, _ []byte) (*ades.ProcessSummary, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, id)
	return &ades.ProcessSummary{ID: id}, nil
}

func (f *fakeEngine) Execute(_ context.Context, processID string, inputs map[string]any) (*ades.StatusInfo, error) {
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	f.executed = append(f.executed, processID)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &ades.StatusInfo{
		JobID:     "job-001",
		ProcessID: processID,
		Status:    ades.StatusRunning,
		Created:   &created,
	}, nil
}

func (f *fakeEngine) ListJobs(_ context.Context, _, _ int) (*ades.JobList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &ades.JobList{Jobs: f.jobs}, nil
}

func (f *fakeEngine) GetJob(_ context.Context, _ string) (*ades.StatusInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.job, nil
}

func (f *fakeEngine) CancelJob(_ context.Context, jobID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type fakeProber struct {
	count int
	err   error

	items      []stac.Item
	collection string
}

func (f *fakeProber) Search(context.Context, stac.SearchParams) (int, error) {
	return f.count, f.err
}

func (f *fakeProber) CollectionItems(_ context.Context, collection string, _ int) ([]stac.Item, error) {
	f.collection = collection
	return f.items, nil
}

func submissionRouter(t *testing.T, engine *fakeEngine, prober *fakeProber) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := catalog.NewRegistry()
	require.NoError(t, err)
	templates, err := cwl.LoadTemplates()
	require.NoError(t, err)

	handler := NewSubmissionHandler(
		workflow.NewValidator(registry, 15, 1000),
		cwl.NewSynthesizer(registry, templates),
		prober,
		prober,
		func(ws, _ string) EngineClient {
			engine.workspace = ws
			return engine
		},
		nil,
		logrus.NewEntry(logrus.New()),
	)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUsername, "alice")
		c.Set(middleware.ContextWorkspace, "alice-ws")
		c.Set(middleware.ContextBearer, "token")
	})
	router.POST("/workflow-validation", handler.ValidateWorkflow)
	router.POST("/workflow-submissions", handler.Submit)
	router.GET("/workflow-submissions", handler.List)
	router.GET("/workflow-submissions/:id", handler.Get)
	router.GET("/workflow-submissions/:id/visualization", handler.Visualize)
	router.DELETE("/workflow-submissions/:id", handler.Delete)
	return router
}

func validSubmission(t *testing.T) []byte {
	t.Helper()
	doc := workflow.Document{
		Identifier: "prod-wf",
		Inputs: workflow.Inputs{
			Area:      json.RawMessage(testAreaJSON),
			DateStart: "2024-01-01",
			DateEnd:   "2024-03-01",
			Dataset:   "sentinel-2-l2a",
		},
		Outputs: map[string]workflow.OutputValue{
			"results": {Kind: workflow.KindAtom, Spec: &workflow.DirectoryOutputSpec{Name: "results", Type: "directory"}},
		},
		Functions: workflow.Tasks{
			Order: []string{"query", "ndvi"},
			Items: map[string]*workflow.TaskInstance{
				"query": {
					Identifier: "s2-ds-query",
					Inputs: map[string]workflow.InputValue{
						"area":            {Kind: workflow.KindRef, Ref: []string{"inputs", "area"}},
						"stac_collection": {Kind: workflow.KindAtom, Atom: "sentinel-2-l2a"},
						"date_start":      {Kind: workflow.KindRef, Ref: []string{"inputs", "date_start"}},
						"date_end":        {Kind: workflow.KindRef, Ref: []string{"inputs", "date_end"}},
					},
					Outputs: map[string]workflow.OutputValue{
						"results": {Kind: workflow.KindAtom, Spec: &workflow.DirectoryOutputSpec{Name: "results", Type: "directory"}},
					},
				},
				"ndvi": {
					Identifier: "ndvi",
					Inputs: map[string]workflow.InputValue{
						"data_dir": {Kind: workflow.KindRef, Ref: []string{"functions", "query", "outputs", "results"}},
					},
					Outputs: map[string]workflow.OutputValue{
						"results": {Kind: workflow.KindRef, Ref: []string{"outputs", "results"}},
					},
				},
			},
		},
	}
	body, err := json.Marshal(dto.SubmissionRequest{Workflow: doc})
	require.NoError(t, err)
	return body
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	router.ServeHTTP(w, req)
	return w
}

func errorTypes(t *testing.T, body []byte) []string {
	t.Helper()
	var envelope dto.ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	types := make([]string, 0, len(envelope.Detail))
	for _, d := range envelope.Detail {
		types = append(types, d.Type)
	}
	return types
}

func TestValidateWorkflow_Valid(t *testing.T) {
	router := submissionRouter(t, &fakeEngine{}, &fakeProber{count: 1})

	w := perform(router, http.MethodPost, "/workflow-validation", validSubmission(t))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
}

func TestValidateWorkflow_UnknownDataset(t *testing.T) {
	router := submissionRouter(t, &fakeEngine{}, &fakeProber{count: 1})

	var req dto.SubmissionRequest
	require.NoError(t, json.Unmarshal(validSubmission(t), &req))
	req.Workflow.Inputs.Dataset = "not-a-collection"
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := perform(router, http.MethodPost, "/workflow-validation", body)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, errorTypes(t, w.Body.Bytes()), "collection_not_supported_error")
}

func TestSubmit_HappyPath(t *testing.T) {
	engine := &fakeEngine{}
	router := submissionRouter(t, engine, &fakeProber{count: 3})

	w := perform(router, http.MethodPost, "/workflow-submissions", validSubmission(t))

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Equal(t, []string{"prod-wf"}, engine.registered)
	require.Equal(t, []string{"prod-wf"}, engine.executed)
	assert.Equal(t, "alice-ws", engine.workspace)

	var job dto.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "job-001", job.JobID)
	assert.Equal(t, ades.StatusRunning, job.Status)
	assert.NotNil(t, job.WorkflowSpec)
}

func TestSubmit_DatasetReferenceInput(t *testing.T) {
	engine := &fakeEngine{}
	router := submissionRouter(t, engine, &fakeProber{count: 3})

	var req dto.SubmissionRequest
	require.NoError(t, json.Unmarshal(validSubmission(t), &req))
	req.Workflow.Functions.Items["query"].Inputs["stac_collection"] = workflow.InputValue{
		Kind: workflow.KindRef, Ref: []string{"inputs", "dataset"},
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := perform(router, http.MethodPost, "/workflow-submissions", body)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Equal(t, []string{"prod-wf"}, engine.executed)
}

func TestSubmit_NoCatalogItems(t *testing.T) {
	engine := &fakeEngine{}
	router := submissionRouter(t, engine, &fakeProber{count: 0})

	w := perform(router, http.MethodPost, "/workflow-submissions", validSubmission(t))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorTypes(t, w.Body.Bytes()), "no_items_to_process_error")
	assert.Empty(t, engine.registered)
}

func TestSubmit_ValidationFailureSkipsEngine(t *testing.T) {
	engine := &fakeEngine{}
	router := submissionRouter(t, engine, &fakeProber{count: 3})

	var req dto.SubmissionRequest
	require.NoError(t, json.Unmarshal(validSubmission(t), &req))
	req.Workflow.Inputs.Area = nil
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := perform(router, http.MethodPost, "/workflow-submissions", body)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, errorTypes(t, w.Body.Bytes()), "missing_area_of_interest_error")
	assert.Empty(t, engine.registered)
}

func TestSubmit_EngineErrorSurfaced(t *testing.T) {
	engine := &fakeEngine{
		executeErr: &ades.Error{Status: http.StatusTooManyRequests, Code: "too many requests", Detail: "slow down"},
	}
	router := submissionRouter(t, engine, &fakeProber{count: 3})

	w := perform(router, http.MethodPost, "/workflow-submissions", validSubmission(t))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, errorTypes(t, w.Body.Bytes()), "too many requests")
}

func TestList_ProjectsAndSorts(t *testing.T) {
	early := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	engine := &fakeEngine{jobs: []ades.StatusInfo{
		{JobID: "a", ProcessID: "wf-a", Status: ades.StatusSuccessful, Created: &early, Finished: &early},
		{JobID: "b", ProcessID: "wf-b", Status: ades.StatusRunning, Created: &late},
	}}
	router := submissionRouter(t, engine, &fakeProber{})

	w := perform(router, http.MethodGet,
		"/workflow-submissions?order_by=submitted_at&order_direction=desc", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.SubmissionHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "b", resp.Results[0].SubmissionID)
	require.NotNil(t, resp.Results[1].Successful)
	assert.True(t, *resp.Results[1].Successful)
}

func TestList_InvalidSortKey(t *testing.T) {
	router := submissionRouter(t, &fakeEngine{}, &fakeProber{})

	w := perform(router, http.MethodGet, "/workflow-submissions?order_by=bogus", nil)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, errorTypes(t, w.Body.Bytes()), "invalid_order_by_error")
}

func TestList_ForeignWorkspaceRejected(t *testing.T) {
	router := submissionRouter(t, &fakeEngine{}, &fakeProber{})

	w := perform(router, http.MethodGet, "/workflow-submissions?workspace=bob-ws", nil)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGet_NotFoundFromRemappedForbidden(t *testing.T) {
	engine := &fakeEngine{
		getErr: &ades.Error{Status: http.StatusNotFound, Code: "not found", Detail: "Job 'job-9' does not exist."},
	}
	router := submissionRouter(t, engine, &fakeProber{})

	w := perform(router, http.MethodGet, "/workflow-submissions/job-9", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	var envelope dto.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Detail, 1)
	assert.Equal(t, "Job 'job-9' does not exist.", envelope.Detail[0].Msg)
}

func TestGet_DismissedSurfacesAsCancelled(t *testing.T) {
	finished := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	engine := &fakeEngine{job: &ades.StatusInfo{
		JobID:     "job-2",
		ProcessID: "wf-a",
		Status:    ades.StatusDismissed,
		Finished:  &finished,
	}}
	router := submissionRouter(t, engine, &fakeProber{})

	w := perform(router, http.MethodGet, "/workflow-submissions/job-2", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var summary dto.JobSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, ades.StatusCancelled, summary.Status)
}

func TestVisualize_BuildsSeriesFromResultsCatalog(t *testing.T) {
	engine := &fakeEngine{job: &ades.StatusInfo{
		JobID:     "job-1",
		ProcessID: "prod-wf",
		Status:    ades.StatusSuccessful,
	}}
	prober := &fakeProber{items: []stac.Item{
		{
			ID:         "item-1",
			Properties: map[string]any{"datetime": "2024-06-01T00:00:00Z"},
			Assets: map[string]stac.Asset{
				"ndvi": {Statistics: &stac.Statistics{Mean: 0.4, Min: 0.1, Max: 0.8}},
			},
		},
	}}
	router := submissionRouter(t, engine, prober)

	w := perform(router, http.MethodGet, "/workflow-submissions/job-1/visualization", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "col_job-1", prober.collection)

	var resp dto.VisualizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, 1, resp.Items)
	require.Len(t, resp.SpectralIndex, 1)
	assert.Equal(t, "ndvi", resp.SpectralIndex[0].Name)
}

func TestVisualize_RejectsUnfinishedJob(t *testing.T) {
	engine := &fakeEngine{job: &ades.StatusInfo{
		JobID:  "job-1",
		Status: ades.StatusRunning,
	}}
	router := submissionRouter(t, engine, &fakeProber{})

	w := perform(router, http.MethodGet, "/workflow-submissions/job-1/visualization", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorTypes(t, w.Body.Bytes()), "job_not_successful_error")
}

func TestDelete_Cancels(t *testing.T) {
	engine := &fakeEngine{}
	router := submissionRouter(t, engine, &fakeProber{})

	w := perform(router, http.MethodDelete, "/workflow-submissions/job-1", nil)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"job-1"}, engine.cancelled)
}

func TestDelete_NotImplementedSurfaced(t *testing.T) {
	engine := &fakeEngine{
		cancelErr: &ades.Error{Status: http.StatusNotImplemented, Code: "not implemented", Detail: "cancellation unsupported"},
	}
	router := submissionRouter(t, engine, &fakeProber{})

	w := perform(router, http.MethodDelete, "/workflow-submissions/job-1", nil)

	require.Equal(t, http.StatusNotImplemented, w.Code)
}
