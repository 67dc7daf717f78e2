package ades

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/internal/circuitbreaker"
	"github.com/eodatahub/action-creator/internal/retry"
)

const (
	// DefaultTimeout is the per-attempt timeout for engine calls.
	DefaultTimeout = 30 * time.Second
	// DefaultListJobsTimeout covers the slower jobs listing.
	DefaultListJobsTimeout = 120 * time.Second
	// DefaultMaxAttempts bounds retries on transient engine statuses.
	DefaultMaxAttempts = 3

	contentTypeCWL  = "application/cwl+yaml"
	contentTypeJSON = "application/json"
)

// Options configures an engine client for one workspace.
type Options struct {
	// BaseURL is the engine root, e.g. https://ades.example.com.
	BaseURL string
	// ProcessesSegment and JobsSegment are the engine's path segments,
	// defaulting to the OGC names.
	ProcessesSegment string
	JobsSegment      string
	// Workspace scopes every call; Token authenticates them.
	Workspace string
	Token     string

	HTTPClient *http.Client
	Logger     *logrus.Entry
	// Registry maps known function names to their CWL locations for
	// reregistration.
	Registry FunctionRegistry
	// Breaker, when set, sheds engine calls while the engine is failing
	// hard. Share one breaker across the clients of a deployment.
	Breaker *circuitbreaker.Breaker

	Timeout         time.Duration
	ListJobsTimeout time.Duration
	MaxAttempts     int
}

// Client talks OGC API Processes to the execution engine on behalf of
// one workspace. Transient engine statuses (429, 502, 503) are retried
// with exponential backoff; everything else is returned normalized.
type Client struct {
	baseURL   string
	processes string
	jobs      string
	workspace string
	token     string

	httpClient *http.Client
	log        *logrus.Entry
	registry   FunctionRegistry
	breaker    *circuitbreaker.Breaker

	timeout         time.Duration
	listJobsTimeout time.Duration
	maxAttempts     int
	backoff         retry.Strategy
}

// NewClient builds an engine client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:         opts.BaseURL,
		processes:       opts.ProcessesSegment,
		jobs:            opts.JobsSegment,
		workspace:       opts.Workspace,
		token:           opts.Token,
		httpClient:      opts.HTTPClient,
		log:             opts.Logger,
		registry:        opts.Registry,
		breaker:         opts.Breaker,
		timeout:         opts.Timeout,
		listJobsTimeout: opts.ListJobsTimeout,
		maxAttempts:     opts.MaxAttempts,
	}
	if c.processes == "" {
		c.processes = "processes"
	}
	if c.jobs == "" {
		c.jobs = "jobs"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.listJobsTimeout <= 0 {
		c.listJobsTimeout = DefaultListJobsTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.backoff == nil {
		c.backoff = retry.DefaultExponentialBackoff()
	}
	return c
}

// Workspace returns the workspace this client is scoped to.
func (c *Client) Workspace() string {
	return c.workspace
}

type callSpec struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        []byte
	timeout     time.Duration
	kind        resourceKind
	id          string
	// okStatuses lists acceptable response codes; empty means any 2xx.
	okStatuses []int
}

func (c *Client) call(ctx context.Context, spec callSpec) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.workspace, spec.path)
	if len(spec.query) > 0 {
		endpoint += "?" + spec.query.Encode()
	}
	timeout := spec.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, errEngineUnavailable()
		}
	}

	cfg := retry.NewConfig(c.maxAttempts, c.backoff).
		WithRetryIf(IsTransient).
		WithOnRetry(func(attempt int, err error) {
			c.log.WithFields(logrus.Fields{
				"attempt":  attempt,
				"endpoint": endpoint,
			}).WithError(err).Warn("retrying execution engine call")
		})

	payload, err := retry.DoWithValue(ctx, cfg, func() ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var reader io.Reader
		if spec.body != nil {
			reader = bytes.NewReader(spec.body)
		}
		req, err := http.NewRequestWithContext(attemptCtx, spec.method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("building engine request: %w", err)
		}
		req.Header.Set("Accept", contentTypeJSON)
		if spec.contentType != "" {
			req.Header.Set("Content-Type", spec.contentType)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if spec.method == http.MethodPost && spec.path != c.processes {
			req.Header.Set("Prefer", "respond-async")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling execution engine: %w", err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading engine response: %w", err)
		}

		if !statusOK(resp.StatusCode, spec.okStatuses) {
			return nil, normalizeError(resp.StatusCode, payload, spec.kind, spec.id)
		}
		return payload, nil
	})

	if c.breaker != nil {
		c.breaker.Record(err)
	}
	return payload, err
}

// NewBreaker builds a circuit breaker tuned for engine calls: only
// transport failures and 5xx responses count towards opening it.
func NewBreaker(log *logrus.Entry) *circuitbreaker.Breaker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg := circuitbreaker.DefaultConfig()
	cfg.Counts = countsTowardsBreaker
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		log.WithFields(logrus.Fields{
			"from": from.String(),
			"to":   to.String(),
		}).Warn("execution engine circuit breaker state changed")
	}
	return circuitbreaker.New(cfg)
}

func countsTowardsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if engineErr, ok := AsEngineError(err); ok {
		return engineErr.Status >= 500
	}
	return true
}

func errEngineUnavailable() error {
	return &Error{
		Status: http.StatusServiceUnavailable,
		Code:   "service unavailable",
		Detail: "execution engine temporarily unavailable",
	}
}

func statusOK(status int, allowed []int) bool {
	if len(allowed) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// ListProcesses returns the processes registered in the workspace.
func (c *Client) ListProcesses(ctx context.Context) ([]ProcessSummary, error) {
	body, err := c.call(ctx, callSpec{method: http.MethodGet, path: c.processes})
	if err != nil {
		return nil, err
	}
	var list ProcessList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding process list: %w", err)
	}
	return list.Processes, nil
}

// GetProcess fetches one process description.
func (c *Client) GetProcess(ctx context.Context, id string) (*ProcessSummary, error) {
	body, err := c.call(ctx, callSpec{
		method: http.MethodGet,
		path:   c.processes + "/" + id,
		kind:   kindProcess,
		id:     id,
	})
	if err != nil {
		return nil, err
	}
	var p ProcessSummary
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decoding process: %w", err)
	}
	return &p, nil
}

// Register deploys a CWL application package. Placeholders are expanded
// by the caller.
func (c *Client) Register(ctx context.Context, cwl []byte) (*ProcessSummary, error) {
	body, err := c.call(ctx, callSpec{
		method:      http.MethodPost,
		path:        c.processes,
		contentType: contentTypeCWL,
		body:        cwl,
	})
	if err != nil {
		return nil, err
	}
	var p ProcessSummary
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decoding register response: %w", err)
		}
	}
	return &p, nil
}

// RegisterFresh deploys a package, replacing any process that already
// carries the same identifier.
func (c *Client) RegisterFresh(ctx context.Context, id string, cwl []byte) (*ProcessSummary, error) {
	p, err := c.Register(ctx, cwl)
	if !IsConflict(err) {
		return p, err
	}

	c.log.WithField("process_id", id).Info("process already registered, replacing")
	if err := c.Unregister(ctx, id); err != nil && !IsNotFound(err) {
		return nil, err
	}
	return c.Register(ctx, cwl)
}

// Unregister removes a process.
func (c *Client) Unregister(ctx context.Context, id string) error {
	_, err := c.call(ctx, callSpec{
		method: http.MethodDelete,
		path:   c.processes + "/" + id,
		kind:   kindProcess,
		id:     id,
	})
	return err
}

// Execute starts an asynchronous run of a registered process. The
// workspace input is injected when the caller did not set one.
func (c *Client) Execute(ctx context.Context, processID string, inputs map[string]any) (*StatusInfo, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	if _, ok := inputs["workspace"]; !ok {
		inputs["workspace"] = c.workspace
	}

	c.log.WithFields(logrus.Fields{
		"process_id": processID,
		"inputs":     inputs,
	}).Info("executing process")

	payload, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return nil, fmt.Errorf("encoding execute request: %w", err)
	}

	body, err := c.call(ctx, callSpec{
		method:      http.MethodPost,
		path:        c.processes + "/" + processID + "/execution",
		contentType: contentTypeJSON,
		body:        payload,
		kind:        kindProcess,
		id:          processID,
	})
	if err != nil {
		return nil, err
	}
	var info StatusInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding execute response: %w", err)
	}
	return &info, nil
}

// ListJobs pages through the workspace's jobs.
func (c *Client) ListJobs(ctx context.Context, limit, skip int) (*JobList, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if skip > 0 {
		query.Set("skip", fmt.Sprint(skip))
	}

	body, err := c.call(ctx, callSpec{
		method:  http.MethodGet,
		path:    c.jobs,
		query:   query,
		timeout: c.listJobsTimeout,
	})
	if err != nil {
		return nil, err
	}
	var list JobList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding job list: %w", err)
	}
	return &list, nil
}

// GetJob fetches one job's status.
func (c *Client) GetJob(ctx context.Context, jobID string) (*StatusInfo, error) {
	body, err := c.call(ctx, callSpec{
		method: http.MethodGet,
		path:   c.jobs + "/" + jobID,
		kind:   kindJob,
		id:     jobID,
	})
	if err != nil {
		return nil, err
	}
	var info StatusInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	return &info, nil
}

// GetJobResults fetches the results document of a finished job.
func (c *Client) GetJobResults(ctx context.Context, jobID string) (map[string]any, error) {
	body, err := c.call(ctx, callSpec{
		method: http.MethodGet,
		path:   c.jobs + "/" + jobID + "/results",
		kind:   kindJob,
		id:     jobID,
	})
	if err != nil {
		return nil, err
	}
	var results map[string]any
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decoding job results: %w", err)
	}
	return results, nil
}

// CancelJob dismisses a running job or deletes a finished one.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	_, err := c.call(ctx, callSpec{
		method: http.MethodDelete,
		path:   c.jobs + "/" + jobID,
		kind:   kindJob,
		id:     jobID,
	})
	return err
}
