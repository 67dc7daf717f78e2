package ades

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/eodatahub/action-creator/internal/cwl"
)

// FunctionRegistry maps known function names to the locations of their
// CWL application packages.
type FunctionRegistry map[string]string

// Href looks up the CWL location for a function name.
func (r FunctionRegistry) Href(name string) (string, bool) {
	href, ok := r[name]
	return href, ok
}

// ErrUnknownFunction is returned when a reregistration names a function
// outside the registry.
func ErrUnknownFunction(name string) *Error {
	return &Error{
		Status: http.StatusNotFound,
		Code:   "not_found",
		Detail: fmt.Sprintf("Function '%s' is not registered.", name),
	}
}

// Reregister re-deploys a known function from its registered CWL
// location. The package is downloaded to a temporary file, environment
// placeholders are expanded, and the workflow id is optionally
// overridden before the POST. An existing process with the same id is
// replaced.
func (c *Client) Reregister(ctx context.Context, name, idOverride string) (*ProcessSummary, error) {
	href, ok := c.registry.Href(name)
	if !ok {
		return nil, ErrUnknownFunction(name)
	}

	dir, err := os.MkdirTemp("", "cwl-register-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name+".cwl")
	if err := c.downloadCWL(ctx, href, path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading downloaded package: %w", err)
	}
	raw = cwl.SubstitutePlaceholders(raw)

	processID := name
	if idOverride != "" {
		raw, err = overrideWorkflowID(raw, idOverride)
		if err != nil {
			return nil, err
		}
		processID = idOverride
	}

	return c.RegisterFresh(ctx, processID, raw)
}

// EnsureProcessExists is a no-op when the process is already deployed;
// otherwise it registers the function from its registered location.
func (c *Client) EnsureProcessExists(ctx context.Context, name string) error {
	_, err := c.GetProcess(ctx, name)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return err
	}
	_, err = c.Reregister(ctx, name, "")
	return err
}

func (c *Client) downloadCWL(ctx context.Context, href, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return fmt.Errorf("building package download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading package from %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading package from %s: status %d", href, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating package file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing package file: %w", err)
	}
	return nil
}

// overrideWorkflowID rewrites the id of every Workflow node in a packed
// $graph document.
func overrideWorkflowID(raw []byte, id string) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing package for id override: %w", err)
	}

	graph, ok := doc["$graph"].([]any)
	if !ok {
		return nil, fmt.Errorf("package has no $graph node")
	}
	overridden := false
	for _, node := range graph {
		m, ok := node.(map[string]any)
		if !ok {
			continue
		}
		if m["class"] == "Workflow" && !overridden {
			m["id"] = id
			overridden = true
		}
	}
	if !overridden {
		return nil, fmt.Errorf("package has no Workflow node")
	}

	return yaml.Marshal(doc)
}
