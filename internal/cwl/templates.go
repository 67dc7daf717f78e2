package cwl

import (
	"embed"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/eodatahub/action-creator/internal/catalog"
)

//go:embed templates/*.yaml
var templateAssets embed.FS

// Tool is a parsed CommandLineTool template. Templates are treated as
// opaque documents so that new tool fields never require code changes.
type Tool map[string]any

// TemplateStore holds the parsed CommandLineTool templates keyed by
// template name.
type TemplateStore struct {
	tools map[string]Tool
}

// LoadTemplates parses every embedded tool template.
func LoadTemplates() (*TemplateStore, error) {
	entries, err := templateAssets.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("reading tool templates: %w", err)
	}
	tools := make(map[string]Tool, len(entries))
	for _, e := range entries {
		raw, err := templateAssets.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		var tool Tool
		if err := yaml.Unmarshal(raw, &tool); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", e.Name(), err)
		}
		id, _ := tool["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("template %s has no id", e.Name())
		}
		tools[id] = tool
	}
	return &TemplateStore{tools: tools}, nil
}

// Names returns the template names in sorted order.
func (s *TemplateStore) Names() []string {
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForTask returns a deep copy of the template serving the given task,
// with the tool id rewritten to the step's tool id.
func (s *TemplateStore) ForTask(desc *catalog.TaskDescriptor, toolID string) (Tool, error) {
	name := templateName(desc)
	tool, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("no tool template %q for task %q", name, desc.Identifier)
	}
	clone := cloneValue(map[string]any(tool)).(map[string]any)
	clone["id"] = toolID
	return Tool(clone), nil
}

// Resources extracts the ResourceRequirement declared by the template
// serving the given task. A template without one contributes zeroes.
func (s *TemplateStore) Resources(desc *catalog.TaskDescriptor) ResourceRequirement {
	tool, ok := s.tools[templateName(desc)]
	if !ok {
		return ResourceRequirement{}
	}
	reqs, ok := tool["requirements"].(map[string]any)
	if !ok {
		return ResourceRequirement{}
	}
	res, ok := reqs["ResourceRequirement"].(map[string]any)
	if !ok {
		return ResourceRequirement{}
	}
	return ResourceRequirement{
		CoresMin: asFloat(res["coresMin"]),
		CoresMax: asFloat(res["coresMax"]),
		RAMMin:   int(asFloat(res["ramMin"])),
		RAMMax:   int(asFloat(res["ramMax"])),
	}
}

// Outputs returns the output ids declared by the template serving the
// given task, sorted.
func (s *TemplateStore) Outputs(desc *catalog.TaskDescriptor) []string {
	tool, ok := s.tools[templateName(desc)]
	if !ok {
		return nil
	}
	outs, ok := tool["outputs"].(map[string]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(outs))
	for id := range outs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// templateName maps a task to its tool template. Data-select tasks share
// the generic query tool and spectral indices share the index tool; every
// other task has a template of its own.
func templateName(desc *catalog.TaskDescriptor) string {
	switch {
	case desc.Category == catalog.CategoryDataSelect:
		return "ds-query"
	case catalog.SpectralIndexTasks[desc.Identifier]:
		return "spectral-index"
	default:
		return desc.Identifier
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return 0
	}
}
