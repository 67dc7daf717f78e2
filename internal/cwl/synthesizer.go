package cwl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/internal/geo"
	"github.com/eodatahub/action-creator/internal/workflow"
)

// Artifact is a synthesized application package ready for registration
// and execution.
type Artifact struct {
	// WorkflowID is the id of the workflow to execute. For chipped
	// submissions this is the scatter wrapper's id.
	WorkflowID string
	// AppSpec is the packed $graph document in YAML, with environment
	// placeholders still unexpanded.
	AppSpec []byte
	// Graph is the in-memory form of AppSpec.
	Graph *GraphDocument
	// UserInputs are the execution inputs matching the workflow's
	// input parameters.
	UserInputs map[string]any
}

// Synthesizer turns validated workflow documents into CWL application
// packages.
type Synthesizer struct {
	registry    *catalog.Registry
	templates   *TemplateStore
	chipSizeDeg float64
}

// NewSynthesizer builds a synthesizer over the task catalog and the
// embedded tool templates.
func NewSynthesizer(registry *catalog.Registry, templates *TemplateStore) *Synthesizer {
	return &Synthesizer{
		registry:    registry,
		templates:   templates,
		chipSizeDeg: geo.DefaultChipSizeDeg,
	}
}

// Synthesize emits the application package for a validated document.
// Large areas of interest are chipped into tiles and the workflow is
// wrapped in a scatter step running once per tile.
func (s *Synthesizer) Synthesize(doc *workflow.Document) (*Artifact, error) {
	wfID := doc.Identifier
	if wfID == "" {
		wfID = GenerateWorkflowID()
	}
	if _, err := workflow.NormalizeIdentifier(wfID); err != nil {
		return nil, err
	}

	aoi, err := geo.ParsePolygon(doc.Inputs.Area)
	if err != nil {
		return nil, err
	}
	chips := geo.Chip(aoi, s.chipSizeDeg)

	inner, tools, userInputs, err := s.buildWorkflow(wfID, doc)
	if err != nil {
		return nil, err
	}

	graphNodes := make([]any, 0, len(tools)+2)
	executeID := wfID
	if len(chips) > 1 {
		wrapper, err := wrapScatter(wfID, inner, userInputs, chips)
		if err != nil {
			return nil, err
		}
		executeID = wrapper.ID
		graphNodes = append(graphNodes, wrapper)
	}
	graphNodes = append(graphNodes, inner)
	for _, t := range tools {
		graphNodes = append(graphNodes, t)
	}

	graph := &GraphDocument{CWLVersion: Version, Graph: graphNodes}
	if err := ValidateGraph(graph); err != nil {
		return nil, err
	}

	spec, err := yaml.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("marshaling application package: %w", err)
	}

	return &Artifact{
		WorkflowID: executeID,
		AppSpec:    spec,
		Graph:      graph,
		UserInputs: userInputs,
	}, nil
}

// buildWorkflow assembles the core workflow node, one tool per task, and
// the execution inputs.
func (s *Synthesizer) buildWorkflow(wfID string, doc *workflow.Document) (*Workflow, []Tool, map[string]any, error) {
	wf := &Workflow{
		ID:    wfID,
		Class: "Workflow",
		Label: wfID,
	}

	userInputs := map[string]any{}
	seenInputs := map[string]bool{}

	addInput := func(p Parameter, value any) {
		if seenInputs[p.ID] {
			return
		}
		seenInputs[p.ID] = true
		wf.Inputs = append(wf.Inputs, p)
		userInputs[p.ID] = value
	}

	areaJSON, err := compactJSON(doc.Inputs.Area)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding area of interest: %w", err)
	}
	addInput(Parameter{ID: "area", Type: "string", Doc: "Area of interest as a GeoJSON Polygon"}, areaJSON)
	if doc.Inputs.DateStart != "" {
		addInput(Parameter{ID: "date_start", Type: "string"}, doc.Inputs.DateStart)
	}
	if doc.Inputs.DateEnd != "" {
		addInput(Parameter{ID: "date_end", Type: "string"}, doc.Inputs.DateEnd)
	}
	for _, k := range sortedKeys(doc.Inputs.DatasetAdvancedSettings) {
		addInput(Parameter{ID: k, Type: "string"}, atomString(doc.Inputs.DatasetAdvancedSettings[k]))
	}

	tools := make([]Tool, 0, doc.Functions.Len())
	resources := ResourceRequirement{}

	for _, taskID := range doc.Functions.Order {
		task, _ := doc.Functions.Get(taskID)
		desc, ok := s.registry.Get(task.Identifier)
		if !ok {
			return nil, nil, nil, fmt.Errorf("task %q has unknown identifier %q", taskID, task.Identifier)
		}

		tool, err := s.templates.ForTask(desc, taskID+"-tool")
		if err != nil {
			return nil, nil, nil, err
		}
		tools = append(tools, tool)
		resources.Merge(s.templates.Resources(desc))

		step := Step{
			ID:  taskID,
			Run: "#" + taskID + "-tool",
			Out: s.templates.Outputs(desc),
		}

		for _, name := range sortedKeys(task.Inputs) {
			in := task.Inputs[name]
			if in.IsRef() {
				src, err := refSource(in.Ref)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("task %q input %q: %w", taskID, name, err)
				}
				// The dataset is not a standing workflow input; declare
				// it only when a task wires itself to it.
				if len(in.Ref) == 2 && in.Ref[0] == "inputs" && in.Ref[1] == "dataset" {
					addInput(Parameter{ID: "dataset", Type: "string", Doc: "STAC collection identifier"}, doc.Inputs.Dataset)
				}
				step.In = append(step.In, StepInput{ID: name, Source: src})
				continue
			}
			paramID := taskID + "_" + name
			addInput(Parameter{ID: paramID, Type: "string"}, atomString(in.Atom))
			step.In = append(step.In, StepInput{ID: name, Source: paramID})
		}

		// Spectral-index tasks share one tool and select the band math
		// through a synthesized index input.
		if catalog.SpectralIndexTasks[desc.Identifier] {
			paramID := taskID + "_index"
			addInput(Parameter{ID: paramID, Type: "string"}, desc.Identifier)
			step.In = append(step.In, StepInput{ID: "index", Source: paramID})
		}

		for _, outName := range sortedKeys(task.Outputs) {
			out := task.Outputs[outName]
			if !out.IsWorkflowOutput() {
				continue
			}
			if len(out.Ref) != 2 || out.Ref[0] != "outputs" {
				return nil, nil, nil, fmt.Errorf("task %q output %q has malformed reference %v", taskID, outName, out.Ref)
			}
			wf.Outputs = append(wf.Outputs, OutputParameter{
				ID:           out.Ref[1],
				Type:         "Directory",
				OutputSource: taskID + "/" + outName,
			})
		}

		wf.Steps = append(wf.Steps, step)
	}

	resources.ApplyFloors()
	wf.Requirements = &Requirements{Resource: &resources}

	return wf, tools, userInputs, nil
}

// refSource maps a document reference path to a CWL source string.
func refSource(path []string) (string, error) {
	switch {
	case len(path) >= 2 && path[0] == "inputs":
		if len(path) == 3 && path[1] == "dataset_advanced_settings" {
			return path[2], nil
		}
		return path[1], nil
	case len(path) == 4 && path[0] == "functions" && path[2] == "outputs":
		return path[1] + "/" + path[3], nil
	default:
		return "", fmt.Errorf("unsupported reference path %v", path)
	}
}

func compactJSON(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// atomString renders an atom for the string-typed workflow inputs the
// tool templates expect.
func atomString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
