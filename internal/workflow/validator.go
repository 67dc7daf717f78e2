package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eodatahub/action-creator/internal/apperr"
	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/internal/geo"
)

// DefaultMaxTasks is the default task budget per workflow.
const DefaultMaxTasks = 15

// Validator runs the structural checks over a workflow document. Checks run
// in a fixed order; the first failure is returned.
type Validator struct {
	registry     *catalog.Registry
	maxTasks     int
	areaLimitKM2 float64
}

// NewValidator creates a validator over the given task catalog.
func NewValidator(registry *catalog.Registry, maxTasks int, areaLimitKM2 float64) *Validator {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	if areaLimitKM2 <= 0 {
		areaLimitKM2 = geo.DefaultAreaLimitKM2
	}
	return &Validator{
		registry:     registry,
		maxTasks:     maxTasks,
		areaLimitKM2: areaLimitKM2,
	}
}

// Validate checks the workflow-level inputs and then the structural
// invariants of the graph. The first failing check is returned as a typed
// error.
func (v *Validator) Validate(doc *Document) error {
	if err := v.validateInputs(doc); err != nil {
		return err
	}

	if err := v.checkIdentifierCollision(doc); err != nil {
		return err
	}
	if err := v.checkTaskBudget(doc); err != nil {
		return err
	}
	if err := v.checkKnownTasks(doc); err != nil {
		return err
	}
	if err := v.checkDatasetCompatibility(doc); err != nil {
		return err
	}
	if _, err := ResolveRefs(doc); err != nil {
		return err
	}

	graph := NewGraph(doc)

	if err := v.checkAcyclic(graph); err != nil {
		return err
	}
	if err := v.checkOutputMappings(graph); err != nil {
		return err
	}
	if err := v.checkConnected(graph); err != nil {
		return err
	}
	if err := v.checkDanglingFunctions(graph); err != nil {
		return err
	}
	if err := v.checkTaskOrder(graph); err != nil {
		return err
	}
	return v.checkTaskFields(doc)
}

// validateInputs runs the area, date and dataset validators over the
// workflow-level inputs section.
func (v *Validator) validateInputs(doc *Document) error {
	polygon, err := geo.ParsePolygon(doc.Inputs.Area)
	if err != nil {
		return err
	}
	if err := geo.EnsureAreaWithinLimit(polygon, v.areaLimitKM2); err != nil {
		return err
	}

	if doc.Inputs.Dataset == "" || !v.registry.KnownDataset(doc.Inputs.Dataset) {
		return apperr.Newf("collection_not_supported_error",
			"dataset %q is not supported", doc.Inputs.Dataset).
			With("dataset", doc.Inputs.Dataset)
	}

	start, end, err := parseDates(doc.Inputs.DateStart, doc.Inputs.DateEnd)
	if err != nil {
		return err
	}
	if err := geo.ValidateDateRange(start, end); err != nil {
		return err
	}
	return geo.ValidateCollectionDateRange(doc.Inputs.Dataset, start, end)
}

func parseDates(startStr, endStr string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if startStr != "" {
		t, err := geo.ParseDate(startStr)
		if err != nil {
			return nil, nil, apperr.Newf("invalid_date_range_error",
				"invalid date_start: %v", err).With("date_start", startStr)
		}
		start = &t
	}
	if endStr != "" {
		t, err := geo.ParseDate(endStr)
		if err != nil {
			return nil, nil, apperr.Newf("invalid_date_range_error",
				"invalid date_end: %v", err).With("date_end", endStr)
		}
		end = &t
	}
	return start, end, nil
}

// Check 1: the workflow identifier must not collide with a task id.
func (v *Validator) checkIdentifierCollision(doc *Document) error {
	if doc.Identifier == "" {
		return nil
	}
	for _, taskID := range doc.Functions.Order {
		if doc.Identifier == taskID {
			return apperr.Newf("workflow_identifier_collision_error",
				"workflow identifier %q collides with a task id", doc.Identifier).
				With("identifier", doc.Identifier)
		}
	}
	return nil
}

// Check 2: the task budget.
func (v *Validator) checkTaskBudget(doc *Document) error {
	if doc.Functions.Len() > v.maxTasks {
		return apperr.Newf("maximum_number_of_tasks_exceeded_error",
			"workflow has %d tasks, the maximum is %d", doc.Functions.Len(), v.maxTasks).
			With("max_tasks_num", v.maxTasks)
	}
	return nil
}

// Every task identifier must exist in the catalog.
func (v *Validator) checkKnownTasks(doc *Document) error {
	var unknown []string
	for _, taskID := range doc.Functions.Order {
		task := doc.Functions.Items[taskID]
		if _, ok := v.registry.Get(task.Identifier); !ok {
			unknown = append(unknown, taskID)
		}
	}
	if len(unknown) > 0 {
		return apperr.Newf("unknown_task_error",
			"unknown task identifiers: %s", strings.Join(unknown, ", ")).
			With("invalid_tasks", unknown)
	}
	return nil
}

// Check 3: every task must support the selected dataset.
func (v *Validator) checkDatasetCompatibility(doc *Document) error {
	var invalid []string
	for _, taskID := range doc.Functions.Order {
		task := doc.Functions.Items[taskID]
		descriptor, ok := v.registry.Get(task.Identifier)
		if !ok {
			continue
		}
		if !descriptor.SupportsDataset(doc.Inputs.Dataset) {
			invalid = append(invalid, taskID)
		}
	}
	if len(invalid) > 0 {
		return apperr.Newf("collection_not_supported_for_task_error",
			"tasks %s do not support dataset %q",
			strings.Join(invalid, ", "), doc.Inputs.Dataset).
			With("invalid_tasks", invalid).
			With("dataset", doc.Inputs.Dataset)
	}
	return nil
}

// Check 5: the graph must be acyclic.
func (v *Validator) checkAcyclic(graph *Graph) error {
	cycles := graph.FindCycles()
	if len(cycles) == 0 {
		return nil
	}
	return apperr.Newf("cycle_or_self_loop_detected_error",
		"workflow graph contains %d cycle(s)", len(cycles)).
		With("cycles", cycles)
}

// Check 6: every workflow output must be populated by some task.
func (v *Validator) checkOutputMappings(graph *Graph) error {
	var dangling []string
	for _, node := range graph.OutputNodes() {
		if len(graph.Predecessors(node)) == 0 {
			dangling = append(dangling, TrimNodePrefix(node))
		}
	}
	if len(dangling) > 0 {
		sort.Strings(dangling)
		return apperr.Newf("task_output_without_mapping_detected_error",
			"workflow outputs without a producing task: %s", strings.Join(dangling, ", ")).
			With("dangling_outputs", dangling)
	}
	return nil
}

// Check 7: the undirected projection must be a single connected component.
func (v *Validator) checkConnected(graph *Graph) error {
	components := graph.ConnectedComponents()
	if len(components) <= 1 {
		return nil
	}
	return apperr.Newf("disjoined_subgraphs_detected_error",
		"workflow graph has %d disjoined subgraphs", len(components)).
		With("subgraphs", components)
}

// Check 8: no task may produce a result that nothing consumes.
func (v *Validator) checkDanglingFunctions(graph *Graph) error {
	var dangling []string
	for _, node := range graph.FunctionNodes() {
		if len(graph.Successors(node)) == 0 {
			dangling = append(dangling, TrimNodePrefix(node))
		}
	}
	if len(dangling) > 0 {
		return apperr.Newf("dangling_functions_detected_error",
			"tasks whose output feeds nothing: %s", strings.Join(dangling, ", ")).
			With("dangling_functions", dangling)
	}
	return nil
}

// Check 9: for every task -> task edge, the compatibility matrix must allow
// the pairing. A "maybe" verdict defers to the upstream chain: walk the
// predecessors of the source until a decisive verdict is found.
func (v *Validator) checkTaskOrder(graph *Graph) error {
	matrix := v.registry.Matrix()

	for _, src := range graph.FunctionNodes() {
		for _, dst := range graph.TaskSuccessors(src) {
			srcIdent := graph.TaskIdentifier(src)
			dstIdent := graph.TaskIdentifier(dst)

			switch matrix.Lookup(srcIdent, dstIdent) {
			case catalog.VerdictYes:
				continue
			case catalog.VerdictNo:
				return errInvalidTaskOrder(TrimNodePrefix(src), TrimNodePrefix(dst))
			case catalog.VerdictMaybe:
				if !v.upstreamAllows(graph, src, dstIdent, map[string]bool{src: true}) {
					return errInvalidTaskOrder(TrimNodePrefix(src), TrimNodePrefix(dst))
				}
			}
		}
	}
	return nil
}

// upstreamAllows walks task predecessors of node until a non-maybe verdict
// against the consumer is found. "no" anywhere fails; a chain of maybes with
// no decisive ancestor is accepted.
func (v *Validator) upstreamAllows(graph *Graph, node, consumerIdent string, visited map[string]bool) bool {
	matrix := v.registry.Matrix()

	for _, prev := range graph.TaskPredecessors(node) {
		if visited[prev] {
			continue
		}
		visited[prev] = true

		switch matrix.Lookup(graph.TaskIdentifier(prev), consumerIdent) {
		case catalog.VerdictYes:
			continue
		case catalog.VerdictNo:
			return false
		case catalog.VerdictMaybe:
			if !v.upstreamAllows(graph, prev, consumerIdent, visited) {
				return false
			}
		}
	}
	return true
}

func errInvalidTaskOrder(src, dst string) error {
	return apperr.Newf("invalid_task_order_detected_error",
		"task %q may not consume the output of task %q", dst, src).
		With("function_identifier", src).
		With("target_id", dst)
}

// Check 10: per-task field validation against the descriptor schemas.
func (v *Validator) checkTaskFields(doc *Document) error {
	for _, taskID := range doc.Functions.Order {
		task := doc.Functions.Items[taskID]
		descriptor, ok := v.registry.Get(task.Identifier)
		if !ok {
			continue
		}
		if err := v.validateTaskInstance(doc, taskID, task, descriptor); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateTaskInstance(doc *Document, taskID string, task *TaskInstance, descriptor *catalog.TaskDescriptor) error {
	for inputID := range task.Inputs {
		if _, ok := descriptor.Inputs[inputID]; !ok {
			return apperr.Newf("invalid_task_input_error",
				"task %q has no input named %q", taskID, inputID).
				With("function_identifier", taskID).
				With("input_id", inputID)
		}
	}

	for inputID, schema := range descriptor.Inputs {
		value, present := task.Inputs[inputID]
		if !present {
			if schema.Required && schema.Default == nil {
				return apperr.Newf("invalid_task_input_error",
					"task %q is missing required input %q", taskID, inputID).
					With("function_identifier", taskID).
					With("input_id", inputID)
			}
			continue
		}
		if value.IsRef() {
			continue
		}
		if err := v.validateAtom(taskID, inputID, schema, value.Atom); err != nil {
			return err
		}
	}

	// Sentinel-2 queries: the configured cloud cover window must be ordered.
	if minVal, maxVal, ok := cloudCoverWindow(task); ok && minVal > maxVal {
		return apperr.Newf("invalid_task_input_error",
			"task %q: cloud_cover_min (%v) exceeds cloud_cover_max (%v)", taskID, minVal, maxVal).
			With("function_identifier", taskID).
			With("input_id", "cloud_cover_min")
	}

	// Query tasks re-check their dates against the collection extent.
	if descriptor.Category == catalog.CategoryDataSelect {
		if err := v.validateQueryDates(doc, taskID, task); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateAtom(taskID, inputID string, schema catalog.FieldSchema, atom any) error {
	fail := func(format string, args ...any) error {
		return apperr.Newf("invalid_task_input_error", "task %q input %q: %s",
			taskID, inputID, fmt.Sprintf(format, args...)).
			With("function_identifier", taskID).
			With("input_id", inputID)
	}

	switch schema.Type {
	case catalog.FieldPolygon:
		raw, err := json.Marshal(atom)
		if err != nil {
			return fail("not a valid polygon: %v", err)
		}
		polygon, err := geo.ParsePolygon(raw)
		if err != nil {
			return err
		}
		if err := geo.EnsureAreaWithinLimit(polygon, v.areaLimitKM2); err != nil {
			return err
		}
	case catalog.FieldString:
		s, ok := atom.(string)
		if !ok {
			return fail("expected a string, got %T", atom)
		}
		if err := checkStringConstraints(s, schema.Constraints); err != nil {
			return fail("%v", err)
		}
	case catalog.FieldNumber:
		n, ok := toFloat(atom)
		if !ok {
			return fail("expected a number, got %T", atom)
		}
		if err := checkNumberConstraints(n, schema.Constraints); err != nil {
			return fail("%v", err)
		}
	case catalog.FieldBoolean:
		if _, ok := atom.(bool); !ok {
			return fail("expected a boolean, got %T", atom)
		}
	case catalog.FieldDateTime:
		s, ok := atom.(string)
		if !ok {
			return fail("expected a datetime string, got %T", atom)
		}
		if _, err := geo.ParseDate(s); err != nil {
			return fail("invalid datetime: %v", err)
		}
	case catalog.FieldMapping:
		if _, ok := atom.(map[string]any); !ok {
			return fail("expected a mapping, got %T", atom)
		}
	case catalog.FieldDirectory:
		if _, ok := atom.(string); !ok {
			return fail("expected a directory path, got %T", atom)
		}
	}

	if len(schema.Options) > 0 && !optionAllowed(atom, schema.Options) {
		return fail("value %v is not one of the allowed options %v", atom, schema.Options)
	}

	return nil
}

// validateQueryDates checks a query task's effective date range against the
// workflow's collection bounds.
func (v *Validator) validateQueryDates(doc *Document, taskID string, task *TaskInstance) error {
	startStr := atomString(task, "date_start", doc.Inputs.DateStart)
	endStr := atomString(task, "date_end", doc.Inputs.DateEnd)

	start, end, err := parseDates(startStr, endStr)
	if err != nil {
		return err
	}
	if err := geo.ValidateDateRange(start, end); err != nil {
		return err
	}
	return geo.ValidateCollectionDateRange(doc.Inputs.Dataset, start, end)
}

// atomString returns the task's atom value for the input or, when the input
// is a ref into the workflow inputs, the supplied workflow-level fallback.
func atomString(task *TaskInstance, inputID, fallback string) string {
	value, ok := task.Inputs[inputID]
	if !ok {
		return fallback
	}
	if value.IsRef() {
		return fallback
	}
	if s, ok := value.Atom.(string); ok {
		return s
	}
	return fallback
}

func cloudCoverWindow(task *TaskInstance) (float64, float64, bool) {
	minValue, okMin := task.Inputs["cloud_cover_min"]
	maxValue, okMax := task.Inputs["cloud_cover_max"]
	if !okMin || !okMax || minValue.IsRef() || maxValue.IsRef() {
		return 0, 0, false
	}
	minN, ok1 := toFloat(minValue.Atom)
	maxN, ok2 := toFloat(maxValue.Atom)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return minN, maxN, true
}

func checkStringConstraints(s string, constraints []catalog.Constraint) error {
	for _, c := range constraints {
		bound, ok := toFloat(c.Value)
		if !ok {
			continue
		}
		switch c.Op {
		case catalog.OpMinLength:
			if float64(len(s)) < bound {
				return fmt.Errorf("length %d below minimum of %v", len(s), c.Value)
			}
		case catalog.OpMaxLength:
			if float64(len(s)) > bound {
				return fmt.Errorf("length %d above maximum of %v", len(s), c.Value)
			}
		}
	}
	return nil
}

func checkNumberConstraints(n float64, constraints []catalog.Constraint) error {
	for _, c := range constraints {
		bound, ok := toFloat(c.Value)
		if !ok {
			continue
		}
		switch c.Op {
		case catalog.OpGE:
			if n < bound {
				return fmt.Errorf("value %v below minimum of %v", n, bound)
			}
		case catalog.OpLE:
			if n > bound {
				return fmt.Errorf("value %v above maximum of %v", n, bound)
			}
		case catalog.OpGT:
			if n <= bound {
				return fmt.Errorf("value %v must be greater than %v", n, bound)
			}
		case catalog.OpLT:
			if n >= bound {
				return fmt.Errorf("value %v must be less than %v", n, bound)
			}
		}
	}
	return nil
}

func optionAllowed(atom any, options []any) bool {
	for _, option := range options {
		if atom == option {
			return true
		}
		if a, ok1 := toFloat(atom); ok1 {
			if o, ok2 := toFloat(option); ok2 && a == o {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
