package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/eodatahub/action-creator/internal/apperr"
)

// Kind tags the two input-value variants.
type Kind string

const (
	KindAtom Kind = "atom"
	KindRef  Kind = "ref"
)

// InputValue is either a literal (atom) or a path into the document (ref).
type InputValue struct {
	Kind Kind
	Atom any
	Ref  []string
}

// IsRef reports whether the value is a reference.
func (v InputValue) IsRef() bool {
	return v.Kind == KindRef
}

type inputValueWire struct {
	Type  string          `json:"$type"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes the tagged {"$type": ..., "value": ...} form.
func (v *InputValue) UnmarshalJSON(data []byte) error {
	var wire inputValueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to unmarshal input value: %w", err)
	}

	switch Kind(wire.Type) {
	case KindAtom:
		var atom any
		if err := json.Unmarshal(wire.Value, &atom); err != nil {
			return fmt.Errorf("failed to unmarshal atom value: %w", err)
		}
		*v = InputValue{Kind: KindAtom, Atom: atom}
	case KindRef:
		var path []string
		if err := json.Unmarshal(wire.Value, &path); err != nil {
			return fmt.Errorf("failed to unmarshal ref path: %w", err)
		}
		*v = InputValue{Kind: KindRef, Ref: path}
	default:
		return fmt.Errorf("unknown input value type: %q", wire.Type)
	}
	return nil
}

// MarshalJSON encodes the tagged wire form.
func (v InputValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindAtom:
		return json.Marshal(map[string]any{"$type": "atom", "value": v.Atom})
	case KindRef:
		return json.Marshal(map[string]any{"$type": "ref", "value": v.Ref})
	}
	return nil, fmt.Errorf("cannot marshal input value of kind %q", v.Kind)
}

// DirectoryOutputSpec is the concrete shape of a directory output.
type DirectoryOutputSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// OutputValue is either a directory spec or a ref to a workflow output. A ref
// signals that the task's result is a workflow output.
type OutputValue struct {
	Kind Kind // KindRef for workflow-output refs, KindAtom for directory specs
	Spec *DirectoryOutputSpec
	Ref  []string
}

// IsWorkflowOutput reports whether the output maps to a workflow output.
func (o OutputValue) IsWorkflowOutput() bool {
	return o.Kind == KindRef
}

// UnmarshalJSON decodes either a tagged ref or a plain directory spec.
func (o *OutputValue) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"$type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to unmarshal output value: %w", err)
	}

	if probe.Type == string(KindRef) {
		var wire inputValueWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return err
		}
		var path []string
		if err := json.Unmarshal(wire.Value, &path); err != nil {
			return fmt.Errorf("failed to unmarshal output ref path: %w", err)
		}
		*o = OutputValue{Kind: KindRef, Ref: path}
		return nil
	}

	var spec DirectoryOutputSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to unmarshal directory output spec: %w", err)
	}
	*o = OutputValue{Kind: KindAtom, Spec: &spec}
	return nil
}

// MarshalJSON encodes the output value back to its wire form.
func (o OutputValue) MarshalJSON() ([]byte, error) {
	if o.Kind == KindRef {
		return json.Marshal(map[string]any{"$type": "ref", "value": o.Ref})
	}
	return json.Marshal(o.Spec)
}

// TaskInstance is one node of the workflow graph, selected from the catalog.
type TaskInstance struct {
	Identifier string                 `json:"identifier"`
	Inputs     map[string]InputValue  `json:"inputs"`
	Outputs    map[string]OutputValue `json:"outputs"`
}

// Inputs is the workflow-level input section.
type Inputs struct {
	Area                    json.RawMessage `json:"area,omitempty"`
	DateStart               string          `json:"date_start,omitempty"`
	DateEnd                 string          `json:"date_end,omitempty"`
	Dataset                 string          `json:"dataset"`
	DatasetAdvancedSettings map[string]any  `json:"dataset_advanced_settings,omitempty"`
}

// Document is the client-submitted workflow graph.
type Document struct {
	Identifier string                 `json:"identifier,omitempty"`
	Inputs     Inputs                 `json:"inputs"`
	Outputs    map[string]OutputValue `json:"outputs"`
	Functions  Tasks                  `json:"functions"`
}

// Tasks is an ordered mapping of task id to task instance. JSON object order
// is preserved so CWL emission is deterministic.
type Tasks struct {
	Order []string
	Items map[string]*TaskInstance
}

// Get returns the task with the given id.
func (t *Tasks) Get(id string) (*TaskInstance, bool) {
	task, ok := t.Items[id]
	return task, ok
}

// Len returns the number of tasks.
func (t *Tasks) Len() int {
	return len(t.Order)
}

// UnmarshalJSON decodes the mapping while recording key order.
func (t *Tasks) UnmarshalJSON(data []byte) error {
	t.Items = make(map[string]*TaskInstance)
	t.Order = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("functions must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var task TaskInstance
		if err := dec.Decode(&task); err != nil {
			return fmt.Errorf("failed to unmarshal task %q: %w", key, err)
		}

		if _, dup := t.Items[key]; dup {
			return fmt.Errorf("duplicate task id: %s", key)
		}
		t.Items[key] = &task
		t.Order = append(t.Order, key)
	}

	return nil
}

// MarshalJSON encodes the tasks preserving insertion order.
func (t Tasks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range t.Order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(t.Items[id])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeIdentifier lowercases the workflow identifier, replaces spaces
// with hyphens, and enforces the 3..19 character budget.
func NormalizeIdentifier(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	id = strings.ReplaceAll(id, " ", "-")

	if len(id) < 3 || len(id) > 19 {
		return "", apperr.Newf("invalid_workflow_identifier_error",
			"workflow identifier must be between 3 and 19 characters, got %d", len(id)).
			With("identifier", id)
	}
	if !identifierPattern.MatchString(id) {
		return "", apperr.Newf("invalid_workflow_identifier_error",
			"workflow identifier may only contain lowercase letters, digits, hyphens and underscores").
			With("identifier", id)
	}
	return id, nil
}
