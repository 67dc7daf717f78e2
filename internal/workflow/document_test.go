package workflow

import (
	"encoding/json"
	"testing"
)

func TestInputValue_Roundtrip(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind Kind
	}{
		{"atom string", `{"$type":"atom","value":"EPSG:4326"}`, KindAtom},
		{"atom number", `{"$type":"atom","value":42}`, KindAtom},
		{"ref", `{"$type":"ref","value":["inputs","area"]}`, KindRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v InputValue
			if err := json.Unmarshal([]byte(tt.data), &v); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if v.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, v.Kind)
			}

			out, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}

			var again InputValue
			if err := json.Unmarshal(out, &again); err != nil {
				t.Fatalf("re-unmarshal failed: %v", err)
			}
			if again.Kind != v.Kind {
				t.Errorf("kind changed across roundtrip: %s vs %s", again.Kind, v.Kind)
			}
		})
	}
}

func TestInputValue_UnknownType(t *testing.T) {
	var v InputValue
	err := json.Unmarshal([]byte(`{"$type":"blob","value":1}`), &v)
	if err == nil {
		t.Error("expected error for unknown $type")
	}
}

func TestOutputValue_DirectorySpec(t *testing.T) {
	var o OutputValue
	if err := json.Unmarshal([]byte(`{"name":"results","type":"directory"}`), &o); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if o.IsWorkflowOutput() {
		t.Error("directory spec must not be a workflow output ref")
	}
	if o.Spec.Name != "results" || o.Spec.Type != "directory" {
		t.Errorf("unexpected spec: %+v", o.Spec)
	}
}

func TestOutputValue_Ref(t *testing.T) {
	var o OutputValue
	if err := json.Unmarshal([]byte(`{"$type":"ref","value":["outputs","results"]}`), &o); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !o.IsWorkflowOutput() {
		t.Error("expected a workflow output ref")
	}
	if len(o.Ref) != 2 || o.Ref[1] != "results" {
		t.Errorf("unexpected ref path: %v", o.Ref)
	}
}

func TestTasks_PreservesOrder(t *testing.T) {
	data := `{
		"c-task": {"identifier": "ndvi", "inputs": {}, "outputs": {}},
		"a-task": {"identifier": "clip", "inputs": {}, "outputs": {}},
		"b-task": {"identifier": "reproject", "inputs": {}, "outputs": {}}
	}`

	var tasks Tasks
	if err := json.Unmarshal([]byte(data), &tasks); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := []string{"c-task", "a-task", "b-task"}
	if len(tasks.Order) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks.Order))
	}
	for i, id := range want {
		if tasks.Order[i] != id {
			t.Errorf("order[%d] = %s, want %s", i, tasks.Order[i], id)
		}
	}

	out, err := json.Marshal(tasks)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var again Tasks
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-unmarshal failed: %v", err)
	}
	for i, id := range want {
		if again.Order[i] != id {
			t.Errorf("order lost across roundtrip at %d: %s", i, again.Order[i])
		}
	}
}

func TestTasks_RejectsDuplicateIDs(t *testing.T) {
	data := `{
		"query": {"identifier": "s2-ds-query", "inputs": {}, "outputs": {}},
		"query": {"identifier": "ndvi", "inputs": {}, "outputs": {}}
	}`
	var tasks Tasks
	if err := json.Unmarshal([]byte(data), &tasks); err == nil {
		t.Error("expected duplicate task id to be rejected")
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"My Workflow", "my-workflow", false},
		{"abc", "abc", false},
		{"ab", "", true},
		{"abcdefghijklmnopqrs", "abcdefghijklmnopqrs", false}, // 19 chars
		{"abcdefghijklmnopqrst", "", true},                    // 20 chars
		{"snake_case_ok", "snake_case_ok", false},
		{"Bad!Chars", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeIdentifier(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
