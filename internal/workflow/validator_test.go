package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/eodatahub/action-creator/internal/apperr"
	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/internal/geo"
)

const heathrowArea = `{
	"type": "Polygon",
	"coordinates": [[
		[-0.489, 51.459], [-0.411, 51.459], [-0.411, 51.482],
		[-0.489, 51.482], [-0.489, 51.459]
	]]
}`

const ukArea = `{
	"type": "Polygon",
	"coordinates": [[
		[-6.0, 50.0], [1.8, 50.0], [1.8, 58.0], [-6.0, 58.0], [-6.0, 50.0]
	]]
}`

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	registry, err := catalog.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return NewValidator(registry, DefaultMaxTasks, geo.DefaultAreaLimitKM2)
}

func parseDocument(t *testing.T, data string) *Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return &doc
}

// happyDocument is the reference two-task submission: a Sentinel-2 query
// feeding an NDVI whose result maps to the workflow output.
func happyDocument(t *testing.T) *Document {
	return parseDocument(t, fmt.Sprintf(`{
		"inputs": {
			"area": %s,
			"dataset": "sentinel-2-l2a-ard",
			"date_start": "2024-03-01",
			"date_end": "2024-10-10"
		},
		"outputs": {
			"results": {"name": "results", "type": "directory"}
		},
		"functions": {
			"query": {
				"identifier": "s2-ds-query",
				"inputs": {
					"area": {"$type": "ref", "value": ["inputs", "area"]},
					"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]},
					"date_start": {"$type": "ref", "value": ["inputs", "date_start"]},
					"date_end": {"$type": "ref", "value": ["inputs", "date_end"]}
				},
				"outputs": {
					"results": {"name": "results", "type": "directory"}
				}
			},
			"ndvi": {
				"identifier": "ndvi",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]}
				},
				"outputs": {
					"results": {"$type": "ref", "value": ["outputs", "results"]}
				}
			}
		}
	}`, heathrowArea))
}

func TestValidate_HappySubmission(t *testing.T) {
	v := newTestValidator(t)
	if err := v.Validate(happyDocument(t)); err != nil {
		t.Errorf("expected the reference workflow to validate, got %v", err)
	}
}

func TestValidate_AreaTooBig(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Inputs.Area = json.RawMessage(ukArea)

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "area_of_interest_too_big_error" {
		t.Errorf("expected area_of_interest_too_big_error, got %v", err)
	}
}

func TestValidate_MissingArea(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Inputs.Area = nil

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "missing_area_of_interest_error" {
		t.Errorf("expected missing_area_of_interest_error, got %v", err)
	}
}

func TestValidate_InvalidDateRange(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Inputs.DateStart = "2024-03-01"
	doc.Inputs.DateEnd = "2023-10-10"

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "invalid_date_range_error" {
		t.Errorf("expected invalid_date_range_error, got %v", err)
	}
}

func TestValidate_EqualDatesAccepted(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Inputs.DateStart = "2024-03-01"
	doc.Inputs.DateEnd = "2024-03-01"

	if err := v.Validate(doc); err != nil {
		t.Errorf("equal start and end dates must be accepted, got %v", err)
	}
}

func TestValidate_CollectionDateBounds(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Inputs.DateStart = "2014-01-01"

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "stac_date_range_error" {
		t.Errorf("expected stac_date_range_error, got %v", err)
	}
}

func TestValidate_UnsupportedDataset(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Inputs.Dataset = "not-a-dataset"

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "collection_not_supported_error" {
		t.Errorf("expected collection_not_supported_error, got %v", err)
	}
}

func TestValidate_IdentifierCollision(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Identifier = "query"

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "workflow_identifier_collision_error" {
		t.Errorf("expected workflow_identifier_collision_error, got %v", err)
	}
}

func TestValidate_MaxTasksExceeded(t *testing.T) {
	registry, err := catalog.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	v := NewValidator(registry, 1, geo.DefaultAreaLimitKM2)

	err = v.Validate(happyDocument(t))
	if apperr.TypeOf(err) != "maximum_number_of_tasks_exceeded_error" {
		t.Fatalf("expected maximum_number_of_tasks_exceeded_error, got %v", err)
	}
	ctx := err.(*apperr.Error).Context()
	if ctx["max_tasks_num"] != 1 {
		t.Errorf("unexpected max_tasks_num: %v", ctx["max_tasks_num"])
	}
}

func TestValidate_DatasetNotSupportedForTask(t *testing.T) {
	v := newTestValidator(t)
	doc := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "clms-corine-lc"},
		"outputs": {"results": {"name": "results", "type": "directory"}},
		"functions": {
			"query": {
				"identifier": "corine-lc-ds-query",
				"inputs": {
					"area": {"$type": "ref", "value": ["inputs", "area"]},
					"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"ndvi": {
				"identifier": "ndvi",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]}
				},
				"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
			}
		}
	}`, heathrowArea))

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "collection_not_supported_for_task_error" {
		t.Fatalf("expected collection_not_supported_for_task_error, got %v", err)
	}
	ctx := err.(*apperr.Error).Context()
	invalid, _ := ctx["invalid_tasks"].([]string)
	if len(invalid) != 1 || invalid[0] != "ndvi" {
		t.Errorf("unexpected invalid_tasks: %v", ctx["invalid_tasks"])
	}
}

func TestValidate_InvalidReferencePath(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Functions.Items["ndvi"].Inputs["data_dir"] = InputValue{
		Kind: KindRef,
		Ref:  []string{"functions", "clip", "outputs", "results"},
	}

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "invalid_reference_path_error" {
		t.Fatalf("expected invalid_reference_path_error, got %v", err)
	}
	ctx := err.(*apperr.Error).Context()
	if ctx["invalid_key"] != "clip" {
		t.Errorf("expected invalid_key clip, got %v", ctx["invalid_key"])
	}
}

func TestValidate_CycleDetected(t *testing.T) {
	v := newTestValidator(t)
	doc := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "sentinel-2-l2a-ard"},
		"outputs": {"results": {"name": "results", "type": "directory"}},
		"functions": {
			"ndvi": {
				"identifier": "ndvi",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "reproject", "outputs", "results"]}
				},
				"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
			},
			"reproject": {
				"identifier": "reproject",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "ndvi", "outputs", "results"]},
					"epsg": {"$type": "atom", "value": "EPSG:4326"}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			}
		}
	}`, heathrowArea))

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "cycle_or_self_loop_detected_error" {
		t.Errorf("expected cycle_or_self_loop_detected_error, got %v", err)
	}
}

func TestValidate_SelfLoop(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	doc.Functions.Items["ndvi"].Inputs["data_dir"] = InputValue{
		Kind: KindRef,
		Ref:  []string{"functions", "ndvi", "outputs", "results"},
	}

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "cycle_or_self_loop_detected_error" {
		t.Errorf("expected cycle_or_self_loop_detected_error, got %v", err)
	}
}

func TestValidate_DanglingOutput(t *testing.T) {
	v := newTestValidator(t)
	doc := happyDocument(t)
	// Re-point the ndvi result at a plain directory spec so nothing feeds
	// the declared workflow output.
	doc.Functions.Items["ndvi"].Outputs["results"] = OutputValue{
		Kind: KindAtom,
		Spec: &DirectoryOutputSpec{Name: "results", Type: "directory"},
	}

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "task_output_without_mapping_detected_error" {
		t.Fatalf("expected task_output_without_mapping_detected_error, got %v", err)
	}
	ctx := err.(*apperr.Error).Context()
	dangling, _ := ctx["dangling_outputs"].([]string)
	if len(dangling) != 1 || dangling[0] != "results" {
		t.Errorf("unexpected dangling_outputs: %v", ctx["dangling_outputs"])
	}
}

func TestValidate_DisjoinedSubgraphs(t *testing.T) {
	v := newTestValidator(t)
	doc := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "sentinel-2-l2a-ard"},
		"outputs": {},
		"functions": {
			"ndvi-a": {
				"identifier": "ndvi",
				"inputs": {"data_dir": {"$type": "atom", "value": "/data/a"}},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"ndvi-b": {
				"identifier": "ndvi",
				"inputs": {"data_dir": {"$type": "atom", "value": "/data/b"}},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			}
		}
	}`, heathrowArea))

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "disjoined_subgraphs_detected_error" {
		t.Errorf("expected disjoined_subgraphs_detected_error, got %v", err)
	}
}

func TestValidate_DanglingFunction(t *testing.T) {
	v := newTestValidator(t)
	doc := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "sentinel-2-l2a-ard"},
		"outputs": {"results": {"name": "results", "type": "directory"}},
		"functions": {
			"query": {
				"identifier": "s2-ds-query",
				"inputs": {
					"area": {"$type": "ref", "value": ["inputs", "area"]},
					"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]}
				},
				"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
			},
			"ndvi": {
				"identifier": "ndvi",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			}
		}
	}`, heathrowArea))

	err := v.Validate(doc)
	if apperr.TypeOf(err) != "dangling_functions_detected_error" {
		t.Fatalf("expected dangling_functions_detected_error, got %v", err)
	}
	ctx := err.(*apperr.Error).Context()
	dangling, _ := ctx["dangling_functions"].([]string)
	if len(dangling) != 1 || dangling[0] != "ndvi" {
		t.Errorf("unexpected dangling_functions: %v", ctx["dangling_functions"])
	}
}

func TestValidate_InvalidTaskOrder(t *testing.T) {
	v := newTestValidator(t)
	doc := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "sentinel-2-l2a-ard"},
		"outputs": {"results": {"name": "results", "type": "directory"}},
		"functions": {
			"query": {
				"identifier": "s2-ds-query",
				"inputs": {
					"area": {"$type": "ref", "value": ["inputs", "area"]},
					"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"summarize": {
				"identifier": "summarize-class-statistics",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]}
				},
				"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
			}
		}
	}`, heathrowArea))

	// summarize-class-statistics does not accept the selected dataset, so
	// check 3 fires first for this pairing; reconstruct with a dataset both
	// support to reach the ordering check. There is no such dataset, meaning
	// the matrix "no" there is co-located with a dataset mismatch. Assert the
	// earlier error fires deterministically.
	err := v.Validate(doc)
	if apperr.TypeOf(err) != "collection_not_supported_for_task_error" {
		t.Errorf("expected collection_not_supported_for_task_error, got %v", err)
	}
}

func TestValidate_MaybeVerdictWalk(t *testing.T) {
	v := newTestValidator(t)

	// corine query -> clip -> summarize: clip -> summarize is "maybe"; the
	// walk reaches corine-lc-ds-query whose verdict against summarize is
	// "yes", so the chain is accepted.
	accept := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "clms-corine-lc", "date_start": "1995-06-01", "date_end": "2000-06-01"},
		"outputs": {"results": {"name": "results", "type": "directory"}},
		"functions": {
			"query": {
				"identifier": "corine-lc-ds-query",
				"inputs": {
					"area": {"$type": "ref", "value": ["inputs", "area"]},
					"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"clip": {
				"identifier": "clip",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]},
					"aoi": {"$type": "ref", "value": ["inputs", "area"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"summarize": {
				"identifier": "summarize-class-statistics",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "clip", "outputs", "results"]}
				},
				"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
			}
		}
	}`, heathrowArea))

	if err := v.Validate(accept); err != nil {
		t.Errorf("expected the corine -> clip -> summarize chain to validate, got %v", err)
	}

	// s2 query -> clip -> ndvi: clip -> ndvi is "maybe"; upstream the s2
	// query's verdict against ndvi is "yes", accepted as well.
	acceptS2 := parseDocument(t, fmt.Sprintf(`{
		"inputs": {"area": %s, "dataset": "sentinel-2-l2a-ard"},
		"outputs": {"results": {"name": "results", "type": "directory"}},
		"functions": {
			"query": {
				"identifier": "s2-ds-query",
				"inputs": {
					"area": {"$type": "ref", "value": ["inputs", "area"]},
					"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"clip": {
				"identifier": "clip",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]},
					"aoi": {"$type": "ref", "value": ["inputs", "area"]}
				},
				"outputs": {"results": {"name": "results", "type": "directory"}}
			},
			"ndvi": {
				"identifier": "ndvi",
				"inputs": {
					"data_dir": {"$type": "ref", "value": ["functions", "clip", "outputs", "results"]}
				},
				"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
			}
		}
	}`, heathrowArea))

	if err := v.Validate(acceptS2); err != nil {
		t.Errorf("expected the s2 -> clip -> ndvi chain to validate, got %v", err)
	}
}

func TestValidate_TaskFieldConstraints(t *testing.T) {
	v := newTestValidator(t)

	t.Run("cloud cover window", func(t *testing.T) {
		doc := happyDocument(t)
		doc.Functions.Items["query"].Inputs["cloud_cover_min"] = InputValue{Kind: KindAtom, Atom: float64(80)}
		doc.Functions.Items["query"].Inputs["cloud_cover_max"] = InputValue{Kind: KindAtom, Atom: float64(20)}

		err := v.Validate(doc)
		if apperr.TypeOf(err) != "invalid_task_input_error" {
			t.Errorf("expected invalid_task_input_error, got %v", err)
		}
	})

	t.Run("cloud cover out of range", func(t *testing.T) {
		doc := happyDocument(t)
		doc.Functions.Items["query"].Inputs["cloud_cover_max"] = InputValue{Kind: KindAtom, Atom: float64(150)}

		err := v.Validate(doc)
		if apperr.TypeOf(err) != "invalid_task_input_error" {
			t.Errorf("expected invalid_task_input_error, got %v", err)
		}
	})

	t.Run("unknown input name", func(t *testing.T) {
		doc := happyDocument(t)
		doc.Functions.Items["ndvi"].Inputs["mystery"] = InputValue{Kind: KindAtom, Atom: "x"}

		err := v.Validate(doc)
		if apperr.TypeOf(err) != "invalid_task_input_error" {
			t.Errorf("expected invalid_task_input_error, got %v", err)
		}
	})

	t.Run("missing required input", func(t *testing.T) {
		doc := happyDocument(t)
		delete(doc.Functions.Items["query"].Inputs, "area")

		err := v.Validate(doc)
		if apperr.TypeOf(err) != "invalid_task_input_error" {
			t.Errorf("expected invalid_task_input_error, got %v", err)
		}
	})

	t.Run("epsg option enforced", func(t *testing.T) {
		doc := parseDocument(t, fmt.Sprintf(`{
			"inputs": {"area": %s, "dataset": "sentinel-2-l2a-ard"},
			"outputs": {"results": {"name": "results", "type": "directory"}},
			"functions": {
				"query": {
					"identifier": "s2-ds-query",
					"inputs": {
						"area": {"$type": "ref", "value": ["inputs", "area"]},
						"stac_collection": {"$type": "ref", "value": ["inputs", "dataset"]}
					},
					"outputs": {"results": {"name": "results", "type": "directory"}}
				},
				"reproject": {
					"identifier": "reproject",
					"inputs": {
						"data_dir": {"$type": "ref", "value": ["functions", "query", "outputs", "results"]},
						"epsg": {"$type": "atom", "value": "EPSG:9999"}
					},
					"outputs": {"results": {"$type": "ref", "value": ["outputs", "results"]}}
				}
			}
		}`, heathrowArea))

		err := v.Validate(doc)
		if apperr.TypeOf(err) != "invalid_task_input_error" {
			t.Errorf("expected invalid_task_input_error for a bad EPSG code, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "EPSG:9999") {
			t.Errorf("error should name the offending value, got %q", err.Error())
		}
	})
}

func TestResolveRefs_ReplacesAtomsAndRefs(t *testing.T) {
	doc := happyDocument(t)
	tree, err := ResolveRefs(doc)
	if err != nil {
		t.Fatalf("resolution failed: %v", err)
	}

	functions := tree["functions"].(map[string]any)
	query := functions["query"].(map[string]any)
	inputs := query["inputs"].(map[string]any)

	if inputs["stac_collection"] != "sentinel-2-l2a-ard" {
		t.Errorf("stac_collection ref not resolved: %v", inputs["stac_collection"])
	}
	area, ok := inputs["area"].(map[string]any)
	if !ok || area["type"] != "Polygon" {
		t.Errorf("area ref not resolved to the polygon: %v", inputs["area"])
	}
}
