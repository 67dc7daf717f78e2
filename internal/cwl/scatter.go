package cwl

import (
	"github.com/paulmach/orb"

	"github.com/eodatahub/action-creator/internal/geo"
)

// ScatterPrefix marks the wrapper workflow of a chipped submission.
const ScatterPrefix = "scttr-"

// scatterStepID is the single step of the wrapper workflow.
const scatterStepID = "chips"

// ScatterWorkflowID derives the wrapper workflow id from the core
// workflow id, trimming so the result stays within the process
// identifier limit.
func ScatterWorkflowID(wfID string) string {
	budget := MaxWorkflowIDLen + 1 - len(ScatterPrefix)
	if len(wfID) > budget {
		wfID = wfID[:budget]
	}
	return ScatterPrefix + wfID
}

// wrapScatter builds a wrapper workflow that runs the core workflow once
// per AOI tile, and rewrites the execution inputs to match. The area
// input becomes an array of tile geometries; every other input passes
// through unchanged.
func wrapScatter(wfID string, inner *Workflow, userInputs map[string]any, chips []orb.Polygon) (*Workflow, error) {
	wrapper := &Workflow{
		ID:    ScatterWorkflowID(wfID),
		Class: "Workflow",
		Label: "Scattered " + wfID,
		Requirements: &Requirements{
			ScatterFeature:     &EmptyRequirement{},
			SubworkflowFeature: &EmptyRequirement{},
		},
	}
	if inner.Requirements != nil && inner.Requirements.Resource != nil {
		res := *inner.Requirements.Resource
		wrapper.Requirements.Resource = &res
	}

	step := Step{
		ID:      scatterStepID,
		Run:     "#" + inner.ID,
		Scatter: "area",
	}

	for _, p := range inner.Inputs {
		if p.ID == "area" {
			wrapper.Inputs = append(wrapper.Inputs, Parameter{
				ID:   "areas",
				Type: "string[]",
				Doc:  "Area of interest tiles as GeoJSON Polygons",
			})
			step.In = append(step.In, StepInput{ID: "area", Source: "areas"})
			continue
		}
		wrapper.Inputs = append(wrapper.Inputs, p)
		step.In = append(step.In, StepInput{ID: p.ID, Source: p.ID})
	}

	for _, out := range inner.Outputs {
		step.Out = append(step.Out, out.ID)
		wrapper.Outputs = append(wrapper.Outputs, OutputParameter{
			ID:           out.ID,
			Type:         "Directory[]",
			OutputSource: scatterStepID + "/" + out.ID,
		})
	}
	wrapper.Steps = []Step{step}

	tiles := make([]any, 0, len(chips))
	for _, chip := range chips {
		enc, err := geo.PolygonJSON(chip)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, enc)
	}
	delete(userInputs, "area")
	userInputs["areas"] = tiles

	return wrapper, nil
}
