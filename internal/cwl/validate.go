package cwl

import (
	"fmt"
	"strings"
)

// ValidateGraph checks structural integrity of a packed document before
// it is handed to the execution engine: graph ids must be unique, every
// step must run a node in the graph, and every source must resolve to a
// workflow input or an upstream step output.
func ValidateGraph(doc *GraphDocument) error {
	ids := map[string]bool{}
	toolOutputs := map[string]map[string]bool{}
	var workflows []*Workflow

	for _, node := range doc.Graph {
		switch n := node.(type) {
		case *Workflow:
			if ids[n.ID] {
				return fmt.Errorf("duplicate graph id %q", n.ID)
			}
			ids[n.ID] = true
			workflows = append(workflows, n)
		case Tool:
			id, _ := n["id"].(string)
			if id == "" {
				return fmt.Errorf("tool node without id")
			}
			if ids[id] {
				return fmt.Errorf("duplicate graph id %q", id)
			}
			ids[id] = true
			toolOutputs[id] = toolOutputIDs(n)
		default:
			return fmt.Errorf("unsupported graph node %T", node)
		}
	}

	wfOutputs := map[string]map[string]bool{}
	for _, wf := range workflows {
		outs := map[string]bool{}
		for _, o := range wf.Outputs {
			outs[o.ID] = true
		}
		wfOutputs[wf.ID] = outs
	}

	for _, wf := range workflows {
		if err := validateWorkflow(wf, ids, toolOutputs, wfOutputs); err != nil {
			return fmt.Errorf("workflow %q: %w", wf.ID, err)
		}
	}
	return nil
}

func validateWorkflow(wf *Workflow, graphIDs map[string]bool, toolOutputs, wfOutputs map[string]map[string]bool) error {
	inputs := map[string]bool{}
	for _, p := range wf.Inputs {
		if inputs[p.ID] {
			return fmt.Errorf("duplicate input %q", p.ID)
		}
		inputs[p.ID] = true
	}

	stepOuts := map[string]map[string]bool{}
	for _, st := range wf.Steps {
		if stepOuts[st.ID] != nil {
			return fmt.Errorf("duplicate step %q", st.ID)
		}

		runID := strings.TrimPrefix(st.Run, "#")
		if !graphIDs[runID] {
			return fmt.Errorf("step %q runs unknown node %q", st.ID, runID)
		}
		declared := toolOutputs[runID]
		if declared == nil {
			declared = wfOutputs[runID]
		}

		outs := map[string]bool{}
		for _, o := range st.Out {
			if declared != nil && !declared[o] {
				return fmt.Errorf("step %q output %q not declared by %q", st.ID, o, runID)
			}
			outs[o] = true
		}
		stepOuts[st.ID] = outs

		if st.Scatter != "" {
			found := false
			for _, in := range st.In {
				if in.ID == st.Scatter {
					found = true
				}
			}
			if !found {
				return fmt.Errorf("step %q scatters unknown input %q", st.ID, st.Scatter)
			}
		}
	}

	resolve := func(source string) bool {
		if inputs[source] {
			return true
		}
		step, out, ok := strings.Cut(source, "/")
		if !ok {
			return false
		}
		return stepOuts[step][out]
	}

	for _, st := range wf.Steps {
		for _, in := range st.In {
			if !resolve(in.Source) {
				return fmt.Errorf("step %q input %q has unresolvable source %q", st.ID, in.ID, in.Source)
			}
		}
	}
	for _, o := range wf.Outputs {
		if !resolve(o.OutputSource) {
			return fmt.Errorf("output %q has unresolvable source %q", o.ID, o.OutputSource)
		}
	}
	return nil
}

func toolOutputIDs(tool Tool) map[string]bool {
	outs, ok := tool["outputs"].(map[string]any)
	if !ok {
		return map[string]bool{}
	}
	ids := make(map[string]bool, len(outs))
	for id := range outs {
		ids[id] = true
	}
	return ids
}
