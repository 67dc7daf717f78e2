package cwl

// Version is the CWL version stamped on every emitted application package.
const Version = "v1.0"

// GraphDocument is a packed $graph CWL document: one or two Workflows plus
// the CommandLineTools they run.
type GraphDocument struct {
	CWLVersion string `yaml:"cwlVersion"`
	Graph      []any  `yaml:"$graph"`
}

// Workflow is the typed representation of a CWL Workflow node.
type Workflow struct {
	ID           string            `yaml:"id"`
	Class        string            `yaml:"class"`
	Label        string            `yaml:"label,omitempty"`
	Doc          string            `yaml:"doc,omitempty"`
	Requirements *Requirements     `yaml:"requirements,omitempty"`
	Inputs       []Parameter       `yaml:"inputs"`
	Outputs      []OutputParameter `yaml:"outputs"`
	Steps        []Step            `yaml:"steps"`
}

// Parameter is a workflow-level input.
type Parameter struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Label   string `yaml:"label,omitempty"`
	Doc     string `yaml:"doc,omitempty"`
	Default any    `yaml:"default,omitempty"`
}

// OutputParameter is a workflow-level output wired to a step output.
type OutputParameter struct {
	ID           string `yaml:"id"`
	Type         string `yaml:"type"`
	OutputSource string `yaml:"outputSource"`
}

// Step is one workflow step running a tool or a sub-workflow.
type Step struct {
	ID            string      `yaml:"id"`
	Run           string      `yaml:"run"`
	In            []StepInput `yaml:"in"`
	Out           []string    `yaml:"out"`
	Scatter       string      `yaml:"scatter,omitempty"`
	ScatterMethod string      `yaml:"scatterMethod,omitempty"`
}

// StepInput wires a step input to a workflow input or another step's output.
type StepInput struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
}

// Requirements holds the CWL requirement classes the synthesizer emits.
type Requirements struct {
	Resource           *ResourceRequirement `yaml:"ResourceRequirement,omitempty"`
	ScatterFeature     *EmptyRequirement    `yaml:"ScatterFeatureRequirement,omitempty"`
	SubworkflowFeature *EmptyRequirement    `yaml:"SubworkflowFeatureRequirement,omitempty"`
}

// EmptyRequirement marks a feature requirement with no parameters.
type EmptyRequirement struct{}

// ResourceRequirement specifies compute resources. RAM values are mebibytes.
type ResourceRequirement struct {
	CoresMin float64 `yaml:"coresMin,omitempty"`
	CoresMax float64 `yaml:"coresMax,omitempty"`
	RAMMin   int     `yaml:"ramMin,omitempty"`
	RAMMax   int     `yaml:"ramMax,omitempty"`
}

// Floors applied to the aggregate workflow resource requirement.
const (
	MinCores = 1
	MinRAM   = 1024
)

// Merge widens the requirement to the element-wise maximum of r and other.
func (r *ResourceRequirement) Merge(other ResourceRequirement) {
	if other.CoresMin > r.CoresMin {
		r.CoresMin = other.CoresMin
	}
	if other.CoresMax > r.CoresMax {
		r.CoresMax = other.CoresMax
	}
	if other.RAMMin > r.RAMMin {
		r.RAMMin = other.RAMMin
	}
	if other.RAMMax > r.RAMMax {
		r.RAMMax = other.RAMMax
	}
}

// ApplyFloors raises the requirement to the configured minimums.
func (r *ResourceRequirement) ApplyFloors() {
	if r.CoresMin < MinCores {
		r.CoresMin = MinCores
	}
	if r.CoresMax < r.CoresMin {
		r.CoresMax = r.CoresMin
	}
	if r.RAMMin < MinRAM {
		r.RAMMin = MinRAM
	}
	if r.RAMMax < r.RAMMin {
		r.RAMMax = r.RAMMin
	}
}
