package catalog

// Category groups tasks for client display.
type Category string

const (
	CategoryDataSelect      Category = "data-select"
	CategoryRasterOps       Category = "raster-ops"
	CategorySpectralIndices Category = "spectral-indices"
	CategoryStacOps         Category = "stac-ops"
	CategoryOther           Category = "other"
)

// FieldType is the wire type of a task input or output field.
type FieldType string

const (
	FieldPolygon   FieldType = "polygon"
	FieldString    FieldType = "string"
	FieldNumber    FieldType = "number"
	FieldBoolean   FieldType = "boolean"
	FieldDateTime  FieldType = "datetime"
	FieldMapping   FieldType = "mapping"
	FieldDirectory FieldType = "directory"
)

// Constraint ops understood by the field validator.
const (
	OpGE        = "ge"
	OpLE        = "le"
	OpGT        = "gt"
	OpLT        = "lt"
	OpMinLength = "min_length"
	OpMaxLength = "max_length"
)

// Constraint is a single bound on a field value.
type Constraint struct {
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// FieldSchema describes one input or output field of a task.
type FieldSchema struct {
	Type        FieldType    `json:"type"`
	Required    bool         `json:"required"`
	Default     any          `json:"default,omitempty"`
	Options     []any        `json:"options,omitempty"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

// ResourceHint is the aggregate CPU and RAM requirement of a task template.
// RAM values are mebibytes.
type ResourceHint struct {
	CPUMin float64 `json:"cpu_min"`
	CPUMax float64 `json:"cpu_max"`
	RAMMin int     `json:"ram_min"`
	RAMMax int     `json:"ram_max"`
}

// TaskDescriptor is the static description of one task in the catalog.
type TaskDescriptor struct {
	Identifier              string                 `json:"identifier"`
	Name                    string                 `json:"name"`
	Category                Category               `json:"category"`
	Tags                    []string               `json:"tags,omitempty"`
	Visible                 bool                   `json:"visible"`
	CompatibleInputDatasets []string               `json:"compatible_input_datasets"`
	Inputs                  map[string]FieldSchema `json:"inputs"`
	Outputs                 map[string]FieldSchema `json:"outputs"`
	Resources               ResourceHint           `json:"-"`
}

// SupportsDataset reports whether the task accepts the given input dataset.
func (d *TaskDescriptor) SupportsDataset(dataset string) bool {
	for _, ds := range d.CompatibleInputDatasets {
		if ds == dataset {
			return true
		}
	}
	return false
}

// FunctionSpec is the client-facing projection of a task descriptor.
type FunctionSpec struct {
	Identifier              string                 `json:"identifier"`
	Name                    string                 `json:"name"`
	Category                string                 `json:"category"`
	Tags                    []string               `json:"tags,omitempty"`
	Visible                 bool                   `json:"visible"`
	CompatibleInputDatasets []string               `json:"compatible_input_datasets"`
	Inputs                  map[string]FieldSchema `json:"inputs"`
	Outputs                 map[string]FieldSchema `json:"outputs"`
}

// AsFunctionSpec projects the descriptor for the functions endpoint.
func (d *TaskDescriptor) AsFunctionSpec() FunctionSpec {
	return FunctionSpec{
		Identifier:              d.Identifier,
		Name:                    d.Name,
		Category:                string(d.Category),
		Tags:                    d.Tags,
		Visible:                 d.Visible,
		CompatibleInputDatasets: d.CompatibleInputDatasets,
		Inputs:                  d.Inputs,
		Outputs:                 d.Outputs,
	}
}

// SpectralIndexTasks are the tasks that share the spectral-index CWL template.
var SpectralIndexTasks = map[string]bool{
	"ndvi": true,
	"evi":  true,
	"savi": true,
	"ndwi": true,
	"cya":  true,
	"doc":  true,
	"cdom": true,
}
