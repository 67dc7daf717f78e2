package catalog

import "fmt"

// Registry is the process-wide, read-only task catalog. It is loaded once at
// startup and never mutated afterwards.
type Registry struct {
	tasks  map[string]*TaskDescriptor
	order  []string
	matrix *Matrix
}

// NewRegistry loads the task descriptors and the compatibility matrix.
func NewRegistry() (*Registry, error) {
	matrix, err := LoadMatrix()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		tasks:  make(map[string]*TaskDescriptor, len(descriptors)),
		order:  make([]string, 0, len(descriptors)),
		matrix: matrix,
	}

	for i := range descriptors {
		d := &descriptors[i]
		if _, exists := r.tasks[d.Identifier]; exists {
			return nil, fmt.Errorf("duplicate task descriptor: %s", d.Identifier)
		}
		r.tasks[d.Identifier] = d
		r.order = append(r.order, d.Identifier)
	}

	return r, nil
}

// Get returns the descriptor for the given task identifier.
func (r *Registry) Get(identifier string) (*TaskDescriptor, bool) {
	d, ok := r.tasks[identifier]
	return d, ok
}

// All returns every descriptor in catalog order.
func (r *Registry) All() []*TaskDescriptor {
	out := make([]*TaskDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id])
	}
	return out
}

// Functions returns the visible function specs, optionally filtered to those
// compatible with the given dataset.
func (r *Registry) Functions(dataset string) []FunctionSpec {
	specs := make([]FunctionSpec, 0, len(r.order))
	for _, id := range r.order {
		d := r.tasks[id]
		if !d.Visible {
			continue
		}
		if dataset != "" && !d.SupportsDataset(dataset) {
			continue
		}
		specs = append(specs, d.AsFunctionSpec())
	}
	return specs
}

// Matrix returns the compatibility matrix.
func (r *Registry) Matrix() *Matrix {
	return r.matrix
}

// KnownDataset reports whether the dataset identifier is recognised.
func (r *Registry) KnownDataset(dataset string) bool {
	for _, ds := range Datasets {
		if ds == dataset {
			return true
		}
	}
	return false
}
