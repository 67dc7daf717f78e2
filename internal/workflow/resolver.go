package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/eodatahub/action-creator/internal/apperr"
)

// ErrInvalidReferencePath builds the typed error for a ref whose path does
// not address an existing node.
func ErrInvalidReferencePath(path []string, invalidKey string) *apperr.Error {
	return apperr.Newf("invalid_reference_path_error",
		"reference path %v does not resolve: key %q not found", path, invalidKey).
		With("path", path).
		With("invalid_key", invalidKey)
}

// sections a ref path may start with.
var refSections = map[string]bool{
	"inputs":    true,
	"functions": true,
	"outputs":   true,
}

// ResolveRefs validates every ref in the document and returns a deep-copied
// tree of the document in which each ref has been replaced by the value at
// its target path. Atom inputs are replaced by their literal value; outputs
// are left as directory specs or workflow-output refs.
func ResolveRefs(doc *Document) (map[string]any, error) {
	tree, err := documentTree(doc)
	if err != nil {
		return nil, err
	}

	for _, taskID := range doc.Functions.Order {
		task := doc.Functions.Items[taskID]

		resolvedInputs := make(map[string]any, len(task.Inputs))
		for inputID, value := range task.Inputs {
			if value.Kind == KindAtom {
				resolvedInputs[inputID] = value.Atom
				continue
			}
			target, err := walkPath(tree, value.Ref)
			if err != nil {
				return nil, err
			}
			resolvedInputs[inputID] = target
		}

		for _, value := range task.Outputs {
			if value.Kind != KindRef {
				continue
			}
			if _, err := walkPath(tree, value.Ref); err != nil {
				return nil, err
			}
		}

		taskNode := tree["functions"].(map[string]any)[taskID].(map[string]any)
		taskNode["inputs"] = resolvedInputs
	}

	return tree, nil
}

// documentTree deep-copies the document into a generic tree via its wire form.
func documentTree(doc *Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow document: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to rebuild workflow document tree: %w", err)
	}
	if tree["functions"] == nil {
		tree["functions"] = map[string]any{}
	}
	if tree["outputs"] == nil {
		tree["outputs"] = map[string]any{}
	}
	if tree["inputs"] == nil {
		tree["inputs"] = map[string]any{}
	}
	return tree, nil
}

// walkPath follows a ref path through the tree, failing on the first key
// that does not exist.
func walkPath(tree map[string]any, path []string) (any, error) {
	if len(path) < 2 {
		key := ""
		if len(path) == 1 {
			key = path[0]
		}
		return nil, ErrInvalidReferencePath(path, key)
	}
	if !refSections[path[0]] {
		return nil, ErrInvalidReferencePath(path, path[0])
	}

	var current any = tree
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, ErrInvalidReferencePath(path, key)
		}
		current, ok = node[key]
		if !ok {
			return nil, ErrInvalidReferencePath(path, key)
		}
	}
	return current, nil
}
