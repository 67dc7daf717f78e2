package workflow

import (
	"sort"
	"strings"
)

// Node kinds in the workflow graph.
const (
	NodeInput    = "inputs"
	NodeFunction = "functions"
	NodeOutput   = "outputs"
)

// Graph is the node-attributed workflow graph. Node ids are section-qualified
// strings ("inputs.k", "functions.k", "outputs.k") over adjacency lists, which
// avoids alias and back-reference complications.
type Graph struct {
	nodes      map[string]string   // node id -> section
	taskIDs    map[string]string   // functions node id -> task identifier from the catalog
	adjList    map[string][]string // node id -> successors
	revAdjList map[string][]string // node id -> predecessors
}

// NodeID builds a section-qualified node id.
func NodeID(section, key string) string {
	return section + "." + key
}

// NewGraph builds the graph from a workflow document: one node per workflow
// output and per task, input nodes materialized when referenced, an edge
// section.key -> functions.f for every ref in f's inputs and an edge
// functions.f -> section.key for every ref in f's outputs.
func NewGraph(doc *Document) *Graph {
	g := &Graph{
		nodes:      make(map[string]string),
		taskIDs:    make(map[string]string),
		adjList:    make(map[string][]string),
		revAdjList: make(map[string][]string),
	}

	for name := range doc.Outputs {
		g.addNode(NodeID(NodeOutput, name), NodeOutput)
	}
	for _, taskID := range doc.Functions.Order {
		node := NodeID(NodeFunction, taskID)
		g.addNode(node, NodeFunction)
		g.taskIDs[node] = doc.Functions.Items[taskID].Identifier
	}

	for _, taskID := range doc.Functions.Order {
		task := doc.Functions.Items[taskID]
		taskNode := NodeID(NodeFunction, taskID)

		for _, value := range sortedInputs(task.Inputs) {
			if !value.IsRef() || len(value.Ref) < 2 {
				continue
			}
			src := NodeID(value.Ref[0], value.Ref[1])
			g.addNode(src, value.Ref[0])
			g.addEdge(src, taskNode)
		}

		for _, value := range sortedOutputs(task.Outputs) {
			if !value.IsWorkflowOutput() || len(value.Ref) < 2 {
				continue
			}
			dst := NodeID(value.Ref[0], value.Ref[1])
			g.addNode(dst, value.Ref[0])
			g.addEdge(taskNode, dst)
		}
	}

	return g
}

func (g *Graph) addNode(id, section string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = section
	g.adjList[id] = nil
	g.revAdjList[id] = nil
}

func (g *Graph) addEdge(from, to string) {
	g.adjList[from] = append(g.adjList[from], to)
	g.revAdjList[to] = append(g.revAdjList[to], from)
}

// TaskIdentifier returns the catalog identifier attributed to a functions node.
func (g *Graph) TaskIdentifier(node string) string {
	return g.taskIDs[node]
}

// Successors returns the outgoing neighbors of a node.
func (g *Graph) Successors(node string) []string {
	return g.adjList[node]
}

// Predecessors returns the incoming neighbors of a node.
func (g *Graph) Predecessors(node string) []string {
	return g.revAdjList[node]
}

// Nodes returns all node ids in a stable order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FunctionNodes returns the functions.* node ids in a stable order.
func (g *Graph) FunctionNodes() []string {
	var out []string
	for id, section := range g.nodes {
		if section == NodeFunction {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// OutputNodes returns the outputs.* node ids in a stable order.
func (g *Graph) OutputNodes() []string {
	var out []string
	for id, section := range g.nodes {
		if section == NodeOutput {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// FindCycles returns every cycle reachable in the directed graph, each as the
// list of node ids along the cycle. Uses three-color DFS.
func (g *Graph) FindCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	var cycles [][]string
	var stack []string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		stack = append(stack, node)

		for _, next := range g.adjList[node] {
			switch color[next] {
			case white:
				dfs(next)
			case gray:
				// Found a back edge; extract the cycle from the stack.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle := append([]string{}, stack[i:]...)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, node := range g.Nodes() {
		if color[node] == white {
			dfs(node)
		}
	}

	return cycles
}

// ConnectedComponents returns the connected components of the undirected
// projection, each as a sorted list of node ids.
func (g *Graph) ConnectedComponents() [][]string {
	visited := make(map[string]bool)
	var components [][]string

	var walk func(node string, component *[]string)
	walk = func(node string, component *[]string) {
		visited[node] = true
		*component = append(*component, node)
		for _, next := range g.adjList[node] {
			if !visited[next] {
				walk(next, component)
			}
		}
		for _, prev := range g.revAdjList[node] {
			if !visited[prev] {
				walk(prev, component)
			}
		}
	}

	for _, node := range g.Nodes() {
		if visited[node] {
			continue
		}
		var component []string
		walk(node, &component)
		sort.Strings(component)
		components = append(components, component)
	}

	return components
}

// TaskPredecessors returns the functions.* nodes directly upstream of the
// given functions node, skipping input nodes.
func (g *Graph) TaskPredecessors(node string) []string {
	var out []string
	for _, prev := range g.revAdjList[node] {
		if g.nodes[prev] == NodeFunction {
			out = append(out, prev)
		}
	}
	sort.Strings(out)
	return out
}

// TaskSuccessors returns the functions.* nodes directly downstream of the
// given functions node.
func (g *Graph) TaskSuccessors(node string) []string {
	var out []string
	for _, next := range g.adjList[node] {
		if g.nodes[next] == NodeFunction {
			out = append(out, next)
		}
	}
	sort.Strings(out)
	return out
}

func sortedInputs(inputs map[string]InputValue) []InputValue {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]InputValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, inputs[k])
	}
	return out
}

func sortedOutputs(outputs map[string]OutputValue) []OutputValue {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]OutputValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, outputs[k])
	}
	return out
}

// TrimNodePrefix strips the section qualifier from a node id.
func TrimNodePrefix(node string) string {
	if i := strings.IndexByte(node, '.'); i >= 0 {
		return node[i+1:]
	}
	return node
}
