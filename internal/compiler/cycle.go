package compiler

import (
	"github.com/roach88/dagbridge/internal/ir"
)

// FindCycles returns every cycle in the operator graph as a path of operator
// ids that starts and ends on the same operator.
//
// The native engine only runs DAGs, so any result is a validation error.
// Iteration between rounds is expressed with round parameters, never with
// back edges.
//
// The algorithm:
//  1. Build operator → downstream operators from the edges
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, and each self-loop
//
// Results are deterministic: nodes are visited in declaration order.
func FindCycles(job *ir.Job) [][]string {
	graph, order := buildOperatorGraph(job)

	var cycles [][]string
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, reconstructCyclePath(scc, graph))
		}
	}
	return cycles
}

// operatorGraph maps operator id → downstream operator ids.
type operatorGraph map[string][]string

func buildOperatorGraph(job *ir.Job) (operatorGraph, []string) {
	graph := make(operatorGraph)
	var order []string

	for _, op := range job.Operators {
		if _, seen := graph[op.ID]; !seen {
			graph[op.ID] = []string{}
			order = append(order, op.ID)
		}
	}
	for _, e := range job.Edges {
		// Edges to undeclared operators are reported by Validate.
		if _, ok := graph[e.From.Operator]; !ok {
			continue
		}
		if _, ok := graph[e.To.Operator]; !ok {
			continue
		}
		graph[e.From.Operator] = append(graph[e.From.Operator], e.To.Operator)
	}
	return graph, order
}

func hasSelfLoop(node string, graph operatorGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph operatorGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack to form an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph operatorGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
