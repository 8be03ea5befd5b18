// SPDX-License-Identifier: MPL-2.0

// Package dag orders nodes of a directed graph so that every node comes after
// the nodes it depends on. The matrix loader uses it to resolve variant
// inheritance: a variant is materialized only after the variant it extends.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError lists the nodes left unordered because they sit on, or
	// behind, a cycle.
	CycleError[K comparable] struct {
		Nodes []K
	}

	// Graph is a directed graph with deterministic ordering. An edge from A
	// to B means A must be handled before B.
	Graph[K comparable] struct {
		out   map[K][]K
		nodes []K
		index map[K]int
	}
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("%s between: %s", ErrCycle, strings.Join(parts, ", "))
}

func (e *CycleError[K]) Unwrap() error { return ErrCycle }

// New returns an empty graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		out:   make(map[K][]K),
		index: make(map[K]int),
	}
}

// AddNode registers n. Adding a node twice is a no-op.
func (g *Graph[K]) AddNode(n K) {
	if _, ok := g.index[n]; ok {
		return
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// Has reports whether n was added.
func (g *Graph[K]) Has(n K) bool {
	_, ok := g.index[n]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int { return len(g.nodes) }

// AddEdge records that from must be handled before to, adding either node
// if needed.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	g.out[from] = append(g.out[from], to)
}

// TopologicalSort returns every node in dependency order (Kahn's algorithm).
// Nodes that become ready at the same time keep their insertion order.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make([]int, len(g.nodes))
	for _, targets := range g.out {
		for _, t := range targets {
			inDegree[g.index[t]]++
		}
	}

	queue := make([]K, 0, len(g.nodes))
	for i, n := range g.nodes {
		if inDegree[i] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]K, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, t := range g.out[n] {
			i := g.index[t]
			inDegree[i]--
			if inDegree[i] == 0 {
				queue = append(queue, t)
			}
		}
	}

	if len(order) < len(g.nodes) {
		var stuck []K
		for i, n := range g.nodes {
			if inDegree[i] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, &CycleError[K]{Nodes: stuck}
	}
	return order, nil
}
