// Package scc implements Tarjan's strongly-connected-components
// algorithm over a wants-graph view restricted to a query neighborhood
// (§4.2, C2).
package scc

import (
	"sort"

	"github.com/rawblock/barter-engine/internal/graph"
)

// Component is one strongly-connected component: its vertex set and the
// intra-component edges (edges to vertices outside the SCC are
// dropped — they cannot participate in a cycle confined to this SCC).
type Component struct {
	Vertices []string
	Edges    map[string][]graph.Edge
}

type tarjanState struct {
	adjacency map[string][]graph.Edge
	vertices  map[string]bool

	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int

	components []Component
}

// Partition runs Tarjan's algorithm over adjacency restricted to
// vertices, visiting vertices in a fixed sorted order so that, given an
// identical input, the output component order is deterministic (§4.2
// Determinism — this keeps cache fingerprints stable). Singleton SCCs
// with no self-loop are discarded since they cannot form a cycle.
func Partition(adjacency map[string][]graph.Edge, vertices map[string]bool) []Component {
	st := &tarjanState{
		adjacency: adjacency,
		vertices:  vertices,
		index:     make(map[string]int),
		lowlink:   make(map[string]int),
		onStack:   make(map[string]bool),
	}

	ordered := make([]string, 0, len(vertices))
	for v := range vertices {
		ordered = append(ordered, v)
	}
	sort.Strings(ordered)

	for _, v := range ordered {
		if _, seen := st.index[v]; !seen {
			st.strongConnect(v)
		}
	}
	return st.components
}

func (st *tarjanState) strongConnect(v string) {
	st.index[v] = st.counter
	st.lowlink[v] = st.counter
	st.counter++
	st.stack = append(st.stack, v)
	st.onStack[v] = true

	neighbors := append([]graph.Edge(nil), st.adjacency[v]...)
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Wanter < neighbors[j].Wanter })

	for _, e := range neighbors {
		w := e.Wanter
		if !st.vertices[w] {
			continue
		}
		if _, seen := st.index[w]; !seen {
			st.strongConnect(w)
			if st.lowlink[w] < st.lowlink[v] {
				st.lowlink[v] = st.lowlink[w]
			}
		} else if st.onStack[w] {
			if st.index[w] < st.lowlink[v] {
				st.lowlink[v] = st.index[w]
			}
		}
	}

	if st.lowlink[v] == st.index[v] {
		var members []string
		for {
			n := len(st.stack) - 1
			w := st.stack[n]
			st.stack = st.stack[:n]
			st.onStack[w] = false
			members = append(members, w)
			if w == v {
				break
			}
		}

		if hasCycle(members, st.adjacency) {
			sort.Strings(members)
			memberSet := make(map[string]bool, len(members))
			for _, m := range members {
				memberSet[m] = true
			}
			edges := make(map[string][]graph.Edge, len(members))
			for _, m := range members {
				for _, e := range st.adjacency[m] {
					if memberSet[e.Wanter] {
						edges[m] = append(edges[m], e)
					}
				}
			}
			st.components = append(st.components, Component{Vertices: members, Edges: edges})
		}
	}
}

// hasCycle reports whether an SCC of size 1 has a self-loop, and is
// trivially true for any SCC of size > 1 (Tarjan guarantees mutual
// reachability within the component, which for size > 1 always implies
// at least one cycle).
func hasCycle(members []string, adjacency map[string][]graph.Edge) bool {
	if len(members) > 1 {
		return true
	}
	v := members[0]
	for _, e := range adjacency[v] {
		if e.Wanter == v {
			return true
		}
	}
	return false
}
