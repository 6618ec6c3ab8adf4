// Package cycles implements Johnson's elementary-cycle enumeration
// algorithm over a single strongly-connected component, bounded by a
// maximum cycle length, a wall-clock budget, and a cycle-count budget
// (§4.3, C3).
//
// This follows the classic CIRCUIT/UNBLOCK formulation (Johnson, 1975)
// without the optimization of recomputing the least-vertex subgraph's
// own SCCs after each starting vertex is removed: since the caller
// already restricts input to one SCC, skipping that recomputation only
// costs extra (bounded, budget-guarded) exploration, never incorrect
// output — every emitted cycle is still verified elementary by the
// stack discipline below.
package cycles

import (
	"sort"
	"time"

	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/internal/scc"
)

// RawCycle is an unvalidated graph cycle: Vertices[i] -> Vertices[i+1]
// (wrapping to Vertices[0]) carries Edges[i].NFT.
type RawCycle struct {
	Vertices []string
	Edges    []graph.Edge
}

// Budget bounds a single enumeration call.
type Budget struct {
	Deadline    time.Time
	MaxCycles   int
}

// DefaultMaxDepth, HardMaxDepth, DefaultTimeBudget and
// DefaultCycleCount are the §4.3 defaults/caps.
const (
	DefaultMaxDepth   = 10
	HardMaxDepth      = 15
	DefaultTimeBudget = 500 * time.Millisecond
	DefaultCycleCount = 10000
)

type enumerator struct {
	component scc.Component
	maxLen    int
	budget    Budget
	yield     func(RawCycle) bool

	blocked    map[string]bool
	blockedBy  map[string][]string
	path       []string
	pathEdges  []graph.Edge
	cyclesFound int
	truncated  bool
	deadlineHit bool
}

// Enumerate walks every elementary cycle of component up to length
// maxLen (clamped to [2, HardMaxDepth]), invoking yield for each one
// found. yield returning false stops enumeration early (the "lazy
// sequence" the caller need not fully drain). Enumerate returns true if
// it stopped due to the time or count budget rather than exhaustion.
func Enumerate(component scc.Component, maxLen int, budget Budget, yield func(RawCycle) bool) (truncated bool) {
	if maxLen < 2 {
		maxLen = 2
	}
	if maxLen > HardMaxDepth {
		maxLen = HardMaxDepth
	}
	if budget.MaxCycles <= 0 {
		budget.MaxCycles = DefaultCycleCount
	}
	if budget.Deadline.IsZero() {
		budget.Deadline = time.Now().Add(DefaultTimeBudget)
	}

	vertices := append([]string(nil), component.Vertices...)
	sort.Strings(vertices)

	e := &enumerator{
		component: component,
		maxLen:    maxLen,
		budget:    budget,
		yield:     yield,
		blocked:   make(map[string]bool),
		blockedBy: make(map[string][]string),
	}

	for i, s := range vertices {
		if e.truncated {
			break
		}
		remaining := vertices[i:]
		remainingSet := make(map[string]bool, len(remaining))
		for _, v := range remaining {
			remainingSet[v] = true
		}
		for _, v := range remaining {
			e.blocked[v] = false
			e.blockedBy[v] = nil
		}
		e.path = []string{s}
		e.circuit(s, s, remainingSet)
	}
	return e.truncated
}

func (e *enumerator) budgetExceeded() bool {
	if e.truncated {
		return true
	}
	if e.cyclesFound >= e.budget.MaxCycles {
		e.truncated = true
		return true
	}
	if time.Now().After(e.budget.Deadline) {
		e.truncated = true
		return true
	}
	return false
}

// circuit searches for cycles back to s starting at v, restricted to
// vertices in allowed (the >= s induced vertex set). It mirrors
// Johnson's CIRCUIT procedure.
func (e *enumerator) circuit(v, s string, allowed map[string]bool) bool {
	if e.budgetExceeded() {
		return false
	}
	if len(e.path) > e.maxLen {
		return false
	}

	found := false
	e.blocked[v] = true

	neighbors := append([]graph.Edge(nil), e.component.Edges[v]...)
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Wanter < neighbors[j].Wanter })

	for _, edge := range neighbors {
		w := edge.Wanter
		if !allowed[w] {
			continue
		}
		if w == s {
			cycle := RawCycle{
				Vertices: append([]string(nil), e.path...),
				Edges:    append(append([]graph.Edge(nil), e.pathEdges...), edge),
			}
			e.cyclesFound++
			found = true
			if !e.yield(cycle) {
				e.truncated = true
				return true
			}
			if e.budgetExceeded() {
				return true
			}
			continue
		}
		if !e.blocked[w] && len(e.path) < e.maxLen {
			e.path = append(e.path, w)
			e.pathEdges = append(e.pathEdges, edge)
			if e.circuit(w, s, allowed) {
				found = true
			}
			e.path = e.path[:len(e.path)-1]
			e.pathEdges = e.pathEdges[:len(e.pathEdges)-1]
			if e.truncated {
				return found
			}
		}
	}

	if found {
		e.unblock(v)
	} else {
		for _, edge := range neighbors {
			w := edge.Wanter
			if !allowed[w] {
				continue
			}
			already := false
			for _, b := range e.blockedBy[w] {
				if b == v {
					already = true
					break
				}
			}
			if !already {
				e.blockedBy[w] = append(e.blockedBy[w], v)
			}
		}
	}
	return found
}

func (e *enumerator) unblock(u string) {
	e.blocked[u] = false
	list := e.blockedBy[u]
	e.blockedBy[u] = nil
	for _, w := range list {
		if e.blocked[w] {
			e.unblock(w)
		}
	}
}
