package scc

import (
	"testing"

	"github.com/rawblock/barter-engine/internal/graph"
)

func allVertices(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestPartition_SimpleTriangle(t *testing.T) {
	adj := map[string][]graph.Edge{
		"a": {{Wanter: "b", NFT: "n1"}},
		"b": {{Wanter: "c", NFT: "n2"}},
		"c": {{Wanter: "a", NFT: "n3"}},
	}
	comps := Partition(adj, allVertices("a", "b", "c"))
	if len(comps) != 1 {
		t.Fatalf("expected 1 component, got %d", len(comps))
	}
	if len(comps[0].Vertices) != 3 {
		t.Errorf("expected all 3 vertices in one SCC, got %v", comps[0].Vertices)
	}
}

func TestPartition_DiscardsAcyclicSingletons(t *testing.T) {
	adj := map[string][]graph.Edge{
		"a": {{Wanter: "b", NFT: "n1"}},
		"b": {{Wanter: "c", NFT: "n2"}},
	}
	comps := Partition(adj, allVertices("a", "b", "c"))
	if len(comps) != 0 {
		t.Fatalf("expected no SCCs for an acyclic chain, got %d", len(comps))
	}
}

func TestPartition_KeepsSelfLoop(t *testing.T) {
	adj := map[string][]graph.Edge{
		"a": {{Wanter: "a", NFT: "n1"}},
	}
	comps := Partition(adj, allVertices("a"))
	if len(comps) != 1 {
		t.Fatalf("expected self-loop to form a 1-vertex SCC, got %d components", len(comps))
	}
}

func TestPartition_TwoDisjointCycles(t *testing.T) {
	adj := map[string][]graph.Edge{
		"a": {{Wanter: "b", NFT: "n1"}},
		"b": {{Wanter: "a", NFT: "n2"}},
		"c": {{Wanter: "d", NFT: "n3"}},
		"d": {{Wanter: "c", NFT: "n4"}},
	}
	comps := Partition(adj, allVertices("a", "b", "c", "d"))
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
}

func TestPartition_DeterministicAcrossRuns(t *testing.T) {
	adj := map[string][]graph.Edge{
		"x": {{Wanter: "y", NFT: "n1"}},
		"y": {{Wanter: "z", NFT: "n2"}},
		"z": {{Wanter: "x", NFT: "n3"}},
	}
	vertices := allVertices("x", "y", "z")

	first := Partition(adj, vertices)
	for i := 0; i < 5; i++ {
		again := Partition(adj, vertices)
		if len(again) != len(first) || len(again[0].Vertices) != len(first[0].Vertices) {
			t.Fatalf("partition not stable across repeated runs")
		}
		for j := range first[0].Vertices {
			if first[0].Vertices[j] != again[0].Vertices[j] {
				t.Fatalf("vertex order drifted: %v vs %v", first[0].Vertices, again[0].Vertices)
			}
		}
	}
}
