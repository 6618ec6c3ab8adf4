package validate

import (
	"testing"
	"time"

	"github.com/rawblock/barter-engine/internal/cycles"
	"github.com/rawblock/barter-engine/internal/graph"
)

func buildTriangleStore() *graph.Store {
	s := graph.NewStore()
	s.AddNFT("n1", "alice", "", nil, nil)
	s.AddNFT("n2", "bob", "", nil, nil)
	s.AddNFT("n3", "carol", "", nil, nil)
	s.AddWant("bob", "n1", "")
	s.AddWant("carol", "n2", "")
	s.AddWant("alice", "n3", "")
	return s
}

func validRaw() cycles.RawCycle {
	return cycles.RawCycle{
		Vertices: []string{"alice", "bob", "carol"},
		Edges: []graph.Edge{
			{Wanter: "bob", NFT: "n1"},
			{Wanter: "carol", NFT: "n2"},
			{Wanter: "alice", NFT: "n3"},
		},
	}
}

func TestValidate_AcceptsWellFormedTriangle(t *testing.T) {
	s := buildTriangleStore()
	loop, ok := Validate(validRaw(), s, 10, time.Now(), nil)
	if !ok {
		t.Fatalf("expected a valid triangle loop to pass validation")
	}
	if len(loop.Steps) != 3 || len(loop.Participants) != 3 {
		t.Fatalf("unexpected loop shape: %+v", loop)
	}
}

func TestValidate_RejectsBelowLengthBound(t *testing.T) {
	s := buildTriangleStore()
	raw := cycles.RawCycle{Vertices: []string{"alice"}, Edges: []graph.Edge{{Wanter: "alice", NFT: "n1"}}}
	if _, ok := Validate(raw, s, 10, time.Now(), nil); ok {
		t.Errorf("expected a length-1 cycle to be rejected")
	}
}

func TestValidate_RejectsAboveMaxLen(t *testing.T) {
	s := buildTriangleStore()
	if _, ok := Validate(validRaw(), s, 2, time.Now(), nil); ok {
		t.Errorf("expected a 3-cycle to be rejected when maxLen=2")
	}
}

func TestValidate_RejectsRepeatedNFT(t *testing.T) {
	s := buildTriangleStore()
	raw := validRaw()
	raw.Edges[1].NFT = "n1" // reuse n1 on a second step
	if _, ok := Validate(raw, s, 10, time.Now(), nil); ok {
		t.Errorf("expected a repeated-NFT cycle to be rejected")
	}
}

func TestValidate_RejectsWrongOwner(t *testing.T) {
	s := buildTriangleStore()
	s.AddNFT("n1", "zara", "", nil, nil) // n1 no longer owned by alice
	if _, ok := Validate(validRaw(), s, 10, time.Now(), nil); ok {
		t.Errorf("expected validation to fail once the NFT's owner no longer matches the edge")
	}
}

func TestValidate_RejectsUnwantedEdge(t *testing.T) {
	s := buildTriangleStore()
	s.RemoveWant("bob", "n1", "")
	if _, ok := Validate(validRaw(), s, 10, time.Now(), nil); ok {
		t.Errorf("expected validation to fail once bob no longer wants n1")
	}
}

func TestValidate_RejectsStaleSnapshotOnDirtyParticipant(t *testing.T) {
	s := buildTriangleStore()
	snapshotAt := time.Now()
	dirtySince := func(wallet string) time.Time {
		if wallet == "bob" {
			return snapshotAt.Add(time.Second) // dirtied after the snapshot
		}
		return time.Time{}
	}
	if _, ok := Validate(validRaw(), s, 10, snapshotAt, dirtySince); ok {
		t.Errorf("expected a post-snapshot dirty participant to force re-discovery (reject this cycle)")
	}
}

func TestValidate_AllowsPreSnapshotDirty(t *testing.T) {
	s := buildTriangleStore()
	snapshotAt := time.Now()
	dirtySince := func(wallet string) time.Time {
		return snapshotAt.Add(-time.Hour) // dirtied well before the snapshot
	}
	if _, ok := Validate(validRaw(), s, 10, snapshotAt, dirtySince); !ok {
		t.Errorf("expected a pre-snapshot dirty timestamp not to block validation")
	}
}
