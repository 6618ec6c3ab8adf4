package score

import (
	"testing"
	"time"

	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/pkg/models"
)

func val(v float64) *float64 { return &v }

func TestDefaultWeights_SumToOne(t *testing.T) {
	if !DefaultWeights.Validate() {
		t.Fatalf("DefaultWeights sums to %f, want 1.0", DefaultWeights.sum())
	}
}

func TestWeights_RejectsInvalidSum(t *testing.T) {
	bad := Weights{Directness: 0.5, ValueBalance: 0.2}
	if bad.Validate() {
		t.Errorf("expected weights summing to 0.7 to fail Validate")
	}
}

func buildEqualValueTriangle() (*graph.Store, models.Loop) {
	s := graph.NewStore()
	s.AddNFT("n1", "alice", "artblocks", val(100), nil)
	s.AddNFT("n2", "bob", "artblocks", val(100), nil)
	s.AddNFT("n3", "carol", "artblocks", val(100), nil)
	s.AddWant("bob", "n1", "")
	s.AddWant("carol", "n2", "")
	s.AddWant("alice", "n3", "")

	loop := models.Loop{
		Steps: []models.LoopStep{
			{From: "alice", To: "bob", NFT: "n1"},
			{From: "bob", To: "carol", NFT: "n2"},
			{From: "carol", To: "alice", NFT: "n3"},
		},
		Participants: []string{"alice", "bob", "carol"},
	}
	return s, loop
}

func TestScore_PerfectlyBalancedLoopScoresHighValueBalance(t *testing.T) {
	s, loop := buildEqualValueTriangle()
	cfg := DefaultConfig()
	in := Input{Store: s, TenantMedianDemand: 1, Now: time.Now()}

	_, breakdown := Score(loop, cfg, in)
	if breakdown.ValueBalance < 0.99 {
		t.Errorf("expected near-perfect value balance for equal-valued swaps, got %f", breakdown.ValueBalance)
	}
	if breakdown.Directness != 1.0/3.0 {
		t.Errorf("expected directness=1/3 for a 3-step loop, got %f", breakdown.Directness)
	}
}

func TestScore_CompositeWithinUnitRange(t *testing.T) {
	s, loop := buildEqualValueTriangle()
	cfg := DefaultConfig()
	in := Input{Store: s, TenantMedianDemand: 1, IsNovel: true, Now: time.Now()}

	composite, _ := Score(loop, cfg, in)
	if composite < 0 || composite > 1 {
		t.Fatalf("composite score %f out of [0,1] range", composite)
	}
}

func TestScore_EmptyLoopReturnsZero(t *testing.T) {
	s := graph.NewStore()
	composite, breakdown := Score(models.Loop{}, DefaultConfig(), Input{Store: s})
	if composite != 0 {
		t.Errorf("expected 0 composite for an empty loop, got %f", composite)
	}
	if breakdown != (models.ScoreBreakdown{}) {
		t.Errorf("expected a zero breakdown for an empty loop, got %+v", breakdown)
	}
}

func TestNoveltyScore_NonNovelUsesDecay(t *testing.T) {
	in := Input{IsNovel: false, NoveltyDecay: 0.3}
	if got := noveltyScore(in); got != 0.3 {
		t.Errorf("expected novelty score 0.3, got %f", got)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-1, 0},
		{0.5, 0.5},
		{2, 1},
	}
	for _, c := range cases {
		if got := clamp01(c.in); got != c.want {
			t.Errorf("clamp01(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}
