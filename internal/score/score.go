// Package score computes the composite loop score (§4.5, C5): a
// weighted sum of normalised sub-scores. The shape — compute each named
// factor independently, then combine and classify — follows the
// teacher's factor-graph evidence combiner
// (internal/heuristics/factor_graph.go groups LLR edges and fuses them
// into one posterior); here the combination is a configurable weighted
// sum instead of max-fusion, since §4.5 requires the sub-scores to stay
// individually addressable and the weights to be validated, not
// discounted for correlation.
package score

import (
	"math"
	"time"

	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/pkg/models"
)

// Weights must sum to 1 (§4.5, §9 Open Questions). Validate reports
// whether they do, within floating-point tolerance.
type Weights struct {
	Directness          float64
	ValueBalance        float64
	Fairness            float64
	DemandDensity       float64
	CollectionCoherence float64
	Recency             float64
	Novelty             float64
}

// DefaultWeights sums to 1.0 and is a reasonable starting allocation;
// operators are expected to tune it per §9's Open Question.
var DefaultWeights = Weights{
	Directness:          0.15,
	ValueBalance:        0.20,
	Fairness:            0.15,
	DemandDensity:       0.15,
	CollectionCoherence: 0.15,
	Recency:             0.10,
	Novelty:             0.10,
}

// sum returns the total of all seven weights.
func (w Weights) sum() float64 {
	return w.Directness + w.ValueBalance + w.Fairness + w.DemandDensity +
		w.CollectionCoherence + w.Recency + w.Novelty
}

// Validate reports whether w sums to 1 within tolerance.
func (w Weights) Validate() bool {
	return math.Abs(w.sum()-1.0) < 1e-9
}

// Config parameterizes the scorer.
type Config struct {
	Weights     Weights
	FairnessBand float64       // default 0.10 (±10%)
	RecencyTau  time.Duration // default 24h
}

// DefaultConfig matches the §4.5 defaults.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights,
		FairnessBand: 0.10,
		RecencyTau:   24 * time.Hour,
	}
}

// Input carries everything Score needs beyond the loop itself.
type Input struct {
	Store              *graph.Store
	TenantMedianDemand float64 // median wants-count across indexed NFTs
	IsNovel            bool
	NoveltyDecay       float64 // used when !IsNovel
	Now                time.Time
}

// Score computes the §4.5 composite score and its sub-score breakdown.
// It never rejects a loop; callers apply minEfficiency filtering.
func Score(loop models.Loop, cfg Config, in Input) (float64, models.ScoreBreakdown) {
	n := len(loop.Steps)
	if n == 0 {
		return 0, models.ScoreBreakdown{}
	}

	values := make([]float64, n) // values[i] = value of nft given on step i
	for i, step := range loop.Steps {
		if nft := in.Store.GetNFT(step.NFT); nft != nil && nft.EstimatedValueUSD != nil {
			values[i] = *nft.EstimatedValueUSD
		}
	}

	totalValue := 0.0
	for _, v := range values {
		totalValue += v
	}
	meanValue := totalValue / float64(n)

	// delta for participant at position i (= loop.Participants[i], who
	// gives values[i] and receives values[(i-1+n)%n]).
	deltas := make([]float64, n)
	for i := range deltas {
		received := values[(i-1+n)%n]
		given := values[i]
		deltas[i] = received - given
	}

	directness := 1.0 / float64(n)
	valueBalance := valueBalanceScore(deltas, meanValue)
	fairness := fairnessScore(deltas, meanValue, in.FairnessBandOrDefault(cfg))
	demandDensity := demandDensityScore(loop, in)
	collectionCoherence := collectionCoherenceScore(loop, in.Store)
	recency := recencyScore(loop, in, cfg)
	novelty := noveltyScore(in)

	breakdown := models.ScoreBreakdown{
		Directness:          directness,
		ValueBalance:        valueBalance,
		Fairness:            fairness,
		DemandDensity:       demandDensity,
		CollectionCoherence: collectionCoherence,
		Recency:             recency,
		Novelty:             novelty,
	}

	w := cfg.Weights
	composite := w.Directness*directness + w.ValueBalance*valueBalance +
		w.Fairness*fairness + w.DemandDensity*demandDensity +
		w.CollectionCoherence*collectionCoherence + w.Recency*recency +
		w.Novelty*novelty

	return clamp01(composite), breakdown
}

// FairnessBandOrDefault lets Input be constructed without a cfg
// reference while still honoring a caller-chosen band.
func (in Input) FairnessBandOrDefault(cfg Config) float64 {
	if cfg.FairnessBand > 0 {
		return cfg.FairnessBand
	}
	return 0.10
}

func valueBalanceScore(deltas []float64, meanValue float64) float64 {
	if meanValue <= 0 {
		return 1.0
	}
	stdev := stdDev(deltas)
	return clamp01(1.0 - stdev/meanValue)
}

func fairnessScore(deltas []float64, meanValue, band float64) float64 {
	if meanValue <= 0 {
		return 1.0
	}
	within := 0
	for _, d := range deltas {
		if math.Abs(d)/meanValue <= band {
			within++
		}
	}
	return float64(within) / float64(len(deltas))
}

func demandDensityScore(loop models.Loop, in Input) float64 {
	if in.TenantMedianDemand <= 0 {
		return 0
	}
	total := 0.0
	for _, step := range loop.Steps {
		total += float64(wantsCount(in.Store, step.NFT))
	}
	mean := total / float64(len(loop.Steps))
	return clamp01(mean / in.TenantMedianDemand)
}

func wantsCount(store *graph.Store, nftID string) int {
	count := 0
	// Linear scan is acceptable here: demand density is computed once
	// per candidate loop, not per edge of the full graph.
	for _, w := range store.AllWallets() {
		if w.WantedNFTs[nftID] {
			count++
		}
	}
	return count
}

func collectionCoherenceScore(loop models.Loop, store *graph.Store) float64 {
	if len(loop.Steps) == 0 {
		return 0
	}
	coherent := 0
	for _, step := range loop.Steps {
		nft := store.GetNFT(step.NFT)
		wanter := store.GetWallet(step.To)
		if nft == nil || wanter == nil {
			continue
		}
		if nft.Collection != "" && wanter.WantedCollection[nft.Collection] {
			coherent++
		}
	}
	return float64(coherent) / float64(len(loop.Steps))
}

func recencyScore(loop models.Loop, in Input, cfg Config) float64 {
	if len(loop.Participants) == 0 {
		return 0
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	tau := cfg.RecencyTau
	if tau <= 0 {
		tau = 24 * time.Hour
	}
	total := 0.0
	for _, p := range loop.Participants {
		w := in.Store.GetWallet(p)
		if w == nil || w.LastActivity.IsZero() {
			continue
		}
		age := now.Sub(w.LastActivity).Seconds()
		total += math.Exp(-age / tau.Seconds())
	}
	return clamp01(total / float64(len(loop.Participants)))
}

func noveltyScore(in Input) float64 {
	if in.IsNovel {
		return 1.0
	}
	return clamp01(in.NoveltyDecay)
}

func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
