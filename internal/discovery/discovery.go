// Package discovery implements the discover(tenant, seed, settings) query
// path (§4.6, C6): it wires the neighborhood bound (C1), SCC partition
// (C2), Johnson enumeration (C3), validation (C4), and scoring (C5)
// behind the loop cache's coalescing contract (C7).
//
// Per-SCC enumeration fans out with golang.org/x/sync/errgroup, the
// pack's (gallery-so-go-gallery) precedent for bounding concurrent work
// under a deadline -- the teacher never needs a fan-out primitive since
// ClusterEngine's union-find pass is single-threaded.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/barter-engine/internal/apierr"
	"github.com/rawblock/barter-engine/internal/cycles"
	"github.com/rawblock/barter-engine/internal/fingerprint"
	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/internal/scc"
	"github.com/rawblock/barter-engine/internal/score"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/internal/validate"
	"github.com/rawblock/barter-engine/pkg/models"

	"github.com/sirupsen/logrus"
)

// Defaults applied when a DiscoverySettings field is left at its zero
// value (§4.6).
const (
	DefaultMaxDepth      = cycles.DefaultMaxDepth
	DefaultMinEfficiency = 0.0
	DefaultMaxResults    = 50
	DefaultTimeoutMs     = 500
)

// Engine runs discovery queries for one process against many tenants.
type Engine struct {
	ScoreConfig score.Config
	Log         *logrus.Entry
}

// New builds a discovery Engine with the default scoring configuration.
func New(log *logrus.Entry) *Engine {
	return &Engine{ScoreConfig: score.DefaultConfig(), Log: log}
}

func normalizeSettings(s models.DiscoverySettings) models.DiscoverySettings {
	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.MaxDepth > cycles.HardMaxDepth {
		s.MaxDepth = cycles.HardMaxDepth
	}
	if s.MaxResults <= 0 {
		s.MaxResults = DefaultMaxResults
	}
	if s.TimeoutMs <= 0 {
		s.TimeoutMs = DefaultTimeoutMs
	}
	return s
}

// queryKey derives a deterministic cache/coalescing key from the seed
// and normalized settings (§4.7: cache keyed by query shape).
func queryKey(seed models.DiscoverySeed, s models.DiscoverySettings) string {
	return fmt.Sprintf("w=%s|n=%s|tw=%t|d=%d|me=%.4f|cc=%t|mr=%d",
		seed.WalletID, seed.NFTID, seed.TenantWide, s.MaxDepth, s.MinEfficiency, s.ConsiderCollections, s.MaxResults)
}

// Discover runs the full §4.6 query path for t, returning a result that
// is either served from cache or freshly computed and then cached.
func (e *Engine) Discover(t *tenant.Tenant, seed models.DiscoverySeed, settings models.DiscoverySettings) (models.DiscoveryResult, error) {
	settings = normalizeSettings(settings)
	key := queryKey(seed, settings)

	if loops, hit := t.Cache.Get(key, t.LastInventoryDirty); hit {
		return models.DiscoveryResult{Loops: loops, FromCache: true}, nil
	}

	result, err, _ := t.Cache.Coalesce(key, func() (models.DiscoveryResult, error) {
		return e.build(t, seed, settings)
	})
	if err != nil {
		return models.DiscoveryResult{}, err
	}
	if len(result.Loops) > 0 {
		t.Cache.PutAll(key, result.Loops, t.GraphVersion())
	}
	return result, nil
}

// build performs the uncached computation under the tenant's shared
// lock: neighborhood -> SCC partition -> per-SCC cycle enumeration ->
// validation -> scoring -> filter -> sort -> truncate (§4.6 steps 1-6).
func (e *Engine) build(t *tenant.Tenant, seed models.DiscoverySeed, settings models.DiscoverySettings) (models.DiscoveryResult, error) {
	deadline := time.Now().Add(time.Duration(settings.TimeoutMs) * time.Millisecond)

	var result models.DiscoveryResult
	err := t.Discover(func(store *graph.Store, graphVersion uint64) error {
		snapshotAt := time.Now()

		if seed.WalletID == "" && !seed.TenantWide {
			return apierr.Validation("discover requires a seed wallet id or tenantWide=true")
		}
		var adjacency map[string][]graph.Edge
		if settings.ConsiderCollections {
			adjacency = store.Adjacency()
		} else {
			adjacency = store.AdjacencyDirectOnly()
		}

		var neighborhood map[string]bool
		if seed.TenantWide {
			neighborhood = make(map[string]bool)
			for _, w := range store.AllWallets() {
				neighborhood[w.ID] = true
			}
		} else {
			if store.GetWallet(seed.WalletID) == nil {
				return apierr.NotFound("wallet %s not found", seed.WalletID)
			}
			neighborhood = store.Neighborhood(seed.WalletID, settings.MaxDepth, adjacency)
		}

		components := scc.Partition(adjacency, neighborhood)
		if len(components) == 0 {
			return nil
		}

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		defer cancel()
		g, _ := errgroup.WithContext(ctx)

		var mu sync.Mutex
		var candidates []models.Loop
		var cyclesFound int64
		var truncated int32

		medianDemand := store.MedianDemand()

		for _, comp := range components {
			comp := comp
			g.Go(func() error {
				budget := cycles.Budget{Deadline: deadline, MaxCycles: cycles.DefaultCycleCount}
				wasTruncated := cycles.Enumerate(comp, settings.MaxDepth, budget, func(raw cycles.RawCycle) bool {
					if atomic.LoadInt64(&cyclesFound) >= int64(cycles.DefaultCycleCount) {
						return false
					}
					atomic.AddInt64(&cyclesFound, 1)

					loop, ok := validate.Validate(raw, store, settings.MaxDepth, snapshotAt, t.LastInventoryDirty)
					if !ok {
						return time.Now().Before(deadline)
					}
					loop.Fingerprint = fingerprint.Compute(loop.Steps)

					scoreInput := score.Input{
						Store:              store,
						TenantMedianDemand: medianDemand,
						IsNovel:            true,
						Now:                snapshotAt,
					}
					composite, breakdown := score.Score(loop, e.ScoreConfig, scoreInput)
					loop.Score = composite
					loop.SubScores = breakdown
					loop.CreatedAt = snapshotAt
					loop.ExpiresAt = snapshotAt.Add(t.Cache.TTL())
					loop.GraphVersion = graphVersion
					loop.TotalValueUSD = totalValue(loop, store)

					if loop.Score < settings.MinEfficiency {
						return time.Now().Before(deadline)
					}

					mu.Lock()
					candidates = append(candidates, loop)
					mu.Unlock()

					return time.Now().Before(deadline)
				})
				if wasTruncated {
					atomic.StoreInt32(&truncated, 1)
				}
				return nil
			})
		}
		_ = g.Wait()

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].Fingerprint < candidates[j].Fingerprint
		})

		candidates = dedupeByFingerprint(candidates)

		wasTruncated := truncated != 0
		if len(candidates) > settings.MaxResults {
			candidates = candidates[:settings.MaxResults]
			wasTruncated = true
		}

		result = models.DiscoveryResult{Loops: candidates, Truncated: wasTruncated}
		return nil
	})
	if err != nil {
		return models.DiscoveryResult{}, err
	}
	return result, nil
}

func dedupeByFingerprint(loops []models.Loop) []models.Loop {
	seen := make(map[string]bool, len(loops))
	out := loops[:0]
	for _, l := range loops {
		if seen[l.Fingerprint] {
			continue
		}
		seen[l.Fingerprint] = true
		out = append(out, l)
	}
	return out
}

func totalValue(loop models.Loop, store *graph.Store) float64 {
	total := 0.0
	for _, step := range loop.Steps {
		if nft := store.GetNFT(step.NFT); nft != nil && nft.EstimatedValueUSD != nil {
			total += *nft.EstimatedValueUSD
		}
	}
	return total
}
