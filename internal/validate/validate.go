// Package validate rejects raw cycles that fail the trade-loop semantic
// (§4.4, C4). Validation runs under the tenant's shared lock; a failed
// validation silently drops the cycle rather than erroring, matching
// §4.4 ("a failed validation causes the cycle to be silently dropped").
package validate

import (
	"time"

	"github.com/rawblock/barter-engine/internal/cycles"
	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/pkg/models"
)

// DirtySince reports the most recent inventory-changed dirty timestamp
// recorded for a wallet, or the zero time if it was never marked dirty.
type DirtySince func(wallet string) time.Time

// Validate applies the five §4.4 conditions to a raw cycle and, if it
// passes, returns the corresponding models.Loop (without fingerprint or
// score, which are attached downstream) and true.
func Validate(raw cycles.RawCycle, store *graph.Store, maxLen int, snapshotAt time.Time, dirtySince DirtySince) (models.Loop, bool) {
	n := len(raw.Vertices)

	// Condition 4: length bounds.
	if n < 2 || n > maxLen {
		return models.Loop{}, false
	}

	// Condition 1: no wallet repeats (elementary cycle).
	seenWallet := make(map[string]bool, n)
	for _, v := range raw.Vertices {
		if seenWallet[v] {
			return models.Loop{}, false
		}
		seenWallet[v] = true
	}

	if len(raw.Edges) != n {
		return models.Loop{}, false
	}

	// Condition 2: no NFT repeats.
	seenNFT := make(map[string]bool, n)
	steps := make([]models.LoopStep, n)

	for i, edge := range raw.Edges {
		from := raw.Vertices[i]
		to := raw.Vertices[(i+1)%n]

		if edge.Wanter != to {
			return models.Loop{}, false
		}
		if seenNFT[edge.NFT] {
			return models.Loop{}, false
		}
		seenNFT[edge.NFT] = true

		// Condition 3: owner(n) == W_i, n in wants(W_{i+1}), W_i != W_{i+1}.
		if from == to {
			return models.Loop{}, false
		}
		nft := store.GetNFT(edge.NFT)
		if nft == nil || nft.Owner != from {
			return models.Loop{}, false
		}
		toWallet := store.GetWallet(to)
		if toWallet == nil || !toWallet.WantedNFTs[edge.NFT] {
			return models.Loop{}, false
		}

		steps[i] = models.LoopStep{From: from, To: to, NFT: edge.NFT}
	}

	// Condition 5: re-discovery is forced if any participant was marked
	// inventory-dirty after the snapshot was taken.
	if dirtySince != nil {
		for _, w := range raw.Vertices {
			if t := dirtySince(w); !t.IsZero() && t.After(snapshotAt) {
				return models.Loop{}, false
			}
		}
	}

	participants := append([]string(nil), raw.Vertices...)
	return models.Loop{Steps: steps, Participants: participants}, true
}
