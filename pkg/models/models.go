// Package models holds the domain types shared across the barter engine:
// wallets, NFTs, wants edges, trade loops, and the cache/queue entries
// derived from them.
package models

import "time"

// NFT represents a single tenant-scoped non-fungible token.
type NFT struct {
	ID                string                 `json:"id"`
	Owner             string                 `json:"owner"`
	Collection        string                 `json:"collection"`
	EstimatedValueUSD *float64               `json:"estimatedValueUSD,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Wallet is a tenant-scoped participant: an inventory of held NFTs and a
// set of wanted NFTs/collections.
type Wallet struct {
	ID               string          `json:"id"`
	Inventory        map[string]bool `json:"-"` // nft id -> held
	WantedNFTs       map[string]bool `json:"-"` // nft id -> wanted
	WantedCollection map[string]bool `json:"-"` // collection id -> wanted
	// WantedNFTsViaCollectionOnly is the subset of WantedNFTs whose only
	// source is a standing WantedCollection subscription, never an
	// explicit per-NFT want. Discovery excludes these edges when a query
	// sets considerCollections=false (§4.6).
	WantedNFTsViaCollectionOnly map[string]bool `json:"-"`
	LastActivity                time.Time       `json:"lastActivity"`
}

// IsEmpty reports whether the wallet holds and wants nothing, making it
// eligible for garbage collection (§3 Data Model, Wallet lifecycle).
func (w *Wallet) IsEmpty() bool {
	return len(w.Inventory) == 0 && len(w.WantedNFTs) == 0 && len(w.WantedCollection) == 0
}

// DirtyReason enumerates why a wallet was marked dirty.
type DirtyReason string

const (
	DirtyInventoryChanged      DirtyReason = "inventory-changed"
	DirtyWantsChanged          DirtyReason = "wants-changed"
	DirtyOwnershipTransferred  DirtyReason = "ownership-transferred"
)

// DirtyMarker records that a wallet changed at a given logical time.
type DirtyMarker struct {
	WalletID  string      `json:"walletId"`
	Reason    DirtyReason `json:"reason"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	// Version is the graphVersion at which the marker was produced; it
	// orders markers independent of wall-clock skew (§5 ordering guarantees).
	Version uint64 `json:"version"`
}

// LoopStep is one edge of a trade loop: wallet From gives nft to wallet To.
type LoopStep struct {
	From string `json:"from"`
	To   string `json:"to"`
	NFT  string `json:"nft"`
}

// Loop is a validated, scored trade cycle.
type Loop struct {
	Fingerprint      string     `json:"id"`
	Steps            []LoopStep `json:"steps"`
	Participants     []string   `json:"participants"`
	TotalValueUSD    float64    `json:"totalValueUSD"`
	Score            float64    `json:"score"`
	SubScores        ScoreBreakdown `json:"subScores,omitempty"`
	CreatedAt        time.Time  `json:"-"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	GraphVersion     uint64     `json:"-"`
}

// Len returns the number of participants (= number of steps) in the loop.
func (l *Loop) Len() int { return len(l.Steps) }

// ScoreBreakdown is the named set of sub-scores the composite score (§4.5)
// is built from. Implementers may track more than these; these are the
// ones SPEC_FULL requires to be individually addressable.
type ScoreBreakdown struct {
	Directness          float64 `json:"directness"`
	ValueBalance        float64 `json:"valueBalance"`
	Fairness            float64 `json:"fairness"`
	DemandDensity       float64 `json:"demandDensity"`
	CollectionCoherence float64 `json:"collectionCoherence"`
	Recency             float64 `json:"recency"`
	Novelty             float64 `json:"novelty"`
}

// DiscoverySettings are the per-query knobs from §4.6.
type DiscoverySettings struct {
	MaxDepth            int     `json:"maxDepth"`
	MinEfficiency       float64 `json:"minEfficiency"`
	ConsiderCollections bool    `json:"considerCollections"`
	MaxResults          int     `json:"maxResults"`
	TimeoutMs           int     `json:"timeoutMs"`
}

// DiscoverySeed identifies the starting point of a discover query.
type DiscoverySeed struct {
	WalletID string `json:"walletId"`
	NFTID    string `json:"nftId,omitempty"`
	// TenantWide marks a background-mode seed with no specific wallet.
	TenantWide bool `json:"-"`
}

// DiscoveryResult is the response shape returned across the §6 boundary.
type DiscoveryResult struct {
	Loops      []Loop `json:"loops"`
	Truncated  bool   `json:"truncated"`
	FromCache  bool   `json:"fromCache"`
}
