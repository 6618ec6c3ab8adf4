// Package snapshot defines the persistence boundary (§6 persisted
// state): the core never touches a database directly, it calls a Store
// interface. Persistence is explicitly out of scope for the core engine
// (§1 Non-goals); this package exists only so an operator who enables
// ENABLE_PERSISTENCE gets snapshot/restore of wallets and NFTs, never of
// the loop cache.
package snapshot

import (
	"context"

	"github.com/rawblock/barter-engine/internal/mutation"
	"github.com/rawblock/barter-engine/pkg/models"
)

// TenantSnapshot is the §6 persisted-state layout: the tenant's API key
// plus wallets and NFTs, enough to rebuild a tenant's graph via
// mutation.ApplyInventory / mutation.ApplyWants. The loop cache is never
// persisted -- it is rebuilt by the background worker after restore.
type TenantSnapshot struct {
	TenantID string                    `json:"tenantId"`
	APIKey   string                    `json:"apiKey"`
	NFTs     []mutation.NFTSubmission  `json:"nfts"`
	Wants    []mutation.WantSubmission `json:"wants"`
}

// Store is the external KV snapshot/restore interface the core depends
// on. Implementations own their own connection lifecycle.
type Store interface {
	Save(ctx context.Context, snap TenantSnapshot) error
	Load(ctx context.Context, tenantID string) (TenantSnapshot, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
	Close()
}

// BuildSnapshot walks a tenant's current graph into the persisted-state
// shape. The caller is expected to invoke this under the tenant's shared
// lock (via tenant.Tenant.Discover) so it observes a consistent view.
func BuildSnapshot(tenantID, apiKey string, wallets []*models.Wallet, nfts []*models.NFT) TenantSnapshot {
	snap := TenantSnapshot{TenantID: tenantID, APIKey: apiKey}

	for _, n := range nfts {
		snap.NFTs = append(snap.NFTs, mutation.NFTSubmission{
			ID:         n.ID,
			Owner:      n.Owner,
			Collection: n.Collection,
			ValueUSD:   n.EstimatedValueUSD,
			Metadata:   n.Metadata,
		})
	}
	for _, w := range wallets {
		for nftID := range w.WantedNFTs {
			snap.Wants = append(snap.Wants, mutation.WantSubmission{WalletID: w.ID, NFTID: nftID})
		}
		for collectionID := range w.WantedCollection {
			snap.Wants = append(snap.Wants, mutation.WantSubmission{WalletID: w.ID, CollectionID: collectionID})
		}
	}
	return snap
}
