// Package mutation is the single entry point for inventory and wants
// changes (§4.9, C9). Every public Apply* call goes through
// tenant.Tenant.Mutate, so the exclusive lock, graphVersion increment,
// dirty-marker bookkeeping, and cache invalidation happen atomically
// with the underlying graph edit (§5 "a mutation and its dirty-marking
// are never observed apart").
//
// Batches are all-or-nothing: the first invalid entry aborts the whole
// call with a ValidationError pointing at its index (§7 partial
// failure), mirroring the teacher's request-validation-before-commit
// style in internal/api/routes.go.
package mutation

import (
	"github.com/rawblock/barter-engine/internal/apierr"
	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/pkg/models"
)

// NFTSubmission is one inventory entry: NFT id, current owner, optional
// collection and value.
type NFTSubmission struct {
	ID         string                 `json:"id"`
	Owner      string                 `json:"owner"`
	Collection string                 `json:"collection,omitempty"`
	ValueUSD   *float64               `json:"valueUSD,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// WantSubmission is one wants edge: wallet wants either a specific NFT
// or an entire collection.
type WantSubmission struct {
	WalletID     string `json:"walletId"`
	NFTID        string `json:"nftId,omitempty"`
	CollectionID string `json:"collectionId,omitempty"`
}

// ApplyInventory applies a batch of NFT submissions to t's graph in one
// atomic mutation (§6 POST /inventory/submit).
func ApplyInventory(t *tenant.Tenant, batch []NFTSubmission) error {
	for i, sub := range batch {
		if sub.ID == "" {
			return apierr.ValidationAt(i, "nft id must not be empty")
		}
		if sub.Owner == "" {
			return apierr.ValidationAt(i, "nft %s: owner must not be empty", sub.ID)
		}
	}

	return t.Mutate(func(store *graph.Store) ([]models.DirtyMarker, error) {
		var markers []models.DirtyMarker
		for i, sub := range batch {
			prevOwner, transferred, err := store.AddNFT(sub.ID, sub.Owner, sub.Collection, sub.ValueUSD, sub.Metadata)
			if err != nil {
				return nil, apierr.ValidationAt(i, "%v", err)
			}
			if t.MaxNFTs > 0 && store.NFTCount() > t.MaxNFTs {
				return nil, apierr.ResourceExhausted("tenant %s: nft cap of %d reached", t.ID, t.MaxNFTs)
			}
			if t.MaxWallets > 0 && store.WalletCount() > t.MaxWallets {
				return nil, apierr.ResourceExhausted("tenant %s: wallet cap of %d reached", t.ID, t.MaxWallets)
			}
			if transferred {
				markers = append(markers,
					models.DirtyMarker{WalletID: prevOwner, Reason: models.DirtyOwnershipTransferred},
					models.DirtyMarker{WalletID: sub.Owner, Reason: models.DirtyOwnershipTransferred},
				)
			} else {
				markers = append(markers, models.DirtyMarker{WalletID: sub.Owner, Reason: models.DirtyInventoryChanged})
			}
		}
		return markers, nil
	})
}

// RemoveInventory deletes NFTs from t's graph, marking every wallet that
// referenced them (as owner or wanter) dirty.
func RemoveInventory(t *tenant.Tenant, nftIDs []string) error {
	return t.Mutate(func(store *graph.Store) ([]models.DirtyMarker, error) {
		var markers []models.DirtyMarker
		for i, id := range nftIDs {
			nft := store.GetNFT(id)
			if nft == nil {
				return nil, apierr.ValidationAt(i, "nft %s not found", id)
			}
			owner := nft.Owner
			var wanters []string
			for _, w := range store.AllWallets() {
				if w.ID != owner && w.WantedNFTs[id] {
					wanters = append(wanters, w.ID)
				}
			}
			if err := store.RemoveNFT(id); err != nil {
				return nil, apierr.ValidationAt(i, "%v", err)
			}
			markers = append(markers, models.DirtyMarker{WalletID: owner, Reason: models.DirtyInventoryChanged})
			for _, w := range wanters {
				markers = append(markers, models.DirtyMarker{WalletID: w, Reason: models.DirtyWantsChanged})
			}
		}
		return markers, nil
	})
}

// ApplyWants applies a batch of want submissions to t's graph in one
// atomic mutation (§6 POST /wants/submit).
func ApplyWants(t *tenant.Tenant, batch []WantSubmission) error {
	for i, sub := range batch {
		if sub.WalletID == "" {
			return apierr.ValidationAt(i, "wallet id must not be empty")
		}
		if sub.NFTID == "" && sub.CollectionID == "" {
			return apierr.ValidationAt(i, "want must name an nft id or a collection id")
		}
	}

	return t.Mutate(func(store *graph.Store) ([]models.DirtyMarker, error) {
		var markers []models.DirtyMarker
		for i, sub := range batch {
			if err := store.AddWant(sub.WalletID, sub.NFTID, sub.CollectionID); err != nil {
				return nil, apierr.ValidationAt(i, "%v", err)
			}
			if t.MaxWallets > 0 && store.WalletCount() > t.MaxWallets {
				return nil, apierr.ResourceExhausted("tenant %s: wallet cap of %d reached", t.ID, t.MaxWallets)
			}
			markers = append(markers, models.DirtyMarker{WalletID: sub.WalletID, Reason: models.DirtyWantsChanged})
		}
		return markers, nil
	})
}

// RemoveWants is the symmetric removal of ApplyWants.
func RemoveWants(t *tenant.Tenant, batch []WantSubmission) error {
	return t.Mutate(func(store *graph.Store) ([]models.DirtyMarker, error) {
		var markers []models.DirtyMarker
		for i, sub := range batch {
			if err := store.RemoveWant(sub.WalletID, sub.NFTID, sub.CollectionID); err != nil {
				return nil, apierr.ValidationAt(i, "%v", err)
			}
			markers = append(markers, models.DirtyMarker{WalletID: sub.WalletID, Reason: models.DirtyWantsChanged})
		}
		return markers, nil
	})
}

// GC removes empty wallets from t's graph (§3 Wallet lifecycle). It does
// not itself dirty anything: a removed wallet has nothing left to
// invalidate.
func GC(t *tenant.Tenant) ([]string, error) {
	var removed []string
	err := t.Mutate(func(store *graph.Store) ([]models.DirtyMarker, error) {
		removed = store.GC()
		return nil, nil
	})
	return removed, err
}
