package snapshot

import (
	"testing"

	"github.com/rawblock/barter-engine/pkg/models"
)

func TestBuildSnapshot_WalksNFTsAndWants(t *testing.T) {
	value := 50.0
	nfts := []*models.NFT{
		{ID: "n1", Owner: "alice", Collection: "artblocks", EstimatedValueUSD: &value},
	}
	wallets := []*models.Wallet{
		{
			ID:               "bob",
			WantedNFTs:       map[string]bool{"n1": true},
			WantedCollection: map[string]bool{"punks": true},
		},
	}

	snap := BuildSnapshot("tenant-1", "key-1", wallets, nfts)

	if snap.TenantID != "tenant-1" {
		t.Errorf("expected tenant id to round-trip, got %q", snap.TenantID)
	}
	if snap.APIKey != "key-1" {
		t.Errorf("expected api key to round-trip, got %q", snap.APIKey)
	}
	if len(snap.NFTs) != 1 || snap.NFTs[0].ID != "n1" || snap.NFTs[0].Owner != "alice" {
		t.Fatalf("unexpected NFTs in snapshot: %+v", snap.NFTs)
	}
	if *snap.NFTs[0].ValueUSD != value {
		t.Errorf("expected value to round-trip, got %v", snap.NFTs[0].ValueUSD)
	}

	var sawNFTWant, sawCollectionWant bool
	for _, w := range snap.Wants {
		if w.WalletID != "bob" {
			t.Errorf("unexpected wallet id in want: %q", w.WalletID)
		}
		if w.NFTID == "n1" {
			sawNFTWant = true
		}
		if w.CollectionID == "punks" {
			sawCollectionWant = true
		}
	}
	if !sawNFTWant {
		t.Errorf("expected an NFT-level want for n1")
	}
	if !sawCollectionWant {
		t.Errorf("expected a collection-level want for punks")
	}
}

func TestBuildSnapshot_EmptyGraphProducesEmptySnapshot(t *testing.T) {
	snap := BuildSnapshot("tenant-1", "key-1", nil, nil)
	if len(snap.NFTs) != 0 || len(snap.Wants) != 0 {
		t.Errorf("expected an empty snapshot for an empty graph, got %+v", snap)
	}
}
