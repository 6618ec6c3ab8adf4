package mutation

import (
	"testing"
	"time"

	"github.com/rawblock/barter-engine/internal/apierr"
	"github.com/rawblock/barter-engine/internal/tenant"
)

func newTestTenant() *tenant.Tenant {
	return tenant.New("t1", 100, 100, 10, time.Minute)
}

func TestApplyInventory_NewNFTMarksOwnerDirty(t *testing.T) {
	tn := newTestTenant()
	err := ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "alice"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.LastDirty("alice").IsZero() {
		t.Errorf("expected alice to be marked dirty after inventory submit")
	}
}

func TestApplyInventory_TransferMarksBothWallets(t *testing.T) {
	tn := newTestTenant()
	if err := ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "alice"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "bob"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.LastDirty("alice").IsZero() {
		t.Errorf("expected the previous owner to be marked dirty on transfer")
	}
	if tn.LastDirty("bob").IsZero() {
		t.Errorf("expected the new owner to be marked dirty on transfer")
	}
}

func TestApplyInventory_BatchRejectsAllOnBadEntry(t *testing.T) {
	tn := newTestTenant()
	err := ApplyInventory(tn, []NFTSubmission{
		{ID: "n1", Owner: "alice"},
		{ID: "", Owner: "bob"},
	})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation || apiErr.Index != 1 {
		t.Fatalf("expected a ValidationError at index 1, got %v", err)
	}
	if !tn.LastDirty("alice").IsZero() {
		t.Errorf("expected no partial commit: alice should not be dirty when the batch fails")
	}
}

func TestRemoveInventory_MarksOwnerDirty(t *testing.T) {
	tn := newTestTenant()
	_ = ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "alice"}})

	if err := RemoveInventory(tn, []string{"n1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.LastDirty("alice").IsZero() {
		t.Errorf("expected alice to be marked dirty after inventory removal")
	}
}

func TestRemoveInventory_UnknownNFTReturnsValidationError(t *testing.T) {
	tn := newTestTenant()
	err := RemoveInventory(tn, []string{"missing"})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
}

func TestApplyWants_RequiresNFTOrCollection(t *testing.T) {
	tn := newTestTenant()
	err := ApplyWants(tn, []WantSubmission{{WalletID: "alice"}})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected a ValidationError for a want naming neither nft nor collection, got %v", err)
	}
}

func TestApplyWants_MarksWalletDirty(t *testing.T) {
	tn := newTestTenant()
	err := ApplyWants(tn, []WantSubmission{{WalletID: "bob", NFTID: "n1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.LastDirty("bob").IsZero() {
		t.Errorf("expected bob to be marked dirty after a wants submit")
	}
}

func TestRemoveWants_MarksWalletDirty(t *testing.T) {
	tn := newTestTenant()
	_ = ApplyWants(tn, []WantSubmission{{WalletID: "bob", NFTID: "n1"}})
	if err := RemoveWants(tn, []WantSubmission{{WalletID: "bob", NFTID: "n1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.LastDirty("bob").IsZero() {
		t.Errorf("expected bob to be marked dirty after a wants removal")
	}
}

func TestApplyInventory_RejectsOverNFTCap(t *testing.T) {
	tn := tenant.New("t1", 100, 1, 10, time.Minute)
	if err := ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "alice"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ApplyInventory(tn, []NFTSubmission{{ID: "n2", Owner: "alice"}})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindResourceExhausted {
		t.Fatalf("expected a ResourceExhausted error once the nft cap is exceeded, got %v", err)
	}
}

func TestApplyInventory_RejectsOverWalletCap(t *testing.T) {
	tn := tenant.New("t1", 1, 100, 10, time.Minute)
	if err := ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "alice"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ApplyInventory(tn, []NFTSubmission{{ID: "n2", Owner: "bob"}})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindResourceExhausted {
		t.Fatalf("expected a ResourceExhausted error once the wallet cap is exceeded, got %v", err)
	}
}

func TestApplyWants_RejectsOverWalletCap(t *testing.T) {
	tn := tenant.New("t1", 1, 100, 10, time.Minute)
	if err := ApplyInventory(tn, []NFTSubmission{{ID: "n1", Owner: "alice"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ApplyWants(tn, []WantSubmission{{WalletID: "newwallet", NFTID: "n1"}})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindResourceExhausted {
		t.Fatalf("expected a ResourceExhausted error once the wallet cap is exceeded, got %v", err)
	}
}

func TestGC_RemovesEmptyWallets(t *testing.T) {
	tn := newTestTenant()
	_ = ApplyWants(tn, []WantSubmission{{WalletID: "ghost", NFTID: "nope"}})
	_ = RemoveWants(tn, []WantSubmission{{WalletID: "ghost", NFTID: "nope"}})

	removed, err := GC(tn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, id := range removed {
		if id == "ghost" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected GC to remove the now-empty ghost wallet, got %v", removed)
	}
}
