package worker

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/barter-engine/internal/discovery"
	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/internal/mutation"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/pkg/models"
)

func newTestLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("test", true)
}

func buildTriangleTenant(t *testing.T) *tenant.Tenant {
	t.Helper()
	tn := tenant.New("t1", 100, 100, 100, time.Minute)
	if err := mutation.ApplyInventory(tn, []mutation.NFTSubmission{
		{ID: "n1", Owner: "alice"},
		{ID: "n2", Owner: "bob"},
		{ID: "n3", Owner: "carol"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mutation.ApplyWants(tn, []mutation.WantSubmission{
		{WalletID: "bob", NFTID: "n1"},
		{WalletID: "carol", NFTID: "n2"},
		{WalletID: "alice", NFTID: "n3"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tn
}

func TestMaybeWatch_DedupesSameTenant(t *testing.T) {
	w := New(tenant.NewRegistry(10, 10, 100, 100, time.Minute), discovery.New(newTestLog()), 2, newTestLog())
	defer w.Stop()

	tn := tenant.New("t1", 100, 100, 10, time.Minute)
	w.maybeWatch(tn)
	w.maybeWatch(tn)

	w.mu.Lock()
	count := len(w.watched)
	w.mu.Unlock()
	if count != 1 {
		t.Errorf("expected exactly 1 watched tenant after calling maybeWatch twice, got %d", count)
	}
}

func TestDrain_PopsUpToMaxWalletsPerDrain(t *testing.T) {
	w := New(tenant.NewRegistry(10, 10, 100, 100, time.Minute), discovery.New(newTestLog()), 2, newTestLog())
	defer w.Stop()

	tn := tenant.New("t1", 100, 100, 10, time.Minute)
	markers := make([]models.DirtyMarker, MaxWalletsPerDrain+10)
	for i := range markers {
		markers[i] = models.DirtyMarker{WalletID: "wallet"}
	}
	_ = tn.Mutate(func(s *graph.Store) ([]models.DirtyMarker, error) {
		return markers, nil
	})

	w.drain(tn)
	w.pool.StopWait()

	if tn.ActiveSetDepth() != 10 {
		t.Errorf("expected drain to pop exactly MaxWalletsPerDrain entries, leaving 10, got %d", tn.ActiveSetDepth())
	}
}

func TestRefill_WarmsTheCache(t *testing.T) {
	tn := buildTriangleTenant(t)
	w := New(tenant.NewRegistry(10, 10, 100, 100, time.Minute), discovery.New(newTestLog()), 2, newTestLog())
	defer w.Stop()

	w.refill(tn, "alice")

	if tn.Cache.Len() == 0 {
		t.Errorf("expected refill to populate the cache for the seed wallet")
	}
}

func TestRefill_UnknownWalletLogsAndReturns(t *testing.T) {
	tn := tenant.New("t1", 100, 100, 10, time.Minute)
	w := New(tenant.NewRegistry(10, 10, 100, 100, time.Minute), discovery.New(newTestLog()), 2, newTestLog())
	defer w.Stop()

	w.refill(tn, "nobody") // should not panic
}
