package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/barter-engine/internal/api"
	"github.com/rawblock/barter-engine/internal/cache"
	"github.com/rawblock/barter-engine/internal/config"
	"github.com/rawblock/barter-engine/internal/discovery"
	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/internal/logging"
	"github.com/rawblock/barter-engine/internal/mutation"
	"github.com/rawblock/barter-engine/internal/snapshot"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/internal/worker"
	"github.com/rawblock/barter-engine/internal/wsbus"
)

// snapshotInterval is how often every tenant's graph is persisted while
// ENABLE_PERSISTENCE is set.
const snapshotInterval = 30 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel)
	startupLog := logging.For(log, "startup")

	startupLog.Info("starting barter discovery engine")

	registry := tenant.NewRegistry(cfg.MaxTenants, cache.DefaultCapacity, cfg.MaxWalletsPerTenant, cfg.MaxNFTsPerTenant, cache.DefaultTTL)

	var snapStore snapshot.Store
	if cfg.EnablePersistence {
		pg, err := snapshot.Connect(cfg.DatabaseURL)
		if err != nil {
			startupLog.WithError(err).Warn("failed to connect to PostgreSQL, continuing without persistence")
		} else {
			if err := pg.InitSchema(context.Background()); err != nil {
				startupLog.WithError(err).Warn("schema init failed")
			}
			defer pg.Close()
			snapStore = pg
			restoreTenants(registry, snapStore, startupLog)
		}
	}

	discoveryLog := logging.For(log, "discovery")
	engine := discovery.New(discoveryLog)

	hub := wsbus.NewHub(logging.For(log, "wsbus"))
	go hub.Run()

	bgWorker := worker.New(registry, engine, 8, logging.For(log, "worker"))
	bgWorker.Start()
	defer bgWorker.Stop()

	adminKey := os.Getenv("ADMIN_API_KEY")
	router := api.SetupRouter(registry, engine, hub, adminKey, logging.For(log, "api"))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		startupLog.WithField("port", cfg.Port).Info("engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startupLog.WithError(err).Fatal("server failed")
		}
	}()

	snapshotStop := make(chan struct{})
	if snapStore != nil {
		go snapshotLoop(registry, snapStore, logging.For(log, "snapshot"), snapshotStop)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	startupLog.Info("shutting down")
	close(snapshotStop)
	if snapStore != nil {
		persistAll(registry, snapStore, logging.For(log, "snapshot"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		startupLog.WithError(err).Warn("graceful shutdown failed")
	}
}

// restoreTenants rebuilds every tenant that had a persisted snapshot
// before this process started (§6 persisted state: restore-on-boot).
func restoreTenants(registry *tenant.Registry, store snapshot.Store, log *logrus.Entry) {
	ids, err := store.ListTenantIDs(context.Background())
	if err != nil {
		log.WithError(err).Warn("failed to list persisted tenants")
		return
	}
	for _, id := range ids {
		snap, err := store.Load(context.Background(), id)
		if err != nil {
			log.WithError(err).WithField("tenant", id).Warn("failed to load tenant snapshot")
			continue
		}
		t := registry.Restore(snap.TenantID, snap.APIKey)
		if err := mutation.ApplyInventory(t, snap.NFTs); err != nil {
			log.WithError(err).WithField("tenant", id).Warn("failed to restore inventory")
		}
		if err := mutation.ApplyWants(t, snap.Wants); err != nil {
			log.WithError(err).WithField("tenant", id).Warn("failed to restore wants")
		}
	}
	log.WithField("count", len(ids)).Info("restored tenants from persisted snapshots")
}

// snapshotLoop periodically persists every tenant's graph until stopCh
// closes. The caller persists once more on its way out after stopping
// this loop, to capture state up to the shutdown signal.
func snapshotLoop(registry *tenant.Registry, store snapshot.Store, log *logrus.Entry, stopCh <-chan struct{}) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			persistAll(registry, store, log)
		}
	}
}

// persistAll writes every tenant's current graph to store, observing
// each tenant's shared lock via Discover so it snapshots a consistent
// view (§6 persisted state excludes the loop cache, see BuildSnapshot).
func persistAll(registry *tenant.Registry, store snapshot.Store, log *logrus.Entry) {
	for _, t := range registry.List() {
		var snap snapshot.TenantSnapshot
		_ = t.Discover(func(s *graph.Store, _ uint64) error {
			snap = snapshot.BuildSnapshot(t.ID, t.APIKey, s.AllWallets(), s.AllNFTs())
			return nil
		})
		if err := store.Save(context.Background(), snap); err != nil {
			log.WithError(err).WithField("tenant", t.ID).Warn("failed to persist tenant snapshot")
		}
	}
}
