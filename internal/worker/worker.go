// Package worker runs the background discovery worker (§4.8, C8): it
// drains each tenant's dirty-wallet queue and refills the loop cache for
// affected wallets, multiplexed over a bounded goroutine pool so the
// engine never spawns one OS thread per tenant (§9 design notes).
//
// The supervise/watch split mirrors the teacher's mempool poller
// (internal/mempool/poller.go): a ticking loop discovers new work
// (here, newly created tenants) and hands it to per-unit goroutines that
// themselves wait on a channel instead of busy-polling.
package worker

import (
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/barter-engine/internal/discovery"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/pkg/models"
)

// MaxWalletsPerDrain bounds how many dirty wallets one wake-up submits
// to the pool, so a single huge mutation batch cannot monopolize it.
const MaxWalletsPerDrain = 100

// IdleDrainInterval is how often a watched tenant is drained even
// without a wake signal, covering the case where WakeCh's single buffer
// slot was already full when a later mutation tried to signal it.
const IdleDrainInterval = 5 * time.Second

// Worker owns the bounded pool and the set of tenants currently being
// watched.
type Worker struct {
	registry *tenant.Registry
	engine   *discovery.Engine
	pool     *workerpool.WorkerPool
	log      *logrus.Entry

	mu      sync.Mutex
	watched map[string]bool

	stopCh chan struct{}
}

// New builds a Worker with a pool of the given size.
func New(registry *tenant.Registry, engine *discovery.Engine, poolSize int, log *logrus.Entry) *Worker {
	if poolSize <= 0 {
		poolSize = 8
	}
	return &Worker{
		registry: registry,
		engine:   engine,
		pool:     workerpool.New(poolSize),
		log:      log,
		watched:  make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the supervisor goroutine. It returns immediately.
func (w *Worker) Start() {
	go w.superviseLoop()
}

// Stop drains the pool and stops watching tenants. It blocks until every
// queued job has finished.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.pool.StopWait()
}

func (w *Worker) superviseLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			for _, t := range w.registry.List() {
				w.maybeWatch(t)
			}
		}
	}
}

func (w *Worker) maybeWatch(t *tenant.Tenant) {
	w.mu.Lock()
	if w.watched[t.ID] {
		w.mu.Unlock()
		return
	}
	w.watched[t.ID] = true
	w.mu.Unlock()

	go w.watchTenant(t)
}

func (w *Worker) watchTenant(t *tenant.Tenant) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-t.WakeCh:
			w.drain(t)
		case <-time.After(IdleDrainInterval):
			w.drain(t)
		}
	}
}

func (w *Worker) drain(t *tenant.Tenant) {
	for i := 0; i < MaxWalletsPerDrain; i++ {
		walletID, ok := t.DrainActiveWallet()
		if !ok {
			return
		}
		w.pool.Submit(func() {
			w.refill(t, walletID)
		})
	}
}

// refill re-runs discovery with default settings for a dirtied wallet so
// the cache is warm again before the next client query arrives.
func (w *Worker) refill(t *tenant.Tenant, walletID string) {
	seed := models.DiscoverySeed{WalletID: walletID}
	result, err := w.engine.Discover(t, seed, models.DiscoverySettings{})
	if err != nil {
		if w.log != nil {
			w.log.WithError(err).WithFields(logrus.Fields{
				"tenant": t.ID,
				"wallet": walletID,
			}).Warn("background refill failed")
		}
		return
	}
	if w.log != nil {
		w.log.WithFields(logrus.Fields{
			"tenant": t.ID,
			"wallet": walletID,
			"loops":  len(result.Loops),
		}).Debug("background refill complete")
	}
}
