// Package tenant owns the per-tenant reader-writer lock, graph store,
// loop cache, and dirty queue, and the registry that creates/destroys
// tenants (§3 Tenant, §5 Concurrency & Resource Model).
//
// The registry generalizes the teacher's InvestigationManager
// (internal/heuristics/investigation.go): a sync.RWMutex-guarded
// map[string]*Investigation with Create/Get/List semantics becomes a
// map[string]*Tenant owning a graph, a cache, and a dirty queue instead
// of a fund-flow case.
package tenant

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/barter-engine/internal/apierr"
	"github.com/rawblock/barter-engine/internal/cache"
	"github.com/rawblock/barter-engine/internal/graph"
	"github.com/rawblock/barter-engine/pkg/models"
)

// ActiveSetWatermark bounds the background worker's active wallet set
// (§4.8 Backpressure, default 10 000).
const ActiveSetWatermark = 10000

// Tenant owns one isolated wants-graph, its loop cache, and its dirty
// queue. All access to the graph goes through Mutate/Discover so the
// reader-writer discipline of §5 is enforced in one place.
type Tenant struct {
	ID        string
	APIKey    string
	CreatedAt time.Time

	mu           sync.RWMutex
	store        *graph.Store
	graphVersion uint64

	dirtyMu            sync.Mutex
	lastDirty          map[string]time.Time
	lastInventoryDirty map[string]time.Time
	activeSet          []models.DirtyMarker // FIFO, oldest first (§4.8 priority queue keyed on enqueue time)

	Cache  *cache.Cache
	WakeCh chan struct{}

	MaxWallets int
	MaxNFTs    int
}

// New creates an empty tenant graph with its own API key.
func New(id string, maxWallets, maxNFTs, cacheCapacity int, cacheTTL time.Duration) *Tenant {
	return &Tenant{
		ID:                 id,
		APIKey:             uuid.NewString(),
		CreatedAt:          time.Now(),
		store:              graph.NewStore(),
		lastDirty:          make(map[string]time.Time),
		lastInventoryDirty: make(map[string]time.Time),
		Cache:              cache.New(cacheCapacity, cacheTTL),
		WakeCh:             make(chan struct{}, 1),
		MaxWallets:         maxWallets,
		MaxNFTs:            maxNFTs,
	}
}

// GraphVersion returns the current monotonic mutation counter.
func (t *Tenant) GraphVersion() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.graphVersion
}

// Mutate takes the tenant's exclusive lock and applies fn to the graph
// store. fn returns the set of affected wallets and their dirty reason;
// Mutate then increments graphVersion, records dirty markers, and
// invalidates the affected wallets' cache entries -- all before
// releasing the lock, so no reader ever observes a mutation without its
// dirty bookkeeping (§4.9 Mutation router: "must be atomic").
//
// fn must not perform network or disk I/O (§5 Suspension points).
func (t *Tenant) Mutate(fn func(store *graph.Store) ([]models.DirtyMarker, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	markers, err := fn(t.store)
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		return nil
	}

	t.graphVersion++
	version := t.graphVersion
	now := time.Now()

	t.dirtyMu.Lock()
	for i := range markers {
		markers[i].EnqueuedAt = now
		markers[i].Version = version
		t.lastDirty[markers[i].WalletID] = now
		if markers[i].Reason == models.DirtyInventoryChanged {
			t.lastInventoryDirty[markers[i].WalletID] = now
		}
		t.activeSet = append(t.activeSet, markers[i])
	}
	if len(t.activeSet) > ActiveSetWatermark {
		// Backpressure: drop the oldest entries rather than grow
		// unboundedly (§4.8 Backpressure).
		drop := len(t.activeSet) - ActiveSetWatermark
		t.activeSet = t.activeSet[drop:]
	}
	t.dirtyMu.Unlock()

	for _, m := range markers {
		t.Cache.Invalidate(m.WalletID)
	}

	select {
	case t.WakeCh <- struct{}{}:
	default:
	}
	return nil
}

// Discover takes the tenant's shared lock and runs fn against a
// consistent snapshot of the graph store at the current graphVersion
// (§5 ordering guarantees).
func (t *Tenant) Discover(fn func(store *graph.Store, graphVersion uint64) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(t.store, t.graphVersion)
}

// LastDirty returns the most recent dirty timestamp for wallet, of any
// reason, or the zero time.
func (t *Tenant) LastDirty(wallet string) time.Time {
	t.dirtyMu.Lock()
	defer t.dirtyMu.Unlock()
	return t.lastDirty[wallet]
}

// LastInventoryDirty returns the most recent inventory-changed dirty
// timestamp for wallet, used by the loop validator's condition 5.
func (t *Tenant) LastInventoryDirty(wallet string) time.Time {
	t.dirtyMu.Lock()
	defer t.dirtyMu.Unlock()
	return t.lastInventoryDirty[wallet]
}

// DrainActiveWallet pops the highest-priority (oldest-enqueued) dirty
// wallet for the background worker (§4.8 step 2), or ("", false) if the
// active set is empty.
func (t *Tenant) DrainActiveWallet() (string, bool) {
	t.dirtyMu.Lock()
	defer t.dirtyMu.Unlock()
	if len(t.activeSet) == 0 {
		return "", false
	}
	m := t.activeSet[0]
	t.activeSet = t.activeSet[1:]
	return m.WalletID, true
}

// ActiveSetDepth reports the current dirty-queue depth.
func (t *Tenant) ActiveSetDepth() int {
	t.dirtyMu.Lock()
	defer t.dirtyMu.Unlock()
	return len(t.activeSet)
}

// Stats is a snapshot of tenant-level counters for the admin stats
// endpoint, modeled on the teacher's handleHealth/handleScanProgress.
type Stats struct {
	TenantID        string `json:"tenantId"`
	WalletCount     int    `json:"walletCount"`
	NFTCount        int    `json:"nftCount"`
	CachedLoops     int    `json:"cachedLoops"`
	DirtyQueueDepth int    `json:"dirtyQueueDepth"`
	GraphVersion    uint64 `json:"graphVersion"`
}

// Stats computes a point-in-time snapshot under the shared lock.
func (t *Tenant) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		TenantID:        t.ID,
		WalletCount:     t.store.WalletCount(),
		NFTCount:        t.store.NFTCount(),
		CachedLoops:     t.Cache.Len(),
		DirtyQueueDepth: t.ActiveSetDepth(),
		GraphVersion:    t.graphVersion,
	}
}

// Registry owns every tenant in the process. Create/Get/List/Destroy
// mirror the teacher's InvestigationManager CRUD shape.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant

	maxTenants    int
	cacheCapacity int
	cacheTTL      time.Duration
	maxWallets    int
	maxNFTs       int
}

// NewRegistry builds an empty tenant registry.
func NewRegistry(maxTenants, cacheCapacity, maxWallets, maxNFTs int, cacheTTL time.Duration) *Registry {
	return &Registry{
		tenants:       make(map[string]*Tenant),
		maxTenants:    maxTenants,
		cacheCapacity: cacheCapacity,
		cacheTTL:      cacheTTL,
		maxWallets:    maxWallets,
		maxNFTs:       maxNFTs,
	}
}

// Create provisions a new tenant with a fresh id and API key (§6
// POST /admin/tenants).
func (r *Registry) Create() (*Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tenants) >= r.maxTenants {
		return nil, apierr.ResourceExhausted("tenant limit of %d reached", r.maxTenants)
	}

	id := uuid.NewString()
	t := New(id, r.maxWallets, r.maxNFTs, r.cacheCapacity, r.cacheTTL)
	r.tenants[id] = t
	return t, nil
}

// Restore reinstates a tenant with a previously issued id and API key
// (§6 persisted state: restore-on-boot), bypassing the maxTenants cap
// since these tenants already existed before the process started.
func (r *Registry) Restore(id, apiKey string) *Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := New(id, r.maxWallets, r.maxNFTs, r.cacheCapacity, r.cacheTTL)
	t.APIKey = apiKey
	r.tenants[id] = t
	return t
}

// Get returns the tenant for id, or nil if unknown.
func (r *Registry) Get(id string) *Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tenants[id]
}

// GetByAPIKey resolves an API key to its tenant (§6 Authentication).
func (r *Registry) GetByAPIKey(key string) *Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.APIKey == key {
			return t
		}
	}
	return nil
}

// List returns every tenant, for background-worker iteration.
func (r *Registry) List() []*Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out
}

// Destroy releases a tenant and everything it owns (§3 Tenant lifecycle:
// "destroyed by admin call which must release all owned memory").
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[id]; !ok {
		return apierr.NotFound("tenant %s not found", id)
	}
	delete(r.tenants, id)
	return nil
}
