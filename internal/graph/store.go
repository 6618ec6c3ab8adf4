// Package graph implements the persistent, tenant-scoped wants graph
// (§4.1, C1). A Store holds the inventory/wants indices for a single
// tenant and lazily materializes the derived wants-graph adjacency.
//
// Store itself performs no locking: callers (internal/tenant) hold the
// tenant's exclusive or shared lock around every call, the same
// division of responsibility the teacher draws between ClusterEngine
// (a bare, lock-free union-find) and InvestigationManager (the
// sync.RWMutex-guarded owner).
package graph

import (
	"sort"
	"time"

	"github.com/rawblock/barter-engine/internal/apierr"
	"github.com/rawblock/barter-engine/pkg/models"
)

// Edge is a derived wants-graph edge: owner(nft) -> wanter, labelled nft.
type Edge struct {
	Wanter string
	NFT    string
}

// Store holds one tenant's wallets, NFTs, and collection-want
// subscriptions, plus the lazily rebuilt wants-graph adjacency.
type Store struct {
	wallets map[string]*models.Wallet
	nfts    map[string]*models.NFT

	// collectionMembers[collectionID] is the set of NFT ids currently
	// indexed under that collection, used to expand collection wants
	// as new NFTs arrive (§4.1 addWant, Open Question on partial
	// indexing — treated here as a standing contract).
	collectionMembers map[string]map[string]bool

	// adjacency[owner] is every (wanter, nft) edge rooted at owner.
	// Rebuilt lazily from wallets/nfts whenever dirty is set.
	adjacency map[string][]Edge
	dirty     bool
}

// NewStore returns an empty tenant graph.
func NewStore() *Store {
	return &Store{
		wallets:           make(map[string]*models.Wallet),
		nfts:              make(map[string]*models.NFT),
		collectionMembers: make(map[string]map[string]bool),
		adjacency:         make(map[string][]Edge),
	}
}

func (s *Store) getOrCreateWallet(id string) *models.Wallet {
	w, ok := s.wallets[id]
	if !ok {
		w = &models.Wallet{
			ID:                          id,
			Inventory:                   make(map[string]bool),
			WantedNFTs:                  make(map[string]bool),
			WantedCollection:            make(map[string]bool),
			WantedNFTsViaCollectionOnly: make(map[string]bool),
		}
		s.wallets[id] = w
	}
	return w
}

// GetWallet returns the wallet, or nil if it does not exist.
func (s *Store) GetWallet(id string) *models.Wallet { return s.wallets[id] }

// AllWallets returns every wallet currently tracked, for the scorer's
// tenant-wide aggregate queries (demand density, median wants-count).
func (s *Store) AllWallets() []*models.Wallet {
	out := make([]*models.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	return out
}

// MedianDemand returns the median wants-count (in-degree) across all
// currently indexed NFTs, used to normalise the demand-density sub-score.
func (s *Store) MedianDemand() float64 {
	if len(s.nfts) == 0 {
		return 0
	}
	demand := make([]int, 0, len(s.nfts))
	for nftID := range s.nfts {
		count := 0
		for _, w := range s.wallets {
			if w.WantedNFTs[nftID] {
				count++
			}
		}
		demand = append(demand, count)
	}
	sort.Ints(demand)
	mid := len(demand) / 2
	if len(demand)%2 == 1 {
		return float64(demand[mid])
	}
	if len(demand) == 0 {
		return 0
	}
	return float64(demand[mid-1]+demand[mid]) / 2.0
}

// GetNFT returns the NFT, or nil if it does not exist.
func (s *Store) GetNFT(id string) *models.NFT { return s.nfts[id] }

// AllNFTs returns every NFT currently tracked, for snapshot persistence.
func (s *Store) AllNFTs() []*models.NFT {
	out := make([]*models.NFT, 0, len(s.nfts))
	for _, n := range s.nfts {
		out = append(out, n)
	}
	return out
}

// WalletCount and NFTCount support §5 resource caps.
func (s *Store) WalletCount() int { return len(s.wallets) }
func (s *Store) NFTCount() int    { return len(s.nfts) }

// AddNFT inserts or updates an NFT's owner (§4.1 addNFT). If the NFT
// already had a different owner, that transfer is reported via
// transferred=true so the caller can mark both the old and new owner
// dirty with DirtyOwnershipTransferred.
func (s *Store) AddNFT(id, owner string, collection string, value *float64, metadata map[string]interface{}) (prevOwner string, transferred bool, err error) {
	if id == "" {
		return "", false, apierr.Validation("nft id must not be empty")
	}
	if owner == "" {
		return "", false, apierr.Validation("nft %s: owner must not be empty", id)
	}

	existing, had := s.nfts[id]
	if had && existing.Owner != "" {
		prevOwner = existing.Owner
		if prevOwner != owner {
			transferred = true
			if prevW := s.wallets[prevOwner]; prevW != nil {
				delete(prevW.Inventory, id)
			}
		}
	}

	nft := &models.NFT{ID: id, Owner: owner, Collection: collection, EstimatedValueUSD: value, Metadata: metadata}
	s.nfts[id] = nft

	ownerWallet := s.getOrCreateWallet(owner)
	ownerWallet.Inventory[id] = true
	ownerWallet.LastActivity = time.Now()

	if collection != "" {
		members := s.collectionMembers[collection]
		if members == nil {
			members = make(map[string]bool)
			s.collectionMembers[collection] = members
		}
		if !members[id] {
			members[id] = true
			// New arrival into a collection: expand standing
			// collection-want subscriptions onto this NFT (§9 Open
			// Questions: automatic expansion is a contract here).
			s.expandCollectionWantsForNFT(collection, id)
		}
	}

	s.dirty = true
	return prevOwner, transferred, nil
}

// RemoveNFT deletes an NFT and every wants edge referencing it (§4.1
// removeNFT, invariant 2).
func (s *Store) RemoveNFT(id string) error {
	nft, ok := s.nfts[id]
	if !ok {
		return apierr.NotFound("nft %s not found", id)
	}
	if owner := s.wallets[nft.Owner]; owner != nil {
		delete(owner.Inventory, id)
	}
	if nft.Collection != "" {
		delete(s.collectionMembers[nft.Collection], id)
	}
	for _, w := range s.wallets {
		delete(w.WantedNFTs, id)
	}
	delete(s.nfts, id)
	s.dirty = true
	return nil
}

// AddWant records that wallet wants an NFT or a whole collection (§4.1
// addWant). Collection wants expand against current membership
// immediately and are retained as a subscription for future arrivals.
func (s *Store) AddWant(walletID, nftID, collectionID string) error {
	if walletID == "" {
		return apierr.Validation("wallet id must not be empty")
	}
	w := s.getOrCreateWallet(walletID)
	w.LastActivity = time.Now()

	if nftID != "" {
		w.WantedNFTs[nftID] = true
		delete(w.WantedNFTsViaCollectionOnly, nftID)
	}
	if collectionID != "" {
		w.WantedCollection[collectionID] = true
		for nft := range s.collectionMembers[collectionID] {
			if !w.WantedNFTs[nft] {
				w.WantedNFTsViaCollectionOnly[nft] = true
			}
			w.WantedNFTs[nft] = true
		}
	}
	s.dirty = true
	return nil
}

// RemoveWant is the symmetric removal of AddWant.
func (s *Store) RemoveWant(walletID, nftID, collectionID string) error {
	w := s.wallets[walletID]
	if w == nil {
		return apierr.NotFound("wallet %s not found", walletID)
	}
	if nftID != "" {
		delete(w.WantedNFTs, nftID)
		delete(w.WantedNFTsViaCollectionOnly, nftID)
	}
	if collectionID != "" {
		delete(w.WantedCollection, collectionID)
		for nft := range s.collectionMembers[collectionID] {
			if w.WantedNFTsViaCollectionOnly[nft] {
				delete(w.WantedNFTs, nft)
				delete(w.WantedNFTsViaCollectionOnly, nft)
			}
		}
	}
	s.dirty = true
	return nil
}

// expandCollectionWantsForNFT adds nft to every wallet subscribed to
// collection's collection-level wants.
func (s *Store) expandCollectionWantsForNFT(collection, nft string) {
	for _, w := range s.wallets {
		if w.WantedCollection[collection] {
			if !w.WantedNFTs[nft] {
				w.WantedNFTsViaCollectionOnly[nft] = true
			}
			w.WantedNFTs[nft] = true
		}
	}
}

// GC removes wallets that hold nothing and want nothing (§3 Wallet
// lifecycle). Returns the removed wallet ids.
func (s *Store) GC() []string {
	var removed []string
	for id, w := range s.wallets {
		if w.IsEmpty() {
			removed = append(removed, id)
			delete(s.wallets, id)
		}
	}
	return removed
}

// rebuildAdjacency recomputes the derived wants-graph from current
// wallet/NFT state. Vertices (wallet ids) are visited in a fixed,
// sorted order so that SCC discovery order — and therefore cache
// fingerprints — stays deterministic (§4.2).
func (s *Store) rebuildAdjacency() {
	adj := make(map[string][]Edge, len(s.wallets))
	ids := make([]string, 0, len(s.wallets))
	for id := range s.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, wanterID := range ids {
		wanter := s.wallets[wanterID]
		nfts := make([]string, 0, len(wanter.WantedNFTs))
		for nft := range wanter.WantedNFTs {
			nfts = append(nfts, nft)
		}
		sort.Strings(nfts)
		for _, nftID := range nfts {
			nft := s.nfts[nftID]
			if nft == nil || nft.Owner == "" || nft.Owner == wanterID {
				continue
			}
			adj[nft.Owner] = append(adj[nft.Owner], Edge{Wanter: wanterID, NFT: nftID})
		}
	}
	s.adjacency = adj
	s.dirty = false
}

// Adjacency returns the derived wants-graph, rebuilding it first if the
// underlying wallet/NFT state has changed since the last call.
func (s *Store) Adjacency() map[string][]Edge {
	if s.dirty {
		s.rebuildAdjacency()
	}
	return s.adjacency
}

// AdjacencyDirectOnly returns the wants-graph with every edge whose want
// arose purely from a standing collection subscription removed, for
// queries with considerCollections=false (§4.6). It is derived from
// Adjacency on every call rather than cached, since it depends on the
// per-query setting rather than on graph state alone.
func (s *Store) AdjacencyDirectOnly() map[string][]Edge {
	full := s.Adjacency()
	out := make(map[string][]Edge, len(full))
	for owner, edges := range full {
		for _, e := range edges {
			if wanter := s.wallets[e.Wanter]; wanter != nil && wanter.WantedNFTsViaCollectionOnly[e.NFT] {
				continue
			}
			out[owner] = append(out[owner], e)
		}
	}
	return out
}

// Neighborhood returns the set of wallets reachable from seed within
// depth hops over adj (§4.1 neighborhood), including seed itself. Used
// to bound discovery to a relevant subgraph; the caller passes either
// Adjacency() or AdjacencyDirectOnly() depending on considerCollections.
func (s *Store) Neighborhood(seed string, depth int, adj map[string][]Edge) map[string]bool {
	visited := map[string]bool{seed: true}
	frontier := []string{seed}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, v := range frontier {
			for _, e := range adj[v] {
				if !visited[e.Wanter] {
					visited[e.Wanter] = true
					next = append(next, e.Wanter)
				}
			}
		}
		frontier = next
	}
	return visited
}
