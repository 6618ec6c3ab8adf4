// Package api is the HTTP boundary (§6 External Interfaces): gin routes
// for inventory/wants submission, trade discovery, and tenant
// administration, plus the live operator stream. Route-group shape
// (public vs. protected, CORS middleware closure, gin.H bodies) follows
// the teacher's internal/api/routes.go.
package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/barter-engine/internal/apierr"
	"github.com/rawblock/barter-engine/internal/discovery"
	"github.com/rawblock/barter-engine/internal/mutation"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/internal/wsbus"
	"github.com/rawblock/barter-engine/pkg/models"
)

// Handler bundles everything a request handler needs.
type Handler struct {
	registry *tenant.Registry
	engine   *discovery.Engine
	hub      *wsbus.Hub
	log      *logrus.Entry
}

// SetupRouter builds the gin engine with every §6 route wired.
func SetupRouter(registry *tenant.Registry, engine *discovery.Engine, hub *wsbus.Hub, adminKey string, log *logrus.Entry) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Admin-Key, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &Handler{registry: registry, engine: engine, hub: hub, log: log}
	limiter := NewRateLimiter(120, 20)

	pub := r.Group("/")
	{
		pub.GET("/health", h.handleHealth)
	}

	tenantRoutes := r.Group("/")
	tenantRoutes.Use(TenantAuthMiddleware(registry))
	tenantRoutes.Use(limiter.Middleware())
	{
		tenantRoutes.POST("/inventory/submit", h.handleInventorySubmit)
		tenantRoutes.POST("/inventory/remove", h.handleInventoryRemove)
		tenantRoutes.POST("/wants/submit", h.handleWantsSubmit)
		tenantRoutes.POST("/wants/remove", h.handleWantsRemove)
		tenantRoutes.POST("/trade/discover", h.handleTradeDiscover)
	}

	admin := r.Group("/admin")
	admin.Use(AdminAuthMiddleware(adminKey))
	{
		admin.POST("/tenants", h.handleCreateTenant)
		admin.DELETE("/tenants/:id", h.handleDestroyTenant)
		admin.GET("/tenants/:id/stats", h.handleTenantStats)
		admin.GET("/stream", hub.Subscribe)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "operational", "engine": "barter-engine"})
}

func writeAPIError(c *gin.Context, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	body := gin.H{"error": apiErr.Message, "kind": apiErr.Kind}
	if apiErr.Index >= 0 {
		body["index"] = apiErr.Index
	}
	switch apiErr.Kind {
	case apierr.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	case apierr.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case apierr.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, body)
	case apierr.KindResourceExhausted:
		c.JSON(http.StatusTooManyRequests, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}

// nftWire is the bit-exact §6 wire shape of one inventory entry: a flat
// id alongside nested metadata/ownership/collection sub-objects. It is
// mapped onto mutation.NFTSubmission at this boundary rather than
// changing NFTSubmission's own shape, since NFTSubmission is also the
// persisted-snapshot shape (internal/snapshot) built directly from Go
// fields, not unmarshaled from client JSON.
type nftWire struct {
	ID       string `json:"id"`
	Metadata struct {
		Name              string   `json:"name,omitempty"`
		Description       string   `json:"description,omitempty"`
		EstimatedValueUSD *float64 `json:"estimatedValueUSD,omitempty"`
	} `json:"metadata"`
	Ownership struct {
		OwnerID string `json:"ownerId"`
	} `json:"ownership"`
	Collection struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"collection"`
}

// inventorySubmitRequest is the §6 POST /inventory/submit body: a
// top-level walletId (the default owner for entries that omit
// ownership.ownerId) plus the nested per-NFT wire entries.
type inventorySubmitRequest struct {
	WalletID string    `json:"walletId"`
	NFTs     []nftWire `json:"nfts"`
}

func (req inventorySubmitRequest) toSubmissions() []mutation.NFTSubmission {
	out := make([]mutation.NFTSubmission, len(req.NFTs))
	for i, w := range req.NFTs {
		owner := w.Ownership.OwnerID
		if owner == "" {
			owner = req.WalletID
		}
		meta := map[string]interface{}{}
		if w.Metadata.Name != "" {
			meta["name"] = w.Metadata.Name
		}
		if w.Metadata.Description != "" {
			meta["description"] = w.Metadata.Description
		}
		collection := w.Collection.ID
		if collection == "" {
			collection = w.Collection.Name
		}
		sub := mutation.NFTSubmission{
			ID:         w.ID,
			Owner:      owner,
			Collection: collection,
			ValueUSD:   w.Metadata.EstimatedValueUSD,
		}
		if len(meta) > 0 {
			sub.Metadata = meta
		}
		out[i] = sub
	}
	return out
}

func (h *Handler) handleInventorySubmit(c *gin.Context) {
	t := tenantFromContext(c)
	var req inventorySubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	submissions := req.toSubmissions()
	if err := mutation.ApplyInventory(t, submissions); err != nil {
		writeAPIError(c, err)
		return
	}
	h.hub.Publish(wsbus.Event{Type: wsbus.EventTenantDirty, TenantID: t.ID, Data: gin.H{"count": len(submissions)}})
	c.JSON(http.StatusOK, gin.H{"status": "applied", "count": len(submissions)})
}

func (h *Handler) handleInventoryRemove(c *gin.Context) {
	t := tenantFromContext(c)
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := mutation.RemoveInventory(t, req.IDs); err != nil {
		writeAPIError(c, err)
		return
	}
	h.hub.Publish(wsbus.Event{Type: wsbus.EventTenantDirty, TenantID: t.ID, Data: gin.H{"removed": len(req.IDs)}})
	c.JSON(http.StatusOK, gin.H{"status": "removed", "count": len(req.IDs)})
}

func (h *Handler) handleWantsSubmit(c *gin.Context) {
	t := tenantFromContext(c)
	var req struct {
		Wants []mutation.WantSubmission `json:"wants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := mutation.ApplyWants(t, req.Wants); err != nil {
		writeAPIError(c, err)
		return
	}
	h.hub.Publish(wsbus.Event{Type: wsbus.EventTenantDirty, TenantID: t.ID, Data: gin.H{"count": len(req.Wants)}})
	c.JSON(http.StatusOK, gin.H{"status": "applied", "count": len(req.Wants)})
}

func (h *Handler) handleWantsRemove(c *gin.Context) {
	t := tenantFromContext(c)
	var req struct {
		Wants []mutation.WantSubmission `json:"wants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := mutation.RemoveWants(t, req.Wants); err != nil {
		writeAPIError(c, err)
		return
	}
	h.hub.Publish(wsbus.Event{Type: wsbus.EventTenantDirty, TenantID: t.ID, Data: gin.H{"removed": len(req.Wants)}})
	c.JSON(http.StatusOK, gin.H{"status": "removed", "count": len(req.Wants)})
}

// tradeDiscoverRequest is the bit-exact §6 POST /trade/discover body:
// a flat walletId/nftId seed alongside a nested settings object.
type tradeDiscoverRequest struct {
	WalletID string                   `json:"walletId"`
	NFTID    string                   `json:"nftId,omitempty"`
	Settings models.DiscoverySettings `json:"settings"`
}

func (h *Handler) handleTradeDiscover(c *gin.Context) {
	t := tenantFromContext(c)
	var req tradeDiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	seed := models.DiscoverySeed{WalletID: req.WalletID, NFTID: req.NFTID}

	result, err := h.engine.Discover(t, seed, req.Settings)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	if !result.FromCache && len(result.Loops) > 0 {
		h.hub.Publish(wsbus.Event{Type: wsbus.EventLoopDiscovered, TenantID: t.ID, Data: gin.H{"count": len(result.Loops)}})
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleCreateTenant(c *gin.Context) {
	t, err := h.registry.Create()
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenantId": t.ID, "apiKey": t.APIKey})
}

func (h *Handler) handleDestroyTenant(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Destroy(id); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "destroyed", "tenantId": id})
}

func (h *Handler) handleTenantStats(c *gin.Context) {
	id := c.Param("id")
	t := h.registry.Get(id)
	if t == nil {
		writeAPIError(c, apierr.NotFound("tenant %s not found", id))
		return
	}
	c.JSON(http.StatusOK, t.Stats())
}
