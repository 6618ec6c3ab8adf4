package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/barter-engine/internal/discovery"
	"github.com/rawblock/barter-engine/internal/tenant"
	"github.com/rawblock/barter-engine/internal/wsbus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("test", true)
}

func newTestRouter(adminKey string) (*gin.Engine, *tenant.Registry) {
	registry := tenant.NewRegistry(10, 10, 100, 100, time.Minute)
	engine := discovery.New(newTestLog())
	hub := wsbus.NewHub(newTestLog())
	r := SetupRouter(registry, engine, hub, adminKey, newTestLog())
	return r, registry
}

func doRequest(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth_IsPublic(t *testing.T) {
	r, _ := newTestRouter("")
	w := doRequest(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTenantRoute_RejectsMissingAPIKey(t *testing.T) {
	r, _ := newTestRouter("")
	w := doRequest(r, http.MethodPost, "/inventory/submit", gin.H{"nfts": []gin.H{}}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an API key, got %d", w.Code)
	}
}

func TestTenantRoute_RejectsInvalidAPIKey(t *testing.T) {
	r, _ := newTestRouter("")
	w := doRequest(r, http.MethodPost, "/inventory/submit", gin.H{"nfts": []gin.H{}}, map[string]string{"X-API-Key": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unknown API key, got %d", w.Code)
	}
}

func TestInventorySubmit_WithValidKeySucceeds(t *testing.T) {
	r, registry := newTestRouter("")
	tn, err := registry.Create()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := gin.H{
		"walletId": "alice",
		"nfts": []gin.H{
			{
				"id":         "n1",
				"metadata":   gin.H{"name": "Cool NFT"},
				"ownership":  gin.H{"ownerId": "alice"},
				"collection": gin.H{"id": "genesis"},
			},
		},
	}
	w := doRequest(r, http.MethodPost, "/inventory/submit", body, map[string]string{"X-API-Key": tn.APIKey})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminCreateTenant_RequiresAdminKeyWhenConfigured(t *testing.T) {
	r, _ := newTestRouter("secret")
	w := doRequest(r, http.MethodPost, "/admin/tenants", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without an admin key, got %d", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/admin/tenants", nil, map[string]string{"X-Admin-Key": "secret"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 with the correct admin key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminCreateTenant_OpenWhenNoAdminKeyConfigured(t *testing.T) {
	r, _ := newTestRouter("")
	w := doRequest(r, http.MethodPost, "/admin/tenants", nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 in dev mode with no admin key configured, got %d", w.Code)
	}
}

func TestDestroyTenant_UnknownReturnsNotFound(t *testing.T) {
	r, _ := newTestRouter("")
	w := doRequest(r, http.MethodDelete, "/admin/tenants/missing", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown tenant id, got %d", w.Code)
	}
}

func TestTradeDiscover_UnknownSeedWalletReturnsNotFound(t *testing.T) {
	r, registry := newTestRouter("")
	tn, err := registry.Create()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := gin.H{"walletId": "ghost"}
	w := doRequest(r, http.MethodPost, "/trade/discover", body, map[string]string{"X-API-Key": tn.APIKey})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown seed wallet, got %d: %s", w.Code, w.Body.String())
	}
}
