package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/barter-engine/internal/tenant"
)

const tenantContextKey = "tenant"

// TenantAuthMiddleware resolves the X-API-Key header to a tenant via the
// registry and stores it in the request context. Every tenant-scoped
// route depends on this running first.
func TenantAuthMiddleware(registry *tenant.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-API-Key header"})
			c.Abort()
			return
		}
		t := registry.GetByAPIKey(key)
		if t == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}
		c.Set(tenantContextKey, t)
		c.Next()
	}
}

// tenantFromContext retrieves the tenant TenantAuthMiddleware resolved.
func tenantFromContext(c *gin.Context) *tenant.Tenant {
	v, ok := c.Get(tenantContextKey)
	if !ok {
		return nil
	}
	t, _ := v.(*tenant.Tenant)
	return t
}

// AdminAuthMiddleware validates the constant-time-compared admin key
// against ADMIN_API_KEY, the same bearer-style constant-time check the
// teacher uses for its single operator token (internal/api/auth.go).
func AdminAuthMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			// No admin key configured: development mode, allow through.
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or missing X-Admin-Key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
