package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func setupTenantRouter(cfg TenantMiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TenantMiddlewareWithConfig(cfg))
	r.GET("/api/v1/verifactu/entries", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": GetTenantID(c)})
	})
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestTenantMiddleware_HeaderExtraction(t *testing.T) {
	r := setupTenantRouter(DefaultTenantConfig())
	tenantID := uuid.New().String()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifactu/entries", nil)
	req.Header.Set(TenantHeaderKey, tenantID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tenantID)
}

func TestTenantMiddleware_MissingTenantRejected(t *testing.T) {
	r := setupTenantRouter(DefaultTenantConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifactu/entries", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantMiddleware_InvalidUUIDRejected(t *testing.T) {
	r := setupTenantRouter(DefaultTenantConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifactu/entries", nil)
	req.Header.Set(TenantHeaderKey, "not-a-uuid")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantMiddleware_SkipPaths(t *testing.T) {
	r := setupTenantRouter(DefaultTenantConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantMiddleware_SubdomainExtraction(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.HeaderEnabled = false
	cfg.SubdomainEnabled = true
	cfg.BaseDomain = "factuhub.es"
	r := setupTenantRouter(cfg)

	tenantID := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifactu/entries", nil)
	req.Host = tenantID + ".factuhub.es"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tenantID)
}

func TestTenantMiddleware_OptionalAllowsMissing(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.Required = false
	r := setupTenantRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifactu/entries", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractSubdomain(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		baseDomain string
		want       string
	}{
		{"simple subdomain", "acme.factuhub.es", "factuhub.es", "acme"},
		{"subdomain with port", "acme.factuhub.es:8080", "factuhub.es", "acme"},
		{"www is not a tenant", "www.factuhub.es", "factuhub.es", ""},
		{"bare domain", "factuhub.es", "factuhub.es", ""},
		{"foreign host", "evil.example.com", "factuhub.es", ""},
		{"multi-level subdomain", "acme.eu.factuhub.es", "factuhub.es", "acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSubdomain(tt.host, tt.baseDomain))
		})
	}
}
