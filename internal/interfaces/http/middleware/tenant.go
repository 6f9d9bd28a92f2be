package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/factuhub/backend/internal/infrastructure/logger"
	"github.com/factuhub/backend/internal/interfaces/http/dto"
)

const (
	// TenantIDKey is the gin context key holding the validated tenant ID.
	TenantIDKey = "tenant_id"
	// TenantHeaderKey carries the tenant ID when the fronting gateway
	// resolves it. The gateway authenticates; this service only scopes.
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig controls how the tenant is resolved.
type TenantMiddlewareConfig struct {
	HeaderEnabled    bool
	SubdomainEnabled bool
	// BaseDomain is the suffix stripped for subdomain resolution,
	// e.g. "factuhub.es" resolves <tenant>.factuhub.es.
	BaseDomain string
	// SkipPaths bypass tenant resolution entirely (health, metrics).
	SkipPaths []string
	// Required rejects requests without a resolvable tenant.
	Required bool
	Logger   *zap.Logger
}

// DefaultTenantConfig resolves from the header only and requires a tenant.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
	}
}

// TenantMiddleware resolves the tenant with the default configuration.
// Header wins over subdomain when both are present.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// OptionalTenantMiddleware resolves the tenant when present but lets
// anonymous requests through.
func OptionalTenantMiddleware() gin.HandlerFunc {
	cfg := DefaultTenantConfig()
	cfg.Required = false
	return TenantMiddlewareWithConfig(cfg)
}

// TenantMiddlewareWithConfig resolves and validates the tenant, then
// stores it in both the gin context and the request context.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipped(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		tenantID, source := resolveTenant(c, cfg)
		if tenantID == "" {
			if cfg.Required {
				rejectTenant(c, "tenant context required")
				return
			}
			c.Next()
			return
		}

		if _, err := uuid.Parse(tenantID); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rejected malformed tenant ID",
					zap.String("tenant_id", tenantID),
					zap.String("source", source),
				)
			}
			rejectTenant(c, "invalid tenant identifier")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(
			logger.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func skipped(skipPaths []string, path string) bool {
	for _, p := range skipPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func resolveTenant(c *gin.Context, cfg TenantMiddlewareConfig) (string, string) {
	if cfg.HeaderEnabled {
		if id := c.GetHeader(TenantHeaderKey); id != "" {
			return id, "header"
		}
	}
	if cfg.SubdomainEnabled && cfg.BaseDomain != "" {
		if id := extractSubdomain(c.Request.Host, cfg.BaseDomain); id != "" {
			return id, "subdomain"
		}
	}
	return "", ""
}

func extractSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}

	sub := strings.TrimSuffix(host, "."+baseDomain)
	if sub == host || sub == "" || sub == "www" {
		return ""
	}
	// Only the leftmost label identifies the tenant.
	return strings.Split(sub, ".")[0]
}

func rejectTenant(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(dto.ErrCodeUnauthorized, message))
}

// GetTenantID returns the validated tenant ID, or empty outside tenant
// scope.
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID returns the tenant ID parsed as a UUID.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	id := GetTenantID(c)
	if id == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(id)
}
