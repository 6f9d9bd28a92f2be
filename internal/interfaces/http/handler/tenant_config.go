package handler

import (
	"io"
	"time"

	verifactuapp "github.com/factuhub/backend/internal/application/verifactu"
	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/gin-gonic/gin"
)

// maxCertificateSize bounds the uploaded PKCS#12 container
const maxCertificateSize = 1 << 20

// TenantConfigHandler manages tenant compliance configuration and the
// signing certificate
type TenantConfigHandler struct {
	BaseHandler
	configs *verifactuapp.TenantConfigService
}

// NewTenantConfigHandler creates a new TenantConfigHandler
func NewTenantConfigHandler(configs *verifactuapp.TenantConfigService) *TenantConfigHandler {
	return &TenantConfigHandler{configs: configs}
}

// RegisterRoutes registers the tenant configuration routes
func (h *TenantConfigHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/verifactu")
	{
		g.GET("/config", h.GetConfig)
		g.PUT("/config", h.UpdateConfig)
		g.GET("/certificate", h.GetCertificateStatus)
		g.PUT("/certificate", h.UpdateCertificate)
	}
}

// UpdateConfigRequest replaces the tenant's whole compliance configuration
type UpdateConfigRequest struct {
	Mode                    string `json:"mode" binding:"required,oneof=LIVE REQUIREMENT"`
	Environment             string `json:"environment" binding:"required,oneof=PRODUCTION TESTING"`
	Enabled                 bool   `json:"enabled"`
	AutoSubmit              bool   `json:"auto_submit"`
	FlowControlSeconds      int    `json:"flow_control_seconds" binding:"required,min=1,max=3600"`
	MaxRecordsPerSubmission int    `json:"max_records_per_submission" binding:"required,min=1,max=1000"`
}

// ConfigResponse is the API shape of a tenant compliance configuration
type ConfigResponse struct {
	Mode                    string     `json:"mode"`
	Environment             string     `json:"environment"`
	Enabled                 bool       `json:"enabled"`
	AutoSubmit              bool       `json:"auto_submit"`
	FlowControlSeconds      int        `json:"flow_control_seconds"`
	MaxRecordsPerSubmission int        `json:"max_records_per_submission"`
	LastSequenceNumber      int64      `json:"last_sequence_number"`
	LastSubmissionAt        *time.Time `json:"last_submission_at,omitempty"`
}

func toConfigResponse(cfg *domain.TenantConfig) ConfigResponse {
	return ConfigResponse{
		Mode:                    string(cfg.Mode),
		Environment:             string(cfg.Environment),
		Enabled:                 cfg.Enabled,
		AutoSubmit:              cfg.AutoSubmit,
		FlowControlSeconds:      cfg.FlowControlSeconds,
		MaxRecordsPerSubmission: cfg.MaxRecordsPerSubmission,
		LastSequenceNumber:      cfg.LastSequenceNumber,
		LastSubmissionAt:        cfg.LastSubmissionAt,
	}
}

// GetConfig returns the tenant's compliance configuration
func (h *TenantConfigHandler) GetConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	cfg, err := h.configs.GetConfig(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toConfigResponse(cfg))
}

// UpdateConfig replaces the tenant's compliance configuration
func (h *TenantConfigHandler) UpdateConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.configs.UpdateConfig(c.Request.Context(), tenantID, verifactuapp.UpdateConfigInput{
		Mode:                    domain.ComplianceMode(req.Mode),
		Environment:             domain.Environment(req.Environment),
		Enabled:                 req.Enabled,
		AutoSubmit:              req.AutoSubmit,
		FlowControlSeconds:      req.FlowControlSeconds,
		MaxRecordsPerSubmission: req.MaxRecordsPerSubmission,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toConfigResponse(cfg))
}

// GetCertificateStatus reports the tenant certificate's expiry status
func (h *TenantConfigHandler) GetCertificateStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	status, err := h.configs.GetCertificateStatus(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// UpdateCertificate uploads a new PKCS#12 container for the tenant. The
// container file and its password travel as multipart form fields; the
// password is never echoed back or logged
func (h *TenantConfigHandler) UpdateCertificate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	file, err := c.FormFile("certificate")
	if err != nil {
		h.BadRequest(c, "certificate file is required")
		return
	}
	if file.Size > maxCertificateSize {
		h.BadRequest(c, "certificate file exceeds the 1MB limit")
		return
	}
	password := c.PostForm("password")
	if password == "" {
		h.BadRequest(c, "certificate password is required")
		return
	}

	f, err := file.Open()
	if err != nil {
		h.InternalError(c, "could not read certificate upload")
		return
	}
	defer f.Close()

	container, err := io.ReadAll(io.LimitReader(f, maxCertificateSize))
	if err != nil {
		h.InternalError(c, "could not read certificate upload")
		return
	}

	status, err := h.configs.UpdateCertificate(c.Request.Context(), tenantID, container, password)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
