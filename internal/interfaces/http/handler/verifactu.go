package handler

import (
	"errors"

	verifactuapp "github.com/factuhub/backend/internal/application/verifactu"
	"github.com/factuhub/backend/internal/domain/shared"
	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActorHeaderKey carries the operator identity for audit trail attribution
const ActorHeaderKey = "X-Actor"

// VerifactuHandler exposes the registry ledger: event ingestion, the
// operator commands and the query surface
type VerifactuHandler struct {
	BaseHandler
	registry *verifactuapp.RegistryService
}

// NewVerifactuHandler creates a new VerifactuHandler
func NewVerifactuHandler(registry *verifactuapp.RegistryService) *VerifactuHandler {
	return &VerifactuHandler{registry: registry}
}

// RegisterRoutes registers the registry routes
func (h *VerifactuHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/verifactu")
	{
		g.POST("/events", h.AppendEvent)
		g.GET("/entries", h.ListEntries)
		g.GET("/entries/:id", h.GetEntry)
		g.POST("/entries/:id/activate", h.ActivateEntry)
		g.POST("/entries/:id/retry", h.RetryEntry)
		g.GET("/entries/:id/events", h.GetEntryEvents)
		g.GET("/stats", h.GetStats)
		g.GET("/chain/verify", h.VerifyChain)
	}
}

// AppendEvent records an invoice event in the tenant's ledger
func (h *VerifactuHandler) AppendEvent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	var req AppendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entry, err := h.registry.Append(c.Request.Context(), req.ToEvent(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToEntryResponse(entry))
}

// ListEntries returns a page of the tenant's ledger
func (h *VerifactuHandler) ListEntries(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	var req ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := domain.EntryFilter{Filter: shared.DefaultFilter()}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.Status != "" {
		status := domain.EntryStatus(req.Status)
		filter.Status = &status
	}
	if req.Direction != "" {
		direction := domain.InvoiceDirection(req.Direction)
		filter.Direction = &direction
	}

	page, err := h.registry.ListEntries(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]EntryResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToEntryResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// GetEntry returns a single registry entry
func (h *VerifactuHandler) GetEntry(c *gin.Context) {
	tenantID, entryID, ok := h.tenantAndEntry(c)
	if !ok {
		return
	}

	entry, err := h.registry.GetEntry(c.Request.Context(), tenantID, entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToEntryResponse(entry))
}

// ActivateEntry releases a dormant entry for transmission
func (h *VerifactuHandler) ActivateEntry(c *gin.Context) {
	tenantID, entryID, ok := h.tenantAndEntry(c)
	if !ok {
		return
	}

	entry, err := h.registry.Activate(c.Request.Context(), tenantID, entryID, c.GetHeader(ActorHeaderKey))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToEntryResponse(entry))
}

// RetryEntry resets an errored entry back to the pending pool
func (h *VerifactuHandler) RetryEntry(c *gin.Context) {
	tenantID, entryID, ok := h.tenantAndEntry(c)
	if !ok {
		return
	}

	entry, err := h.registry.MarkForRetry(c.Request.Context(), tenantID, entryID, c.GetHeader(ActorHeaderKey))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToEntryResponse(entry))
}

// GetEntryEvents returns the audit trail of an entry
func (h *VerifactuHandler) GetEntryEvents(c *gin.Context) {
	tenantID, entryID, ok := h.tenantAndEntry(c)
	if !ok {
		return
	}

	events, err := h.registry.GetEvents(c.Request.Context(), tenantID, entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TransmissionEventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, TransmissionEventResponse{
			ID:        e.ID,
			EntryID:   e.EntryID,
			Kind:      string(e.Kind),
			Details:   e.Details,
			Actor:     e.Actor,
			CreatedAt: e.CreatedAt,
		})
	}
	h.Success(c, items)
}

// GetStats returns the tenant's per-status entry counts
func (h *VerifactuHandler) GetStats(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	counts, err := h.registry.GetStats(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

// VerifyChain replays the tenant's full hash chain. A broken chain is a
// verification outcome, not a request failure
func (h *VerifactuHandler) VerifyChain(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return
	}

	checked, err := h.registry.VerifyChain(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrChainBroken) {
			h.Success(c, ChainVerificationResponse{
				Valid:          false,
				EntriesChecked: checked,
				Detail:         err.Error(),
			})
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, ChainVerificationResponse{Valid: true, EntriesChecked: checked})
}

// tenantAndEntry resolves the tenant context and the :id path parameter
func (h *VerifactuHandler) tenantAndEntry(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "tenant context required")
		return uuid.Nil, uuid.Nil, false
	}

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid entry ID")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, entryID, true
}
