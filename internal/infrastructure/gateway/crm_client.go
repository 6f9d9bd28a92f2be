package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	verifactu "github.com/factuhub/backend/internal/domain/verifactu"
	infraconfig "github.com/factuhub/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ensure CRMInvoiceClient implements verifactu.InvoiceEventSource
var _ verifactu.InvoiceEventSource = (*CRMInvoiceClient)(nil)

// CRMInvoiceClient fetches invoice event data back from the CRM. The engine
// stores only the canonical ledger fields; re-signing an entry needs the full
// invoice content again.
type CRMInvoiceClient struct {
	config     *infraconfig.CrmConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCRMInvoiceClient creates a new CRM invoice client
func NewCRMInvoiceClient(config *infraconfig.CrmConfig, logger *zap.Logger) *CRMInvoiceClient {
	return &CRMInvoiceClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Named("crm-client"),
	}
}

// Fetch retrieves the invoice event for one invoice of one tenant.
func (c *CRMInvoiceClient) Fetch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*verifactu.InvoiceEvent, error) {
	url := fmt.Sprintf("%s/api/v1/tenants/%s/invoices/%s/verifactu-event",
		c.config.BaseURL, tenantID, invoiceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("crm: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("crm: invoice %s not found for tenant %s", invoiceID, tenantID)
	default:
		return nil, fmt.Errorf("crm: unexpected status %d", resp.StatusCode)
	}

	var event verifactu.InvoiceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("crm: decode response: %w", err)
	}
	// The path parameters are authoritative, not the payload.
	event.TenantID = tenantID
	event.InvoiceID = invoiceID

	c.logger.Debug("Fetched invoice event",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("invoice_number", event.InvoiceNumber),
	)
	return &event, nil
}
