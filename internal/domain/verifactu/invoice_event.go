package verifactu

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Party identifies one side of the invoice (issuer or counterparty).
type Party struct {
	TaxID   string `json:"tax_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Country string `json:"country,omitempty"`
}

// InvoiceLine is a single line item of the source invoice.
type InvoiceLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceTotals carries the tax breakdown and grand total.
type InvoiceTotals struct {
	TaxableBase decimal.Decimal `json:"taxable_base"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceEvent is the input shape produced by the CRM's invoice creation
// flow. The compliance engine consumes it as-is and does not validate
// invoice business rules.
type InvoiceEvent struct {
	TenantID      uuid.UUID        `json:"tenant_id"`
	InvoiceID     uuid.UUID        `json:"invoice_id"`
	InvoiceNumber string           `json:"invoice_number"`
	Series        string           `json:"series,omitempty"`
	Direction     InvoiceDirection `json:"direction"`
	IssueDate     time.Time        `json:"issue_date"`
	Issuer        Party            `json:"issuer"`
	Counterparty  Party            `json:"counterparty"`
	Lines         []InvoiceLine    `json:"lines"`
	Totals        InvoiceTotals    `json:"totals"`
	PaymentMeans  string           `json:"payment_means,omitempty"`
}
