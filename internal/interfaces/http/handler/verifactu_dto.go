package handler

import (
	"encoding/hex"
	"time"

	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyRequest identifies one side of the invoice
type PartyRequest struct {
	TaxID   string `json:"tax_id" binding:"required,max=20"`
	Name    string `json:"name" binding:"required,max=200"`
	Address string `json:"address" binding:"max=500"`
	Country string `json:"country" binding:"max=2"`
}

// InvoiceLineRequest is a single line item of the source invoice
type InvoiceLineRequest struct {
	Description string  `json:"description" binding:"required,max=500"`
	Quantity    float64 `json:"quantity" binding:"required"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	Amount      float64 `json:"amount"`
}

// InvoiceTotalsRequest carries the tax breakdown and grand total
type InvoiceTotalsRequest struct {
	TaxableBase float64 `json:"taxable_base"`
	TaxAmount   float64 `json:"tax_amount"`
	Total       float64 `json:"total" binding:"required"`
}

// AppendEventRequest is the invoice event pushed by the CRM when an invoice
// is issued or received
type AppendEventRequest struct {
	InvoiceID     string               `json:"invoice_id" binding:"required,uuid"`
	InvoiceNumber string               `json:"invoice_number" binding:"required,max=60"`
	Series        string               `json:"series" binding:"max=20"`
	Direction     string               `json:"direction" binding:"required,oneof=ISSUED RECEIVED"`
	IssueDate     time.Time            `json:"issue_date" binding:"required"`
	Issuer        PartyRequest         `json:"issuer" binding:"required"`
	Counterparty  PartyRequest         `json:"counterparty" binding:"required"`
	Lines         []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
	Totals        InvoiceTotalsRequest `json:"totals" binding:"required"`
	PaymentMeans  string               `json:"payment_means" binding:"max=50"`
}

// ToEvent converts the request into a domain invoice event for the tenant
func (r *AppendEventRequest) ToEvent(tenantID uuid.UUID) domain.InvoiceEvent {
	lines := make([]domain.InvoiceLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, domain.InvoiceLine{
			Description: l.Description,
			Quantity:    decimal.NewFromFloat(l.Quantity),
			UnitPrice:   decimal.NewFromFloat(l.UnitPrice),
			TaxRate:     decimal.NewFromFloat(l.TaxRate),
			Amount:      decimal.NewFromFloat(l.Amount),
		})
	}
	return domain.InvoiceEvent{
		TenantID:      tenantID,
		InvoiceID:     uuid.MustParse(r.InvoiceID),
		InvoiceNumber: r.InvoiceNumber,
		Series:        r.Series,
		Direction:     domain.InvoiceDirection(r.Direction),
		IssueDate:     r.IssueDate,
		Issuer: domain.Party{
			TaxID:   r.Issuer.TaxID,
			Name:    r.Issuer.Name,
			Address: r.Issuer.Address,
			Country: r.Issuer.Country,
		},
		Counterparty: domain.Party{
			TaxID:   r.Counterparty.TaxID,
			Name:    r.Counterparty.Name,
			Address: r.Counterparty.Address,
			Country: r.Counterparty.Country,
		},
		Lines: lines,
		Totals: domain.InvoiceTotals{
			TaxableBase: decimal.NewFromFloat(r.Totals.TaxableBase),
			TaxAmount:   decimal.NewFromFloat(r.Totals.TaxAmount),
			Total:       decimal.NewFromFloat(r.Totals.Total),
		},
		PaymentMeans: r.PaymentMeans,
	}
}

// ListEntriesRequest filters the ledger listing
type ListEntriesRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status    string `form:"status" binding:"omitempty,oneof=DORMANT PENDING SENDING SENT ERROR REJECTED"`
	Direction string `form:"direction" binding:"omitempty,oneof=ISSUED RECEIVED"`
}

// EntryResponse is the API shape of a registry entry. Hashes are hex encoded
type EntryResponse struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenant_id"`
	InvoiceID        uuid.UUID  `json:"invoice_id"`
	InvoiceNumber    string     `json:"invoice_number"`
	Series           string     `json:"series,omitempty"`
	Direction        string     `json:"direction"`
	IssueDate        time.Time  `json:"issue_date"`
	Total            string     `json:"total"`
	SequenceNumber   int64      `json:"sequence_number"`
	PreviousHash     string     `json:"previous_hash,omitempty"`
	CurrentHash      string     `json:"current_hash"`
	QRPayload        string     `json:"qr_payload,omitempty"`
	Unsignable       bool       `json:"unsignable"`
	Status           string     `json:"status"`
	ConfirmationCode string     `json:"confirmation_code,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	RetryCount       int        `json:"retry_count"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToEntryResponse converts a domain registry entry to its API shape
func ToEntryResponse(entry *domain.RegistryEntry) EntryResponse {
	return EntryResponse{
		ID:               entry.ID,
		TenantID:         entry.TenantID,
		InvoiceID:        entry.InvoiceID,
		InvoiceNumber:    entry.InvoiceNumber,
		Series:           entry.Series,
		Direction:        string(entry.Direction),
		IssueDate:        entry.IssueDate,
		Total:            entry.Total.String(),
		SequenceNumber:   entry.SequenceNumber,
		PreviousHash:     hex.EncodeToString(entry.PreviousHash),
		CurrentHash:      hex.EncodeToString(entry.CurrentHash),
		QRPayload:        entry.QRPayload,
		Unsignable:       entry.Unsignable,
		Status:           entry.Status.String(),
		ConfirmationCode: entry.ConfirmationCode,
		ErrorMessage:     entry.ErrorMessage,
		RetryCount:       entry.RetryCount,
		NextRetryAt:      entry.NextRetryAt,
		ActivatedAt:      entry.ActivatedAt,
		SubmittedAt:      entry.SubmittedAt,
		CreatedAt:        entry.CreatedAt,
	}
}

// TransmissionEventResponse is the API shape of an audit trail event
type TransmissionEventResponse struct {
	ID        uuid.UUID `json:"id"`
	EntryID   uuid.UUID `json:"entry_id"`
	Kind      string    `json:"kind"`
	Details   string    `json:"details,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// ChainVerificationResponse reports the outcome of a full chain replay
type ChainVerificationResponse struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	Detail         string `json:"detail,omitempty"`
}
