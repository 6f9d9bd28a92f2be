package verifactu

import (
	"context"

	"github.com/google/uuid"
)

// SignedDocument is the regulator-mandated XML representation of an invoice
// event with an enveloped digital signature attached.
type SignedDocument struct {
	XML        []byte
	DigestHex  string
	SignerName string
}

// DocumentSigner builds and signs the invoice XML. Signing is synchronous,
// CPU-bound and stateless per call; implementations must be safe for
// unbounded parallel use across tenants.
type DocumentSigner interface {
	Sign(event *InvoiceEvent, entry *RegistryEntry, cert *Certificate) (*SignedDocument, error)
}

// BlobStore persists signed XML blobs and returns a durable reference.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// InvoiceEventSource fetches the invoice data for an existing registry entry
// from the CRM. The compliance engine is not the system of record for
// invoice content; re-signing after a certificate replacement replays the
// event from here.
type InvoiceEventSource interface {
	Fetch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceEvent, error)
}

// QRCodec builds the deterministic QR verification payload for a registry
// entry and renders it as an image.
type QRCodec interface {
	BuildPayload(event *InvoiceEvent, entry *RegistryEntry, env Environment) string
	Render(payload string) ([]byte, error)
}

// SubmissionItem is one registry entry inside an outbound batch.
type SubmissionItem struct {
	EntryID        uuid.UUID
	SequenceNumber int64
	HashHex        string
	SignedXML      []byte
}

// SubmissionResult is the authority's per-entry verdict.
type SubmissionResult struct {
	EntryID          uuid.UUID
	Accepted         bool
	ConfirmationCode string
	QRURL            string
	RejectionReason  string
}

// SubmissionBatch is the outbound unit of work: all items belong to one
// tenant and are ordered by sequence number ascending.
type SubmissionBatch struct {
	TenantID    uuid.UUID
	Environment Environment
	Items       []SubmissionItem
}

// TransmissionGateway is the outbound call to the tax authority endpoint.
// A returned error is a transport-level failure and is always treated as
// transient: the caller must never assume a timed-out call succeeded.
// Per-entry rejections come back inside the results, not as an error.
type TransmissionGateway interface {
	Submit(ctx context.Context, batch SubmissionBatch) ([]SubmissionResult, error)
}
