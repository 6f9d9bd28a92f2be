package verifactu

import (
	"context"
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StatusCounts is the per-status entry count for a tenant.
type StatusCounts map[EntryStatus]int64

// EntryFilter narrows registry entry listings.
type EntryFilter struct {
	shared.Filter
	Status    *EntryStatus
	Direction *InvoiceDirection
}

// RegistryEntryRepository persists the ledger. Entries are append-mostly:
// only status fields and retry bookkeeping are ever updated.
type RegistryEntryRepository interface {
	Create(ctx context.Context, entry *RegistryEntry) error
	Update(ctx context.Context, entry *RegistryEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*RegistryEntry, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*RegistryEntry, error)
	// FindChainHead returns the entry with the highest sequence number for
	// the tenant, or shared.ErrNotFound for an empty chain.
	FindChainHead(ctx context.Context, tenantID uuid.UUID) (*RegistryEntry, error)
	// FindEligible returns up to limit entries eligible for submission at
	// now (see RegistryEntry.EligibleAt), ordered by sequence number
	// ascending.
	FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]RegistryEntry, error)
	// TenantsWithEligible returns the tenants that currently have at least
	// one eligible entry.
	TenantsWithEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// FindChain returns the tenant's full chain ordered by sequence number
	// ascending, for audit replay.
	FindChain(ctx context.Context, tenantID uuid.UUID) ([]RegistryEntry, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID, filter EntryFilter) ([]RegistryEntry, int64, error)
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (StatusCounts, error)
}

// TenantConfigRepository persists per-tenant compliance configuration.
type TenantConfigRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantConfig, error)
	Save(ctx context.Context, config *TenantConfig) error
	FindEnabled(ctx context.Context) ([]TenantConfig, error)
	// RecordSubmission stamps the tenant's flow-control anchor.
	RecordSubmission(ctx context.Context, tenantID uuid.UUID, at time.Time) error
}

// TransmissionEventRepository persists the append-only audit trail.
type TransmissionEventRepository interface {
	Create(ctx context.Context, event *TransmissionEvent) error
	ListForEntry(ctx context.Context, entryID uuid.UUID) ([]TransmissionEvent, error)
}

// ChainAppender extends a tenant's ledger atomically. One call allocates the
// next sequence number, reads the chain head and persists the entry returned
// by build, all inside a single transaction serialized on the tenant. An
// aborted append consumes nothing, so the sequence stays gap-free and
// concurrent appends cannot fork the chain; callers retry on
// ErrSequenceConflict. Appends are independent across tenants.
type ChainAppender interface {
	AppendNext(ctx context.Context, tenantID uuid.UUID, build func(seq int64, prevHash []byte) (*RegistryEntry, error)) (*RegistryEntry, error)
}
