package verifactu

import (
	"context"
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CertificateRecord is the durable form of a tenant certificate: the PKCS#12
// container exactly as uploaded (already encrypted under its password) plus
// the password sealed at rest. Metadata is cached at upload time so the
// monitor can report expiry without decrypting anything. One active record
// per tenant, superseded on re-upload.
type CertificateRecord struct {
	shared.TenantEntity

	Container      []byte
	SealedPassword []byte
	Subject        string
	Issuer         string
	NotBefore      time.Time
	NotAfter       time.Time
	UploadedAt     time.Time
}

// CertificateRepository persists encrypted certificate containers.
type CertificateRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*CertificateRecord, error)
	// Save stores the record, superseding any existing one for the tenant.
	Save(ctx context.Context, record *CertificateRecord) error
	ListAll(ctx context.Context) ([]CertificateRecord, error)
}
