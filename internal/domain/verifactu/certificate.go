package verifactu

import (
	"context"
	"crypto"
	"crypto/x509"
	"time"

	"github.com/google/uuid"
)

// Certificate is a tenant's decrypted signing certificate. The private key
// exists only in memory, scoped to the signing operation that loaded it; the
// encrypted container is the only durable artifact.
type Certificate struct {
	TenantID   uuid.UUID
	Subject    string
	Issuer     string
	NotBefore  time.Time
	NotAfter   time.Time
	Leaf       *x509.Certificate
	PrivateKey crypto.Signer
}

// Valid reports whether the certificate validity window covers now.
func (c *Certificate) Valid(now time.Time) bool {
	return !now.Before(c.NotBefore) && !now.After(c.NotAfter)
}

// Expired reports whether the certificate is past its validity window.
func (c *Certificate) Expired(now time.Time) bool {
	return now.After(c.NotAfter)
}

// DaysUntilExpiration returns the whole days remaining until NotAfter;
// negative once expired.
func (c *Certificate) DaysUntilExpiration(now time.Time) int {
	return int(c.NotAfter.Sub(now).Hours() / 24)
}

// CertificateWarningDays is the expiry proximity below which the monitor
// raises a warning signal.
const CertificateWarningDays = 30

// CertificateStatus is the monitor's per-tenant report.
type CertificateStatus struct {
	TenantID            uuid.UUID `json:"tenant_id"`
	Subject             string    `json:"subject"`
	Issuer              string    `json:"issuer"`
	NotAfter            time.Time `json:"not_after"`
	DaysUntilExpiration int       `json:"days_until_expiration"`
	Warning             bool      `json:"warning"`
	Blocking            bool      `json:"blocking"`
}

// CertificateStore loads and validates tenant signing certificates.
// Implementations must never log or persist the container password, and the
// decrypted key material must not outlive the returned Certificate.
type CertificateStore interface {
	// Load decrypts and validates the tenant's certificate. Returns
	// ErrCertificateMissing when no container is uploaded,
	// ErrInvalidCertificate on a corrupt container or bad password, and
	// ErrCertificateExpired when now is past NotAfter.
	Load(ctx context.Context, tenantID uuid.UUID) (*Certificate, error)
	// Store validates and persists a new encrypted container for the tenant,
	// superseding any previous one.
	Store(ctx context.Context, tenantID uuid.UUID, container []byte, password string) (*Certificate, error)
}
