// Package signing holds the certificate store, the XML document signer and
// the QR codec used to protect registry entries before transmission.
package signing

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"software.sslmate.com/src/go-pkcs12"
)

// Ensure CertificateStore implements the domain port
var _ verifactu.CertificateStore = (*CertificateStore)(nil)

// CertificateStore loads tenant PKCS#12 containers from the repository,
// unseals their passwords in memory and decodes the key material for the
// duration of a signing operation. Passwords are sealed at rest with
// ChaCha20-Poly1305 under a key derived from the application secret; neither
// the password nor the decrypted private key is ever logged or persisted.
type CertificateStore struct {
	repo    verifactu.CertificateRepository
	sealKey [chacha20poly1305.KeySize]byte
	logger  *zap.Logger
}

// NewCertificateStore creates a certificate store. The secret is the
// application-level sealing secret from configuration; it must be non-empty.
func NewCertificateStore(repo verifactu.CertificateRepository, secret string, logger *zap.Logger) (*CertificateStore, error) {
	if secret == "" {
		return nil, errors.New("certificate sealing secret is required")
	}
	s := &CertificateStore{
		repo:   repo,
		logger: logger.Named("certstore"),
	}
	s.sealKey = sha256.Sum256([]byte(secret))
	return s, nil
}

// Load implements verifactu.CertificateStore.
func (s *CertificateStore) Load(ctx context.Context, tenantID uuid.UUID) (*verifactu.Certificate, error) {
	record, err := s.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, verifactu.ErrCertificateMissing
		}
		return nil, fmt.Errorf("load certificate record: %w", err)
	}

	password, err := s.unseal(record.SealedPassword)
	if err != nil {
		return nil, verifactu.ErrInvalidCertificate
	}

	cert, err := s.decode(tenantID, record.Container, password)
	if err != nil {
		return nil, err
	}

	if cert.Expired(time.Now()) {
		return nil, verifactu.ErrCertificateExpired
	}
	return cert, nil
}

// Store implements verifactu.CertificateStore. The container is decoded once
// to validate the password and cache the certificate metadata, then persisted
// as uploaded with the password sealed.
func (s *CertificateStore) Store(ctx context.Context, tenantID uuid.UUID, container []byte, password string) (*verifactu.Certificate, error) {
	cert, err := s.decode(tenantID, container, password)
	if err != nil {
		return nil, err
	}

	sealed, err := s.seal(password)
	if err != nil {
		return nil, fmt.Errorf("seal certificate password: %w", err)
	}

	record := &verifactu.CertificateRecord{
		TenantEntity:   shared.NewTenantEntity(tenantID),
		Container:      container,
		SealedPassword: sealed,
		Subject:        cert.Subject,
		Issuer:         cert.Issuer,
		NotBefore:      cert.NotBefore,
		NotAfter:       cert.NotAfter,
		UploadedAt:     time.Now(),
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save certificate record: %w", err)
	}

	s.logger.Info("Tenant certificate replaced",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subject", cert.Subject),
		zap.Time("not_after", cert.NotAfter),
	)
	return cert, nil
}

// decode opens the PKCS#12 container. Any decode failure maps to
// ErrInvalidCertificate so a bad password and a corrupt container are
// indistinguishable to callers.
func (s *CertificateStore) decode(tenantID uuid.UUID, container []byte, password string) (*verifactu.Certificate, error) {
	key, leaf, err := pkcs12.Decode(container, password)
	if err != nil {
		return nil, verifactu.ErrInvalidCertificate
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, verifactu.ErrInvalidCertificate
	}
	return &verifactu.Certificate{
		TenantID:   tenantID,
		Subject:    leaf.Subject.String(),
		Issuer:     leaf.Issuer.String(),
		NotBefore:  leaf.NotBefore,
		NotAfter:   leaf.NotAfter,
		Leaf:       leaf,
		PrivateKey: signer,
	}, nil
}

func (s *CertificateStore) seal(password string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.sealKey[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, []byte(password), nil), nil
}

func (s *CertificateStore) unseal(sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.sealKey[:])
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("sealed password too short")
	}
	nonce, box := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
