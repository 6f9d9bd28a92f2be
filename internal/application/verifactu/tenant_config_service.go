package verifactu

import (
	"context"
	"errors"
	"fmt"

	"github.com/factuhub/backend/internal/domain/shared"
	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpdateConfigInput carries a full tenant configuration update. Partial
// updates are not supported: the caller states the whole desired config.
type UpdateConfigInput struct {
	Mode                    domain.ComplianceMode
	Environment             domain.Environment
	Enabled                 bool
	AutoSubmit              bool
	FlowControlSeconds      int
	MaxRecordsPerSubmission int
}

// TenantConfigService manages tenant compliance configuration and signing
// certificates.
type TenantConfigService struct {
	configs domain.TenantConfigRepository
	store   domain.CertificateStore
	monitor *CertificateMonitor
	clock   Clock
	logger  *zap.Logger
}

// NewTenantConfigService creates a new tenant config service
func NewTenantConfigService(
	configs domain.TenantConfigRepository,
	store domain.CertificateStore,
	monitor *CertificateMonitor,
	clock Clock,
	logger *zap.Logger,
) *TenantConfigService {
	return &TenantConfigService{
		configs: configs,
		store:   store,
		monitor: monitor,
		clock:   clock,
		logger:  logger.Named("tenant-config-service"),
	}
}

// GetConfig returns the tenant's configuration, falling back to the defaults
// for tenants that never saved one.
func (s *TenantConfigService) GetConfig(ctx context.Context, tenantID uuid.UUID) (*domain.TenantConfig, error) {
	cfg, err := s.configs.FindByTenant(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return domain.DefaultTenantConfig(tenantID), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateConfig replaces the tenant's configuration. The sequence counter and
// the flow-control anchor survive the update untouched.
func (s *TenantConfigService) UpdateConfig(ctx context.Context, tenantID uuid.UUID, input UpdateConfigInput) (*domain.TenantConfig, error) {
	cfg, err := s.configs.FindByTenant(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		cfg = domain.DefaultTenantConfig(tenantID)
	} else if err != nil {
		return nil, err
	}

	cfg.Mode = input.Mode
	cfg.Environment = input.Environment
	cfg.Enabled = input.Enabled
	cfg.AutoSubmit = input.AutoSubmit
	cfg.FlowControlSeconds = input.FlowControlSeconds
	cfg.MaxRecordsPerSubmission = input.MaxRecordsPerSubmission
	cfg.UpdatedAt = s.clock.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save tenant config: %w", err)
	}

	s.logger.Info("Tenant config updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("mode", string(cfg.Mode)),
		zap.String("environment", string(cfg.Environment)),
		zap.Bool("enabled", cfg.Enabled),
		zap.Bool("auto_submit", cfg.AutoSubmit),
	)
	return cfg, nil
}

// UpdateCertificate validates and stores a new PKCS#12 container for the
// tenant, superseding any previous one, and refreshes the monitor so a
// replacement lifts an expiry block without waiting for the next sweep.
func (s *TenantConfigService) UpdateCertificate(ctx context.Context, tenantID uuid.UUID, container []byte, password string) (*domain.CertificateStatus, error) {
	cert, err := s.store.Store(ctx, tenantID, container, password)
	if err != nil {
		return nil, err
	}

	if _, err := s.monitor.CheckAll(ctx); err != nil {
		s.logger.Error("Certificate sweep after upload failed",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
	}

	s.logger.Info("Tenant certificate updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subject", cert.Subject),
		zap.Time("not_after", cert.NotAfter),
	)
	return s.monitor.Status(ctx, tenantID)
}

// GetCertificateStatus returns the expiry report for the tenant's current
// certificate.
func (s *TenantConfigService) GetCertificateStatus(ctx context.Context, tenantID uuid.UUID) (*domain.CertificateStatus, error) {
	status, err := s.monitor.Status(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, domain.ErrCertificateMissing
	}
	return status, err
}
