package verifactu

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonitorConfig holds certificate monitor configuration
type MonitorConfig struct {
	Enabled       bool
	CheckInterval time.Duration
}

// DefaultMonitorConfig returns default monitor configuration
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:       true,
		CheckInterval: 1 * time.Hour,
	}
}

// CertificateMonitor periodically sweeps the cached certificate metadata of
// every tenant, exposes warning and blocking signals, and answers the
// submission worker's Blocked checks. It works off the metadata cached at
// upload time and never decrypts a container.
type CertificateMonitor struct {
	config  MonitorConfig
	certs   domain.CertificateRepository
	clock   Clock
	metrics *Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	blocked map[uuid.UUID]string

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	runMu     sync.Mutex
	isRunning bool
}

// NewCertificateMonitor creates a new certificate monitor
func NewCertificateMonitor(
	config MonitorConfig,
	certs domain.CertificateRepository,
	clock Clock,
	metrics *Metrics,
	logger *zap.Logger,
) *CertificateMonitor {
	return &CertificateMonitor{
		config:  config,
		certs:   certs,
		clock:   clock,
		metrics: metrics,
		logger:  logger.Named("certificate-monitor"),
		blocked: make(map[uuid.UUID]string),
	}
}

// Start starts the periodic sweep loop. The first sweep runs immediately so
// the worker never submits with stale blocking state after a restart.
func (m *CertificateMonitor) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.Info("Certificate monitor disabled by configuration")
		return nil
	}

	m.runMu.Lock()
	if m.isRunning {
		m.runMu.Unlock()
		return nil
	}
	m.isRunning = true
	m.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if _, err := m.CheckAll(ctx); err != nil {
		m.logger.Error("Initial certificate sweep failed", zap.Error(err))
	}

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.Info("Certificate monitor started",
		zap.Duration("check_interval", m.config.CheckInterval))
	return nil
}

// Stop gracefully stops the monitor
func (m *CertificateMonitor) Stop(ctx context.Context) error {
	m.runMu.Lock()
	if !m.isRunning {
		m.runMu.Unlock()
		return nil
	}
	m.isRunning = false
	m.runMu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Certificate monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *CertificateMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CheckAll(ctx); err != nil {
				m.logger.Error("Certificate sweep failed", zap.Error(err))
			}
		}
	}
}

// CheckAll sweeps every tenant certificate and rebuilds the blocking set.
// Returns the per-tenant status report.
func (m *CertificateMonitor) CheckAll(ctx context.Context) ([]domain.CertificateStatus, error) {
	records, err := m.certs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	now := m.clock.Now()
	statuses := make([]domain.CertificateStatus, 0, len(records))
	nextBlocked := make(map[uuid.UUID]string, len(records))

	for i := range records {
		status := m.evaluate(&records[i], now)
		statuses = append(statuses, status)

		m.metrics.CertificateDaysLeft.WithLabelValues(status.TenantID.String()).
			Set(float64(status.DaysUntilExpiration))

		if status.Blocking {
			nextBlocked[status.TenantID] = fmt.Sprintf(
				"certificate expired %s", records[i].NotAfter.UTC().Format(time.RFC3339))
			m.logger.Error("Tenant certificate expired, submissions blocked",
				zap.String("tenant_id", status.TenantID.String()),
				zap.Time("not_after", records[i].NotAfter),
			)
		} else if status.Warning {
			m.logger.Warn("Tenant certificate expiring soon",
				zap.String("tenant_id", status.TenantID.String()),
				zap.Int("days_left", status.DaysUntilExpiration),
			)
		}
	}

	m.mu.Lock()
	m.blocked = nextBlocked
	m.mu.Unlock()

	return statuses, nil
}

// Blocked reports whether a tenant's certificate currently blocks
// submissions, with the reason when it does.
func (m *CertificateMonitor) Blocked(tenantID uuid.UUID) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reason, ok := m.blocked[tenantID]
	return ok, reason
}

// Status returns the current report for one tenant. Returns
// shared.ErrNotFound via the repository when the tenant has no certificate.
func (m *CertificateMonitor) Status(ctx context.Context, tenantID uuid.UUID) (*domain.CertificateStatus, error) {
	record, err := m.certs.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	status := m.evaluate(record, m.clock.Now())
	return &status, nil
}

func (m *CertificateMonitor) evaluate(record *domain.CertificateRecord, now time.Time) domain.CertificateStatus {
	cert := domain.Certificate{NotBefore: record.NotBefore, NotAfter: record.NotAfter}
	days := cert.DaysUntilExpiration(now)
	return domain.CertificateStatus{
		TenantID:            record.TenantID,
		Subject:             record.Subject,
		Issuer:              record.Issuer,
		NotAfter:            record.NotAfter,
		DaysUntilExpiration: days,
		Warning:             days >= 0 && days < domain.CertificateWarningDays,
		Blocking:            cert.Expired(now),
	}
}
