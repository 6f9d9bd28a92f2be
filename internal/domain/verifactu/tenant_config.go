package verifactu

import (
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantConfig holds the per-tenant compliance configuration and the tenant's
// last allocated sequence number. One row per tenant, superseded on update,
// never deleted.
type TenantConfig struct {
	shared.TenantEntity

	Mode                    ComplianceMode
	Environment             Environment
	Enabled                 bool
	AutoSubmit              bool
	FlowControlSeconds      int
	MaxRecordsPerSubmission int
	LastSequenceNumber      int64
	LastSubmissionAt        *time.Time
}

// DefaultTenantConfig returns a new configuration with authority-side
// defaults: live mode against the testing endpoint, 60s flow control.
func DefaultTenantConfig(tenantID uuid.UUID) *TenantConfig {
	return &TenantConfig{
		TenantEntity:            shared.NewTenantEntity(tenantID),
		Mode:                    ModeLive,
		Environment:             EnvironmentTesting,
		Enabled:                 true,
		AutoSubmit:              true,
		FlowControlSeconds:      60,
		MaxRecordsPerSubmission: 100,
	}
}

// Validate checks the configuration invariants.
func (c *TenantConfig) Validate() error {
	if !c.Mode.IsValid() || !c.Environment.IsValid() {
		return ErrInvalidConfig
	}
	if c.FlowControlSeconds < 0 || c.MaxRecordsPerSubmission < 1 {
		return ErrInvalidConfig
	}
	return nil
}

// InitialEntryStatus returns the status a freshly appended entry starts in
// under this configuration. Requirement-mode tenants record dormant entries,
// and so do live tenants with auto-submit off: both need an explicit
// activation before the worker may pick the entry up.
func (c *TenantConfig) InitialEntryStatus() EntryStatus {
	if c.Mode == ModeRequirement || !c.AutoSubmit {
		return EntryStatusDormant
	}
	return EntryStatusPending
}

// FlowControlWindow returns the authority-mandated minimum spacing between
// two submission attempts for this tenant.
func (c *TenantConfig) FlowControlWindow() time.Duration {
	return time.Duration(c.FlowControlSeconds) * time.Second
}

// CanSubmitAt reports whether a submission attempt at now would respect the
// flow-control spacing since the tenant's last attempt.
func (c *TenantConfig) CanSubmitAt(now time.Time) bool {
	if c.LastSubmissionAt == nil {
		return true
	}
	return !now.Before(c.LastSubmissionAt.Add(c.FlowControlWindow()))
}

// RecordSubmissionAttempt stamps the flow-control anchor.
func (c *TenantConfig) RecordSubmissionAttempt(now time.Time) {
	at := now
	c.LastSubmissionAt = &at
	c.UpdatedAt = now
}
