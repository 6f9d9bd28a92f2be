package verifactu

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig(uuid.New())

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, EnvironmentTesting, cfg.Environment)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60, cfg.FlowControlSeconds)
}

func TestTenantConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *TenantConfig)
		valid  bool
	}{
		{"defaults", func(c *TenantConfig) {}, true},
		{"requirement mode", func(c *TenantConfig) { c.Mode = ModeRequirement }, true},
		{"bad mode", func(c *TenantConfig) { c.Mode = "BATCH" }, false},
		{"bad environment", func(c *TenantConfig) { c.Environment = "STAGING" }, false},
		{"negative flow control", func(c *TenantConfig) { c.FlowControlSeconds = -1 }, false},
		{"zero batch size", func(c *TenantConfig) { c.MaxRecordsPerSubmission = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTenantConfig(uuid.New())
			tt.mutate(cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			}
		})
	}
}

func TestTenantConfig_InitialEntryStatus(t *testing.T) {
	cfg := DefaultTenantConfig(uuid.New())
	assert.Equal(t, EntryStatusPending, cfg.InitialEntryStatus())

	cfg.Mode = ModeRequirement
	assert.Equal(t, EntryStatusDormant, cfg.InitialEntryStatus())

	cfg.Mode = ModeLive
	cfg.AutoSubmit = false
	assert.Equal(t, EntryStatusDormant, cfg.InitialEntryStatus())
}

func TestTenantConfig_FlowControl(t *testing.T) {
	cfg := DefaultTenantConfig(uuid.New())
	cfg.FlowControlSeconds = 60
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no previous attempt", func(t *testing.T) {
		assert.True(t, cfg.CanSubmitAt(now))
	})

	t.Run("attempt inside the window is blocked", func(t *testing.T) {
		cfg.RecordSubmissionAttempt(now)
		assert.False(t, cfg.CanSubmitAt(now.Add(30*time.Second)))
		assert.False(t, cfg.CanSubmitAt(now.Add(59*time.Second)))
	})

	t.Run("attempt at or after the window is allowed", func(t *testing.T) {
		cfg.RecordSubmissionAttempt(now)
		assert.True(t, cfg.CanSubmitAt(now.Add(60*time.Second)))
		assert.True(t, cfg.CanSubmitAt(now.Add(5*time.Minute)))
	})
}
