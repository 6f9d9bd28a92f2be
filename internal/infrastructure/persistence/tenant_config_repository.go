package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/factuhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ensure GormTenantConfigRepository implements the domain contracts
var (
	_ verifactu.TenantConfigRepository = (*GormTenantConfigRepository)(nil)
	_ verifactu.ChainAppender          = (*GormTenantConfigRepository)(nil)
)

// GormTenantConfigRepository implements TenantConfigRepository and the
// per-tenant ChainAppender using GORM. Appends serialize on the tenant's
// config row, so different tenants extend their chains fully in parallel.
type GormTenantConfigRepository struct {
	db *gorm.DB
}

// NewGormTenantConfigRepository creates a new GormTenantConfigRepository
func NewGormTenantConfigRepository(db *gorm.DB) *GormTenantConfigRepository {
	return &GormTenantConfigRepository{db: db}
}

// FindByTenant finds the configuration for a tenant
func (r *GormTenantConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*verifactu.TenantConfig, error) {
	var model models.TenantConfigModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts the tenant configuration
func (r *GormTenantConfigRepository) Save(ctx context.Context, config *verifactu.TenantConfig) error {
	var model models.TenantConfigModel
	model.FromDomain(config)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mode", "environment", "enabled", "auto_submit",
				"flow_control_seconds", "max_records_per_submission", "updated_at",
			}),
		}).
		Create(&model).Error
}

// FindEnabled returns the configurations of all enabled tenants
func (r *GormTenantConfigRepository) FindEnabled(ctx context.Context) ([]verifactu.TenantConfig, error) {
	var configModels []models.TenantConfigModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&configModels).Error; err != nil {
		return nil, err
	}
	configs := make([]verifactu.TenantConfig, len(configModels))
	for i := range configModels {
		configs[i] = *configModels[i].ToDomain()
	}
	return configs, nil
}

// RecordSubmission stamps the tenant's flow-control anchor
func (r *GormTenantConfigRepository) RecordSubmission(ctx context.Context, tenantID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TenantConfigModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"last_submission_at": at,
			"updated_at":         at,
		}).Error
}

// AppendNext allocates the tenant's next sequence number, reads the chain
// head and persists the entry returned by build, all inside one transaction
// that locks the tenant's config row. The head read and the insert share the
// transaction, so two concurrent appends can never chain onto the same head.
// If the transaction aborts the number is not consumed and no entry is
// written; the caller retries on ErrSequenceConflict.
func (r *GormTenantConfigRepository) AppendNext(ctx context.Context, tenantID uuid.UUID, build func(seq int64, prevHash []byte) (*verifactu.RegistryEntry, error)) (*verifactu.RegistryEntry, error) {
	var (
		entry    *verifactu.RegistryEntry
		buildErr error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("tenant_id = ?", tenantID)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var config models.TenantConfigModel
		if err := query.First(&config).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return verifactu.ErrTenantNotConfigured
			}
			return err
		}
		next := config.LastSequenceNumber + 1

		var prevHash []byte
		var head models.RegistryEntryModel
		headErr := tx.Where("tenant_id = ?", tenantID).
			Order("sequence_number DESC").
			First(&head).Error
		switch {
		case headErr == nil:
			prevHash = head.CurrentHash
		case errors.Is(headErr, gorm.ErrRecordNotFound):
			// chain genesis
		default:
			return headErr
		}

		if entry, buildErr = build(next, prevHash); buildErr != nil {
			return buildErr
		}

		var model models.RegistryEntryModel
		model.FromDomain(entry)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&models.TenantConfigModel{}).
			Where("tenant_id = ?", tenantID).
			Update("last_sequence_number", next).Error
	})
	if err != nil {
		if buildErr != nil || errors.Is(err, verifactu.ErrTenantNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", verifactu.ErrSequenceConflict, err)
	}
	return entry, nil
}
