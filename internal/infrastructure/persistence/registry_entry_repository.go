package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/factuhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ensure GormRegistryEntryRepository implements the domain contract
var _ verifactu.RegistryEntryRepository = (*GormRegistryEntryRepository)(nil)

// GormRegistryEntryRepository implements RegistryEntryRepository using GORM
type GormRegistryEntryRepository struct {
	db *gorm.DB
}

// NewGormRegistryEntryRepository creates a new GormRegistryEntryRepository
func NewGormRegistryEntryRepository(db *gorm.DB) *GormRegistryEntryRepository {
	return &GormRegistryEntryRepository{db: db}
}

// Create inserts a new ledger row
func (r *GormRegistryEntryRepository) Create(ctx context.Context, entry *verifactu.RegistryEntry) error {
	var model models.RegistryEntryModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists the mutable surface of an existing entry (status fields
// and retry bookkeeping). The optimistic version guard rejects concurrent
// writers.
func (r *GormRegistryEntryRepository) Update(ctx context.Context, entry *verifactu.RegistryEntry) error {
	var model models.RegistryEntryModel
	entry.IncrementVersion()
	model.FromDomain(entry)

	result := r.db.WithContext(ctx).
		Model(&models.RegistryEntryModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"status":            model.Status,
			"confirmation_code": model.ConfirmationCode,
			"error_message":     model.ErrorMessage,
			"retry_count":       model.RetryCount,
			"next_retry_at":     model.NextRetryAt,
			"activated_at":      model.ActivatedAt,
			"submitted_at":      model.SubmittedAt,
			"signed_xml_ref":    model.SignedXMLRef,
			"qr_payload":        model.QRPayload,
			"qr_url":            model.QRURL,
			"unsignable":        model.Unsignable,
			"version":           model.Version,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds an entry by its ID
func (r *GormRegistryEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*verifactu.RegistryEntry, error) {
	var model models.RegistryEntryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds an entry by ID scoped to a tenant
func (r *GormRegistryEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*verifactu.RegistryEntry, error) {
	var model models.RegistryEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindChainHead returns the entry with the highest sequence number for the tenant
func (r *GormRegistryEntryRepository) FindChainHead(ctx context.Context, tenantID uuid.UUID) (*verifactu.RegistryEntry, error) {
	var model models.RegistryEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sequence_number DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// eligibleConditions selects the submission pool: pending entries plus
// errored entries whose scheduled retry time has elapsed. Unsignable entries
// stay out until an operator retries them after a certificate replacement.
func (r *GormRegistryEntryRepository) eligibleConditions(now time.Time) *gorm.DB {
	return r.db.
		Where("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", verifactu.EntryStatusPending, now).
		Or("status = ? AND unsignable = ? AND next_retry_at <= ?", verifactu.EntryStatusError, false, now)
}

// FindEligible returns up to limit eligible entries in submission order
// (sequence ascending). In-order submission is an authority requirement, so
// the ordering here is part of the contract.
func (r *GormRegistryEntryRepository) FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]verifactu.RegistryEntry, error) {
	var entryModels []models.RegistryEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where(r.eligibleConditions(now)).
		Order("sequence_number ASC").
		Limit(limit).
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// TenantsWithEligible returns tenants that currently have eligible entries
func (r *GormRegistryEntryRepository) TenantsWithEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.RegistryEntryModel{}).
		Where(r.eligibleConditions(now)).
		Distinct().
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// FindChain returns the tenant's full chain in sequence order for audit replay
func (r *GormRegistryEntryRepository) FindChain(ctx context.Context, tenantID uuid.UUID) ([]verifactu.RegistryEntry, error) {
	var entryModels []models.RegistryEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sequence_number ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// ListForTenant returns a page of entries plus the total count
func (r *GormRegistryEntryRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID, filter verifactu.EntryFilter) ([]verifactu.RegistryEntry, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.RegistryEntryModel{}).
		Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entryModels []models.RegistryEntryModel
	if err := query.
		Order("sequence_number DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainEntries(entryModels), total, nil
}

// CountByStatus returns the per-status entry counts for a tenant
func (r *GormRegistryEntryRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (verifactu.StatusCounts, error) {
	type row struct {
		Status verifactu.EntryStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.RegistryEntryModel{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(verifactu.StatusCounts, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func toDomainEntries(entryModels []models.RegistryEntryModel) []verifactu.RegistryEntry {
	entries := make([]verifactu.RegistryEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries
}
