package persistence

import (
	"context"
	"errors"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/factuhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ensure GormCertificateRepository implements the domain contract
var _ verifactu.CertificateRepository = (*GormCertificateRepository)(nil)

// GormCertificateRepository persists encrypted certificate containers.
type GormCertificateRepository struct {
	db *gorm.DB
}

// NewGormCertificateRepository creates a new GormCertificateRepository
func NewGormCertificateRepository(db *gorm.DB) *GormCertificateRepository {
	return &GormCertificateRepository{db: db}
}

// FindByTenant returns the tenant's active certificate record
func (r *GormCertificateRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*verifactu.CertificateRecord, error) {
	var model models.CertificateRecordModel
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

// Save stores the record, superseding any existing one for the tenant
func (r *GormCertificateRepository) Save(ctx context.Context, record *verifactu.CertificateRecord) error {
	var model models.CertificateRecordModel
	model.FromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"container", "sealed_password", "subject", "issuer",
				"not_before", "not_after", "uploaded_at", "updated_at",
			}),
		}).
		Create(&model).Error
}

// ListAll returns every tenant certificate record for the monitor sweep
func (r *GormCertificateRepository) ListAll(ctx context.Context) ([]verifactu.CertificateRecord, error) {
	var recordModels []models.CertificateRecordModel
	if err := r.db.WithContext(ctx).Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]verifactu.CertificateRecord, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, nil
}
