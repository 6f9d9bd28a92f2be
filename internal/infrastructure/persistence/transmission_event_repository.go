package persistence

import (
	"context"

	"github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/factuhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ensure GormTransmissionEventRepository implements the domain contract
var _ verifactu.TransmissionEventRepository = (*GormTransmissionEventRepository)(nil)

// GormTransmissionEventRepository implements the append-only audit trail
// using GORM. Rows are created and read, never updated or deleted.
type GormTransmissionEventRepository struct {
	db *gorm.DB
}

// NewGormTransmissionEventRepository creates a new GormTransmissionEventRepository
func NewGormTransmissionEventRepository(db *gorm.DB) *GormTransmissionEventRepository {
	return &GormTransmissionEventRepository{db: db}
}

// Create appends an audit event
func (r *GormTransmissionEventRepository) Create(ctx context.Context, event *verifactu.TransmissionEvent) error {
	var model models.TransmissionEventModel
	model.FromDomain(event)
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListForEntry returns the audit trail of a registry entry, oldest first
func (r *GormTransmissionEventRepository) ListForEntry(ctx context.Context, entryID uuid.UUID) ([]verifactu.TransmissionEvent, error) {
	var eventModels []models.TransmissionEventModel
	if err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("created_at ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	events := make([]verifactu.TransmissionEvent, len(eventModels))
	for i := range eventModels {
		events[i] = *eventModels[i].ToDomain()
	}
	return events, nil
}
