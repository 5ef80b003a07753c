package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Repository manages persistence for action history rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, action *models.ActionHistory) error
	ListForEntity(ctx context.Context, entityType enums.EntityType, entityID uuid.UUID) ([]models.ActionHistory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an action history repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, action *models.ActionHistory) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *repository) ListForEntity(ctx context.Context, entityType enums.EntityType, entityID uuid.UUID) ([]models.ActionHistory, error) {
	var actions []models.ActionHistory
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}
