package roster

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
)

// Repository reads the franchise and agent roster. The roster is owned by a
// collaborator service; this repo never writes franchise or user rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to roster reads.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindFranchiseByID loads a franchise by its UUID.
func (r *Repository) FindFranchiseByID(ctx context.Context, id uuid.UUID) (*models.Franchise, error) {
	var franchise models.Franchise
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&franchise).Error; err != nil {
		return nil, err
	}
	return &franchise, nil
}

// FindFranchiseByOwner returns the active franchise owned by the given user.
func (r *Repository) FindFranchiseByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Franchise, error) {
	var franchise models.Franchise
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND is_active = ?", ownerUserID, true).
		First(&franchise).Error; err != nil {
		return nil, err
	}
	return &franchise, nil
}

// ListAgentMappings returns the active franchise mappings for an agent.
func (r *Repository) ListAgentMappings(ctx context.Context, agentUserID uuid.UUID) ([]models.FranchiseAgent, error) {
	var mappings []models.FranchiseAgent
	if err := r.db.WithContext(ctx).
		Where("agent_user_id = ? AND is_active = ?", agentUserID, true).
		Order("is_primary DESC, created_at ASC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// AgentMappedToFranchise reports whether the agent has an active mapping to
// the franchise.
func (r *Repository) AgentMappedToFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FranchiseAgent{}).
		Where("agent_user_id = ? AND franchise_id = ? AND is_active = ?", agentUserID, franchiseID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindUserByID loads a user row from the identity mirror.
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// IsNotFound reports whether the error is a gorm record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
