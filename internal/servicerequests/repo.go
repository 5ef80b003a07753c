package servicerequests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Repository manages persistence for service requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ServiceRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	FindMirrorForInstallation(ctx context.Context, installationRequestID uuid.UUID) (*models.ServiceRequest, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.ServiceRequest, error)
	ListForFranchise(ctx context.Context, franchiseID uuid.UUID, statuses []enums.ServiceRequestStatus) ([]models.ServiceRequest, error)
	ListForAgent(ctx context.Context, agentID uuid.UUID) ([]models.ServiceRequest, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.ServiceRequestStatus, updates map[string]any) (bool, error)
	AssignAgentGuarded(ctx context.Context, id uuid.UUID, agentID uuid.UUID, from enums.ServiceRequestStatus, requireUnassigned bool) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a service request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ServiceRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	var request models.ServiceRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindMirrorForInstallation returns the INSTALLATION-typed mirror for the
// installation request. At most one exists, enforced by a partial unique index.
func (r *repository) FindMirrorForInstallation(ctx context.Context, installationRequestID uuid.UUID) (*models.ServiceRequest, error) {
	var request models.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("type = ? AND installation_request_id = ?", enums.ServiceRequestTypeInstallation, installationRequestID).
		First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListForFranchise(ctx context.Context, franchiseID uuid.UUID, statuses []enums.ServiceRequestStatus) ([]models.ServiceRequest, error) {
	query := r.db.WithContext(ctx).Where("franchise_id = ?", franchiseID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var requests []models.ServiceRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	if err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateStatusGuarded moves a request from one status to another exactly once.
// A false return means another caller changed the row first.
func (r *repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.ServiceRequestStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AssignAgentGuarded sets the agent on a request in the given status, flipping
// CREATED rows to ASSIGNED. With requireUnassigned the write only lands if no
// agent claimed the request first.
func (r *repository) AssignAgentGuarded(ctx context.Context, id uuid.UUID, agentID uuid.UUID, from enums.ServiceRequestStatus, requireUnassigned bool) (bool, error) {
	updates := map[string]any{
		"agent_id":   agentID,
		"updated_at": time.Now().UTC(),
	}
	if from == enums.ServiceRequestStatusCreated {
		updates["status"] = enums.ServiceRequestStatusAssigned
	}
	query := r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", id, from)
	if requireUnassigned {
		query = query.Where("agent_id IS NULL")
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
