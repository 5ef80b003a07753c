package installations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Repository manages persistence for installation requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.InstallationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InstallationRequest, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.InstallationRequest, error)
	ListForFranchise(ctx context.Context, franchiseID uuid.UUID, statuses []enums.InstallationStatus) ([]models.InstallationRequest, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.InstallationStatus, updates map[string]any) (bool, error)
	SetGatewayReferences(ctx context.Context, id uuid.UUID, orderID, planID, subscriptionID *string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an installation request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.InstallationRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InstallationRequest, error) {
	var request models.InstallationRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.InstallationRequest, error) {
	var requests []models.InstallationRequest
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListForFranchise(ctx context.Context, franchiseID uuid.UUID, statuses []enums.InstallationStatus) ([]models.InstallationRequest, error) {
	query := r.db.WithContext(ctx).Where("franchise_id = ?", franchiseID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var requests []models.InstallationRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateStatusGuarded moves a request from one status to another exactly once.
// A false return means another caller changed the row first.
func (r *repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.InstallationStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.InstallationRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetGatewayReferences records the intent references handed out by the
// gateway. Nil arguments leave the stored value untouched.
func (r *repository) SetGatewayReferences(ctx context.Context, id uuid.UUID, orderID, planID, subscriptionID *string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if orderID != nil {
		updates["razorpay_order_id"] = *orderID
	}
	if planID != nil {
		updates["razorpay_plan_id"] = *planID
	}
	if subscriptionID != nil {
		updates["razorpay_subscription_id"] = *subscriptionID
	}
	return r.db.WithContext(ctx).
		Model(&models.InstallationRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}
