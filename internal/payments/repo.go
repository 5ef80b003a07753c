package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Repository manages persistence for payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindOpenForInstallation(ctx context.Context, requestID uuid.UUID) (*models.Payment, error)
	FindOpenForSubscriptionPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Payment, error)
	FindOpenForServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) (*models.Payment, error)
	FindCompletedForInstallation(ctx context.Context, requestID uuid.UUID) (*models.Payment, error)
	FindCompletedForServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) (*models.Payment, error)
	ListOpenGatewayIntents(ctx context.Context, limit int) ([]models.Payment, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Payment, error)
	MarkCompletedGuarded(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindOpenForInstallation returns the PENDING payment for the request, if one
// exists. Open intents are unique per request by construction.
func (r *repository) FindOpenForInstallation(ctx context.Context, requestID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("installation_request_id = ? AND status = ?", requestID, enums.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindOpenForSubscriptionPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND type = ? AND status = ? AND due_date >= ?",
			subscriptionID, enums.PaymentTypeSubscription, enums.PaymentStatusPending, periodStart).
		Order("due_date ASC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindOpenForServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("service_request_id = ? AND status = ?", serviceRequestID, enums.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindCompletedForInstallation(ctx context.Context, requestID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("installation_request_id = ? AND status = ?", requestID, enums.PaymentStatusCompleted).
		Order("paid_date DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindCompletedForServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("service_request_id = ? AND status = ?", serviceRequestID, enums.PaymentStatusCompleted).
		Order("paid_date DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListOpenGatewayIntents returns PENDING gateway-backed payments that carry a
// pollable reference, oldest first.
func (r *repository) ListOpenGatewayIntents(ctx context.Context, limit int) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND method = ?", enums.PaymentStatusPending, enums.PaymentMethodRazorpay).
		Where("razorpay_order_id IS NOT NULL OR razorpay_subscription_id IS NOT NULL").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkCompletedGuarded flips a PENDING row to COMPLETED exactly once; false
// means another caller already settled it.
func (r *repository) MarkCompletedGuarded(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = enums.PaymentStatusCompleted
	updates["updated_at"] = time.Now().UTC()
	if _, ok := updates["paid_date"]; !ok {
		updates["paid_date"] = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
