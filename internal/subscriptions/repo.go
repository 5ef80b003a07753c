package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Repository manages persistence for subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, subscription *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByInstallationRequestID(ctx context.Context, requestID uuid.UUID) (*models.Subscription, error)
	FindByConnectID(ctx context.Context, connectID string) (*models.Subscription, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Subscription, error)
	ListBillingDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus) (bool, error)
	AdvancePeriod(ctx context.Context, id uuid.UUID, periodStart, periodEnd, nextPayment time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, subscription *models.Subscription) error {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&subscription).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) FindByInstallationRequestID(ctx context.Context, requestID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).
		Where("installation_request_id = ?", requestID).
		First(&subscription).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) FindByConnectID(ctx context.Context, connectID string) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).
		Where("connect_id = ?", connectID).
		First(&subscription).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repository) ListBillingDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_payment_date <= ?", enums.SubscriptionStatusActive, asOf).
		Order("next_payment_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var subscriptions []models.Subscription
	if err := query.Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// UpdateStatusGuarded applies the status change only when the row is still in
// the expected state; false means the guard lost the race.
func (r *repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AdvancePeriod(ctx context.Context, id uuid.UUID, periodStart, periodEnd, nextPayment time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
			"next_payment_date":    nextPayment,
			"updated_at":           time.Now().UTC(),
		}).Error
}
