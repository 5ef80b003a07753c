package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Subscription is the recurring billing record behind a completed RENTAL
// installation. The unique index on installation_request_id is the database
// half of the "at most one subscription per request" invariant.
type Subscription struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstallationRequestID uuid.UUID `gorm:"column:installation_request_id;type:uuid;not null;uniqueIndex:uniq_subscriptions_installation_request"`
	ConnectID             string    `gorm:"column:connect_id;not null;uniqueIndex"`

	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	FranchiseID uuid.UUID `gorm:"column:franchise_id;type:uuid;not null;index"`

	RazorpaySubscriptionID *string `gorm:"column:razorpay_subscription_id"`

	MonthlyAmount decimal.Decimal `gorm:"column:monthly_amount;type:numeric(12,2);not null"`
	DepositAmount decimal.Decimal `gorm:"column:deposit_amount;type:numeric(12,2);not null"`

	CurrentPeriodStart time.Time `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   time.Time `gorm:"column:current_period_end;not null"`
	NextPaymentDate    time.Time `gorm:"column:next_payment_date;not null"`

	Status    enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'ACTIVE'"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
