package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Payment is one settlement event: a deposit, a purchase price, a monthly
// charge, a service charge, or a refund. A row moves PENDING to COMPLETED
// exactly once; offline collections carry the collecting agent and a
// receipt image instead of gateway references.
type Payment struct {
	ID     uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Amount decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Type   enums.PaymentType   `gorm:"column:type;type:payment_type;not null"`
	Status enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'PENDING'"`
	Method enums.PaymentMethod `gorm:"column:method;type:payment_method;not null;default:'RAZORPAY'"`

	CustomerID            uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;index"`
	InstallationRequestID *uuid.UUID `gorm:"column:installation_request_id;type:uuid;index"`
	SubscriptionID        *uuid.UUID `gorm:"column:subscription_id;type:uuid;index"`
	ServiceRequestID      *uuid.UUID `gorm:"column:service_request_id;type:uuid"`

	RazorpayOrderID        *string `gorm:"column:razorpay_order_id;index"`
	RazorpayPaymentID      *string `gorm:"column:razorpay_payment_id"`
	RazorpaySubscriptionID *string `gorm:"column:razorpay_subscription_id"`

	CollectedBy  *uuid.UUID `gorm:"column:collected_by;type:uuid"`
	ReceiptImage *string    `gorm:"column:receipt_image"`

	DueDate  *time.Time `gorm:"column:due_date"`
	PaidDate *time.Time `gorm:"column:paid_date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
