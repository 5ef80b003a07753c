package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// InstallationRequest is one customer fulfillment order, rental or purchase.
// connect_id is minted only when a RENTAL request completes with verified
// payment; it doubles as the customer's subscription lookup key.
type InstallationRequest struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	CustomerID   uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;index"`
	FranchiseID  uuid.UUID       `gorm:"column:franchise_id;type:uuid;not null;index"`
	OrderType    enums.OrderType `gorm:"column:order_type;type:order_type;not null"`
	TechnicianID *uuid.UUID      `gorm:"column:technician_id;type:uuid"`

	Address   string   `gorm:"column:address;not null"`
	Latitude  *float64 `gorm:"column:latitude"`
	Longitude *float64 `gorm:"column:longitude"`

	ScheduledDate *time.Time `gorm:"column:scheduled_date"`
	CompletedDate *time.Time `gorm:"column:completed_date"`

	RazorpayOrderID        *string `gorm:"column:razorpay_order_id"`
	RazorpayPlanID         *string `gorm:"column:razorpay_plan_id"`
	RazorpaySubscriptionID *string `gorm:"column:razorpay_subscription_id"`

	ConnectID       *string `gorm:"column:connect_id;uniqueIndex"`
	RejectionReason *string `gorm:"column:rejection_reason"`

	Status    enums.InstallationStatus `gorm:"column:status;type:installation_status;not null;default:'SUBMITTED'"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
