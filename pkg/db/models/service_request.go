package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/aquaflowhq/aquaflow-backend/pkg/db/types"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// ServiceRequest is one unit of field work. INSTALLATION-typed rows are
// system-created mirrors of an installation request; the rest are customer
// or agent initiated repair/maintenance work linked to a subscription.
type ServiceRequest struct {
	ID   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type enums.ServiceRequestType `gorm:"column:type;type:service_request_type;not null"`

	InstallationRequestID *uuid.UUID `gorm:"column:installation_request_id;type:uuid"`
	SubscriptionID        *uuid.UUID `gorm:"column:subscription_id;type:uuid"`

	CustomerID  uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;index"`
	FranchiseID uuid.UUID  `gorm:"column:franchise_id;type:uuid;not null;index"`
	AgentID     *uuid.UUID `gorm:"column:agent_id;type:uuid"`

	Description   string     `gorm:"column:description"`
	ScheduledDate *time.Time `gorm:"column:scheduled_date"`
	CompletedDate *time.Time `gorm:"column:completed_date"`

	BeforeImages dbtypes.StringList `gorm:"column:before_images;type:jsonb"`
	AfterImages  dbtypes.StringList `gorm:"column:after_images;type:jsonb"`

	RequiresPayment bool             `gorm:"column:requires_payment;not null"`
	PaymentAmount   *decimal.Decimal `gorm:"column:payment_amount;type:numeric(12,2)"`

	Status    enums.ServiceRequestStatus `gorm:"column:status;type:service_request_status;not null;default:'CREATED'"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
