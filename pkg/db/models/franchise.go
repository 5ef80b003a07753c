package models

import (
	"time"

	"github.com/google/uuid"
)

// Franchise is a geographic service territory owned by a franchise owner.
type Franchise struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	City        string    `gorm:"column:city;not null"`
	State       string    `gorm:"column:state"`
	Phone       string    `gorm:"column:phone"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// FranchiseAgent maps a service agent to a franchise they may work in.
// At most one mapping per agent is primary.
type FranchiseAgent struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgentUserID uuid.UUID `gorm:"column:agent_user_id;type:uuid;not null;index"`
	FranchiseID uuid.UUID `gorm:"column:franchise_id;type:uuid;not null;index"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	IsPrimary   bool      `gorm:"column:is_primary;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
