package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// User mirrors the identity store's view of a person. Rows are written by the
// identity collaborator; this service only reads them for ownership checks
// and notification targeting.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	Phone     string     `gorm:"column:phone;not null"`
	Email     *string    `gorm:"column:email"`
	Role      enums.Role `gorm:"column:role;type:user_role;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
