package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification is a queued push message for one user. Delivery is
// fire-and-forget; failures never surface to the lifecycle operation that
// produced the row.
type Notification struct {
	ID     uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Title  string          `gorm:"column:title;not null"`
	Body   string          `gorm:"column:body;not null"`
	Data   json.RawMessage `gorm:"column:data;type:jsonb"`
	ReadAt *time.Time      `gorm:"column:read_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
