package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// ActionHistory is the append-only ledger row for one state transition.
// Rows are never updated or deleted, and never read to drive behavior.
type ActionHistory struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntityType enums.EntityType `gorm:"column:entity_type;type:entity_type;not null;index:idx_action_histories_entity"`
	EntityID   uuid.UUID        `gorm:"column:entity_id;type:uuid;not null;index:idx_action_histories_entity"`

	ActionType enums.ActionType `gorm:"column:action_type;type:action_type;not null"`
	FromStatus *string          `gorm:"column:from_status"`
	ToStatus   *string          `gorm:"column:to_status"`

	ActorUserID uuid.UUID  `gorm:"column:actor_user_id;type:uuid;not null"`
	ActorRole   enums.Role `gorm:"column:actor_role;type:user_role;not null"`

	Comment  *string         `gorm:"column:comment"`
	Metadata json.RawMessage `gorm:"column:metadata;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
