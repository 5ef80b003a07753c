package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// Service records and reads the append-only action history. Recording is
// always done inside the transaction that applies the state change it
// describes, so a ledger row exists iff the transition committed.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordActionInput) (*models.ActionHistory, error)
	ListForEntity(ctx context.Context, entityType enums.EntityType, entityID uuid.UUID) ([]models.ActionHistory, error)
}

type service struct {
	repo Repository
}

// RecordActionInput captures the immutable data an action history row requires.
type RecordActionInput struct {
	EntityType  enums.EntityType
	EntityID    uuid.UUID
	ActionType  enums.ActionType
	FromStatus  *string
	ToStatus    *string
	ActorUserID uuid.UUID
	ActorRole   enums.Role
	Comment     *string
	Metadata    json.RawMessage
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordActionInput) (*models.ActionHistory, error) {
	if !input.EntityType.IsValid() {
		return nil, fmt.Errorf("invalid entity type %q", input.EntityType)
	}
	if input.EntityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}
	if !input.ActionType.IsValid() {
		return nil, fmt.Errorf("invalid action type %q", input.ActionType)
	}
	if input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id is required")
	}
	if !input.ActorRole.IsValid() {
		return nil, fmt.Errorf("invalid actor role %q", input.ActorRole)
	}

	action := &models.ActionHistory{
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		ActionType:  input.ActionType,
		FromStatus:  input.FromStatus,
		ToStatus:    input.ToStatus,
		ActorUserID: input.ActorUserID,
		ActorRole:   input.ActorRole,
		Comment:     input.Comment,
		Metadata:    input.Metadata,
	}

	if err := s.repo.WithTx(tx).Create(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

func (s *service) ListForEntity(ctx context.Context, entityType enums.EntityType, entityID uuid.UUID) ([]models.ActionHistory, error) {
	if !entityType.IsValid() {
		return nil, fmt.Errorf("invalid entity type %q", entityType)
	}
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}
	return s.repo.ListForEntity(ctx, entityType, entityID)
}

// Str returns a pointer to the given status string for from/to columns.
func Str[T ~string](value T) *string {
	v := string(value)
	return &v
}
