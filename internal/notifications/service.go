package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

// Service queues notifications for users. Dispatch is fire-and-forget: a
// failed write is logged and swallowed so lifecycle operations never fail
// because a notification could not be stored.
type Service interface {
	Notify(ctx context.Context, input NotifyInput)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// NotifyInput describes one message fanned out to every target user.
type NotifyInput struct {
	TargetUserIDs []uuid.UUID
	Title         string
	Body          string
	Data          map[string]any
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService wires a notification service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) Notify(ctx context.Context, input NotifyInput) {
	if input.Title == "" || len(input.TargetUserIDs) == 0 {
		return
	}

	var payload json.RawMessage
	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			s.logger.Error(ctx, "encoding notification data", err)
			return
		}
		payload = encoded
	}

	for _, userID := range input.TargetUserIDs {
		if userID == uuid.Nil {
			continue
		}
		notification := &models.Notification{
			UserID: userID,
			Title:  input.Title,
			Body:   input.Body,
			Data:   payload,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			s.logger.Error(s.logger.WithUserID(ctx, userID.String()), "queueing notification", err)
		}
	}
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListForUser(ctx, userID, unreadOnly)
}

func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil || userID == uuid.Nil {
		return fmt.Errorf("notification and user ids are required")
	}
	return s.repo.MarkRead(ctx, id, userID)
}
