package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the recurring-billing side of completed rentals.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error)
	GetByConnectID(ctx context.Context, connectID string, actor authz.Actor) (*models.Subscription, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, actor authz.Actor) ([]models.Subscription, error)
	Pause(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error)
	Resume(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error)
	Terminate(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error)
}

type service struct {
	repo   Repository
	guard  *authz.Guard
	ledger ledger.Service
	tx     txRunner
}

// NewService wires the subscription service.
func NewService(repo Repository, guard *authz.Guard, ledgerSvc ledger.Service, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("authorization guard required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, guard: guard, ledger: ledgerSvc, tx: tx}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error) {
	subscription, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *service) GetByConnectID(ctx context.Context, connectID string, actor authz.Actor) (*models.Subscription, error) {
	connectID = strings.TrimSpace(connectID)
	if connectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "connect id is required")
	}
	subscription, err := s.repo.FindByConnectID(ctx, connectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription by connect id")
	}
	if err := s.authorizeRead(ctx, actor, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, actor authz.Actor) ([]models.Subscription, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if actor.Role == enums.RoleCustomer && actor.UserID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only list their own subscriptions")
	}
	subscriptions, err := s.repo.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing subscriptions")
	}
	return subscriptions, nil
}

func (s *service) Pause(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, actor, enums.SubscriptionStatusActive, enums.SubscriptionStatusPaused)
}

func (s *service) Resume(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, actor, enums.SubscriptionStatusPaused, enums.SubscriptionStatusActive)
}

func (s *service) Terminate(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error) {
	subscription, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageSubscription(ctx, actor, subscription); err != nil {
		return nil, err
	}
	if subscription.Status == enums.SubscriptionStatusTerminated || subscription.Status == enums.SubscriptionStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already closed")
	}
	return s.applyStatus(ctx, subscription, actor, subscription.Status, enums.SubscriptionStatusTerminated)
}

func (s *service) changeStatus(ctx context.Context, id uuid.UUID, actor authz.Actor, from, to enums.SubscriptionStatus) (*models.Subscription, error) {
	subscription, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageSubscription(ctx, actor, subscription); err != nil {
		return nil, err
	}
	if subscription.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("subscription is %s, expected %s", subscription.Status, from))
	}
	return s.applyStatus(ctx, subscription, actor, from, to)
}

func (s *service) applyStatus(ctx context.Context, subscription *models.Subscription, actor authz.Actor, from, to enums.SubscriptionStatus) (*models.Subscription, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.repo.WithTx(tx).UpdateStatusGuarded(ctx, subscription.ID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating subscription status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription was modified concurrently")
		}
		_, err = s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntitySubscription,
			EntityID:    subscription.ID,
			ActionType:  enums.ActionStatusChanged,
			FromStatus:  ledger.Str(from),
			ToStatus:    ledger.Str(to),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	subscription.Status = to
	return subscription, nil
}

func (s *service) authorizeRead(ctx context.Context, actor authz.Actor, subscription *models.Subscription) error {
	if actor.Role == enums.RoleCustomer {
		if subscription.CustomerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only view their own subscriptions")
		}
		return nil
	}
	if actor.Role == enums.RoleServiceAgent {
		return pkgerrors.New(pkgerrors.CodeForbidden, "agents do not manage subscriptions")
	}
	return s.guard.CanManageSubscription(ctx, actor, subscription)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	subscription, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	return subscription, nil
}
