package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/payments"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

const defaultPaymentRefreshBatch = 100

type PaymentRefreshJobParams struct {
	Logger          *logger.Logger
	Payments        openIntentPoller
	Installations   installationRefresher
	Subscriptions   subscriptionByIDFinder
	ServiceRequests serviceRequestByIDFinder
	Settler         settlementConfirmer
	Actor           authz.Actor
	Limit           int
}

type openIntentPoller interface {
	ListOpenGatewayIntents(ctx context.Context, limit int) ([]models.Payment, error)
}

type installationRefresher interface {
	RefreshPaymentStatus(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.InstallationRequest, error)
}

type subscriptionByIDFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
}

type serviceRequestByIDFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
}

type settlementConfirmer interface {
	CheckGatewaySettlement(ctx context.Context, payment *models.Payment) (*payments.Settlement, error)
	ConfirmSubscriptionPayment(ctx context.Context, payment *models.Payment, subscription *models.Subscription, input payments.ConfirmInput) error
	ConfirmServiceChargePayment(ctx context.Context, payment *models.Payment, request *models.ServiceRequest, input payments.ConfirmInput) error
}

// NewPaymentRefreshJob builds the job that re-polls open gateway intents and
// settles the ones the gateway has captured. Installation intents run the
// same completion path the API refresh endpoint uses.
func NewPaymentRefreshJob(params PaymentRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Installations == nil {
		return nil, fmt.Errorf("installations service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.ServiceRequests == nil {
		return nil, fmt.Errorf("service requests repository required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.Actor.UserID == uuid.Nil {
		return nil, fmt.Errorf("system actor required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPaymentRefreshBatch
	}
	return &paymentRefreshJob{
		logg:            params.Logger,
		payments:        params.Payments,
		installations:   params.Installations,
		subscriptions:   params.Subscriptions,
		serviceRequests: params.ServiceRequests,
		settler:         params.Settler,
		actor:           params.Actor,
		limit:           limit,
	}, nil
}

type paymentRefreshJob struct {
	logg            *logger.Logger
	payments        openIntentPoller
	installations   installationRefresher
	subscriptions   subscriptionByIDFinder
	serviceRequests serviceRequestByIDFinder
	settler         settlementConfirmer
	actor           authz.Actor
	limit           int
}

func (j *paymentRefreshJob) Name() string { return "payment-refresh" }

func (j *paymentRefreshJob) Run(ctx context.Context) error {
	open, err := j.payments.ListOpenGatewayIntents(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list open intents: %w", err)
	}

	var settled, pending int
	var errs error
	for i := range open {
		payment := &open[i]
		done, err := j.refresh(ctx, payment)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
			continue
		}
		if done {
			settled++
		} else {
			pending++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"polled":  len(open),
		"settled": settled,
		"pending": pending,
	})
	j.logg.Info(logCtx, "payment refresh cycle complete")
	return errs
}

func (j *paymentRefreshJob) refresh(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.InstallationRequestID != nil {
		_, err := j.installations.RefreshPaymentStatus(ctx, *payment.InstallationRequestID, j.actor)
		switch {
		case err == nil:
			return true, nil
		case pkgerrors.IsCode(err, pkgerrors.CodePaymentNotVerified):
			// gateway has not captured yet, try again next cycle
			return false, nil
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			// another caller completed it first
			return true, nil
		default:
			return false, err
		}
	}

	if payment.SubscriptionID == nil && payment.ServiceRequestID == nil {
		return false, fmt.Errorf("open intent has no installation, subscription, or service request reference")
	}

	settlement, err := j.settler.CheckGatewaySettlement(ctx, payment)
	if err != nil {
		return false, err
	}
	if settlement == nil {
		return false, nil
	}
	confirm := payments.ConfirmInput{
		Method:           enums.PaymentMethodRazorpay,
		GatewayPaymentID: &settlement.GatewayPaymentID,
		ActorUserID:      j.actor.UserID,
		ActorRole:        j.actor.Role,
	}
	if payment.SubscriptionID != nil {
		subscription, err := j.subscriptions.FindByID(ctx, *payment.SubscriptionID)
		if err != nil {
			return false, fmt.Errorf("loading subscription: %w", err)
		}
		err = j.settler.ConfirmSubscriptionPayment(ctx, payment, subscription, confirm)
		return settledOrRetry(err)
	}
	request, err := j.serviceRequests.FindByID(ctx, *payment.ServiceRequestID)
	if err != nil {
		return false, fmt.Errorf("loading service request: %w", err)
	}
	err = j.settler.ConfirmServiceChargePayment(ctx, payment, request, confirm)
	return settledOrRetry(err)
}

func settledOrRetry(err error) (bool, error) {
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
