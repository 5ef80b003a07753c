package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

const defaultBillingDueBatch = 200

type BillingDueJobParams struct {
	Logger        *logger.Logger
	Subscriptions billingDueLister
	Payments      monthlyDueGenerator
	Limit         int
}

type billingDueLister interface {
	ListBillingDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)
}

type monthlyDueGenerator interface {
	GenerateMonthlyDue(ctx context.Context, subscription *models.Subscription) (bool, error)
}

// NewBillingDueJob builds the job that opens the current cycle's PENDING
// charge for every active subscription whose next payment date has passed.
func NewBillingDueJob(params BillingDueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBillingDueBatch
	}
	return &billingDueJob{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		payments:      params.Payments,
		limit:         limit,
		now:           time.Now,
	}, nil
}

type billingDueJob struct {
	logg          *logger.Logger
	subscriptions billingDueLister
	payments      monthlyDueGenerator
	limit         int
	now           func() time.Time
}

func (j *billingDueJob) Name() string { return "billing-due" }

func (j *billingDueJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	due, err := j.subscriptions.ListBillingDue(ctx, asOf, j.limit)
	if err != nil {
		return fmt.Errorf("list billing due: %w", err)
	}

	var created int
	var errs error
	for i := range due {
		subscription := &due[i]
		opened, err := j.payments.GenerateMonthlyDue(ctx, subscription)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", subscription.ID, err))
			continue
		}
		if opened {
			created++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":           asOf,
		"due":             len(due),
		"charges_created": created,
	})
	j.logg.Info(logCtx, "billing due cycle complete")
	return errs
}
