package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/razorpay"
)

// Gateway is the payment-gateway surface the reconciliation flow needs.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error)
	GetOrCreatePlan(ctx context.Context, params razorpay.PlanParams) (*razorpay.Plan, error)
	CreateSubscription(ctx context.Context, params razorpay.SubscriptionParams) (*razorpay.Subscription, error)
	FetchPaymentsForOrder(ctx context.Context, orderID string) ([]razorpay.GatewayPayment, error)
	FetchSubscriptionInvoices(ctx context.Context, subscriptionID string) ([]razorpay.Invoice, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Intent is an open payment obligation handed back to the lifecycle layer.
type Intent struct {
	Payment        *models.Payment
	Amount         decimal.Decimal
	OrderID        string
	PlanID         string
	SubscriptionID string
}

// Settlement is a confirmed gateway capture discovered by polling.
type Settlement struct {
	GatewayPaymentID string
	Amount           decimal.Decimal
}

// Service creates payment intents against the gateway and reconciles their
// settlement. Gateway calls always happen outside database transactions.
type Service interface {
	GetOrCreateIntent(ctx context.Context, request *models.InstallationRequest, product *models.Product) (*Intent, error)
	CheckGatewaySettlement(ctx context.Context, payment *models.Payment) (*Settlement, error)
	GenerateMonthlyDue(ctx context.Context, subscription *models.Subscription) (bool, error)
	ConfirmSubscriptionPayment(ctx context.Context, payment *models.Payment, subscription *models.Subscription, input ConfirmInput) error
	GetOrCreateServiceChargeIntent(ctx context.Context, request *models.ServiceRequest) (*Intent, error)
	ConfirmServiceChargePayment(ctx context.Context, payment *models.Payment, request *models.ServiceRequest, input ConfirmInput) error
	Repo() Repository
}

// ConfirmInput carries the evidence for settling a payment row.
type ConfirmInput struct {
	Method           enums.PaymentMethod
	GatewayPaymentID *string
	CollectedBy      *uuid.UUID
	ReceiptImage     *string
	ActorUserID      uuid.UUID
	ActorRole        enums.Role
}

type service struct {
	repo    Repository
	gateway Gateway
	ledger  ledger.Service
	tx      txRunner
	logger  *logger.Logger
}

// NewService wires the payment reconciliation service.
func NewService(repo Repository, gateway Gateway, ledgerSvc ledger.Service, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, gateway: gateway, ledger: ledgerSvc, tx: tx, logger: logg}, nil
}

// Repo exposes the repository for lifecycle services that settle payments
// inside their own completion transaction.
func (s *service) Repo() Repository {
	return s.repo
}

// GetOrCreateIntent returns the open intent for the request, creating the
// gateway order or plan+subscription when none exists. An existing open
// intent is success, never an error: concurrent callers converge on the same
// reference, enforced by the partial unique index on open installation
// intents.
func (s *service) GetOrCreateIntent(ctx context.Context, request *models.InstallationRequest, product *models.Product) (*Intent, error) {
	if request == nil || product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "installation request and product are required")
	}

	existing, err := s.repo.FindOpenForInstallation(ctx, request.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up open intent")
	}
	if existing != nil {
		return intentFrom(existing), nil
	}

	switch request.OrderType {
	case enums.OrderTypeRental:
		return s.createRentalIntent(ctx, request, product)
	case enums.OrderTypePurchase:
		return s.createPurchaseIntent(ctx, request, product)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order type %q", request.OrderType))
	}
}

func (s *service) createRentalIntent(ctx context.Context, request *models.InstallationRequest, product *models.Product) (*Intent, error) {
	planKey := fmt.Sprintf("rent:%s:%s", product.ID, request.FranchiseID)
	plan, err := s.gateway.GetOrCreatePlan(ctx, razorpay.PlanParams{
		Key:         planKey,
		Name:        fmt.Sprintf("Monthly rent - %s", product.Name),
		Amount:      product.MonthlyRent,
		Description: fmt.Sprintf("Monthly rental for %s", product.Name),
	})
	if err != nil {
		return nil, err
	}

	gatewaySub, err := s.gateway.CreateSubscription(ctx, razorpay.SubscriptionParams{
		PlanID:        plan.ID,
		TotalCycles:   120,
		UpfrontAmount: product.SecurityDeposit,
		UpfrontLabel:  "Security deposit",
		Notes: map[string]string{
			"installation_request_id": request.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Amount:                 product.SecurityDeposit,
		Type:                   enums.PaymentTypeDeposit,
		Method:                 enums.PaymentMethodRazorpay,
		Status:                 enums.PaymentStatusPending,
		CustomerID:             request.CustomerID,
		InstallationRequestID:  &request.ID,
		RazorpaySubscriptionID: &gatewaySub.ID,
	}
	intent, err := s.persistIntent(ctx, request, payment)
	if err != nil {
		return nil, err
	}
	intent.PlanID = plan.ID
	intent.SubscriptionID = gatewaySub.ID
	return intent, nil
}

func (s *service) createPurchaseIntent(ctx context.Context, request *models.InstallationRequest, product *models.Product) (*Intent, error) {
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderParams{
		Amount:  product.BuyPrice,
		Receipt: fmt.Sprintf("install-%s", request.ID),
		Notes: map[string]string{
			"installation_request_id": request.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Amount:                product.BuyPrice,
		Type:                  enums.PaymentTypePurchase,
		Method:                enums.PaymentMethodRazorpay,
		Status:                enums.PaymentStatusPending,
		CustomerID:            request.CustomerID,
		InstallationRequestID: &request.ID,
		RazorpayOrderID:       &order.ID,
	}
	intent, err := s.persistIntent(ctx, request, payment)
	if err != nil {
		return nil, err
	}
	intent.OrderID = order.ID
	return intent, nil
}

func (s *service) persistIntent(ctx context.Context, request *models.InstallationRequest, payment *models.Payment) (*Intent, error) {
	var created *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "uniq_payments_open_installation_intent") {
				return errIntentRaceLost
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting payment intent")
		}
		_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityPayment,
			EntityID:    payment.ID,
			ActionType:  enums.ActionPaymentLinkIssued,
			ToStatus:    ledger.Str(enums.PaymentStatusPending),
			ActorUserID: request.CustomerID,
			ActorRole:   enums.RoleCustomer,
		})
		if err != nil {
			return err
		}
		created = payment
		return nil
	})
	if err == nil && created != nil {
		s.logger.Info(s.logger.WithField(ctx, "payment_id", created.ID.String()), "payment intent created")
	}
	if err == errIntentRaceLost {
		// another caller inserted first; converge on their intent
		winner, findErr := s.repo.FindOpenForInstallation(ctx, request.ID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "loading winning intent after race")
		}
		return intentFrom(winner), nil
	}
	if err != nil {
		return nil, err
	}
	return intentFrom(created), nil
}

var errIntentRaceLost = fmt.Errorf("open intent already exists")

// CheckGatewaySettlement polls the gateway for the payment's reference and
// reports a capture if one is found. A nil settlement with nil error means
// the money has not arrived yet. Timeouts surface as retryable errors.
func (s *service) CheckGatewaySettlement(ctx context.Context, payment *models.Payment) (*Settlement, error) {
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment is required")
	}
	if payment.Method != enums.PaymentMethodRazorpay {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only gateway payments can be polled")
	}

	switch {
	case payment.RazorpayOrderID != nil:
		captures, err := s.gateway.FetchPaymentsForOrder(ctx, *payment.RazorpayOrderID)
		if err != nil {
			return nil, err
		}
		for _, capture := range captures {
			if capture.Captured {
				return &Settlement{GatewayPaymentID: capture.ID, Amount: capture.Amount}, nil
			}
		}
		return nil, nil
	case payment.RazorpaySubscriptionID != nil:
		invoices, err := s.gateway.FetchSubscriptionInvoices(ctx, *payment.RazorpaySubscriptionID)
		if err != nil {
			return nil, err
		}
		for _, invoice := range invoices {
			if invoice.Status == "paid" {
				return &Settlement{GatewayPaymentID: invoice.PaymentID, Amount: invoice.Amount}, nil
			}
		}
		return nil, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment carries no gateway reference")
	}
}

// GenerateMonthlyDue creates the current cycle's PENDING charge for an active
// subscription. Idempotent per billing period: an existing open row for the
// period is left alone and reported as not created.
func (s *service) GenerateMonthlyDue(ctx context.Context, subscription *models.Subscription) (bool, error) {
	if subscription == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	if subscription.Status != enums.SubscriptionStatusActive {
		return false, nil
	}

	existing, err := s.repo.FindOpenForSubscriptionPeriod(ctx, subscription.ID, subscription.CurrentPeriodStart)
	if err != nil && err != gorm.ErrRecordNotFound {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up open monthly due")
	}
	if existing != nil {
		return false, nil
	}

	dueDate := subscription.NextPaymentDate
	payment := &models.Payment{
		Amount:                 subscription.MonthlyAmount,
		Type:                   enums.PaymentTypeSubscription,
		Method:                 enums.PaymentMethodRazorpay,
		Status:                 enums.PaymentStatusPending,
		CustomerID:             subscription.CustomerID,
		SubscriptionID:         &subscription.ID,
		RazorpaySubscriptionID: subscription.RazorpaySubscriptionID,
		DueDate:                &dueDate,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating monthly due")
		}
		_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityPayment,
			EntityID:    payment.ID,
			ActionType:  enums.ActionPaymentLinkIssued,
			ToStatus:    ledger.Str(enums.PaymentStatusPending),
			ActorUserID: subscription.CustomerID,
			ActorRole:   enums.RoleCustomer,
			Comment:     ledger.Str("monthly billing cycle"),
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ConfirmSubscriptionPayment settles a monthly charge and advances the
// billing period by one month, atomically.
func (s *service) ConfirmSubscriptionPayment(ctx context.Context, payment *models.Payment, subscription *models.Subscription, input ConfirmInput) error {
	if payment == nil || subscription == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment and subscription are required")
	}
	if payment.SubscriptionID == nil || *payment.SubscriptionID != subscription.ID {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment is not linked to this subscription")
	}
	if input.Method.IsOffline() && input.ReceiptImage == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offline settlement requires a receipt image")
	}
	if !input.Method.IsOffline() && input.GatewayPaymentID == nil {
		return pkgerrors.New(pkgerrors.CodePaymentNotVerified, "gateway settlement requires a captured payment reference")
	}

	periodStart := subscription.CurrentPeriodEnd
	periodEnd := periodStart.AddDate(0, 1, 0)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{"method": input.Method}
		if input.GatewayPaymentID != nil {
			updates["razorpay_payment_id"] = *input.GatewayPaymentID
		}
		if input.CollectedBy != nil {
			updates["collected_by"] = *input.CollectedBy
		}
		if input.ReceiptImage != nil {
			updates["receipt_image"] = *input.ReceiptImage
		}
		settled, err := repo.MarkCompletedGuarded(ctx, payment.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling payment")
		}
		if !settled {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment was already settled")
		}

		if err := tx.WithContext(ctx).
			Model(&models.Subscription{}).
			Where("id = ?", subscription.ID).
			Updates(map[string]any{
				"current_period_start": periodStart,
				"current_period_end":   periodEnd,
				"next_payment_date":    periodEnd,
				"updated_at":           time.Now().UTC(),
			}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advancing billing period")
		}

		if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityPayment,
			EntityID:    payment.ID,
			ActionType:  enums.ActionPaymentConfirmed,
			FromStatus:  ledger.Str(enums.PaymentStatusPending),
			ToStatus:    ledger.Str(enums.PaymentStatusCompleted),
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
		}); err != nil {
			return err
		}
		_, err = s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntitySubscription,
			EntityID:    subscription.ID,
			ActionType:  enums.ActionBillingAdvanced,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
		})
		return err
	})
}

// GetOrCreateServiceChargeIntent returns the open charge for a chargeable
// service request, creating the gateway order when none exists. An existing
// open intent is success, never an error. There is no unique index on open
// service charges, so racing callers are serialized by the find-then-create
// pattern the same way monthly dues are.
func (s *service) GetOrCreateServiceChargeIntent(ctx context.Context, request *models.ServiceRequest) (*Intent, error) {
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service request is required")
	}
	if !request.RequiresPayment || request.PaymentAmount == nil || !request.PaymentAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service request carries no chargeable amount")
	}

	existing, err := s.repo.FindOpenForServiceRequest(ctx, request.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up open service charge")
	}
	if existing != nil {
		return intentFrom(existing), nil
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderParams{
		Amount:  *request.PaymentAmount,
		Receipt: fmt.Sprintf("service-%s", request.ID),
		Notes: map[string]string{
			"service_request_id": request.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Amount:           *request.PaymentAmount,
		Type:             enums.PaymentTypeServiceCharge,
		Method:           enums.PaymentMethodRazorpay,
		Status:           enums.PaymentStatusPending,
		CustomerID:       request.CustomerID,
		ServiceRequestID: &request.ID,
		RazorpayOrderID:  &order.ID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating service charge")
		}
		_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityPayment,
			EntityID:    payment.ID,
			ActionType:  enums.ActionPaymentLinkIssued,
			ToStatus:    ledger.Str(enums.PaymentStatusPending),
			ActorUserID: request.CustomerID,
			ActorRole:   enums.RoleCustomer,
			Comment:     ledger.Str("service charge"),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithField(ctx, "payment_id", payment.ID.String()), "service charge intent created")
	return intentFrom(payment), nil
}

// ConfirmServiceChargePayment settles a service charge with offline proof or
// a captured gateway reference. Completing the request itself stays with the
// service request lifecycle.
func (s *service) ConfirmServiceChargePayment(ctx context.Context, payment *models.Payment, request *models.ServiceRequest, input ConfirmInput) error {
	if payment == nil || request == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment and service request are required")
	}
	if payment.ServiceRequestID == nil || *payment.ServiceRequestID != request.ID {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment is not linked to this service request")
	}
	if input.Method.IsOffline() && input.ReceiptImage == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offline settlement requires a receipt image")
	}
	if !input.Method.IsOffline() && input.GatewayPaymentID == nil {
		return pkgerrors.New(pkgerrors.CodePaymentNotVerified, "gateway settlement requires a captured payment reference")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{"method": input.Method}
		if input.GatewayPaymentID != nil {
			updates["razorpay_payment_id"] = *input.GatewayPaymentID
		}
		if input.CollectedBy != nil {
			updates["collected_by"] = *input.CollectedBy
		}
		if input.ReceiptImage != nil {
			updates["receipt_image"] = *input.ReceiptImage
		}
		settled, err := repo.MarkCompletedGuarded(ctx, payment.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling payment")
		}
		if !settled {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment was already settled")
		}
		_, err = s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityPayment,
			EntityID:    payment.ID,
			ActionType:  enums.ActionPaymentConfirmed,
			FromStatus:  ledger.Str(enums.PaymentStatusPending),
			ToStatus:    ledger.Str(enums.PaymentStatusCompleted),
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
		})
		return err
	})
}

func intentFrom(payment *models.Payment) *Intent {
	intent := &Intent{Payment: payment, Amount: payment.Amount}
	if payment.RazorpayOrderID != nil {
		intent.OrderID = *payment.RazorpayOrderID
	}
	if payment.RazorpaySubscriptionID != nil {
		intent.SubscriptionID = *payment.RazorpaySubscriptionID
	}
	return intent
}
