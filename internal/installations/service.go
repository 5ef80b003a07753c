package installations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/installsync"
	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	"github.com/aquaflowhq/aquaflow-backend/internal/payments"
	"github.com/aquaflowhq/aquaflow-backend/internal/roster"
	"github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type mirrorFinder interface {
	FindMirrorForInstallation(ctx context.Context, installationRequestID uuid.UUID) (*models.ServiceRequest, error)
}

// SubmitInput describes a customer's new rental or purchase order.
type SubmitInput struct {
	ProductID   uuid.UUID
	FranchiseID uuid.UUID
	OrderType   enums.OrderType
	Address     string
	Latitude    *float64
	Longitude   *float64
}

// TransitionInput carries the requested target and per-target evidence.
type TransitionInput struct {
	Target        enums.InstallationStatus
	TechnicianID  *uuid.UUID
	ScheduledDate *time.Time
	Reason        *string
}

// VerifyInput is offline settlement proof collected in the field.
type VerifyInput struct {
	Method       enums.PaymentMethod
	ReceiptImage string
	CollectedBy  *uuid.UUID
}

// Service owns the installation order lifecycle, from submission through the
// payment-gated completion.
type Service interface {
	Submit(ctx context.Context, input SubmitInput, actor authz.Actor) (*models.InstallationRequest, error)
	GetByID(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.InstallationRequest, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, actor authz.Actor) ([]models.InstallationRequest, error)
	Transition(ctx context.Context, id uuid.UUID, input TransitionInput, actor authz.Actor) (*models.InstallationRequest, error)
	GeneratePaymentLink(ctx context.Context, id uuid.UUID, actor authz.Actor) (*payments.Intent, error)
	VerifyPayment(ctx context.Context, id uuid.UUID, input VerifyInput, actor authz.Actor) (*models.InstallationRequest, error)
	RefreshPaymentStatus(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.InstallationRequest, error)
}

type service struct {
	repo          Repository
	guard         *authz.Guard
	roster        roster.Service
	products      productFinder
	payments      payments.Service
	subscriptions subscriptions.Repository
	mirrors       mirrorFinder
	ledger        ledger.Service
	sync          *installsync.Synchronizer
	notifier      notifications.Service
	tx            txRunner
	logger        *logger.Logger
	metrics       *metrics.LifecycleMetrics
}

// NewService wires the installation lifecycle service. The metrics argument
// may be nil; lifecycle counters become no-ops.
func NewService(
	repo Repository,
	guard *authz.Guard,
	rosterSvc roster.Service,
	products productFinder,
	paymentsSvc payments.Service,
	subscriptionsRepo subscriptions.Repository,
	mirrors mirrorFinder,
	ledgerSvc ledger.Service,
	synchronizer *installsync.Synchronizer,
	notifier notifications.Service,
	tx txRunner,
	logg *logger.Logger,
	lifecycleMetrics *metrics.LifecycleMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("installation repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("authorization guard required")
	}
	if rosterSvc == nil {
		return nil, fmt.Errorf("roster service required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if paymentsSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if subscriptionsRepo == nil {
		return nil, fmt.Errorf("subscription store required")
	}
	if mirrors == nil {
		return nil, fmt.Errorf("mirror finder required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if synchronizer == nil {
		return nil, fmt.Errorf("synchronizer required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		guard:         guard,
		roster:        rosterSvc,
		products:      products,
		payments:      paymentsSvc,
		subscriptions: subscriptionsRepo,
		mirrors:       mirrors,
		ledger:        ledgerSvc,
		sync:          synchronizer,
		notifier:      notifier,
		tx:            tx,
		logger:        logg,
		metrics:       lifecycleMetrics,
	}, nil
}

// Submit opens a SUBMITTED request after checking the product is orderable
// and the franchise is accepting work.
func (s *service) Submit(ctx context.Context, input SubmitInput, actor authz.Actor) (*models.InstallationRequest, error) {
	if err := s.guard.RequireRole(actor, enums.RoleCustomer); err != nil {
		return nil, err
	}
	if !input.OrderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order type %q", input.OrderType))
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "installation address is required")
	}

	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !productOrderable(product, input.OrderType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not available")
	}

	franchise, err := s.roster.GetFranchise(ctx, input.FranchiseID)
	if err != nil {
		return nil, err
	}
	if !franchise.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "franchise is not accepting requests")
	}

	request := &models.InstallationRequest{
		ProductID:   product.ID,
		CustomerID:  actor.UserID,
		FranchiseID: franchise.ID,
		OrderType:   input.OrderType,
		Address:     strings.TrimSpace(input.Address),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Status:      enums.InstallationStatusSubmitted,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating installation request")
		}
		_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityInstallationRequest,
			EntityID:    request.ID,
			ActionType:  enums.ActionSubmitted,
			ToStatus:    ledger.Str(enums.InstallationStatusSubmitted),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(enums.EntityInstallationRequest), string(enums.InstallationStatusSubmitted))

	s.notifier.Notify(ctx, notifications.NotifyInput{
		TargetUserIDs: []uuid.UUID{franchise.OwnerUserID},
		Title:         "New installation request",
		Body:          fmt.Sprintf("A customer requested a %s installation of %s.", strings.ToLower(string(input.OrderType)), product.Name),
		Data:          map[string]any{"installation_request_id": request.ID.String()},
	})
	return request, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.InstallationRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageInstallation(ctx, actor, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, actor authz.Actor) ([]models.InstallationRequest, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if actor.Role == enums.RoleCustomer && actor.UserID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only list their own requests")
	}
	requests, err := s.repo.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing installation requests")
	}
	return requests, nil
}

// Transition applies the adjacency table. INSTALLATION_COMPLETED is never
// reachable here: completion happens only through the payment path.
func (s *service) Transition(ctx context.Context, id uuid.UUID, input TransitionInput, actor authz.Actor) (*models.InstallationRequest, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Target))
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageInstallation(ctx, actor, request); err != nil {
		return nil, err
	}
	if actor.Role == enums.RoleCustomer && input.Target != enums.InstallationStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel their requests")
	}

	updates, err := s.checkTransition(ctx, request, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.UpdateStatusGuarded(ctx, request.ID, request.Status, input.Target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating status")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "request was modified concurrently")
		}
		action := enums.ActionStatusChanged
		if input.Target == enums.InstallationStatusScheduled {
			action = enums.ActionScheduled
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityInstallationRequest,
			EntityID:    request.ID,
			ActionType:  action,
			FromStatus:  ledger.Str(request.Status),
			ToStatus:    ledger.Str(input.Target),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Comment:     input.Reason,
		}); err != nil {
			return err
		}
		return s.syncMirror(ctx, tx, request, input, actor)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(enums.EntityInstallationRequest), string(input.Target))
	return s.load(ctx, request.ID)
}

// syncMirror pushes the new status onto the mirrored service request. The
// mirror first exists at scheduling; earlier statuses have nothing to sync.
func (s *service) syncMirror(ctx context.Context, tx *gorm.DB, request *models.InstallationRequest, input TransitionInput, actor authz.Actor) error {
	updated := *request
	updated.Status = input.Target
	if input.TechnicianID != nil {
		updated.TechnicianID = input.TechnicianID
	}
	if input.ScheduledDate != nil {
		updated.ScheduledDate = input.ScheduledDate
	}
	return s.sync.FromInstallationRequest(ctx, tx, &updated, installsync.Actor{UserID: actor.UserID, Role: actor.Role})
}

func (s *service) checkTransition(ctx context.Context, request *models.InstallationRequest, input TransitionInput) (map[string]any, error) {
	from, target := request.Status, input.Target
	updates := map[string]any{}

	if target == enums.InstallationStatusCompleted {
		// only the payment-completion path may finish a request
		return nil, invalidTransition(from, target)
	}

	switch {
	case from == enums.InstallationStatusSubmitted && target == enums.InstallationStatusRejected:
		if input.Reason == nil || strings.TrimSpace(*input.Reason) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a rejection reason is required")
		}
		updates["rejection_reason"] = strings.TrimSpace(*input.Reason)
		return updates, nil

	case from == enums.InstallationStatusSubmitted && target == enums.InstallationStatusFranchiseContacted:
		return updates, nil

	case from == enums.InstallationStatusFranchiseContacted && target == enums.InstallationStatusScheduled,
		from == enums.InstallationStatusCancelled && target == enums.InstallationStatusScheduled:
		if input.TechnicianID == nil && request.TechnicianID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduling requires a technician")
		}
		date := input.ScheduledDate
		if date == nil {
			date = request.ScheduledDate
		}
		if date == nil || !date.After(time.Now()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduling requires a future date")
		}
		if input.TechnicianID != nil {
			updates["technician_id"] = *input.TechnicianID
		}
		updates["scheduled_date"] = *date
		return updates, nil

	case from == enums.InstallationStatusScheduled && target == enums.InstallationStatusInProgress,
		from == enums.InstallationStatusCancelled && target == enums.InstallationStatusInProgress:
		return updates, nil

	case from == enums.InstallationStatusInProgress && target == enums.InstallationStatusPaymentPending:
		if err := s.checkCompletionImages(ctx, request); err != nil {
			return nil, err
		}
		return updates, nil

	case target == enums.InstallationStatusCancelled:
		switch from {
		case enums.InstallationStatusFranchiseContacted, enums.InstallationStatusScheduled, enums.InstallationStatusInProgress:
			return updates, nil
		}
		return nil, invalidTransition(from, target)

	case from == enums.InstallationStatusCancelled && target == enums.InstallationStatusFranchiseContacted:
		return updates, nil

	default:
		return nil, invalidTransition(from, target)
	}
}

// checkCompletionImages requires at least one completion photo, carried on
// the mirrored service request.
func (s *service) checkCompletionImages(ctx context.Context, request *models.InstallationRequest) error {
	mirror, err := s.mirrors.FindMirrorForInstallation(ctx, request.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeValidation, "completion images are required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mirrored service request")
	}
	if len(mirror.AfterImages) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "completion images are required")
	}
	return nil
}

// GeneratePaymentLink creates (or returns) the open payment intent for the
// request and records the gateway references on it.
func (s *service) GeneratePaymentLink(ctx context.Context, id uuid.UUID, actor authz.Actor) (*payments.Intent, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageInstallation(ctx, actor, request); err != nil {
		return nil, err
	}
	if request.Status != enums.InstallationStatusInProgress && request.Status != enums.InstallationStatusPaymentPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment links can only be issued while installation is underway, not %s", request.Status))
	}
	product, err := s.loadProduct(ctx, request.ProductID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	intent, err := s.payments.GetOrCreateIntent(ctx, request, product)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveGatewayCall("create_intent", outcome, time.Since(started))
	if err != nil {
		return nil, err
	}

	var orderID, planID, subscriptionID *string
	if intent.OrderID != "" {
		orderID = &intent.OrderID
	}
	if intent.PlanID != "" {
		planID = &intent.PlanID
	}
	if intent.SubscriptionID != "" {
		subscriptionID = &intent.SubscriptionID
	}
	if err := s.repo.SetGatewayReferences(ctx, request.ID, orderID, planID, subscriptionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording gateway references")
	}
	return intent, nil
}

// VerifyPayment accepts offline settlement proof and runs the completion
// transaction.
func (s *service) VerifyPayment(ctx context.Context, id uuid.UUID, input VerifyInput, actor authz.Actor) (*models.InstallationRequest, error) {
	if !input.Method.IsOffline() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offline verification accepts cash or UPI only")
	}
	if strings.TrimSpace(input.ReceiptImage) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a receipt image is required")
	}
	request, err := s.loadForCompletion(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	payment, err := s.openIntent(ctx, request)
	if err != nil {
		return nil, err
	}
	receipt := strings.TrimSpace(input.ReceiptImage)
	return s.complete(ctx, request, payment, payments.ConfirmInput{
		Method:       input.Method,
		CollectedBy:  input.CollectedBy,
		ReceiptImage: &receipt,
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
	})
}

// RefreshPaymentStatus polls the gateway and, when the intent has settled,
// runs the completion transaction.
func (s *service) RefreshPaymentStatus(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.InstallationRequest, error) {
	request, err := s.loadForCompletion(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	payment, err := s.openIntent(ctx, request)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	settlement, err := s.payments.CheckGatewaySettlement(ctx, payment)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveGatewayCall("check_settlement", outcome, time.Since(started))
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotVerified, "payment has not settled yet")
	}
	return s.complete(ctx, request, payment, payments.ConfirmInput{
		Method:           enums.PaymentMethodRazorpay,
		GatewayPaymentID: &settlement.GatewayPaymentID,
		ActorUserID:      actor.UserID,
		ActorRole:        actor.Role,
	})
}

func (s *service) loadForCompletion(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.InstallationRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageInstallation(ctx, actor, request); err != nil {
		return nil, err
	}
	switch request.Status {
	case enums.InstallationStatusInProgress, enums.InstallationStatusPaymentPending:
		return request, nil
	case enums.InstallationStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "installation is already completed")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment cannot be verified while request is %s", request.Status))
	}
}

func (s *service) openIntent(ctx context.Context, request *models.InstallationRequest) (*models.Payment, error) {
	payment, err := s.payments.Repo().FindOpenForInstallation(ctx, request.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no open payment intent for this request")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading open payment intent")
	}
	return payment, nil
}

// complete runs the completion transaction: settle the payment, create the
// subscription and mint a connect ID for rentals, finish the request, and
// sync the mirror. The subscriptions unique index serializes racing callers.
func (s *service) complete(ctx context.Context, request *models.InstallationRequest, payment *models.Payment, confirm payments.ConfirmInput) (*models.InstallationRequest, error) {
	product, err := s.loadProduct(ctx, request.ProductID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	connectID := mintConnectID()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsRepo := s.payments.Repo().WithTx(tx)
		updates := map[string]any{"method": confirm.Method}
		if confirm.GatewayPaymentID != nil {
			updates["razorpay_payment_id"] = *confirm.GatewayPaymentID
		}
		if confirm.CollectedBy != nil {
			updates["collected_by"] = *confirm.CollectedBy
		}
		if confirm.ReceiptImage != nil {
			updates["receipt_image"] = *confirm.ReceiptImage
		}
		settled, err := paymentsRepo.MarkCompletedGuarded(ctx, payment.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling payment")
		}
		if !settled {
			return pkgerrors.New(pkgerrors.CodeConflict, "installation is already completed")
		}

		requestUpdates := map[string]any{"completed_date": now}
		if request.OrderType == enums.OrderTypeRental {
			subscription := &models.Subscription{
				InstallationRequestID:  request.ID,
				ConnectID:              connectID,
				CustomerID:             request.CustomerID,
				ProductID:              request.ProductID,
				FranchiseID:            request.FranchiseID,
				RazorpaySubscriptionID: request.RazorpaySubscriptionID,
				MonthlyAmount:          product.MonthlyRent,
				DepositAmount:          product.SecurityDeposit,
				CurrentPeriodStart:     now,
				CurrentPeriodEnd:       now.AddDate(0, 1, 0),
				NextPaymentDate:        now.AddDate(0, 1, 0),
				Status:                 enums.SubscriptionStatusActive,
			}
			if err := s.subscriptions.WithTx(tx).Create(ctx, subscription); err != nil {
				if db.IsUniqueViolation(err, "uniq_subscriptions_installation_request") {
					return pkgerrors.New(pkgerrors.CodeConflict, "installation is already completed")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating subscription")
			}
			requestUpdates["connect_id"] = connectID
			if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
				EntityType:  enums.EntitySubscription,
				EntityID:    subscription.ID,
				ActionType:  enums.ActionSubscriptionStart,
				ToStatus:    ledger.Str(enums.SubscriptionStatusActive),
				ActorUserID: confirm.ActorUserID,
				ActorRole:   confirm.ActorRole,
			}); err != nil {
				return err
			}
		}

		won, err := s.repo.WithTx(tx).UpdateStatusGuarded(ctx, request.ID, request.Status, enums.InstallationStatusCompleted, requestUpdates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing request")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "installation is already completed")
		}

		if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityPayment,
			EntityID:    payment.ID,
			ActionType:  enums.ActionPaymentConfirmed,
			FromStatus:  ledger.Str(enums.PaymentStatusPending),
			ToStatus:    ledger.Str(enums.PaymentStatusCompleted),
			ActorUserID: confirm.ActorUserID,
			ActorRole:   confirm.ActorRole,
		}); err != nil {
			return err
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityInstallationRequest,
			EntityID:    request.ID,
			ActionType:  enums.ActionStatusChanged,
			FromStatus:  ledger.Str(request.Status),
			ToStatus:    ledger.Str(enums.InstallationStatusCompleted),
			ActorUserID: confirm.ActorUserID,
			ActorRole:   confirm.ActorRole,
		}); err != nil {
			return err
		}

		updated := *request
		updated.Status = enums.InstallationStatusCompleted
		updated.CompletedDate = &now
		return s.sync.FromInstallationRequest(ctx, tx, &updated, installsync.Actor{UserID: confirm.ActorUserID, Role: confirm.ActorRole})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(enums.EntityInstallationRequest), string(enums.InstallationStatusCompleted))
	s.logger.Info(s.logger.WithField(ctx, "installation_request_id", request.ID.String()), "installation completed")

	s.notifier.Notify(ctx, notifications.NotifyInput{
		TargetUserIDs: []uuid.UUID{request.CustomerID},
		Title:         "Installation completed",
		Body:          "Your water purifier installation is complete.",
		Data:          map[string]any{"installation_request_id": request.ID.String()},
	})
	return s.load(ctx, request.ID)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.InstallationRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "installation request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading installation request")
	}
	return request, nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func productOrderable(product *models.Product, orderType enums.OrderType) bool {
	if !product.IsActive {
		return false
	}
	switch orderType {
	case enums.OrderTypeRental:
		return product.RentalEnabled
	case enums.OrderTypePurchase:
		return product.PurchaseEnabled
	default:
		return false
	}
}

func invalidTransition(from, to enums.InstallationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move from %s to %s", from, to))
}

func mintConnectID() string {
	return "AQF-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
