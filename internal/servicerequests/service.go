package servicerequests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/installsync"
	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/internal/payments"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	dbtypes "github.com/aquaflowhq/aquaflow-backend/pkg/db/types"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type subscriptionFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
}

type paymentFinder interface {
	FindCompletedForInstallation(ctx context.Context, requestID uuid.UUID) (*models.Payment, error)
	FindCompletedForServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) (*models.Payment, error)
	FindOpenForServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) (*models.Payment, error)
}

type chargeSettler interface {
	GetOrCreateServiceChargeIntent(ctx context.Context, request *models.ServiceRequest) (*payments.Intent, error)
	ConfirmServiceChargePayment(ctx context.Context, payment *models.Payment, request *models.ServiceRequest, input payments.ConfirmInput) error
}

type agentRoster interface {
	AgentInFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error)
}

// CreateInput describes a new repair/maintenance/uninstallation request.
// INSTALLATION-typed requests are system-created by the synchronizer and can
// never be opened through this path.
type CreateInput struct {
	Type            enums.ServiceRequestType
	SubscriptionID  uuid.UUID
	Description     string
	RequiresPayment bool
	PaymentAmount   *decimal.Decimal
}

// UpdateStatusInput carries the requested target and the evidence the guard
// table demands for it.
type UpdateStatusInput struct {
	Target        enums.ServiceRequestStatus
	AgentID       *uuid.UUID
	ScheduledDate *time.Time
	BeforeImages  []string
	AfterImages   []string
	Comment       *string
}

// VerifyChargeInput is the offline settlement proof for a service charge.
type VerifyChargeInput struct {
	Method       enums.PaymentMethod
	ReceiptImage string
	CollectedBy  *uuid.UUID
}

// Service owns the field-work lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput, actor authz.Actor) (*models.ServiceRequest, error)
	GetByID(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, actor authz.Actor) ([]models.ServiceRequest, error)
	AssignAgent(ctx context.Context, id, agentID uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error)
	AssignSelf(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error)
	Schedule(ctx context.Context, id uuid.UUID, date time.Time, actor authz.Actor) (*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, input UpdateStatusInput, actor authz.Actor) (*models.ServiceRequest, error)
	GeneratePaymentLink(ctx context.Context, id uuid.UUID, actor authz.Actor) (*payments.Intent, error)
	VerifyPayment(ctx context.Context, id uuid.UUID, input VerifyChargeInput, actor authz.Actor) (*models.ServiceRequest, error)
}

type service struct {
	repo          Repository
	guard         *authz.Guard
	roster        agentRoster
	ledger        ledger.Service
	sync          *installsync.Synchronizer
	payments      paymentFinder
	charges       chargeSettler
	subscriptions subscriptionFinder
	tx            txRunner
}

// NewService wires the service request lifecycle service.
func NewService(
	repo Repository,
	guard *authz.Guard,
	rosterSvc agentRoster,
	ledgerSvc ledger.Service,
	synchronizer *installsync.Synchronizer,
	paymentsRepo paymentFinder,
	charges chargeSettler,
	subscriptions subscriptionFinder,
	tx txRunner,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("service request repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("authorization guard required")
	}
	if rosterSvc == nil {
		return nil, fmt.Errorf("roster service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if synchronizer == nil {
		return nil, fmt.Errorf("synchronizer required")
	}
	if paymentsRepo == nil {
		return nil, fmt.Errorf("payment finder required")
	}
	if charges == nil {
		return nil, fmt.Errorf("charge settler required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:          repo,
		guard:         guard,
		roster:        rosterSvc,
		ledger:        ledgerSvc,
		sync:          synchronizer,
		payments:      paymentsRepo,
		charges:       charges,
		subscriptions: subscriptions,
		tx:            tx,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, actor authz.Actor) (*models.ServiceRequest, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid service request type %q", input.Type))
	}
	if input.Type == enums.ServiceRequestTypeInstallation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "installation requests are opened through the installation flow")
	}
	if input.SubscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	if input.RequiresPayment && (input.PaymentAmount == nil || !input.PaymentAmount.IsPositive()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a positive payment amount is required for chargeable work")
	}

	subscription, err := s.subscriptions.FindByID(ctx, input.SubscriptionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if err := s.authorizeCreate(ctx, actor, subscription); err != nil {
		return nil, err
	}

	request := &models.ServiceRequest{
		Type:            input.Type,
		SubscriptionID:  &subscription.ID,
		CustomerID:      subscription.CustomerID,
		FranchiseID:     subscription.FranchiseID,
		Description:     input.Description,
		RequiresPayment: input.RequiresPayment,
		PaymentAmount:   input.PaymentAmount,
		Status:          enums.ServiceRequestStatusCreated,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating service request")
		}
		_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityServiceRequest,
			EntityID:    request.ID,
			ActionType:  enums.ActionSubmitted,
			ToStatus:    ledger.Str(enums.ServiceRequestStatusCreated),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) authorizeCreate(ctx context.Context, actor authz.Actor, subscription *models.Subscription) error {
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleCustomer:
		if actor.UserID != subscription.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only open requests for their own subscriptions")
		}
		return nil
	case enums.RoleFranchiseOwner, enums.RoleServiceAgent:
		return s.guard.CanManageServiceRequest(ctx, actor, &models.ServiceRequest{
			CustomerID:  subscription.CustomerID,
			FranchiseID: subscription.FranchiseID,
		})
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role may not open service requests")
	}
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageServiceRequest(ctx, actor, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, actor authz.Actor) ([]models.ServiceRequest, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if actor.Role == enums.RoleCustomer && actor.UserID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only list their own requests")
	}
	requests, err := s.repo.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing service requests")
	}
	return requests, nil
}

// AssignAgent puts a mapped agent on the request. Reassignment of an already
// assigned request is allowed for the same callers.
func (s *service) AssignAgent(ctx context.Context, id, agentID uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id is required")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanAssignAgent(ctx, actor, request); err != nil {
		return nil, err
	}
	if request.Status != enums.ServiceRequestStatusCreated && request.Status != enums.ServiceRequestStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot assign an agent while request is %s", request.Status))
	}
	mapped, err := s.roster.AgentInFranchise(ctx, agentID, request.FranchiseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking agent mapping")
	}
	if !mapped {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent is not mapped to this franchise")
	}
	return s.assign(ctx, request, agentID, actor, false)
}

// AssignSelf lets a mapped agent claim an unassigned non-installation request.
func (s *service) AssignSelf(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanAssignSelf(ctx, actor, request); err != nil {
		return nil, err
	}
	return s.assign(ctx, request, actor.UserID, actor, true)
}

func (s *service) assign(ctx context.Context, request *models.ServiceRequest, agentID uuid.UUID, actor authz.Actor, requireUnassigned bool) (*models.ServiceRequest, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.AssignAgentGuarded(ctx, request.ID, agentID, request.Status, requireUnassigned)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assigning agent")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "request was modified concurrently")
		}
		entry := ledger.RecordActionInput{
			EntityType:  enums.EntityServiceRequest,
			EntityID:    request.ID,
			ActionType:  enums.ActionAgentAssigned,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Comment:     ledger.Str(fmt.Sprintf("agent %s", agentID)),
		}
		if request.Status == enums.ServiceRequestStatusCreated {
			entry.FromStatus = ledger.Str(enums.ServiceRequestStatusCreated)
			entry.ToStatus = ledger.Str(enums.ServiceRequestStatusAssigned)
		}
		_, err = s.ledger.Record(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, request.ID)
}

// Schedule fixes the visit date on an assigned request. Rescheduling while
// already SCHEDULED keeps the status and moves the date.
func (s *service) Schedule(ctx context.Context, id uuid.UUID, date time.Time, actor authz.Actor) (*models.ServiceRequest, error) {
	if !date.After(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled date must be in the future")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanSchedule(ctx, actor, request); err != nil {
		return nil, err
	}
	if request.AgentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an agent must be assigned before scheduling")
	}
	if request.Status != enums.ServiceRequestStatusAssigned && request.Status != enums.ServiceRequestStatusScheduled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot schedule while request is %s", request.Status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.UpdateStatusGuarded(ctx, request.ID, request.Status, enums.ServiceRequestStatusScheduled,
			map[string]any{"scheduled_date": date})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scheduling request")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "request was modified concurrently")
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityServiceRequest,
			EntityID:    request.ID,
			ActionType:  enums.ActionScheduled,
			FromStatus:  ledger.Str(request.Status),
			ToStatus:    ledger.Str(enums.ServiceRequestStatusScheduled),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		}); err != nil {
			return err
		}
		if request.Type == enums.ServiceRequestTypeInstallation {
			updated := *request
			updated.Status = enums.ServiceRequestStatusScheduled
			updated.ScheduledDate = &date
			return s.sync.FromServiceRequest(ctx, tx, &updated, installsync.Actor{UserID: actor.UserID, Role: actor.Role})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, request.ID)
}

// UpdateStatus applies the transition guard table and, for INSTALLATION-typed
// requests, mirrors the new status onto the installation request in the same
// transaction.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, input UpdateStatusInput, actor authz.Actor) (*models.ServiceRequest, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Target))
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageServiceRequest(ctx, actor, request); err != nil {
		return nil, err
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
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityServiceRequest,
			EntityID:    request.ID,
			ActionType:  enums.ActionStatusChanged,
			FromStatus:  ledger.Str(request.Status),
			ToStatus:    ledger.Str(input.Target),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Comment:     input.Comment,
		}); err != nil {
			return err
		}
		if request.Type == enums.ServiceRequestTypeInstallation {
			updated := *request
			updated.Status = input.Target
			return s.sync.FromServiceRequest(ctx, tx, &updated, installsync.Actor{UserID: actor.UserID, Role: actor.Role})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, request.ID)
}

// checkTransition validates the requested move against the guard table and
// returns the column updates that ride along with the status flip.
func (s *service) checkTransition(ctx context.Context, request *models.ServiceRequest, input UpdateStatusInput) (map[string]any, error) {
	from, target := request.Status, input.Target
	updates := map[string]any{}

	switch {
	case target == enums.ServiceRequestStatusCancelled:
		if from.IsTerminal() || from == enums.ServiceRequestStatusCancelled {
			return nil, invalidTransition(from, target)
		}
		// cancellation discards collected evidence
		updates["before_images"] = dbtypes.StringList{}
		updates["after_images"] = dbtypes.StringList{}
		return updates, nil

	case from == enums.ServiceRequestStatusCancelled:
		switch target {
		case enums.ServiceRequestStatusAssigned:
			if request.AgentID == nil && input.AgentID == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "reopening to ASSIGNED requires an agent")
			}
			if input.AgentID != nil {
				updates["agent_id"] = *input.AgentID
			}
			return updates, nil
		case enums.ServiceRequestStatusScheduled:
			if request.AgentID == nil && input.AgentID == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "reopening to SCHEDULED requires an agent")
			}
			date := input.ScheduledDate
			if date == nil {
				date = request.ScheduledDate
			}
			if date == nil || !date.After(time.Now()) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "reopening to SCHEDULED requires a future date")
			}
			if input.AgentID != nil {
				updates["agent_id"] = *input.AgentID
			}
			updates["scheduled_date"] = *date
			return updates, nil
		default:
			return nil, invalidTransition(from, target)
		}

	case from == enums.ServiceRequestStatusCreated && target == enums.ServiceRequestStatusAssigned:
		if request.AgentID == nil && input.AgentID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment requires an agent id")
		}
		if input.AgentID != nil {
			updates["agent_id"] = *input.AgentID
		}
		return updates, nil

	case from == enums.ServiceRequestStatusAssigned && target == enums.ServiceRequestStatusScheduled:
		if request.AgentID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduling requires an assigned agent")
		}
		date := input.ScheduledDate
		if date == nil {
			date = request.ScheduledDate
		}
		if date == nil || !date.After(time.Now()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduling requires a future date")
		}
		updates["scheduled_date"] = *date
		return updates, nil

	case from == enums.ServiceRequestStatusScheduled && target == enums.ServiceRequestStatusInProgress:
		needsBefore := request.RequiresPayment || request.Type != enums.ServiceRequestTypeInstallation
		images := input.BeforeImages
		if len(images) == 0 {
			images = request.BeforeImages
		}
		if needsBefore && len(images) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "before images are required to start work")
		}
		if len(input.BeforeImages) > 0 {
			updates["before_images"] = dbtypes.StringList(input.BeforeImages)
		}
		return updates, nil

	case from == enums.ServiceRequestStatusInProgress && target == enums.ServiceRequestStatusPaymentPending:
		if !request.RequiresPayment {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "request does not require payment")
		}
		images := input.AfterImages
		if len(images) == 0 {
			images = request.AfterImages
		}
		if len(images) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "completion images are required")
		}
		if len(input.AfterImages) > 0 {
			updates["after_images"] = dbtypes.StringList(input.AfterImages)
		}
		return updates, nil

	case from == enums.ServiceRequestStatusInProgress && target == enums.ServiceRequestStatusCompleted:
		if request.Type == enums.ServiceRequestTypeInstallation {
			// installations settle through the payment flow
			return nil, invalidTransition(from, target)
		}
		if request.RequiresPayment {
			return nil, invalidTransition(from, target)
		}
		images := input.AfterImages
		if len(images) == 0 {
			images = request.AfterImages
		}
		if len(images) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "completion images are required")
		}
		if len(input.AfterImages) > 0 {
			updates["after_images"] = dbtypes.StringList(input.AfterImages)
		}
		updates["completed_date"] = time.Now().UTC()
		return updates, nil

	case from == enums.ServiceRequestStatusPaymentPending && target == enums.ServiceRequestStatusCompleted:
		if err := s.checkPaymentSettled(ctx, request); err != nil {
			return nil, err
		}
		updates["completed_date"] = time.Now().UTC()
		return updates, nil

	default:
		return nil, invalidTransition(from, target)
	}
}

// GeneratePaymentLink returns the open gateway order for a chargeable
// request, creating one on first call. Only repairs and maintenance carry
// their own charge; installation money moves through the installation flow.
func (s *service) GeneratePaymentLink(ctx context.Context, id uuid.UUID, actor authz.Actor) (*payments.Intent, error) {
	request, err := s.loadForSettlement(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.charges.GetOrCreateServiceChargeIntent(ctx, request)
}

// VerifyPayment records offline settlement proof for the request's open
// charge. The request itself is completed separately once the charge shows
// as settled.
func (s *service) VerifyPayment(ctx context.Context, id uuid.UUID, input VerifyChargeInput, actor authz.Actor) (*models.ServiceRequest, error) {
	if !input.Method.IsOffline() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offline verification accepts cash or UPI only")
	}
	if strings.TrimSpace(input.ReceiptImage) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a receipt image is required for offline settlement")
	}

	request, err := s.loadForSettlement(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.FindOpenForServiceRequest(ctx, request.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no open charge for this request")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading open charge")
	}

	receipt := strings.TrimSpace(input.ReceiptImage)
	err = s.charges.ConfirmServiceChargePayment(ctx, payment, request, payments.ConfirmInput{
		Method:       input.Method,
		CollectedBy:  input.CollectedBy,
		ReceiptImage: &receipt,
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, request.ID)
}

func (s *service) loadForSettlement(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.ServiceRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageServiceRequest(ctx, actor, request); err != nil {
		return nil, err
	}
	if request.Type == enums.ServiceRequestTypeInstallation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "installation charges settle through the installation flow")
	}
	if !request.RequiresPayment {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request does not require payment")
	}
	switch request.Status {
	case enums.ServiceRequestStatusInProgress, enums.ServiceRequestStatusPaymentPending:
		return request, nil
	case enums.ServiceRequestStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "request is already completed")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("charge cannot be settled while request is %s", request.Status))
	}
}

func (s *service) checkPaymentSettled(ctx context.Context, request *models.ServiceRequest) error {
	var err error
	if request.Type == enums.ServiceRequestTypeInstallation {
		if request.InstallationRequestID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "installation request link missing")
		}
		_, err = s.payments.FindCompletedForInstallation(ctx, *request.InstallationRequestID)
	} else {
		_, err = s.payments.FindCompletedForServiceRequest(ctx, request.ID)
	}
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodePaymentNotVerified, "no settled payment found for this request")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking payment settlement")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading service request")
	}
	return request, nil
}

func invalidTransition(from, to enums.ServiceRequestStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move from %s to %s", from, to))
}
