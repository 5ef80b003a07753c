package installations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/installsync"
	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	"github.com/aquaflowhq/aquaflow-backend/internal/payments"
	"github.com/aquaflowhq/aquaflow-backend/internal/products"
	"github.com/aquaflowhq/aquaflow-backend/internal/servicerequests"
	"github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	dbtypes "github.com/aquaflowhq/aquaflow-backend/pkg/db/types"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/razorpay"
)

type fakeRoster struct {
	franchises map[uuid.UUID]*models.Franchise
	mappings   map[uuid.UUID][]uuid.UUID
}

func (f *fakeRoster) GetFranchise(ctx context.Context, id uuid.UUID) (*models.Franchise, error) {
	if franchise, ok := f.franchises[id]; ok {
		return franchise, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "franchise not found")
}

func (f *fakeRoster) OwnedFranchise(ctx context.Context, ownerUserID uuid.UUID) (*models.Franchise, error) {
	for _, franchise := range f.franchises {
		if franchise.OwnerUserID == ownerUserID && franchise.IsActive {
			return franchise, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active franchise for owner")
}

func (f *fakeRoster) AgentFranchiseMappings(ctx context.Context, agentUserID uuid.UUID) ([]models.FranchiseAgent, error) {
	var out []models.FranchiseAgent
	for _, franchiseID := range f.mappings[agentUserID] {
		out = append(out, models.FranchiseAgent{AgentUserID: agentUserID, FranchiseID: franchiseID})
	}
	return out, nil
}

func (f *fakeRoster) AgentInFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error) {
	for _, mapped := range f.mappings[agentUserID] {
		if mapped == franchiseID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoster) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

type stubGateway struct {
	orders        int
	subscriptions int
	captured      map[string][]razorpay.GatewayPayment
	invoices      map[string][]razorpay.Invoice
}

func (g *stubGateway) CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error) {
	g.orders++
	return &razorpay.Order{ID: fmt.Sprintf("order_%03d", g.orders), Amount: params.Amount, Status: "created"}, nil
}

func (g *stubGateway) GetOrCreatePlan(ctx context.Context, params razorpay.PlanParams) (*razorpay.Plan, error) {
	return &razorpay.Plan{ID: "plan_" + params.Key, Key: params.Key, Amount: params.Amount}, nil
}

func (g *stubGateway) CreateSubscription(ctx context.Context, params razorpay.SubscriptionParams) (*razorpay.Subscription, error) {
	g.subscriptions++
	return &razorpay.Subscription{ID: fmt.Sprintf("sub_%03d", g.subscriptions), PlanID: params.PlanID, Status: "created"}, nil
}

func (g *stubGateway) FetchPaymentsForOrder(ctx context.Context, orderID string) ([]razorpay.GatewayPayment, error) {
	return g.captured[orderID], nil
}

func (g *stubGateway) FetchSubscriptionInvoices(ctx context.Context, subscriptionID string) ([]razorpay.Invoice, error) {
	return g.invoices[subscriptionID], nil
}

type directTxRunner struct {
	db *gorm.DB
}

func (d *directTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

func setupInstallationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddls := []string{`
CREATE TABLE IF NOT EXISTS installation_requests (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  franchise_id TEXT NOT NULL,
  order_type TEXT NOT NULL,
  technician_id TEXT,
  address TEXT NOT NULL DEFAULT '',
  latitude REAL,
  longitude REAL,
  scheduled_date DATETIME,
  completed_date DATETIME,
  razorpay_order_id TEXT,
  razorpay_plan_id TEXT,
  razorpay_subscription_id TEXT,
  connect_id TEXT UNIQUE,
  rejection_reason TEXT,
  status TEXT NOT NULL DEFAULT 'SUBMITTED',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS service_requests (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  installation_request_id TEXT,
  subscription_id TEXT,
  customer_id TEXT NOT NULL,
  franchise_id TEXT NOT NULL,
  agent_id TEXT,
  description TEXT,
  scheduled_date DATETIME,
  completed_date DATETIME,
  before_images TEXT,
  after_images TEXT,
  requires_payment BOOLEAN NOT NULL DEFAULT FALSE,
  payment_amount NUMERIC,
  status TEXT NOT NULL DEFAULT 'CREATED',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  installation_request_id TEXT NOT NULL,
  connect_id TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  franchise_id TEXT NOT NULL,
  razorpay_subscription_id TEXT,
  monthly_amount NUMERIC NOT NULL,
  deposit_amount NUMERIC NOT NULL,
  current_period_start DATETIME NOT NULL,
  current_period_end DATETIME NOT NULL,
  next_payment_date DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT uniq_subscriptions_installation_request UNIQUE (installation_request_id)
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  amount NUMERIC NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  method TEXT NOT NULL DEFAULT 'RAZORPAY',
  customer_id TEXT NOT NULL,
  installation_request_id TEXT,
  subscription_id TEXT,
  service_request_id TEXT,
  razorpay_order_id TEXT,
  razorpay_payment_id TEXT,
  razorpay_subscription_id TEXT,
  collected_by TEXT,
  receipt_image TEXT,
  due_date DATETIME,
  paid_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_open_installation_intent
  ON payments(installation_request_id) WHERE status = 'PENDING' AND installation_request_id IS NOT NULL;`, `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  monthly_rent NUMERIC NOT NULL,
  security_deposit NUMERIC NOT NULL,
  buy_price NUMERIC NOT NULL,
  rental_enabled BOOLEAN NOT NULL DEFAULT TRUE,
  purchase_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS action_histories (
  id TEXT PRIMARY KEY,
  entity_type TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  action_type TEXT NOT NULL,
  from_status TEXT,
  to_status TEXT,
  actor_user_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  comment TEXT,
  metadata TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT,
  data TEXT,
  read_at DATETIME,
  created_at DATETIME
);`}
	for _, ddl := range ddls {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

type testEnv struct {
	db       *gorm.DB
	svc      Service
	gateway  *stubGateway
	roster   *fakeRoster
	product  *models.Product
	customer uuid.UUID
	admin    authz.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupInstallationsTestDB(t)
	gateway := &stubGateway{}
	roster := &fakeRoster{
		franchises: map[uuid.UUID]*models.Franchise{},
		mappings:   map[uuid.UUID][]uuid.UUID{},
	}
	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel})

	guard, err := authz.NewGuard(roster)
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	synchronizer, err := installsync.NewSynchronizer(ledgerSvc)
	require.NoError(t, err)
	notifier, err := notifications.NewService(notifications.NewRepository(db), logg)
	require.NoError(t, err)
	paymentsSvc, err := payments.NewService(payments.NewRepository(db), gateway, ledgerSvc, &directTxRunner{db: db}, logg)
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		guard,
		roster,
		products.NewRepository(db),
		paymentsSvc,
		subscriptions.NewRepository(db),
		servicerequests.NewRepository(db),
		ledgerSvc,
		synchronizer,
		notifier,
		&directTxRunner{db: db},
		logg,
		nil,
	)
	require.NoError(t, err)

	product := &models.Product{
		ID:              uuid.New(),
		Name:            "AquaPure 500",
		MonthlyRent:     decimal.NewFromInt(499),
		SecurityDeposit: decimal.NewFromInt(500),
		BuyPrice:        decimal.NewFromInt(12999),
		RentalEnabled:   true,
		PurchaseEnabled: true,
		IsActive:        true,
	}
	require.NoError(t, db.Create(product).Error)

	return &testEnv{
		db:       db,
		svc:      svc,
		gateway:  gateway,
		roster:   roster,
		product:  product,
		customer: uuid.New(),
		admin:    authz.Actor{UserID: uuid.New(), Role: enums.RoleAdmin},
	}
}

func (e *testEnv) addFranchise(t *testing.T, active bool) *models.Franchise {
	t.Helper()
	franchise := &models.Franchise{
		ID:          uuid.New(),
		Name:        "AquaFlow North",
		OwnerUserID: uuid.New(),
		IsActive:    active,
	}
	e.roster.franchises[franchise.ID] = franchise
	return franchise
}

func (e *testEnv) submit(t *testing.T, franchise *models.Franchise, orderType enums.OrderType) *models.InstallationRequest {
	t.Helper()
	request, err := e.svc.Submit(context.Background(), SubmitInput{
		ProductID:   e.product.ID,
		FranchiseID: franchise.ID,
		OrderType:   orderType,
		Address:     "12 Lake Road",
	}, authz.Actor{UserID: e.customer, Role: enums.RoleCustomer})
	require.NoError(t, err)
	return request
}

// driveToInProgress walks a freshly submitted request to
// INSTALLATION_IN_PROGRESS with a scheduled technician.
func (e *testEnv) driveToInProgress(t *testing.T, request *models.InstallationRequest) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	_, err := e.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusFranchiseContacted,
	}, e.admin)
	require.NoError(t, err)

	technicianID := uuid.New()
	date := time.Now().Add(48 * time.Hour)
	_, err = e.svc.Transition(ctx, request.ID, TransitionInput{
		Target:        enums.InstallationStatusScheduled,
		TechnicianID:  &technicianID,
		ScheduledDate: &date,
	}, e.admin)
	require.NoError(t, err)

	_, err = e.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusInProgress,
	}, e.admin)
	require.NoError(t, err)
	return technicianID
}

func (e *testEnv) addCompletionImage(t *testing.T, requestID uuid.UUID) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.ServiceRequest{}).
		Where("type = ? AND installation_request_id = ?", enums.ServiceRequestTypeInstallation, requestID).
		Update("after_images", dbtypes.StringList{"https://cdn.example.com/done.jpg"}).Error)
}

func TestService_SubmitValidatesProductAndFranchise(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)

	request := env.submit(t, franchise, enums.OrderTypeRental)
	assert.Equal(t, enums.InstallationStatusSubmitted, request.Status)

	// order type disabled on the product
	require.NoError(t, env.db.Model(&models.Product{}).
		Where("id = ?", env.product.ID).Update("purchase_enabled", false).Error)
	_, err := env.svc.Submit(ctx, SubmitInput{
		ProductID:   env.product.ID,
		FranchiseID: franchise.ID,
		OrderType:   enums.OrderTypePurchase,
		Address:     "12 Lake Road",
	}, authz.Actor{UserID: env.customer, Role: enums.RoleCustomer})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "product not available")

	inactive := env.addFranchise(t, false)
	_, err = env.svc.Submit(ctx, SubmitInput{
		ProductID:   env.product.ID,
		FranchiseID: inactive.ID,
		OrderType:   enums.OrderTypeRental,
		Address:     "12 Lake Road",
	}, authz.Actor{UserID: env.customer, Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_TransitionSchedulingCreatesMirror(t *testing.T) {
	env := newTestEnv(t)
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	technicianID := env.driveToInProgress(t, request)

	var mirror models.ServiceRequest
	require.NoError(t, env.db.
		Where("type = ? AND installation_request_id = ?", enums.ServiceRequestTypeInstallation, request.ID).
		First(&mirror).Error)
	assert.Equal(t, enums.ServiceRequestStatusInProgress, mirror.Status)
	require.NotNil(t, mirror.AgentID)
	assert.Equal(t, technicianID, *mirror.AgentID)
}

func TestService_TransitionRequiresTechnicianAndFutureDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)

	_, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusFranchiseContacted,
	}, env.admin)
	require.NoError(t, err)

	_, err = env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusScheduled,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	technicianID := uuid.New()
	past := time.Now().Add(-time.Hour)
	_, err = env.svc.Transition(ctx, request.ID, TransitionInput{
		Target:        enums.InstallationStatusScheduled,
		TechnicianID:  &technicianID,
		ScheduledDate: &past,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_TransitionNeverReachesCompleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	env.driveToInProgress(t, request)

	_, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusCompleted,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestService_TransitionNegativeGrid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)

	cases := []struct {
		from   enums.InstallationStatus
		target enums.InstallationStatus
	}{
		{enums.InstallationStatusSubmitted, enums.InstallationStatusScheduled},
		{enums.InstallationStatusSubmitted, enums.InstallationStatusInProgress},
		{enums.InstallationStatusSubmitted, enums.InstallationStatusCancelled},
		{enums.InstallationStatusFranchiseContacted, enums.InstallationStatusInProgress},
		{enums.InstallationStatusScheduled, enums.InstallationStatusPaymentPending},
		{enums.InstallationStatusRejected, enums.InstallationStatusFranchiseContacted},
		{enums.InstallationStatusCompleted, enums.InstallationStatusCancelled},
	}
	for _, tc := range cases {
		request := env.submit(t, franchise, enums.OrderTypeRental)
		require.NoError(t, env.db.Model(&models.InstallationRequest{}).
			Where("id = ?", request.ID).Update("status", tc.from).Error)
		_, err := env.svc.Transition(ctx, request.ID, TransitionInput{Target: tc.target}, env.admin)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict),
			"%s to %s should be rejected, got %v", tc.from, tc.target, err)
	}
}

func TestService_RejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)

	_, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusRejected,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	reason := "out of coverage area"
	updated, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusRejected,
		Reason: &reason,
	}, env.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.InstallationStatusRejected, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, reason, *updated.RejectionReason)
}

func TestService_PaymentPendingRequiresCompletionImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	env.driveToInProgress(t, request)

	_, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusPaymentPending,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	env.addCompletionImage(t, request.ID)
	updated, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusPaymentPending,
	}, env.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.InstallationStatusPaymentPending, updated.Status)
}

func TestService_GeneratePaymentLinkIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	env.driveToInProgress(t, request)

	first, err := env.svc.GeneratePaymentLink(ctx, request.ID, env.admin)
	require.NoError(t, err)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(500)), "deposit amount")
	assert.NotEmpty(t, first.SubscriptionID)

	second, err := env.svc.GeneratePaymentLink(ctx, request.ID, env.admin)
	require.NoError(t, err)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
	assert.Equal(t, 1, env.gateway.subscriptions, "no second gateway intent")

	got, err := env.svc.GetByID(ctx, request.ID, env.admin)
	require.NoError(t, err)
	require.NotNil(t, got.RazorpaySubscriptionID)
	assert.Equal(t, first.SubscriptionID, *got.RazorpaySubscriptionID)
}

func TestService_GeneratePaymentLinkRejectsEarlyStatuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)

	_, err := env.svc.GeneratePaymentLink(ctx, request.ID, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestService_RentalCompletionScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	technicianID := env.driveToInProgress(t, request)
	env.addCompletionImage(t, request.ID)

	intent, err := env.svc.GeneratePaymentLink(ctx, request.ID, env.admin)
	require.NoError(t, err)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(500)))

	completed, err := env.svc.VerifyPayment(ctx, request.ID, VerifyInput{
		Method:       enums.PaymentMethodCash,
		ReceiptImage: "https://cdn.example.com/receipt.jpg",
		CollectedBy:  &technicianID,
	}, env.admin)
	require.NoError(t, err)

	assert.Equal(t, enums.InstallationStatusCompleted, completed.Status)
	require.NotNil(t, completed.ConnectID)
	require.NotNil(t, completed.CompletedDate)

	var subs []models.Subscription
	require.NoError(t, env.db.Where("installation_request_id = ?", request.ID).Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].DepositAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, *completed.ConnectID, subs[0].ConnectID)
	assert.Equal(t, enums.SubscriptionStatusActive, subs[0].Status)

	var paid []models.Payment
	require.NoError(t, env.db.
		Where("installation_request_id = ? AND status = ?", request.ID, enums.PaymentStatusCompleted).
		Find(&paid).Error)
	require.Len(t, paid, 1)
	assert.Equal(t, enums.PaymentTypeDeposit, paid[0].Type)
	assert.Equal(t, enums.PaymentMethodCash, paid[0].Method)

	var mirror models.ServiceRequest
	require.NoError(t, env.db.
		Where("type = ? AND installation_request_id = ?", enums.ServiceRequestTypeInstallation, request.ID).
		First(&mirror).Error)
	assert.Equal(t, enums.ServiceRequestStatusCompleted, mirror.Status)

	// a second verification attempt loses the race
	_, err = env.svc.VerifyPayment(ctx, request.ID, VerifyInput{
		Method:       enums.PaymentMethodCash,
		ReceiptImage: "https://cdn.example.com/receipt.jpg",
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestService_PurchaseCompletionNeverCreatesSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypePurchase)
	env.driveToInProgress(t, request)
	env.addCompletionImage(t, request.ID)

	intent, err := env.svc.GeneratePaymentLink(ctx, request.ID, env.admin)
	require.NoError(t, err)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(12999)), "buy price")
	assert.NotEmpty(t, intent.OrderID)

	env.gateway.captured = map[string][]razorpay.GatewayPayment{
		intent.OrderID: {{ID: "pay_001", OrderID: intent.OrderID, Amount: intent.Amount, Status: "captured", Captured: true}},
	}
	completed, err := env.svc.RefreshPaymentStatus(ctx, request.ID, env.admin)
	require.NoError(t, err)

	assert.Equal(t, enums.InstallationStatusCompleted, completed.Status)
	assert.Nil(t, completed.ConnectID)

	var count int64
	require.NoError(t, env.db.Model(&models.Subscription{}).
		Where("installation_request_id = ?", request.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_RefreshBeforeSettlementIsNotVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypePurchase)
	env.driveToInProgress(t, request)

	_, err := env.svc.GeneratePaymentLink(ctx, request.ID, env.admin)
	require.NoError(t, err)

	_, err = env.svc.RefreshPaymentStatus(ctx, request.ID, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentNotVerified))

	got, err := env.svc.GetByID(ctx, request.ID, env.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.InstallationStatusInProgress, got.Status)
}

func TestService_VerifyPaymentRequiresOfflineEvidence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	env.driveToInProgress(t, request)

	_, err := env.svc.VerifyPayment(ctx, request.ID, VerifyInput{
		Method: enums.PaymentMethodRazorpay,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.svc.VerifyPayment(ctx, request.ID, VerifyInput{
		Method: enums.PaymentMethodCash,
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "receipt required")

	_, err = env.svc.VerifyPayment(ctx, request.ID, VerifyInput{
		Method:       enums.PaymentMethodCash,
		ReceiptImage: "https://cdn.example.com/receipt.jpg",
	}, env.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "no open intent yet")
}

func TestService_CancelAndReopen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)

	_, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusFranchiseContacted,
	}, env.admin)
	require.NoError(t, err)

	cancelled, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusCancelled,
	}, env.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.InstallationStatusCancelled, cancelled.Status)

	reopened, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusFranchiseContacted,
	}, env.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.InstallationStatusFranchiseContacted, reopened.Status)
}

func TestService_CustomerMayOnlyCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	franchise := env.addFranchise(t, true)
	request := env.submit(t, franchise, enums.OrderTypeRental)
	customer := authz.Actor{UserID: env.customer, Role: enums.RoleCustomer}

	_, err := env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusFranchiseContacted,
	}, customer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	// another customer cannot touch the request at all
	_, err = env.svc.Transition(ctx, request.ID, TransitionInput{
		Target: enums.InstallationStatusCancelled,
	}, authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
