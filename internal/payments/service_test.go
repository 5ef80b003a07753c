package payments

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

	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/razorpay"
)

type stubGateway struct {
	orders        int
	plans         int
	subscriptions int
	captured      map[string][]razorpay.GatewayPayment
	invoices      map[string][]razorpay.Invoice
	fail          error
}

func (g *stubGateway) CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	g.orders++
	return &razorpay.Order{
		ID:     fmt.Sprintf("order_%03d", g.orders),
		Amount: params.Amount,
		Status: "created",
	}, nil
}

func (g *stubGateway) GetOrCreatePlan(ctx context.Context, params razorpay.PlanParams) (*razorpay.Plan, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	g.plans++
	return &razorpay.Plan{ID: "plan_" + params.Key, Key: params.Key, Amount: params.Amount}, nil
}

func (g *stubGateway) CreateSubscription(ctx context.Context, params razorpay.SubscriptionParams) (*razorpay.Subscription, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	g.subscriptions++
	return &razorpay.Subscription{
		ID:     fmt.Sprintf("sub_%03d", g.subscriptions),
		PlanID: params.PlanID,
		Status: "created",
	}, nil
}

func (g *stubGateway) FetchPaymentsForOrder(ctx context.Context, orderID string) ([]razorpay.GatewayPayment, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	return g.captured[orderID], nil
}

func (g *stubGateway) FetchSubscriptionInvoices(ctx context.Context, subscriptionID string) ([]razorpay.Invoice, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	return g.invoices[subscriptionID], nil
}

type directTxRunner struct {
	db *gorm.DB
}

func (d *directTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	payments := `
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
);`
	openIntentIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_open_installation_intent
  ON payments(installation_request_id) WHERE status = 'PENDING' AND installation_request_id IS NOT NULL;`
	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  installation_request_id TEXT NOT NULL UNIQUE,
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
  updated_at DATETIME
);`
	actionHistories := `
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
);`
	for _, ddl := range []string{payments, openIntentIndex, subscriptions, actionHistories} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newPaymentsService(t *testing.T, db *gorm.DB, gateway Gateway) Service {
	t.Helper()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), gateway, ledgerSvc, &directTxRunner{db: db},
		logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	require.NoError(t, err)
	return svc
}

func rentalRequest() (*models.InstallationRequest, *models.Product) {
	request := &models.InstallationRequest{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		CustomerID:  uuid.New(),
		FranchiseID: uuid.New(),
		OrderType:   enums.OrderTypeRental,
		Status:      enums.InstallationStatusInProgress,
	}
	product := &models.Product{
		ID:              request.ProductID,
		Name:            "AquaPure 500",
		MonthlyRent:     decimal.NewFromInt(499),
		SecurityDeposit: decimal.NewFromInt(500),
		BuyPrice:        decimal.NewFromInt(12999),
		RentalEnabled:   true,
		IsActive:        true,
	}
	return request, product
}

func TestService_GetOrCreateIntentPurchase(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gateway := &stubGateway{}
	svc := newPaymentsService(t, db, gateway)
	ctx := context.Background()

	request, product := rentalRequest()
	request.OrderType = enums.OrderTypePurchase
	product.PurchaseEnabled = true

	intent, err := svc.GetOrCreateIntent(ctx, request, product)
	require.NoError(t, err)
	assert.Equal(t, "order_001", intent.OrderID)
	assert.True(t, intent.Amount.Equal(product.BuyPrice))
	assert.Equal(t, enums.PaymentTypePurchase, intent.Payment.Type)
	assert.Equal(t, 1, gateway.orders)
}

func TestService_GetOrCreateIntentRental(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gateway := &stubGateway{}
	svc := newPaymentsService(t, db, gateway)
	ctx := context.Background()

	request, product := rentalRequest()

	intent, err := svc.GetOrCreateIntent(ctx, request, product)
	require.NoError(t, err)
	assert.Equal(t, "sub_001", intent.SubscriptionID)
	assert.NotEmpty(t, intent.PlanID)
	assert.True(t, intent.Amount.Equal(product.SecurityDeposit))
	assert.Equal(t, enums.PaymentTypeDeposit, intent.Payment.Type)
	assert.Equal(t, 1, gateway.plans)
	assert.Equal(t, 1, gateway.subscriptions)
}

func TestService_GetOrCreateIntentIsIdempotent(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gateway := &stubGateway{}
	svc := newPaymentsService(t, db, gateway)
	ctx := context.Background()

	request, product := rentalRequest()

	first, err := svc.GetOrCreateIntent(ctx, request, product)
	require.NoError(t, err)
	second, err := svc.GetOrCreateIntent(ctx, request, product)
	require.NoError(t, err)

	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
	assert.Equal(t, 1, gateway.subscriptions, "no second gateway intent")

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("installation_request_id = ?", request.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestService_GetOrCreateIntentGatewayFailureLeavesNoRow(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gateway := &stubGateway{fail: pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway timed out")}
	svc := newPaymentsService(t, db, gateway)
	ctx := context.Background()

	request, product := rentalRequest()
	_, err := svc.GetOrCreateIntent(ctx, request, product)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable))

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_CheckGatewaySettlement(t *testing.T) {
	db := setupPaymentsTestDB(t)
	orderID := "order_abc"
	gateway := &stubGateway{
		captured: map[string][]razorpay.GatewayPayment{
			orderID: {
				{ID: "pay_failed", OrderID: orderID, Status: "failed", Captured: false},
				{ID: "pay_ok", OrderID: orderID, Amount: decimal.NewFromInt(12999), Status: "captured", Captured: true},
			},
		},
	}
	svc := newPaymentsService(t, db, gateway)
	ctx := context.Background()

	payment := &models.Payment{
		ID:              uuid.New(),
		Method:          enums.PaymentMethodRazorpay,
		RazorpayOrderID: &orderID,
	}
	settlement, err := svc.CheckGatewaySettlement(ctx, payment)
	require.NoError(t, err)
	require.NotNil(t, settlement)
	assert.Equal(t, "pay_ok", settlement.GatewayPaymentID)

	empty := "order_empty"
	payment.RazorpayOrderID = &empty
	settlement, err = svc.CheckGatewaySettlement(ctx, payment)
	require.NoError(t, err)
	assert.Nil(t, settlement)
}

func TestService_GenerateMonthlyDueIsIdempotentPerPeriod(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &stubGateway{})
	ctx := context.Background()
	now := time.Now().UTC()

	subscription := &models.Subscription{
		ID:                    uuid.New(),
		InstallationRequestID: uuid.New(),
		ConnectID:             "AQF-TEST01",
		CustomerID:            uuid.New(),
		ProductID:             uuid.New(),
		FranchiseID:           uuid.New(),
		MonthlyAmount:         decimal.NewFromInt(499),
		DepositAmount:         decimal.NewFromInt(500),
		CurrentPeriodStart:    now.AddDate(0, -1, 0),
		CurrentPeriodEnd:      now,
		NextPaymentDate:       now,
		Status:                enums.SubscriptionStatusActive,
	}
	require.NoError(t, db.Create(subscription).Error)

	created, err := svc.GenerateMonthlyDue(ctx, subscription)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.GenerateMonthlyDue(ctx, subscription)
	require.NoError(t, err)
	assert.False(t, created, "second call within period creates nothing")

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("subscription_id = ?", subscription.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestService_ConfirmSubscriptionPaymentAdvancesPeriod(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &stubGateway{})
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	subscription := &models.Subscription{
		ID:                    uuid.New(),
		InstallationRequestID: uuid.New(),
		ConnectID:             "AQF-TEST02",
		CustomerID:            uuid.New(),
		ProductID:             uuid.New(),
		FranchiseID:           uuid.New(),
		MonthlyAmount:         decimal.NewFromInt(499),
		DepositAmount:         decimal.NewFromInt(500),
		CurrentPeriodStart:    now.AddDate(0, -1, 0),
		CurrentPeriodEnd:      now,
		NextPaymentDate:       now,
		Status:                enums.SubscriptionStatusActive,
	}
	require.NoError(t, db.Create(subscription).Error)

	payment := &models.Payment{
		ID:             uuid.New(),
		Amount:         subscription.MonthlyAmount,
		Type:           enums.PaymentTypeSubscription,
		Status:         enums.PaymentStatusPending,
		Method:         enums.PaymentMethodRazorpay,
		CustomerID:     subscription.CustomerID,
		SubscriptionID: &subscription.ID,
	}
	require.NoError(t, db.Create(payment).Error)

	agentID := uuid.New()
	receipt := "https://cdn.example.com/receipts/123.jpg"
	err := svc.ConfirmSubscriptionPayment(ctx, payment, subscription, ConfirmInput{
		Method:       enums.PaymentMethodCash,
		CollectedBy:  &agentID,
		ReceiptImage: &receipt,
		ActorUserID:  agentID,
		ActorRole:    enums.RoleServiceAgent,
	})
	require.NoError(t, err)

	var gotPayment models.Payment
	require.NoError(t, db.First(&gotPayment, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, gotPayment.Status)
	assert.Equal(t, enums.PaymentMethodCash, gotPayment.Method)
	require.NotNil(t, gotPayment.PaidDate)

	var gotSub models.Subscription
	require.NoError(t, db.First(&gotSub, "id = ?", subscription.ID).Error)
	assert.WithinDuration(t, now.AddDate(0, 1, 0), gotSub.NextPaymentDate, time.Minute)
	assert.WithinDuration(t, now, gotSub.CurrentPeriodStart, time.Minute)

	// second confirm loses the guard
	err = svc.ConfirmSubscriptionPayment(ctx, payment, subscription, ConfirmInput{
		Method:       enums.PaymentMethodCash,
		CollectedBy:  &agentID,
		ReceiptImage: &receipt,
		ActorUserID:  agentID,
		ActorRole:    enums.RoleServiceAgent,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestService_ConfirmSubscriptionPaymentRequiresEvidence(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &stubGateway{})
	ctx := context.Background()

	subscription := &models.Subscription{ID: uuid.New()}
	payment := &models.Payment{ID: uuid.New(), SubscriptionID: &subscription.ID}

	err := svc.ConfirmSubscriptionPayment(ctx, payment, subscription, ConfirmInput{
		Method:      enums.PaymentMethodCash,
		ActorUserID: uuid.New(),
		ActorRole:   enums.RoleServiceAgent,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.ConfirmSubscriptionPayment(ctx, payment, subscription, ConfirmInput{
		Method:      enums.PaymentMethodRazorpay,
		ActorUserID: uuid.New(),
		ActorRole:   enums.RoleAdmin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentNotVerified))
}

func chargeableRepair() *models.ServiceRequest {
	amount := decimal.NewFromInt(450)
	subID := uuid.New()
	return &models.ServiceRequest{
		ID:              uuid.New(),
		Type:            enums.ServiceRequestTypeRepair,
		SubscriptionID:  &subID,
		CustomerID:      uuid.New(),
		FranchiseID:     uuid.New(),
		Status:          enums.ServiceRequestStatusPaymentPending,
		RequiresPayment: true,
		PaymentAmount:   &amount,
	}
}

func TestService_GetOrCreateServiceChargeIntent(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gateway := &stubGateway{}
	svc := newPaymentsService(t, db, gateway)
	ctx := context.Background()

	request := chargeableRepair()

	intent, err := svc.GetOrCreateServiceChargeIntent(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, "order_001", intent.OrderID)
	assert.True(t, intent.Amount.Equal(*request.PaymentAmount))
	assert.Equal(t, enums.PaymentTypeServiceCharge, intent.Payment.Type)
	require.NotNil(t, intent.Payment.ServiceRequestID)
	assert.Equal(t, request.ID, *intent.Payment.ServiceRequestID)

	second, err := svc.GetOrCreateServiceChargeIntent(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, intent.Payment.ID, second.Payment.ID)
	assert.Equal(t, 1, gateway.orders, "no second gateway order")

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("service_request_id = ?", request.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestService_GetOrCreateServiceChargeIntentRejectsUnchargedWork(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &stubGateway{})
	ctx := context.Background()

	request := chargeableRepair()
	request.RequiresPayment = false

	_, err := svc.GetOrCreateServiceChargeIntent(ctx, request)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_ConfirmServiceChargePaymentOffline(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &stubGateway{})
	ctx := context.Background()

	request := chargeableRepair()
	intent, err := svc.GetOrCreateServiceChargeIntent(ctx, request)
	require.NoError(t, err)

	receipt := "https://cdn.example.com/receipt.jpg"
	collectedBy := uuid.New()
	err = svc.ConfirmServiceChargePayment(ctx, intent.Payment, request, ConfirmInput{
		Method:       enums.PaymentMethodCash,
		ReceiptImage: &receipt,
		CollectedBy:  &collectedBy,
		ActorUserID:  collectedBy,
		ActorRole:    enums.RoleServiceAgent,
	})
	require.NoError(t, err)

	var settled models.Payment
	require.NoError(t, db.First(&settled, "id = ?", intent.Payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, settled.Status)
	assert.Equal(t, enums.PaymentMethodCash, settled.Method)
	require.NotNil(t, settled.PaidDate)

	// a second settle loses the completion guard
	err = svc.ConfirmServiceChargePayment(ctx, intent.Payment, request, ConfirmInput{
		Method:       enums.PaymentMethodCash,
		ReceiptImage: &receipt,
		ActorUserID:  collectedBy,
		ActorRole:    enums.RoleServiceAgent,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestService_ConfirmServiceChargePaymentRequiresEvidence(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &stubGateway{})
	ctx := context.Background()

	request := chargeableRepair()
	intent, err := svc.GetOrCreateServiceChargeIntent(ctx, request)
	require.NoError(t, err)

	err = svc.ConfirmServiceChargePayment(ctx, intent.Payment, request, ConfirmInput{
		Method: enums.PaymentMethodCash,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.ConfirmServiceChargePayment(ctx, intent.Payment, request, ConfirmInput{
		Method: enums.PaymentMethodRazorpay,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentNotVerified))

	other := chargeableRepair()
	err = svc.ConfirmServiceChargePayment(ctx, intent.Payment, other, ConfirmInput{
		Method: enums.PaymentMethodRazorpay,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
