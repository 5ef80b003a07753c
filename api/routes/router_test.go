package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/installations"
	"github.com/aquaflowhq/aquaflow-backend/internal/installsync"
	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	"github.com/aquaflowhq/aquaflow-backend/internal/payments"
	"github.com/aquaflowhq/aquaflow-backend/internal/products"
	"github.com/aquaflowhq/aquaflow-backend/internal/roster"
	"github.com/aquaflowhq/aquaflow-backend/internal/servicerequests"
	"github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	pkgAuth "github.com/aquaflowhq/aquaflow-backend/pkg/auth"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/razorpay"
)

type stubGateway struct {
	orders        int
	subscriptions int
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
	return nil, nil
}

func (g *stubGateway) FetchSubscriptionInvoices(ctx context.Context, subscriptionID string) ([]razorpay.Invoice, error) {
	return nil, nil
}

type directTxRunner struct {
	db *gorm.DB
}

func (d *directTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

var routerDDL = []string{`
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
CREATE TABLE IF NOT EXISTS franchises (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  city TEXT,
  state TEXT,
  phone TEXT,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS franchise_agents (
  id TEXT PRIMARY KEY,
  agent_user_id TEXT NOT NULL,
  franchise_id TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  is_primary BOOLEAN NOT NULL DEFAULT FALSE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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

type routerEnv struct {
	handler   http.Handler
	deps      Deps
	db        *gorm.DB
	cfg       *config.Config
	product   *models.Product
	franchise *models.Franchise
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	for _, ddl := range routerDDL {
		require.NoError(t, db.Exec(ddl).Error)
	}

	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel})
	cfg := &config.Config{}
	cfg.App.Env = "dev"
	cfg.JWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "aquaflow", ExpirationMinutes: 15}

	rosterSvc, err := roster.NewService(roster.NewRepository(db))
	require.NoError(t, err)
	guard, err := authz.NewGuard(rosterSvc)
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	synchronizer, err := installsync.NewSynchronizer(ledgerSvc)
	require.NoError(t, err)
	notifier, err := notifications.NewService(notifications.NewRepository(db), logg)
	require.NoError(t, err)
	tx := &directTxRunner{db: db}
	paymentsSvc, err := payments.NewService(payments.NewRepository(db), &stubGateway{}, ledgerSvc, tx, logg)
	require.NoError(t, err)
	productsSvc, err := products.NewService(products.NewRepository(db), guard)
	require.NoError(t, err)
	subscriptionsRepo := subscriptions.NewRepository(db)
	subscriptionsSvc, err := subscriptions.NewService(subscriptionsRepo, guard, ledgerSvc, tx)
	require.NoError(t, err)
	serviceRequestsRepo := servicerequests.NewRepository(db)
	paymentsRepo := payments.NewRepository(db)
	serviceRequestsSvc, err := servicerequests.NewService(
		serviceRequestsRepo, guard, rosterSvc, ledgerSvc, synchronizer, paymentsRepo, paymentsSvc, subscriptionsRepo, tx)
	require.NoError(t, err)
	installationsSvc, err := installations.NewService(
		installations.NewRepository(db), guard, rosterSvc, products.NewRepository(db),
		paymentsSvc, subscriptionsRepo, serviceRequestsRepo, ledgerSvc, synchronizer,
		notifier, tx, logg, nil)
	require.NoError(t, err)

	deps := Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            fakePinger{},
		Redis:         fakePinger{},
		Guard:         guard,
		Products:      productsSvc,
		Installations: installationsSvc,
		Services:      serviceRequestsSvc,
		Subscriptions: subscriptionsSvc,
		SubsRepo:      subscriptionsRepo,
		Payments:      paymentsSvc,
		Notifications: notifier,
		Metrics:       prometheus.NewRegistry(),
	}
	handler := NewRouter(deps)

	product := &models.Product{
		ID:              uuid.New(),
		Name:            "AquaPure 500",
		MonthlyRent:     mustDecimal("499"),
		SecurityDeposit: mustDecimal("500"),
		BuyPrice:        mustDecimal("12999"),
		RentalEnabled:   true,
		PurchaseEnabled: true,
		IsActive:        true,
	}
	require.NoError(t, db.Create(product).Error)

	franchise := &models.Franchise{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		Name:        "AquaFlow North",
		IsActive:    true,
	}
	require.NoError(t, db.Create(franchise).Error)

	return &routerEnv{handler: handler, deps: deps, db: db, cfg: cfg, product: product, franchise: franchise}
}

func (e *routerEnv) token(t *testing.T, role enums.Role) string {
	return e.tokenFor(t, role, uuid.New())
}

func (e *routerEnv) tokenFor(t *testing.T, role enums.Role, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(e.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func (e *routerEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestRouterHealthAndMetrics(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterReadyReportsFailingDependency(t *testing.T) {
	env := newRouterEnv(t)

	deps := env.deps
	deps.DB = fakePinger{err: errors.New("db down")}
	broken := NewRouter(deps)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	broken.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouterPublicCatalog(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/api/public/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, env.product.ID, envelope.Data[0].ID)
}

func TestRouterRequiresAuthentication(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/installation-requests", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterAdminRoleGuard(t *testing.T) {
	env := newRouterEnv(t)

	body := map[string]any{
		"name":            "AquaPure Mini",
		"monthly_rent":    "299",
		"security_deposit": "300",
		"buy_price":       "7999",
		"rental_enabled":  true,
	}

	w := env.do(t, http.MethodPost, "/api/admin/v1/products", env.token(t, enums.RoleCustomer), body)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/v1/products", env.token(t, enums.RoleAdmin), body)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRouterInstallationSubmit(t *testing.T) {
	env := newRouterEnv(t)

	body := map[string]any{
		"product_id":   env.product.ID.String(),
		"franchise_id": env.franchise.ID.String(),
		"order_type":   string(enums.OrderTypeRental),
		"address":      "12 Lake Road",
	}
	w := env.do(t, http.MethodPost, "/api/v1/installation-requests", env.token(t, enums.RoleCustomer), body)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.InstallationRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, enums.InstallationStatusSubmitted, envelope.Data.Status)
}

func TestRouterSubscriptionPaymentConfirmScope(t *testing.T) {
	env := newRouterEnv(t)

	subscription := &models.Subscription{
		ID:                    uuid.New(),
		InstallationRequestID: uuid.New(),
		ConnectID:             "AQF-1001",
		CustomerID:            uuid.New(),
		ProductID:             env.product.ID,
		FranchiseID:           env.franchise.ID,
		MonthlyAmount:         mustDecimal("499"),
		DepositAmount:         mustDecimal("500"),
		CurrentPeriodStart:    time.Now().AddDate(0, -1, 0),
		CurrentPeriodEnd:      time.Now(),
		NextPaymentDate:       time.Now(),
		Status:                enums.SubscriptionStatusActive,
	}
	require.NoError(t, env.db.Create(subscription).Error)

	payment := &models.Payment{
		ID:             uuid.New(),
		Amount:         mustDecimal("499"),
		Type:           enums.PaymentTypeSubscription,
		Status:         enums.PaymentStatusPending,
		Method:         enums.PaymentMethodRazorpay,
		CustomerID:     subscription.CustomerID,
		SubscriptionID: &subscription.ID,
	}
	require.NoError(t, env.db.Create(payment).Error)

	body := map[string]any{
		"method":        "CASH",
		"receipt_image": "https://cdn.aquaflowhq.in/receipts/r-1001.jpg",
	}
	path := "/api/v1/payments/" + payment.ID.String() + "/confirm"

	// a franchise owner who does not own this subscription's franchise
	w := env.do(t, http.MethodPost, path, env.token(t, enums.RoleFranchiseOwner), body)
	require.Equal(t, http.StatusForbidden, w.Code)

	// an agent with no mapping to the franchise
	w = env.do(t, http.MethodPost, path, env.token(t, enums.RoleServiceAgent), body)
	require.Equal(t, http.StatusForbidden, w.Code)

	// the owning franchise owner settles the due
	w = env.do(t, http.MethodPost, path, env.tokenFor(t, enums.RoleFranchiseOwner, env.franchise.OwnerUserID), body)
	require.Equal(t, http.StatusOK, w.Code)
}

func mustDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}
