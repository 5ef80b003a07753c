package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquaflowhq/aquaflow-backend/api/controllers"
	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	installsvc "github.com/aquaflowhq/aquaflow-backend/internal/installations"
	notifsvc "github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	paysvc "github.com/aquaflowhq/aquaflow-backend/internal/payments"
	productsvc "github.com/aquaflowhq/aquaflow-backend/internal/products"
	srsvc "github.com/aquaflowhq/aquaflow-backend/internal/servicerequests"
	subsvc "github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP surface wires.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            pinger
	Redis         pinger
	Guard         *authz.Guard
	Products      productsvc.Service
	Installations installsvc.Service
	Services      srsvc.Service
	Subscriptions subsvc.Service
	SubsRepo      subsvc.Repository
	Payments      paysvc.Service
	Notifications notifsvc.Service
	Metrics       prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/installation-requests", func(r chi.Router) {
			r.Post("/", controllers.SubmitInstallation(deps.Installations, logg))
			r.Get("/", controllers.ListMyInstallations(deps.Installations, logg))
			r.Get("/{requestId}", controllers.GetInstallation(deps.Installations, logg))
			r.Post("/{requestId}/transition", controllers.TransitionInstallation(deps.Installations, logg))
			r.Post("/{requestId}/payment-link", controllers.GenerateInstallationPaymentLink(deps.Installations, logg))
			r.Post("/{requestId}/verify-payment", controllers.VerifyInstallationPayment(deps.Installations, logg))
			r.Post("/{requestId}/refresh-payment", controllers.RefreshInstallationPayment(deps.Installations, logg))
		})

		r.Route("/service-requests", func(r chi.Router) {
			r.Post("/", controllers.CreateServiceRequest(deps.Services, logg))
			r.Get("/", controllers.ListMyServiceRequests(deps.Services, logg))
			r.Get("/{requestId}", controllers.GetServiceRequest(deps.Services, logg))
			r.Post("/{requestId}/assign", controllers.AssignServiceRequestAgent(deps.Services, logg))
			r.With(middleware.RequireRole(logg, enums.RoleServiceAgent)).
				Post("/{requestId}/claim", controllers.ClaimServiceRequest(deps.Services, logg))
			r.Post("/{requestId}/schedule", controllers.ScheduleServiceRequest(deps.Services, logg))
			r.Post("/{requestId}/status", controllers.UpdateServiceRequestStatus(deps.Services, logg))
			r.Post("/{requestId}/payment-link", controllers.GenerateServiceRequestPaymentLink(deps.Services, logg))
			r.Post("/{requestId}/verify-payment", controllers.VerifyServiceRequestPayment(deps.Services, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.ListMySubscriptions(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.GetSubscription(deps.Subscriptions, logg))
			r.Get("/connect/{connectId}", controllers.GetSubscriptionByConnectID(deps.Subscriptions, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleFranchiseOwner)).
				Group(func(r chi.Router) {
					r.Post("/{subscriptionId}/pause", controllers.PauseSubscription(deps.Subscriptions, logg))
					r.Post("/{subscriptionId}/resume", controllers.ResumeSubscription(deps.Subscriptions, logg))
					r.Post("/{subscriptionId}/terminate", controllers.TerminateSubscription(deps.Subscriptions, logg))
				})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.ListMyPayments(deps.Payments.Repo(), logg))
			r.Post("/{paymentId}/confirm", controllers.ConfirmSubscriptionPayment(deps.Payments, deps.SubsRepo, deps.Guard, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Post("/products", controllers.CreateProduct(deps.Products, logg))
		r.Patch("/products/{productId}", controllers.UpdateProduct(deps.Products, logg))
	})

	return r
}
