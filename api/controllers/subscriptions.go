package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	subsvc "github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

func ListMySubscriptions(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subscriptions, err := svc.ListForCustomer(r.Context(), actor.UserID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptions)
	}
}

func GetSubscription(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subscription, err := svc.GetByID(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscription)
	}
}

// GetSubscriptionByConnectID resolves the field-visible connect code.
func GetSubscriptionByConnectID(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		connectID := strings.TrimSpace(chi.URLParam(r, "connectId"))
		if connectID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "connect id is required"))
			return
		}
		subscription, err := svc.GetByConnectID(r.Context(), connectID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscription)
	}
}

func PauseSubscription(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(svc.Pause, logg)
}

func ResumeSubscription(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(svc.Resume, logg)
}

func TerminateSubscription(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(svc.Terminate, logg)
}

func subscriptionAction(
	action func(ctx context.Context, id uuid.UUID, actor authz.Actor) (*models.Subscription, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subscription, err := action(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscription)
	}
}
