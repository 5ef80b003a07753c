package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/api/validators"
	installsvc "github.com/aquaflowhq/aquaflow-backend/internal/installations"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type submitInstallationRequest struct {
	ProductID   string   `json:"product_id" validate:"required,uuid"`
	FranchiseID string   `json:"franchise_id" validate:"required,uuid"`
	OrderType   string   `json:"order_type" validate:"required"`
	Address     string   `json:"address" validate:"required"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

func SubmitInstallation(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitInstallationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderType, err := enums.ParseOrderType(strings.TrimSpace(payload.OrderType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type"))
			return
		}

		request, err := svc.Submit(r.Context(), installsvc.SubmitInput{
			ProductID:   uuid.MustParse(payload.ProductID),
			FranchiseID: uuid.MustParse(payload.FranchiseID),
			OrderType:   orderType,
			Address:     validators.SanitizeString(payload.Address, 500),
			Latitude:    payload.Latitude,
			Longitude:   payload.Longitude,
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

func GetInstallation(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.GetByID(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// ListMyInstallations returns the caller's own requests.
func ListMyInstallations(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requests, err := svc.ListForCustomer(r.Context(), actor.UserID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requests)
	}
}

type transitionInstallationRequest struct {
	Target        string     `json:"target" validate:"required"`
	TechnicianID  *string    `json:"technician_id,omitempty" validate:"omitempty,uuid"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
}

func TransitionInstallation(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionInstallationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseInstallationStatus(strings.TrimSpace(payload.Target))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		input := installsvc.TransitionInput{
			Target:        target,
			ScheduledDate: payload.ScheduledDate,
			Reason:        payload.Reason,
		}
		if payload.TechnicianID != nil {
			technicianID := uuid.MustParse(*payload.TechnicianID)
			input.TechnicianID = &technicianID
		}

		request, err := svc.Transition(r.Context(), id, input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func GenerateInstallationPaymentLink(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.GeneratePaymentLink(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"payment_id":      intent.Payment.ID,
			"amount":          intent.Amount,
			"order_id":        intent.OrderID,
			"plan_id":         intent.PlanID,
			"subscription_id": intent.SubscriptionID,
		})
	}
}

type verifyInstallationPaymentRequest struct {
	Method       string  `json:"method" validate:"required"`
	ReceiptImage string  `json:"receipt_image" validate:"required"`
	CollectedBy  *string `json:"collected_by,omitempty" validate:"omitempty,uuid"`
}

func VerifyInstallationPayment(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyInstallationPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.Method))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := installsvc.VerifyInput{
			Method:       method,
			ReceiptImage: payload.ReceiptImage,
		}
		if payload.CollectedBy != nil {
			collectedBy := uuid.MustParse(*payload.CollectedBy)
			input.CollectedBy = &collectedBy
		}

		request, err := svc.VerifyPayment(r.Context(), id, input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func RefreshInstallationPayment(svc installsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := parsePathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.RefreshPaymentStatus(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
