package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/api/validators"
	srsvc "github.com/aquaflowhq/aquaflow-backend/internal/servicerequests"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type createServiceRequestRequest struct {
	Type            string           `json:"type" validate:"required"`
	SubscriptionID  string           `json:"subscription_id" validate:"required,uuid"`
	Description     string           `json:"description" validate:"required"`
	RequiresPayment bool             `json:"requires_payment"`
	PaymentAmount   *decimal.Decimal `json:"payment_amount,omitempty"`
}

func CreateServiceRequest(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createServiceRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestType, err := enums.ParseServiceRequestType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request type"))
			return
		}

		request, err := svc.Create(r.Context(), srsvc.CreateInput{
			Type:            requestType,
			SubscriptionID:  uuid.MustParse(payload.SubscriptionID),
			Description:     validators.SanitizeString(payload.Description, 2000),
			RequiresPayment: payload.RequiresPayment,
			PaymentAmount:   payload.PaymentAmount,
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

func GetServiceRequest(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

func ListMyServiceRequests(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

type assignAgentRequest struct {
	AgentID string `json:"agent_id" validate:"required,uuid"`
}

func AssignServiceRequestAgent(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload assignAgentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.AssignAgent(r.Context(), id, uuid.MustParse(payload.AgentID), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// ClaimServiceRequest lets a mapped agent take unassigned work.
func ClaimServiceRequest(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		request, err := svc.AssignSelf(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type scheduleServiceRequestRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
}

func ScheduleServiceRequest(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload scheduleServiceRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Schedule(r.Context(), id, payload.ScheduledDate, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type updateServiceRequestStatusRequest struct {
	Target        string     `json:"target" validate:"required"`
	AgentID       *string    `json:"agent_id,omitempty" validate:"omitempty,uuid"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	BeforeImages  []string   `json:"before_images,omitempty"`
	AfterImages   []string   `json:"after_images,omitempty"`
	Comment       *string    `json:"comment,omitempty"`
}

func UpdateServiceRequestStatus(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload updateServiceRequestStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseServiceRequestStatus(strings.TrimSpace(payload.Target))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		input := srsvc.UpdateStatusInput{
			Target:        target,
			ScheduledDate: payload.ScheduledDate,
			BeforeImages:  payload.BeforeImages,
			AfterImages:   payload.AfterImages,
			Comment:       payload.Comment,
		}
		if payload.AgentID != nil {
			agentID := uuid.MustParse(*payload.AgentID)
			input.AgentID = &agentID
		}

		request, err := svc.UpdateStatus(r.Context(), id, input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func GenerateServiceRequestPaymentLink(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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
			"payment_id": intent.Payment.ID,
			"amount":     intent.Amount,
			"order_id":   intent.OrderID,
		})
	}
}

type verifyServiceRequestPaymentRequest struct {
	Method       string  `json:"method" validate:"required"`
	ReceiptImage string  `json:"receipt_image" validate:"required"`
	CollectedBy  *string `json:"collected_by,omitempty" validate:"omitempty,uuid"`
}

func VerifyServiceRequestPayment(svc srsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload verifyServiceRequestPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.Method))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := srsvc.VerifyChargeInput{
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
