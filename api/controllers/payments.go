package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/api/validators"
	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	paysvc "github.com/aquaflowhq/aquaflow-backend/internal/payments"
	subsvc "github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

// ListMyPayments returns the caller's payment history, open intents included.
func ListMyPayments(repo paysvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payments, err := repo.ListForCustomer(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments"))
			return
		}
		responses.WriteSuccess(w, payments)
	}
}

type confirmSubscriptionPaymentRequest struct {
	Method           string  `json:"method" validate:"required"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty"`
	ReceiptImage     *string `json:"receipt_image,omitempty"`
	CollectedBy      *string `json:"collected_by,omitempty" validate:"omitempty,uuid"`
}

// ConfirmSubscriptionPayment settles a monthly due collected in the field or
// verified against the gateway.
func ConfirmSubscriptionPayment(svc paysvc.Service, subscriptions subsvc.Repository, guard *authz.Guard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := parsePathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmSubscriptionPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.Method))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		payment, err := svc.Repo().FindByID(r.Context(), paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment"))
			return
		}
		if payment.SubscriptionID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment is not a subscription charge"))
			return
		}

		subscription, err := subscriptions.FindByID(r.Context(), *payment.SubscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription"))
			return
		}
		if err := guard.CanCollectSubscriptionPayment(r.Context(), actor, subscription); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paysvc.ConfirmInput{
			Method:           method,
			GatewayPaymentID: payload.GatewayPaymentID,
			ReceiptImage:     payload.ReceiptImage,
			ActorUserID:      actor.UserID,
			ActorRole:        actor.Role,
		}
		if payload.CollectedBy != nil {
			collectedBy := uuid.MustParse(*payload.CollectedBy)
			input.CollectedBy = &collectedBy
		}

		if err := svc.ConfirmSubscriptionPayment(r.Context(), payment, subscription, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "confirmed"})
	}
}
