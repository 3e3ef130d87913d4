package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/api/middleware"
	"github.com/maxmove/maxmove-backend/api/responses"
	"github.com/maxmove/maxmove-backend/api/validators"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type SubscriptionService interface {
	Create(ctx context.Context, driverID uuid.UUID, paymentMethodID string) (*models.Subscription, error)
	Current(ctx context.Context, driverID uuid.UUID) (*models.Subscription, error)
	Cancel(ctx context.Context, driverID uuid.UUID, subscriptionID uuid.UUID) (*models.Subscription, error)
	IsPremium(ctx context.Context, driverID uuid.UUID) bool
}

type createSubscriptionRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

// SubscriptionCreate starts the premium plan for the authenticated driver.
func SubscriptionCreate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		var payload createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		sub, err := svc.Create(r.Context(), driverID, payload.PaymentMethodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubscriptionResponse(sub))
	}
}

// SubscriptionCurrent returns the driver's active subscription, if any.
func SubscriptionCurrent(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		sub, err := svc.Current(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if sub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription found"))
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

// SubscriptionCancel schedules the subscription to end at the period close.
func SubscriptionCancel(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		subscriptionID, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		sub, err := svc.Cancel(r.Context(), driverID, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}
