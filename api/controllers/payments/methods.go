package payments

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/api/middleware"
	"github.com/maxmove/maxmove-backend/api/responses"
	"github.com/maxmove/maxmove-backend/api/validators"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type PaymentMethodService interface {
	Attach(ctx context.Context, userID uuid.UUID, paymentMethodID string, setDefault bool) (*stripe.PaymentMethod, error)
	List(ctx context.Context, userID uuid.UUID) ([]*stripe.PaymentMethod, error)
	Detach(ctx context.Context, userID uuid.UUID, paymentMethodID string) error
}

type attachMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
	SetDefault      bool   `json:"setDefault"`
}

// PaymentMethodAttach attaches a tokenized card to the caller's Stripe
// customer, optionally making it the invoice default.
func PaymentMethodAttach(svc PaymentMethodService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment methods service unavailable"))
			return
		}

		var payload attachMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		method, err := svc.Attach(r.Context(), userID, payload.PaymentMethodID, payload.SetDefault)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentMethodResponse(method))
	}
}

// PaymentMethodList returns the caller's saved cards.
func PaymentMethodList(svc PaymentMethodService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment methods service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		methods, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]paymentMethodResponse, 0, len(methods))
		for _, method := range methods {
			out = append(out, newPaymentMethodResponse(method))
		}
		responses.WriteSuccess(w, out)
	}
}

// PaymentMethodDetach removes a saved card. Only the owning customer may
// detach it.
func PaymentMethodDetach(svc PaymentMethodService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment methods service unavailable"))
			return
		}

		paymentMethodID := chi.URLParam(r, "id")
		if paymentMethodID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if err := svc.Detach(r.Context(), userID, paymentMethodID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"detached": true})
	}
}
