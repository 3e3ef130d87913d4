package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/api/middleware"
	"github.com/maxmove/maxmove-backend/api/responses"
	"github.com/maxmove/maxmove-backend/api/validators"
	"github.com/maxmove/maxmove-backend/internal/paymentintents"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type IntentService interface {
	Create(ctx context.Context, customerID uuid.UUID, input paymentintents.CreateIntentInput) (*paymentintents.Intent, error)
}

type createIntentRequest struct {
	OrderID         uuid.UUID `json:"orderId" validate:"required"`
	PaymentMethodID string    `json:"paymentMethodId" validate:"omitempty"`
	TipAmount       int64     `json:"tipAmount" validate:"min=0"`
}

// PaymentIntentCreate opens a card payment for an order on behalf of the
// authenticated customer.
func PaymentIntentCreate(svc IntentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment intents service unavailable"))
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID := middleware.UserIDFromContext(r.Context())
		intent, err := svc.Create(r.Context(), customerID, paymentintents.CreateIntentInput{
			OrderID:         payload.OrderID,
			PaymentMethodID: payload.PaymentMethodID,
			TipCents:        payload.TipAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}
