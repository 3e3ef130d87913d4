package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/api/middleware"
	"github.com/maxmove/maxmove-backend/api/responses"
	"github.com/maxmove/maxmove-backend/api/validators"
	"github.com/maxmove/maxmove-backend/internal/cashpayments"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type CashPaymentService interface {
	Record(ctx context.Context, customerID uuid.UUID, input cashpayments.RecordInput) (*models.Transaction, error)
	FeeSettlementLink(ctx context.Context, driverID uuid.UUID, transactionID uuid.UUID) (string, error)
	ListOutstanding(ctx context.Context, driverID uuid.UUID) ([]models.Transaction, error)
}

type cashPaymentRequest struct {
	OrderID   uuid.UUID `json:"orderId" validate:"required"`
	TipAmount int64     `json:"tipAmount" validate:"min=0"`
}

// CashPaymentCreate records that the customer settled an order in cash at
// the door. The platform and driver fees stay owed by the driver.
func CashPaymentCreate(svc CashPaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash payments service unavailable"))
			return
		}

		var payload cashPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID := middleware.UserIDFromContext(r.Context())
		txn, err := svc.Record(r.Context(), customerID, cashpayments.RecordInput{
			OrderID:  payload.OrderID,
			TipCents: payload.TipAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(txn))
	}
}

type cashFeeLinkRequest struct {
	TransactionID uuid.UUID `json:"transactionId" validate:"required"`
}

// CashFeeLink creates a Stripe Checkout session for the driver to settle the
// fees owed on a cash transaction.
func CashFeeLink(svc CashPaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash payments service unavailable"))
			return
		}

		var payload cashFeeLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		url, err := svc.FeeSettlementLink(r.Context(), driverID, payload.TransactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

type outstandingFeesResponse struct {
	BalanceCents int64                 `json:"balance"`
	Transactions []transactionResponse `json:"transactions"`
}

// CashOutstandingFees lists the driver's unsettled cash transactions and the
// total fee balance owed.
func CashOutstandingFees(svc CashPaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash payments service unavailable"))
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		txns, err := svc.ListOutstanding(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := outstandingFeesResponse{Transactions: make([]transactionResponse, 0, len(txns))}
		for i := range txns {
			out.BalanceCents += txns[i].FeeOwedCents()
			out.Transactions = append(out.Transactions, newTransactionResponse(&txns[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
