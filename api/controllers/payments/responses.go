package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
)

type transactionResponse struct {
	ID                    uuid.UUID `json:"id"`
	OrderID               uuid.UUID `json:"order_id"`
	AmountCents           int64     `json:"amount"`
	PlatformFeeCents      int64     `json:"platform_fee"`
	DriverFeeCents        int64     `json:"driver_fee"`
	TipCents              int64     `json:"tip_amount"`
	PaymentMethod         string    `json:"payment_method"`
	PaymentStatus         string    `json:"payment_status"`
	IsCash                bool      `json:"is_cash"`
	CashFeePaid           bool      `json:"cash_fee_paid"`
	StripePaymentIntentID *string   `json:"stripe_payment_intent_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

func newTransactionResponse(txn *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:                    txn.ID,
		OrderID:               txn.OrderID,
		AmountCents:           txn.AmountCents,
		PlatformFeeCents:      txn.PlatformFeeCents,
		DriverFeeCents:        txn.DriverFeeCents,
		TipCents:              txn.TipCents,
		PaymentMethod:         txn.PaymentMethod.String(),
		PaymentStatus:         txn.PaymentStatus.String(),
		IsCash:                txn.IsCash,
		CashFeePaid:           txn.CashFeePaid,
		StripePaymentIntentID: txn.StripePaymentIntentID,
		CreatedAt:             txn.CreatedAt,
	}
}

type subscriptionResponse struct {
	ID                   uuid.UUID  `json:"id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Status               string     `json:"status"`
	IsPremium            bool       `json:"is_premium"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                   sub.ID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Status:               sub.Status.String(),
		IsPremium:            sub.IsPremium,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CanceledAt:           sub.CanceledAt,
	}
}

type paymentMethodCard struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

type paymentMethodResponse struct {
	ID   string             `json:"id"`
	Type string             `json:"type"`
	Card *paymentMethodCard `json:"card,omitempty"`
}

func newPaymentMethodResponse(method *stripe.PaymentMethod) paymentMethodResponse {
	resp := paymentMethodResponse{
		ID:   method.ID,
		Type: string(method.Type),
	}
	if method.Card != nil {
		resp.Card = &paymentMethodCard{
			Brand:    string(method.Card.Brand),
			Last4:    method.Card.Last4,
			ExpMonth: method.Card.ExpMonth,
			ExpYear:  method.Card.ExpYear,
		}
	}
	return resp
}
