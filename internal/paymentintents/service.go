package paymentintents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/internal/fees"
	"github.com/maxmove/maxmove-backend/internal/ledger"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
	"github.com/maxmove/maxmove-backend/pkg/metrics"
)

type orderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type customerAccounts interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error)
}

type driverAccounts interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error)
}

type premiumChecker interface {
	IsPremium(ctx context.Context, driverID uuid.UUID) bool
}

type attemptRecorder interface {
	FindPendingCardAttempt(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error)
	RecordCardAttempt(ctx context.Context, input ledger.CardAttemptInput) (*models.Transaction, error)
}

// ServiceParams groups dependencies for the payment intent service.
type ServiceParams struct {
	Orders        orderFinder
	Customers     customerAccounts
	DriverLookup  driverAccounts
	Subscriptions premiumChecker
	Ledger        attemptRecorder
	Stripe        StripePaymentIntentClient
	Fees          *fees.Policy
	Currency      string
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
}

// Service creates destination-charge payment intents for card deliveries.
type Service struct {
	orders        orderFinder
	customers     customerAccounts
	driverLookup  driverAccounts
	subscriptions premiumChecker
	ledger        attemptRecorder
	stripe        StripePaymentIntentClient
	fees          *fees.Policy
	currency      string
	metrics       *metrics.PaymentMetrics
	logg          *logger.Logger
}

// NewService builds a payment intent service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts service required")
	}
	if params.DriverLookup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Fees == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee policy required")
	}
	if params.Currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "currency required")
	}
	return &Service{
		orders:        params.Orders,
		customers:     params.Customers,
		driverLookup:  params.DriverLookup,
		subscriptions: params.Subscriptions,
		ledger:        params.Ledger,
		stripe:        params.Stripe,
		fees:          params.Fees,
		currency:      params.Currency,
		metrics:       params.Metrics,
		logg:          params.Logger,
	}, nil
}

// CreateIntentInput is the customer-facing request to charge an order.
type CreateIntentInput struct {
	OrderID         uuid.UUID
	PaymentMethodID string
	TipCents        int64
}

// Intent is the client-confirmation handle plus the fee breakdown that was
// locked into the ledger row.
type Intent struct {
	TransactionID   uuid.UUID      `json:"transaction_id"`
	PaymentIntentID string         `json:"payment_intent_id"`
	ClientSecret    string         `json:"client_secret"`
	Breakdown       fees.Breakdown `json:"breakdown"`
}

// Create charges an order by card. It computes the fee breakdown from the
// driver's current tier, creates a destination charge on the driver's connect
// account and records the pending ledger row. Only one attempt may be open
// per order at a time.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, input CreateIntentInput) (*Intent, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	if order.PaymentStatus == enums.OrderPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "order is already paid")
	}

	// Check before touching Stripe so a rejected retry never leaves an
	// orphaned intent behind.
	pending, err := s.ledger.FindPendingCardAttempt(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "a pending card payment already exists for this order")
	}

	customerAccount, err := s.customers.EnsureCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customerAccount.StripeCustomerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer account has no stripe customer")
	}

	driverAccount, err := s.driverLookup.FindByUserID(ctx, order.DriverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver account")
	}
	if driverAccount == nil || driverAccount.StripeConnectAccountID == nil {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "driver has no payout account")
	}
	if !driverAccount.ConnectOnboardingCompleted {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "driver payout onboarding is incomplete")
	}

	premium := s.subscriptions.IsPremium(ctx, order.DriverID)
	breakdown, err := s.fees.Compute(order.AmountCents, premium, input.TipCents)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(breakdown.TotalChargeCents),
		Currency:             stripe.String(s.currency),
		Customer:             customerAccount.StripeCustomerID,
		ApplicationFeeAmount: stripe.Int64(breakdown.ApplicationFeeCents()),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: driverAccount.StripeConnectAccountID,
		},
	}
	if input.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(input.PaymentMethodID)
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("customer_id", order.CustomerID.String())
	params.AddMetadata("driver_id", order.DriverID.String())

	started := time.Now()
	intent, err := s.stripe.CreatePaymentIntent(ctx, params)
	s.metrics.ObserveStripeCall("payment_intent_create", time.Since(started))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	txn, err := s.ledger.RecordCardAttempt(ctx, ledger.CardAttemptInput{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		DriverID:        order.DriverID,
		Breakdown:       breakdown,
		PaymentIntentID: intent.ID,
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"payment_intent_id": intent.ID,
				"order_id":          order.ID.String(),
			}), "payment intent created but ledger write failed", err)
		}
		return nil, err
	}

	s.metrics.IncIntentCreated(enums.PaymentMethodCard.String())
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_intent_id": intent.ID,
			"order_id":          order.ID.String(),
			"amount_cents":      breakdown.TotalChargeCents,
			"premium_driver":    premium,
		}), "payment intent created")
	}

	return &Intent{
		TransactionID:   txn.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Breakdown:       breakdown,
	}, nil
}
