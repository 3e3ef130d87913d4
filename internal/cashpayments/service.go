package cashpayments

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/internal/fees"
	"github.com/maxmove/maxmove-backend/internal/ledger"
	"github.com/maxmove/maxmove-backend/internal/orders"
	"github.com/maxmove/maxmove-backend/pkg/config"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

// Checkout session metadata used to recognise fee settlements when the
// completion webhook arrives.
const (
	MetadataTypeKey          = "type"
	MetadataTransactionIDKey = "transaction_id"
	SettlementType           = "cash_payment_fee"
)

const (
	settlementProductName = "MaxMove delivery fee settlement"
	settlementSuccessPath = "/payment/fees/settled"
	settlementCancelPath  = "/payment/fees/cancelled"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type premiumChecker interface {
	IsPremium(ctx context.Context, driverID uuid.UUID) bool
}

// ServiceParams groups dependencies for the cash payment service.
type ServiceParams struct {
	Orders        orders.Repository
	Ledger        *ledger.Service
	Subscriptions premiumChecker
	Stripe        StripeCheckoutClient
	Tx            txRunner
	Fees          *fees.Policy
	Payments      config.PaymentsConfig
	Logger        *logger.Logger
}

// Service records cash deliveries and lets drivers settle the fees they owe
// on them.
type Service struct {
	orders        orders.Repository
	ledger        *ledger.Service
	subscriptions premiumChecker
	stripe        StripeCheckoutClient
	tx            txRunner
	fees          *fees.Policy
	payments      config.PaymentsConfig
	logg          *logger.Logger
}

// NewService builds a cash payment service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Fees == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee policy required")
	}
	return &Service{
		orders:        params.Orders,
		ledger:        params.Ledger,
		subscriptions: params.Subscriptions,
		stripe:        params.Stripe,
		tx:            params.Tx,
		fees:          params.Fees,
		payments:      params.Payments,
		logg:          params.Logger,
	}, nil
}

// RecordInput is the driver's report of a delivery paid in cash.
type RecordInput struct {
	OrderID  uuid.UUID
	TipCents int64
}

// Record writes the completed cash ledger row and marks the order paid in a
// single transaction. The fee portion stays owed by the driver until settled.
func (s *Service) Record(ctx context.Context, customerID uuid.UUID, input RecordInput) (*models.Transaction, error) {
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

	premium := s.subscriptions.IsPremium(ctx, order.DriverID)
	breakdown, err := s.fees.Compute(order.AmountCents, premium, input.TipCents)
	if err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txn, err = s.ledger.WithTx(tx).RecordCashPayment(ctx, ledger.CashPaymentInput{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			DriverID:   order.DriverID,
			Breakdown:  breakdown,
		})
		if err != nil {
			return err
		}
		return s.orders.WithTx(tx).UpdatePaymentStatus(ctx, order.ID, enums.OrderPaymentStatusPaid)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "cash payment recorded")
	}
	return txn, nil
}

// FeeSettlementLink creates a hosted checkout page where the driver pays the
// platform and commission fees owed on a cash delivery.
func (s *Service) FeeSettlementLink(ctx context.Context, driverID uuid.UUID, transactionID uuid.UUID) (string, error) {
	txn, err := s.ledger.FindByID(ctx, transactionID)
	if err != nil {
		return "", err
	}
	if txn.DriverID != driverID {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another driver")
	}
	if !txn.IsCash {
		return "", pkgerrors.New(pkgerrors.CodePrecondition, "transaction is not a cash payment")
	}
	if txn.CashFeePaid {
		return "", pkgerrors.New(pkgerrors.CodePrecondition, "fee is already settled")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.settlementURL(s.payments.FeeSettlementSuccessURL, settlementSuccessPath)),
		CancelURL:  stripe.String(s.settlementURL(s.payments.FeeSettlementCancelURL, settlementCancelPath)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.payments.Currency),
					UnitAmount: stripe.Int64(txn.FeeOwedCents()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(settlementProductName),
					},
				},
			},
		},
	}
	params.AddMetadata(MetadataTypeKey, SettlementType)
	params.AddMetadata(MetadataTransactionIDKey, txn.ID.String())

	sess, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return sess.URL, nil
}

// ListOutstanding returns the driver's cash deliveries with unsettled fees.
func (s *Service) ListOutstanding(ctx context.Context, driverID uuid.UUID) ([]models.Transaction, error) {
	return s.ledger.ListOutstandingCashFees(ctx, driverID)
}

// OutstandingBalance sums the fees the driver still owes across cash deliveries.
func (s *Service) OutstandingBalance(ctx context.Context, driverID uuid.UUID) (int64, error) {
	return s.ledger.OutstandingCashFeeBalance(ctx, driverID)
}

func (s *Service) settlementURL(configured, fallbackPath string) string {
	if configured != "" {
		return configured
	}
	return s.payments.PublicOrigin + fallbackPath
}
