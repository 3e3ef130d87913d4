package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/internal/cashpayments"
	"github.com/maxmove/maxmove-backend/internal/ledger"
	"github.com/maxmove/maxmove-backend/internal/orders"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accountSyncer interface {
	ApplyAccountSnapshot(ctx context.Context, remote *stripe.Account) error
}

type subscriptionSyncer interface {
	SyncFromStripe(ctx context.Context, stripeSub *stripe.Subscription) error
}

type subscriptionFetcher interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type ServiceParams struct {
	Ledger            *ledger.Service
	Orders            orders.Repository
	Accounts          accountSyncer
	Subscriptions     subscriptionSyncer
	StripeClient      subscriptionFetcher
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service reconciles Stripe events into the ledger. Stripe is the source of
// truth for card outcomes; the ledger and order rows follow it.
type Service struct {
	ledger        *ledger.Service
	orders        orders.Repository
	accounts      accountSyncer
	subscriptions subscriptionSyncer
	stripe        subscriptionFetcher
	txRunner      txRunner
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts service required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		ledger:        params.Ledger,
		orders:        params.Orders,
		accounts:      params.Accounts,
		subscriptions: params.Subscriptions,
		stripe:        params.StripeClient,
		txRunner:      params.TransactionRunner,
		logg:          params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return s.reconcileIntentEvent(ctx, event, enums.PaymentStatusCompleted, enums.OrderPaymentStatusPaid)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.reconcileIntentEvent(ctx, event, enums.PaymentStatusFailed, enums.OrderPaymentStatusFailed)
	case stripe.EventTypeAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode account event")
		}
		return s.accounts.ApplyAccountSnapshot(ctx, &account)
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.subscriptions.SyncFromStripe(ctx, &stripeSub)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		return s.syncInvoiceSubscription(ctx, event)
	default:
		return nil
	}
}

func (s *Service) reconcileIntentEvent(ctx context.Context, event *stripe.Event, target enums.PaymentStatus, orderStatus enums.OrderPaymentStatus) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ledger.WithTx(tx).Repo()
		txn, err := repo.FindByPaymentIntentID(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if txn == nil {
			if s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "payment_intent_id", intent.ID), "event for unknown payment intent, skipping")
			}
			return nil
		}

		changed, err := ledger.ApplyOutcome(txn, target)
		if err != nil {
			return err
		}
		if !changed {
			// First observed outcome wins. Replays and late arrivals land here.
			if s.logg != nil {
				s.logg.Info(s.logg.WithFields(ctx, map[string]any{
					"payment_intent_id": intent.ID,
					"current_status":    txn.PaymentStatus.String(),
					"event_status":      target.String(),
				}), "transaction already settled, ignoring event")
			}
			return nil
		}

		if err := repo.Update(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transaction outcome")
		}
		return s.orders.WithTx(tx).UpdatePaymentStatus(ctx, txn.OrderID, orderStatus)
	})
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Metadata[cashpayments.MetadataTypeKey] != cashpayments.SettlementType {
		return nil
	}
	transactionID, err := uuid.Parse(session.Metadata[cashpayments.MetadataTransactionIDKey])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse settlement transaction id")
	}
	if _, err := s.ledger.MarkCashFeePaid(ctx, transactionID); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "transaction_id", transactionID.String()), "cash fee settled")
	}
	return nil
}

func (s *Service) syncInvoiceSubscription(ctx context.Context, event *stripe.Event) error {
	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		subscriptionID = event.GetObjectValue("parent", "subscription_details", "subscription")
	}
	if subscriptionID == "" {
		// One-off invoices carry no subscription and are not ours to track.
		if s.logg != nil {
			s.logg.Info(ctx, "invoice event without subscription, skipping")
		}
		return nil
	}
	stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}
	return s.subscriptions.SyncFromStripe(ctx, stripeSub)
}
