package subscriptions

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type accountEnsurer interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo           Repository
	Accounts       accountEnsurer
	Stripe         StripeSubscriptionClient
	PriceLookupKey string
	Logger         *logger.Logger
}

// Service manages the driver premium subscription lifecycle.
type Service struct {
	repo           Repository
	accounts       accountEnsurer
	stripe         StripeSubscriptionClient
	priceLookupKey string
	logg           *logger.Logger

	priceMu       sync.Mutex
	cachedPriceID string
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions repo required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.PriceLookupKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "premium price lookup key required")
	}
	return &Service{
		repo:           params.Repo,
		accounts:       params.Accounts,
		stripe:         params.Stripe,
		priceLookupKey: params.PriceLookupKey,
		logg:           params.Logger,
	}, nil
}

// Create subscribes the driver to the premium plan. A driver with an active
// subscription cannot create a second one.
func (s *Service) Create(ctx context.Context, driverID uuid.UUID, paymentMethodID string) (*models.Subscription, error) {
	if paymentMethodID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}

	active, err := s.repo.FindActiveByDriverID(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if active != nil {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "driver already has an active subscription")
	}

	account, err := s.accounts.EnsureCustomer(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if account.StripeCustomerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment account missing stripe customer")
	}
	customerID := *account.StripeCustomerID

	if _, err := s.stripe.AttachPaymentMethod(ctx, paymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment method")
	}

	if _, err := s.stripe.UpdateCustomer(ctx, customerID, &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default payment method")
	}

	priceID, err := s.premiumPriceID(ctx)
	if err != nil {
		return nil, err
	}

	remote, err := s.stripe.Create(ctx, &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		DefaultPaymentMethod: stripe.String(paymentMethodID),
		Metadata: map[string]string{
			"driver_id": driverID.String(),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe subscription")
	}

	built, err := BuildFromStripe(remote, driverID, priceID, true)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, built); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}
	return built, nil
}

// Cancel schedules the subscription for cancellation at the end of the
// current billing period. The driver keeps premium pricing until then.
func (s *Service) Cancel(ctx context.Context, driverID uuid.UUID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	stored, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if stored == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if stored.DriverID != driverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription belongs to another driver")
	}
	if stored.Status == enums.SubscriptionStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "subscription already canceled")
	}

	remote, err := s.stripe.Update(ctx, stored.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}

	if err := UpdateFromStripe(stored, remote, nil); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}
	return stored, nil
}

// Current returns the driver's most recent subscription row, nil when none exists.
func (s *Service) Current(ctx context.Context, driverID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindCurrentByDriverID(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

// IsPremium reports whether the driver currently enjoys premium pricing.
// Lookup failures resolve to the standard rate; fees must never be blocked
// on subscription state.
func (s *Service) IsPremium(ctx context.Context, driverID uuid.UUID) bool {
	sub, err := s.repo.FindCurrentByDriverID(ctx, driverID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithDriverID(ctx, driverID.String()), "premium lookup failed, defaulting to standard rate", err)
		}
		return false
	}
	if sub == nil {
		return false
	}
	return sub.IsPremium && sub.Status == enums.SubscriptionStatusActive
}

// SyncFromStripe upserts the stored row from a webhook-delivered subscription
// object. Events without driver metadata are skipped unless a stored row
// already pins the driver.
func (s *Service) SyncFromStripe(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	stored, err := s.repo.FindByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	driverID, metadataErr := DriverIDFromMetadata(stripeSub.Metadata)
	if metadataErr != nil {
		if stored == nil {
			if s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "stripe_subscription_id", stripeSub.ID), "subscription event without driver metadata, skipping")
			}
			return nil
		}
		driverID = stored.DriverID
	}

	priceID := PriceIDFromItems(stripeSub)

	if stored == nil {
		built, err := BuildFromStripe(stripeSub, driverID, priceID, true)
		if err != nil {
			return err
		}
		return s.repo.Create(ctx, built)
	}

	var pricePtr *string
	if priceID != "" {
		pricePtr = &priceID
	}
	if err := UpdateFromStripe(stored, stripeSub, pricePtr); err != nil {
		return err
	}
	return s.repo.Update(ctx, stored)
}

func (s *Service) premiumPriceID(ctx context.Context) (string, error) {
	s.priceMu.Lock()
	defer s.priceMu.Unlock()
	if s.cachedPriceID != "" {
		return s.cachedPriceID, nil
	}

	priceID, err := s.stripe.FindPriceByLookupKey(ctx, s.priceLookupKey)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve premium price")
	}
	if priceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeConfiguration, "premium price not configured in stripe")
	}
	s.cachedPriceID = priceID
	return priceID, nil
}
