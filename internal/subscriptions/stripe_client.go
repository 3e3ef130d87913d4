package subscriptions

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/maxmove/maxmove-backend/pkg/stripe"
)

// StripeSubscriptionClient exposes the subset of Stripe operations required by the subscription service.
type StripeSubscriptionClient interface {
	Create(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	FindPriceByLookupKey(ctx context.Context, lookupKey string) (string, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the subscription service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeSubscriptionClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.New(params)
}

func (w *stripeClientWrapper) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Update(id, params)
}

func (w *stripeClientWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Get(id, params)
}

func (w *stripeClientWrapper) AttachPaymentMethod(ctx context.Context, paymentMethodID string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentmethod.Attach(paymentMethodID, params)
}

func (w *stripeClientWrapper) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Update(id, params)
}

func (w *stripeClientWrapper) FindPriceByLookupKey(ctx context.Context, lookupKey string) (string, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{lookupKey}),
	}
	params.Context = ctx
	iter := price.List(params)
	for iter.Next() {
		return iter.Price().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}
	return "", nil
}
