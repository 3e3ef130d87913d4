package paymentmethods

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentmethod"

	pkgstripe "github.com/maxmove/maxmove-backend/pkg/stripe"
)

// StripePaymentMethodClient exposes the subset of Stripe operations the
// payment method service needs.
type StripePaymentMethodClient interface {
	AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, params *stripe.PaymentMethodListParams) ([]*stripe.PaymentMethod, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the configured Stripe client so the service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripePaymentMethodClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentmethod.Attach(id, params)
}

func (w *stripeClientWrapper) DetachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodDetachParams{}
	}
	params.Context = ctx
	return paymentmethod.Detach(id, params)
}

func (w *stripeClientWrapper) GetPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodParams{}
	}
	params.Context = ctx
	return paymentmethod.Get(id, params)
}

func (w *stripeClientWrapper) ListPaymentMethods(ctx context.Context, params *stripe.PaymentMethodListParams) ([]*stripe.PaymentMethod, error) {
	if params != nil {
		params.Context = ctx
	}
	iter := paymentmethod.List(params)
	var out []*stripe.PaymentMethod
	for iter.Next() {
		out = append(out, iter.PaymentMethod())
	}
	return out, iter.Err()
}

func (w *stripeClientWrapper) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Update(id, params)
}
