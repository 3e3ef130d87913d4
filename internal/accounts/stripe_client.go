package accounts

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/loginlink"

	pkgstripe "github.com/maxmove/maxmove-backend/pkg/stripe"
)

// StripeAccountClient exposes the subset of Stripe operations required by the accounts service.
type StripeAccountClient interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	GetAccount(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
	CreateLoginLink(ctx context.Context, params *stripe.LoginLinkParams) (*stripe.LoginLink, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the accounts service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeAccountClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (w *stripeClientWrapper) GetCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Get(id, params)
}

func (w *stripeClientWrapper) CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	if params != nil {
		params.Context = ctx
	}
	return account.New(params)
}

func (w *stripeClientWrapper) GetAccount(ctx context.Context, id string, params *stripe.AccountParams) (*stripe.Account, error) {
	if params != nil {
		params.Context = ctx
	}
	return account.GetByID(id, params)
}

func (w *stripeClientWrapper) CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	if params != nil {
		params.Context = ctx
	}
	return accountlink.New(params)
}

func (w *stripeClientWrapper) CreateLoginLink(ctx context.Context, params *stripe.LoginLinkParams) (*stripe.LoginLink, error) {
	if params != nil {
		params.Context = ctx
	}
	return loginlink.New(params)
}
