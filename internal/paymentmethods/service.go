package paymentmethods

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type accountEnsurer interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error)
}

// ServiceParams groups dependencies for the payment method service.
type ServiceParams struct {
	Accounts accountEnsurer
	Stripe   StripePaymentMethodClient
	Logger   *logger.Logger
}

// Service manages the cards a customer keeps on file.
type Service struct {
	accounts accountEnsurer
	stripe   StripePaymentMethodClient
	logg     *logger.Logger
}

// NewService builds a payment method service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{accounts: params.Accounts, stripe: params.Stripe, logg: params.Logger}, nil
}

// Attach stores a card against the user's customer, optionally making it the
// default for future invoices.
func (s *Service) Attach(ctx context.Context, userID uuid.UUID, paymentMethodID string, setDefault bool) (*stripe.PaymentMethod, error) {
	if paymentMethodID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}

	account, err := s.accounts.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.StripeCustomerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer account has no stripe customer")
	}

	method, err := s.stripe.AttachPaymentMethod(ctx, paymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: account.StripeCustomerID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment method")
	}

	if setDefault {
		_, err = s.stripe.UpdateCustomer(ctx, *account.StripeCustomerID, &stripe.CustomerParams{
			InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(method.ID),
			},
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default payment method")
		}
	}
	return method, nil
}

// List returns the cards on file for the user. A user who never stored a
// card gets an empty list, not an error.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*stripe.PaymentMethod, error) {
	account, err := s.accounts.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.StripeCustomerID == nil {
		return nil, nil
	}

	methods, err := s.stripe.ListPaymentMethods(ctx, &stripe.PaymentMethodListParams{
		Customer: account.StripeCustomerID,
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods")
	}
	return methods, nil
}

// Detach removes a card. The card must belong to the calling user's customer.
func (s *Service) Detach(ctx context.Context, userID uuid.UUID, paymentMethodID string) error {
	if paymentMethodID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}

	account, err := s.accounts.EnsureCustomer(ctx, userID)
	if err != nil {
		return err
	}
	if account.StripeCustomerID == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
	}

	method, err := s.stripe.GetPaymentMethod(ctx, paymentMethodID, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment method")
	}
	if method.Customer == nil || method.Customer.ID != *account.StripeCustomerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment method belongs to another customer")
	}

	if _, err := s.stripe.DetachPaymentMethod(ctx, paymentMethodID, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach payment method")
	}
	return nil
}
