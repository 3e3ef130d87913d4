package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

const (
	onboardingRefreshPath  = "/payment/connect/refresh-onboarding"
	onboardingCompletePath = "/payment/connect/onboarding-complete"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams groups dependencies for the accounts service.
type ServiceParams struct {
	Repo         Repository
	Users        userFinder
	Stripe       StripeAccountClient
	PublicOrigin string
	Logger       *logger.Logger
}

// Service provisions Stripe customers and connected accounts lazily.
type Service struct {
	repo         Repository
	users        userFinder
	stripe       StripeAccountClient
	publicOrigin string
	logg         *logger.Logger
}

// NewService builds an accounts service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.PublicOrigin == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "public origin required")
	}
	return &Service{
		repo:         params.Repo,
		users:        params.Users,
		stripe:       params.Stripe,
		publicOrigin: strings.TrimRight(params.PublicOrigin, "/"),
		logg:         params.Logger,
	}, nil
}

// EnsureCustomer returns the payment account for the user, creating the
// Stripe customer (and the local row) on first use. A customer deleted on
// the Stripe side is recreated transparently.
func (s *Service) EnsureCustomer(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error) {
	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}

	if account != nil && account.StripeCustomerID != nil {
		_, err := s.stripe.GetCustomer(ctx, *account.StripeCustomerID, &stripe.CustomerParams{})
		if err == nil {
			return account, nil
		}
		if !isResourceMissing(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe customer")
		}
		// remote customer gone, fall through and recreate
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	customer, err := s.stripe.CreateCustomer(ctx, &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FullName),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}

	if account == nil {
		account = &models.PaymentAccount{UserID: userID}
		account.StripeCustomerID = stripe.String(customer.ID)
		if err := s.repo.Create(ctx, account); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment account")
		}
		return account, nil
	}

	account.StripeCustomerID = stripe.String(customer.ID)
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment account")
	}
	return account, nil
}

// EnsureConnectAccount returns the payment account with a Stripe Express
// connected account for the driver, creating it on first use.
func (s *Service) EnsureConnectAccount(ctx context.Context, driverID uuid.UUID) (*models.PaymentAccount, error) {
	user, err := s.loadUser(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if user.Role != enums.UserRoleDriver {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "connect accounts are limited to drivers")
	}
	if user.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver email required for connect onboarding")
	}

	account, err := s.repo.FindByUserID(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}

	if account != nil && account.StripeConnectAccountID != nil {
		_, err := s.stripe.GetAccount(ctx, *account.StripeConnectAccountID, &stripe.AccountParams{})
		if err == nil {
			return account, nil
		}
		if !isResourceMissing(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe account")
		}
	}

	remote, err := s.stripe.CreateAccount(ctx, &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(user.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
		Metadata: map[string]string{
			"driver_id": user.ID.String(),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe connect account")
	}

	if account == nil {
		account = &models.PaymentAccount{UserID: driverID}
		account.StripeConnectAccountID = stripe.String(remote.ID)
		if err := s.repo.Create(ctx, account); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment account")
		}
		return account, nil
	}

	account.StripeConnectAccountID = stripe.String(remote.ID)
	account.ConnectOnboardingCompleted = false
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment account")
	}
	return account, nil
}

// OnboardingLink mints a fresh Stripe account link for the driver's connect
// onboarding flow. Links are single-use and short-lived.
func (s *Service) OnboardingLink(ctx context.Context, driverID uuid.UUID, returnURL string) (string, time.Time, error) {
	account, err := s.repo.FindByUserID(ctx, driverID)
	if err != nil {
		return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}
	if account == nil || account.StripeConnectAccountID == nil {
		return "", time.Time{}, pkgerrors.New(pkgerrors.CodeNotFound, "connect account not found")
	}

	if returnURL == "" {
		returnURL = s.publicOrigin + onboardingCompletePath
	}

	link, err := s.stripe.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    account.StripeConnectAccountID,
		RefreshURL: stripe.String(s.publicOrigin + onboardingRefreshPath),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	})
	if err != nil {
		return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account link")
	}
	return link.URL, time.Unix(link.ExpiresAt, 0).UTC(), nil
}

// CheckOnboardingStatus fetches the connected account and persists the
// onboarding flag plus a capability snapshot when they changed.
func (s *Service) CheckOnboardingStatus(ctx context.Context, driverID uuid.UUID) (bool, error) {
	account, err := s.repo.FindByUserID(ctx, driverID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}
	if account == nil || account.StripeConnectAccountID == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "connect account not found")
	}

	remote, err := s.stripe.GetAccount(ctx, *account.StripeConnectAccountID, &stripe.AccountParams{})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe account")
	}

	return s.applySnapshot(ctx, account, remote)
}

// ApplyAccountSnapshot reconciles an account.updated webhook payload against
// the stored row. Unknown connected accounts are skipped.
func (s *Service) ApplyAccountSnapshot(ctx context.Context, remote *stripe.Account) error {
	if remote == nil || remote.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe account payload required")
	}
	account, err := s.repo.FindByConnectAccountID(ctx, remote.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}
	if account == nil {
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "connect_account_id", remote.ID), "account.updated for unknown connect account, skipping")
		}
		return nil
	}
	_, err = s.applySnapshot(ctx, account, remote)
	return err
}

// AccountByUser returns the stored payment account row for the user.
func (s *Service) AccountByUser(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error) {
	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment account not found")
	}
	return account, nil
}

// DashboardLink mints a Stripe Express dashboard login link for the driver.
func (s *Service) DashboardLink(ctx context.Context, driverID uuid.UUID) (string, error) {
	account, err := s.repo.FindByUserID(ctx, driverID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}
	if account == nil || account.StripeConnectAccountID == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "connect account not found")
	}

	link, err := s.stripe.CreateLoginLink(ctx, &stripe.LoginLinkParams{
		Account: account.StripeConnectAccountID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create login link")
	}
	return link.URL, nil
}

func (s *Service) applySnapshot(ctx context.Context, account *models.PaymentAccount, remote *stripe.Account) (bool, error) {
	complete := onboardingComplete(remote)
	snapshot := capabilitySnapshot(remote)

	changed := account.ConnectOnboardingCompleted != complete ||
		!json.Valid(account.ConnectCapabilities) ||
		string(account.ConnectCapabilities) != string(snapshot)

	if changed {
		account.ConnectOnboardingCompleted = complete
		account.ConnectCapabilities = snapshot
		if err := s.repo.Update(ctx, account); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist onboarding status")
		}
	}
	return complete, nil
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func onboardingComplete(remote *stripe.Account) bool {
	if remote == nil || !remote.DetailsSubmitted || remote.Capabilities == nil {
		return false
	}
	return remote.Capabilities.CardPayments == stripe.AccountCapabilityStatusActive &&
		remote.Capabilities.Transfers == stripe.AccountCapabilityStatusActive
}

func capabilitySnapshot(remote *stripe.Account) json.RawMessage {
	snapshot := map[string]any{
		"details_submitted": remote.DetailsSubmitted,
	}
	if remote.Capabilities != nil {
		snapshot["card_payments"] = string(remote.Capabilities.CardPayments)
		snapshot["transfers"] = string(remote.Capabilities.Transfers)
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil
	}
	return raw
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}
