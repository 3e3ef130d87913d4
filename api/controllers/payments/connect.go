package payments

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/api/middleware"
	"github.com/maxmove/maxmove-backend/api/responses"
	"github.com/maxmove/maxmove-backend/api/validators"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
	"github.com/maxmove/maxmove-backend/pkg/logger"
)

type premiumChecker interface {
	IsPremium(ctx context.Context, driverID uuid.UUID) bool
}

// ConnectAccountService is the slice of the accounts service the connect
// endpoints depend on.
type ConnectAccountService interface {
	EnsureConnectAccount(ctx context.Context, driverID uuid.UUID) (*models.PaymentAccount, error)
	AccountByUser(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error)
	CheckOnboardingStatus(ctx context.Context, driverID uuid.UUID) (bool, error)
	OnboardingLink(ctx context.Context, driverID uuid.UUID, returnURL string) (string, time.Time, error)
	DashboardLink(ctx context.Context, driverID uuid.UUID) (string, error)
}

type connectAccountResponse struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	StripeCustomerID    *string   `json:"stripe_customer_id,omitempty"`
	ConnectAccountID    *string   `json:"stripe_connect_account_id,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	Premium             bool      `json:"premium"`
}

func newConnectAccountResponse(account *models.PaymentAccount, premium bool) connectAccountResponse {
	return connectAccountResponse{
		ID:                  account.ID,
		UserID:              account.UserID,
		StripeCustomerID:    account.StripeCustomerID,
		ConnectAccountID:    account.StripeConnectAccountID,
		OnboardingCompleted: account.ConnectOnboardingCompleted,
		Premium:             premium,
	}
}

// ConnectAccountCreate provisions the driver's Stripe connected account.
func ConnectAccountCreate(svc ConnectAccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		account, err := svc.EnsureConnectAccount(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newConnectAccountResponse(account, false))
	}
}

// ConnectAccountFetch returns the payment account with a fresh onboarding
// check and the driver's premium flag. The id segment accepts "me".
func ConnectAccountFetch(svc ConnectAccountService, subs premiumChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		actorID := middleware.UserIDFromContext(r.Context())
		targetID := actorID
		if raw := chi.URLParam(r, "id"); raw != "" && raw != "me" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "id must be a valid uuid or 'me'"))
				return
			}
			targetID = parsed
		}
		if targetID != actorID && middleware.RoleFromContext(r.Context()) != enums.UserRoleAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another user's payment account"))
			return
		}

		account, err := svc.AccountByUser(r.Context(), targetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if account.StripeConnectAccountID != nil {
			if _, err := svc.CheckOnboardingStatus(r.Context(), targetID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			// Re-read so the response reflects the refreshed snapshot.
			account, err = svc.AccountByUser(r.Context(), targetID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		premium := false
		if subs != nil {
			premium = subs.IsPremium(r.Context(), targetID)
		}
		responses.WriteSuccess(w, newConnectAccountResponse(account, premium))
	}
}

type onboardingLinkRequest struct {
	ReturnURL string `json:"returnUrl" validate:"omitempty,url"`
}

type onboardingLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConnectOnboardingLink mints a fresh Stripe onboarding link for the driver.
func ConnectOnboardingLink(svc ConnectAccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		var payload onboardingLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		url, expiresAt, err := svc.OnboardingLink(r.Context(), driverID, payload.ReturnURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, onboardingLinkResponse{URL: url, ExpiresAt: expiresAt})
	}
}

// ConnectRefreshOnboarding is Stripe's refresh redirect target: it mints a
// new link and forwards the driver straight to it. No bearer auth.
func ConnectRefreshOnboarding(svc ConnectAccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		driverID, err := validators.UUIDQuery(r, "driver_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		url, _, err := svc.OnboardingLink(r.Context(), driverID, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// ConnectOnboardingComplete is Stripe's return redirect target: it refreshes
// the stored onboarding state and sends the driver back to the app.
func ConnectOnboardingComplete(svc ConnectAccountService, appOrigin string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		driverID, err := validators.UUIDQuery(r, "driver_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.CheckOnboardingStatus(r.Context(), driverID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		http.Redirect(w, r, appOrigin, http.StatusFound)
	}
}

// ConnectDashboardLink mints an Express dashboard login link for the driver.
func ConnectDashboardLink(svc ConnectAccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		driverID := middleware.UserIDFromContext(r.Context())
		url, err := svc.DashboardLink(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}
