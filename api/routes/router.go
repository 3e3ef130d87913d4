package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maxmove/maxmove-backend/api/controllers"
	paymentcontrollers "github.com/maxmove/maxmove-backend/api/controllers/payments"
	webhookcontrollers "github.com/maxmove/maxmove-backend/api/controllers/webhooks"
	"github.com/maxmove/maxmove-backend/api/middleware"
	stripewebhook "github.com/maxmove/maxmove-backend/internal/webhooks/stripe"
	"github.com/maxmove/maxmove-backend/pkg/config"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	"github.com/maxmove/maxmove-backend/pkg/logger"
	"github.com/maxmove/maxmove-backend/pkg/metrics"
)

// Deps carries everything the HTTP surface needs. Nil services surface as
// 500s on their routes instead of panics, which keeps partial wiring in
// tests cheap.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Accounts      paymentcontrollers.ConnectAccountService
	Intents       paymentcontrollers.IntentService
	Methods       paymentcontrollers.PaymentMethodService
	CashPayments  paymentcontrollers.CashPaymentService
	Subscriptions paymentcontrollers.SubscriptionService
	Webhooks      webhookcontrollers.StripeWebhookService
	WebhookGuard  *stripewebhook.IdempotencyGuard
	StripeSecret  SigningSecretProvider
	RateLimiter   middleware.RateLimiterStore
	Metrics       *metrics.PaymentMetrics
	Registry      prometheus.Gatherer
}

type SigningSecretProvider interface {
	SigningSecret() string
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/payment", func(r chi.Router) {
		r.Post("/webhooks", webhookcontrollers.StripeWebhook(d.Webhooks, d.StripeSecret, d.WebhookGuard, d.Metrics, logg))

		// Stripe redirects land here without a bearer token, so they get
		// the per-IP fixed window instead.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit("connect_redirects", cfg.AuthRateLimit, d.RateLimiter, logg))
			r.Get("/connect/refresh-onboarding", paymentcontrollers.ConnectRefreshOnboarding(d.Accounts, logg))
			r.Get("/connect/onboarding-complete", paymentcontrollers.ConnectOnboardingComplete(d.Accounts, cfg.Payments.PublicOrigin, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/connect", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.UserRoleDriver)).
					Post("/accounts", paymentcontrollers.ConnectAccountCreate(d.Accounts, logg))
				r.Get("/accounts/{id}", paymentcontrollers.ConnectAccountFetch(d.Accounts, d.Subscriptions, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleDriver)).
					Post("/onboarding", paymentcontrollers.ConnectOnboardingLink(d.Accounts, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleDriver, enums.UserRoleAdmin)).
					Get("/dashboard-link", paymentcontrollers.ConnectDashboardLink(d.Accounts, logg))
			})

			r.Post("/intents", paymentcontrollers.PaymentIntentCreate(d.Intents, logg))

			r.Route("/methods", func(r chi.Router) {
				r.Post("/", paymentcontrollers.PaymentMethodAttach(d.Methods, logg))
				r.Get("/", paymentcontrollers.PaymentMethodList(d.Methods, logg))
				r.Delete("/{id}", paymentcontrollers.PaymentMethodDetach(d.Methods, logg))
			})

			r.Route("/cash-payments", func(r chi.Router) {
				r.Post("/", paymentcontrollers.CashPaymentCreate(d.CashPayments, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleDriver)).
					Post("/fee", paymentcontrollers.CashFeeLink(d.CashPayments, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleDriver)).
					Get("/outstanding", paymentcontrollers.CashOutstandingFees(d.CashPayments, logg))
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.UserRoleDriver)).
					Post("/", paymentcontrollers.SubscriptionCreate(d.Subscriptions, logg))
				r.Get("/current", paymentcontrollers.SubscriptionCurrent(d.Subscriptions, logg))
				r.Delete("/{id}", paymentcontrollers.SubscriptionCancel(d.Subscriptions, logg))
			})
		})
	})

	return r
}
