package config

// EnvPrefix scopes every environment variable consumed by the service.
const EnvPrefix = "MAXMOVE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv    = "MAXMOVE_APP_ENV"
	EnvPort      = "MAXMOVE_APP_PORT"
	EnvDBDSN     = "MAXMOVE_DB_DSN"
	EnvDBHost    = "MAXMOVE_DB_HOST"
	EnvDBUser    = "MAXMOVE_DB_USER"
	EnvDBName    = "MAXMOVE_DB_NAME"
	EnvRedisURL  = "MAXMOVE_REDIS_URL"
	EnvJWTSecret = "MAXMOVE_JWT_SECRET"
	EnvJWTIssuer = "MAXMOVE_JWT_ISSUER"
	EnvJWTExp    = "MAXMOVE_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey         = "MAXMOVE_STRIPE_API_KEY"
	EnvStripeWebhookSecret  = "MAXMOVE_STRIPE_WEBHOOK_SECRET"
	EnvStripePremiumLookup  = "MAXMOVE_STRIPE_PREMIUM_PRICE_LOOKUP_KEY"
	EnvPaymentsPlatformFee  = "MAXMOVE_PAYMENTS_PLATFORM_FEE_CENTS"
	EnvPaymentsPublicOrigin = "MAXMOVE_PAYMENTS_PUBLIC_ORIGIN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
