package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Payments      PaymentsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MAXMOVE_APP_ENV" required:"true"`
	Port         string `envconfig:"MAXMOVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MAXMOVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MAXMOVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MAXMOVE_DB_DSN"`
	Driver string `envconfig:"MAXMOVE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MAXMOVE_DB_HOST"`
	LegacyPort     int    `envconfig:"MAXMOVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MAXMOVE_DB_USER"`
	LegacyPassword string `envconfig:"MAXMOVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MAXMOVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MAXMOVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAXMOVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAXMOVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAXMOVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAXMOVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAXMOVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MAXMOVE_REDIS_ADDR"`
	Password     string        `envconfig:"MAXMOVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAXMOVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAXMOVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAXMOVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAXMOVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAXMOVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAXMOVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MAXMOVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MAXMOVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MAXMOVE_JWT_EXPIRATION_MINUTES" required:"true"`
}

type AuthRateLimitConfig struct {
	Window  time.Duration `envconfig:"MAXMOVE_AUTH_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"MAXMOVE_AUTH_RATE_LIMIT_IP_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MAXMOVE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MAXMOVE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey                string        `envconfig:"MAXMOVE_STRIPE_API_KEY"`
	Secret                string        `envconfig:"MAXMOVE_STRIPE_WEBHOOK_SECRET"`
	Env                   string        `envconfig:"MAXMOVE_STRIPE_ENV" default:"test"`
	PremiumPriceLookupKey string        `envconfig:"MAXMOVE_STRIPE_PREMIUM_PRICE_LOOKUP_KEY" default:"maxmove_driver_premium_monthly"`
	RequestTimeout        time.Duration `envconfig:"MAXMOVE_STRIPE_REQUEST_TIMEOUT" default:"15s"`
	EventIdempotencyTTL   time.Duration `envconfig:"MAXMOVE_STRIPE_EVENT_IDEMPOTENCY_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	PlatformFeeCents        int64  `envconfig:"MAXMOVE_PAYMENTS_PLATFORM_FEE_CENTS" default:"100"`
	StandardDriverFeePct    int64  `envconfig:"MAXMOVE_PAYMENTS_STANDARD_DRIVER_FEE_PCT" default:"15"`
	PremiumDriverFeePct     int64  `envconfig:"MAXMOVE_PAYMENTS_PREMIUM_DRIVER_FEE_PCT" default:"5"`
	Currency                string `envconfig:"MAXMOVE_PAYMENTS_CURRENCY" default:"eur"`
	PublicOrigin            string `envconfig:"MAXMOVE_PAYMENTS_PUBLIC_ORIGIN" default:"http://localhost:3000"`
	FeeSettlementSuccessURL string `envconfig:"MAXMOVE_PAYMENTS_FEE_SETTLEMENT_SUCCESS_URL"`
	FeeSettlementCancelURL  string `envconfig:"MAXMOVE_PAYMENTS_FEE_SETTLEMENT_CANCEL_URL"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
