package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maxmove/maxmove-backend/api/routes"
	"github.com/maxmove/maxmove-backend/internal/accounts"
	"github.com/maxmove/maxmove-backend/internal/cashpayments"
	"github.com/maxmove/maxmove-backend/internal/fees"
	"github.com/maxmove/maxmove-backend/internal/ledger"
	"github.com/maxmove/maxmove-backend/internal/orders"
	"github.com/maxmove/maxmove-backend/internal/paymentintents"
	"github.com/maxmove/maxmove-backend/internal/paymentmethods"
	"github.com/maxmove/maxmove-backend/internal/subscriptions"
	"github.com/maxmove/maxmove-backend/internal/users"
	stripewebhook "github.com/maxmove/maxmove-backend/internal/webhooks/stripe"
	"github.com/maxmove/maxmove-backend/pkg/config"
	"github.com/maxmove/maxmove-backend/pkg/db"
	"github.com/maxmove/maxmove-backend/pkg/logger"
	"github.com/maxmove/maxmove-backend/pkg/metrics"
	"github.com/maxmove/maxmove-backend/pkg/migrate"
	"github.com/maxmove/maxmove-backend/pkg/redis"
	"github.com/maxmove/maxmove-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	feePolicy, err := fees.NewPolicy(cfg.Payments)
	if err != nil {
		logg.Error(context.Background(), "invalid fee configuration", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	accountsRepo := accounts.NewRepository(gormDB)
	subscriptionsRepo := subscriptions.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:         accountsRepo,
		Users:        usersRepo,
		Stripe:       accounts.NewStripeClient(stripeClient),
		PublicOrigin: cfg.Payments.PublicOrigin,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:           subscriptionsRepo,
		Accounts:       accountsService,
		Stripe:         subscriptions.NewStripeClient(stripeClient),
		PriceLookupKey: cfg.Stripe.PremiumPriceLookupKey,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	intentsService, err := paymentintents.NewService(paymentintents.ServiceParams{
		Orders:        ordersRepo,
		Customers:     accountsService,
		DriverLookup:  accountsRepo,
		Subscriptions: subscriptionsService,
		Ledger:        ledgerService,
		Stripe:        paymentintents.NewStripeClient(stripeClient),
		Fees:          feePolicy,
		Currency:      cfg.Payments.Currency,
		Metrics:       paymentMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment intents service", err)
		os.Exit(1)
	}

	methodsService, err := paymentmethods.NewService(paymentmethods.ServiceParams{
		Accounts: accountsService,
		Stripe:   paymentmethods.NewStripeClient(stripeClient),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment methods service", err)
		os.Exit(1)
	}

	cashService, err := cashpayments.NewService(cashpayments.ServiceParams{
		Orders:        ordersRepo,
		Ledger:        ledgerService,
		Subscriptions: subscriptionsService,
		Stripe:        cashpayments.NewStripeClient(stripeClient),
		Tx:            dbClient,
		Fees:          feePolicy,
		Payments:      cfg.Payments,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cash payments service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:            ledgerService,
		Orders:            ordersRepo,
		Accounts:          accountsService,
		Subscriptions:     subscriptionsService,
		StripeClient:      subscriptions.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.EventIdempotencyTTL, "stripe_events")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Accounts:      accountsService,
		Intents:       intentsService,
		Methods:       methodsService,
		CashPayments:  cashService,
		Subscriptions: subscriptionsService,
		Webhooks:      webhookService,
		WebhookGuard:  webhookGuard,
		StripeSecret:  stripeClient,
		RateLimiter:   redisClient,
		Metrics:       paymentMetrics,
		Registry:      registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
