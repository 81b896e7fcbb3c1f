package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/fulfillment"
	"github.com/angelmondragon/storefront-backend/internal/labels"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/packages"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipments"
	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	shippingwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/shipping"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		NoColor:     cfg.App.LogNoColor,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"provider": cfg.Shipping.ProviderName(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{DB: dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		deps.Redis = redisClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fulfillmentMetrics := metrics.NewFulfillment(registry)
	deps.Metrics = fulfillmentMetrics
	deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	conn := dbClient.DB()
	orderRepo := orders.NewRepository(conn)
	shipmentRepo := shipments.NewRepository(conn)

	packageSvc, err := packages.NewService(packages.ServiceParams{
		Repo: packages.NewRepository(conn),
		Tx:   dbClient,
	})
	requireResource(ctx, logg, "packages service", err)
	deps.Packages = packageSvc

	settingsSvc, err := settings.NewService(settings.NewRepository(conn))
	requireResource(ctx, logg, "settings service", err)
	deps.Settings = settingsSvc

	shipmentSvc, err := shipments.NewService(shipments.ServiceParams{
		Repo:   shipmentRepo,
		Orders: orderRepo,
		Tx:     dbClient,
		Logger: logg,
	})
	requireResource(ctx, logg, "shipments service", err)
	deps.Shipments = shipmentSvc

	provider, err := fulfillment.NewProvider(cfg, fulfillmentMetrics)
	requireResource(ctx, logg, "carrier provider", err)

	params := fulfillment.ServiceParams{
		Provider:           provider,
		Orders:             orderRepo,
		Packages:           packageSvc,
		Settings:           settingsSvc,
		Shipments:          shipmentRepo,
		Tx:                 dbClient,
		Metrics:            fulfillmentMetrics,
		Logger:             logg,
		EnforceIdempotency: cfg.FeatureFlags.EnforcePurchaseIdempotency,
		DefaultItemWeightG: cfg.Shipping.DefaultItemWeightG,
		LabelFileType:      cfg.Shipping.LabelFileType,
		PollAttempts:       cfg.Shipping.LabelPollAttempts,
		PollInterval:       cfg.Shipping.LabelPollInterval,
	}
	if redisClient != nil {
		guard, err := fulfillment.NewRedisPurchaseGuard(redisClient, cfg.Shipping.IdempotencyTTL)
		requireResource(ctx, logg, "purchase guard", err)
		params.Guard = guard
	} else if cfg.FeatureFlags.EnforcePurchaseIdempotency {
		logg.Error(ctx, "purchase idempotency enforcement requires redis", nil)
		os.Exit(1)
	}
	if cfg.FeatureFlags.SendShipmentConfirmation {
		m, err := mailer.New(cfg.Sendgrid.APIKey, cfg.Sendgrid.DefaultFrom, cfg.Sendgrid.FromName)
		switch {
		case errors.Is(err, mailer.ErrDisabled):
			logg.Warn(ctx, "sendgrid not configured, shipment confirmation emails disabled")
		case err != nil:
			requireResource(ctx, logg, "mailer", err)
		default:
			params.Mailer = m
		}
	}
	fulfillmentSvc, err := fulfillment.NewService(params)
	requireResource(ctx, logg, "fulfillment service", err)
	deps.Fulfillment = fulfillmentSvc

	fetcher, err := labels.NewFetcher(labels.Params{
		AllowedHosts: cfg.LabelProxy.AllowedHostList(),
		MaxBytes:     cfg.LabelProxy.MaxBytes,
		Timeout:      cfg.LabelProxy.Timeout,
		PublicURL:    cfg.App.PublicURL,
	})
	requireResource(ctx, logg, "label fetcher", err)
	deps.Labels = fetcher

	ledger, err := webhooks.NewLedger(webhooks.NewRepository(conn), nil)
	requireResource(ctx, logg, "webhook ledger", err)
	deps.WebhookLedger = ledger

	source := enums.WebhookSource(cfg.Webhooks.ShippingSource)
	if source == "" {
		source = enums.WebhookSource(cfg.Shipping.ProviderName())
	}
	shippingHooks, err := shippingwebhook.NewService(shippingwebhook.ServiceParams{
		Ledger:    ledger,
		Shipments: shipmentRepo,
		Writer:    shipmentSvc,
		Source:    source,
		Metrics:   fulfillmentMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "shipping webhook service", err)
	deps.ShippingWebhook = shippingHooks

	if cfg.Stripe.Secret != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe client", err)
		stripeHooks, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Orders:            orderRepo,
			Invoices:          orders.NewInvoiceRepository(conn),
			TransactionRunner: dbClient,
			Logger:            logg,
		})
		requireResource(ctx, logg, "stripe webhook service", err)
		deps.StripeClient = stripeClient
		deps.StripeWebhook = stripeHooks
	} else {
		logg.Warn(ctx, "stripe webhook secret not configured, payment webhook disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithField(ctx, "addr", addr)
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
