package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	labelcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/labels"
	shippingcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/shipping"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/fulfillment"
	"github.com/angelmondragon/storefront-backend/internal/labels"
	"github.com/angelmondragon/storefront-backend/internal/packages"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipments"
	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	shippingwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/shipping"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	adminPrefix    = "/api/admin/v1"
	labelProxyPath = adminPrefix + "/labels/proxy"
)

// Dependencies carries the services mounted by NewRouter. Optional members
// (Redis, Stripe) may be nil; their routes or checks are then left out.
type Dependencies struct {
	DB    controllers.Pinger
	Redis controllers.Pinger

	Fulfillment fulfillment.Service
	Shipments   shipments.Service
	Packages    packages.Service
	Settings    settings.Service
	Labels      *labels.Fetcher

	ShippingWebhook *shippingwebhook.Service
	StripeWebhook   *stripewebhook.Service
	StripeClient    *stripe.Client
	WebhookLedger   *webhooks.Ledger

	Metrics        *metrics.Fulfillment
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if deps.ShippingWebhook != nil {
			r.Post("/shipping", webhookcontrollers.ShippingWebhook(deps.ShippingWebhook, cfg.Webhooks.ShippingSecret, logg))
		}
		if deps.StripeWebhook != nil && deps.StripeClient != nil && deps.WebhookLedger != nil {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.WebhookLedger, deps.Metrics, logg))
		}
	})

	r.Route(adminPrefix, func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.RequireRole(logg, cfg.Auth.AdminRole))
		r.Use(middleware.IdempotencyKey(logg))

		r.Route("/shipping", func(r chi.Router) {
			r.Post("/rates", shippingcontrollers.Rates(deps.Fulfillment, logg))
			r.Post("/labels", shippingcontrollers.PurchaseLabel(deps.Fulfillment, logg))
			r.Post("/labels/void", shippingcontrollers.VoidLabel(deps.Fulfillment, logg))
			r.Get("/origin", shippingcontrollers.GetOrigin(deps.Settings, logg))
			r.Put("/origin", shippingcontrollers.UpdateOrigin(deps.Settings, logg))
		})

		r.Get("/orders/{orderId}/shipments", shippingcontrollers.ListOrderShipments(deps.Shipments, logg))
		r.Get("/shipments/{shipmentId}", shippingcontrollers.GetShipment(deps.Shipments, logg))
		r.Patch("/shipments/{shipmentId}", shippingcontrollers.UpdateShipment(deps.Shipments, logg))
		r.Delete("/shipments/{shipmentId}", shippingcontrollers.DeleteShipment(deps.Shipments, logg))

		r.Route("/packages", func(r chi.Router) {
			r.Get("/", shippingcontrollers.ListPackages(deps.Packages, logg))
			r.Post("/", shippingcontrollers.CreatePackage(deps.Packages, logg))
			r.Put("/{packageId}", shippingcontrollers.UpdatePackage(deps.Packages, logg))
			r.Delete("/{packageId}", shippingcontrollers.DeletePackage(deps.Packages, logg))
			r.Post("/{packageId}/default", shippingcontrollers.SetDefaultPackage(deps.Packages, logg))
		})

		if deps.Labels != nil {
			r.Get("/labels/proxy", labelcontrollers.Proxy(deps.Labels, logg))
			r.Get("/labels/print", labelcontrollers.Print(deps.Labels, labelProxyPath, logg))
		}
	})

	return r
}
