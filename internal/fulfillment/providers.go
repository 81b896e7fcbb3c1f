package fulfillment

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/carriers/shipengine"
	"github.com/angelmondragon/storefront-backend/pkg/carriers/shippo"
	"github.com/angelmondragon/storefront-backend/pkg/carriers/shipstation"
	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// NewProvider builds the carrier backend selected by STOREFRONT_SHIPPING_PROVIDER.
func NewProvider(cfg *config.Config, observer carriers.Observer) (carriers.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	opts := []carriers.Option{
		carriers.WithHTTPClient(&http.Client{Timeout: cfg.Shipping.CarrierTimeout}),
		carriers.WithBreaker(carriers.BreakerSettings{
			MaxFailures:  cfg.Shipping.BreakerMaxFailures,
			OpenDuration: cfg.Shipping.BreakerOpenDuration,
		}),
	}
	if observer != nil {
		opts = append(opts, carriers.WithObserver(observer))
	}

	switch cfg.Shipping.ProviderName() {
	case config.ProviderShippo:
		return shippo.New(cfg.Shippo.LiveToken, cfg.Shippo.TestToken,
			append(opts, carriers.WithBaseURL(cfg.Shippo.BaseURL))...)
	case config.ProviderShipEngine:
		return shipengine.New(cfg.ShipEngine.LiveAPIKey, cfg.ShipEngine.TestAPIKey, cfg.ShipEngine.CarrierIDList(),
			append(opts, carriers.WithBaseURL(cfg.ShipEngine.BaseURL))...)
	case config.ProviderShipStation:
		return shipstation.New(cfg.ShipStation.APIKey, cfg.ShipStation.APISecret, cfg.ShipStation.CarrierCodeList(),
			append(opts, carriers.WithBaseURL(cfg.ShipStation.BaseURL))...)
	default:
		return nil, fmt.Errorf("unknown shipping provider %q", cfg.Shipping.Provider)
	}
}
