package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	EnvTest = "test"
	EnvLive = "live"
)

var (
	ErrSecretRequired   = errors.New("stripe webhook secret is required")
	ErrLivemodeMismatch = errors.New("stripe event livemode does not match configured environment")
)

// Client verifies Stripe webhook deliveries for one environment.
type Client struct {
	environment string
	secret      string
	tolerance   time.Duration
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	if env != EnvTest && env != EnvLive {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", EnvTest, EnvLive, env)
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":       env,
			"stripe_tolerance": tolerance.String(),
		}), "stripe webhook verifier ready")
	}
	return &Client{environment: env, secret: secret, tolerance: tolerance}, nil
}

// Environment reports the configured Stripe environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// VerifyEvent checks the Stripe-Signature header against the raw body and
// decodes the event. API version drift is tolerated; a test-mode event sent
// to a live endpoint (or the reverse) is not.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil || c.secret == "" {
		return stripe.Event{}, ErrSecretRequired
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.secret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, err
	}
	if event.Livemode != (c.environment == EnvLive) {
		return stripe.Event{}, ErrLivemodeMismatch
	}
	return event, nil
}
