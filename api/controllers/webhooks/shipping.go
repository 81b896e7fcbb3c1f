package webhooks

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	shippingwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/shipping"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const ShippingSecretHeader = "X-Webhook-Secret"

type shippingHandler interface {
	Handle(ctx context.Context, raw []byte) (shippingwebhook.Outcome, error)
}

// ShippingWebhook authenticates carrier callbacks by shared secret. Only a
// bad secret (401), an unparseable body (400) or a failed store (503) are
// reported back to the sender; everything else answers 200.
func ShippingWebhook(svc shippingHandler, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping webhook unavailable"))
			return
		}
		if !secretMatches(secret, r.Header.Get(ShippingSecretHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		outcome, err := svc.Handle(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"received": true, "outcome": outcome})
	}
}

// An unconfigured secret rejects every request.
func secretMatches(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
