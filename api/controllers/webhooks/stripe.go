package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/stripe/stripe-go/v84"
)

const maxWebhookBody = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type eventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type eventLedger interface {
	Record(ctx context.Context, source enums.WebhookSource, externalID, eventType string, raw []byte) (*models.WebhookEvent, error)
}

// StripeWebhook verifies, stores and then applies Stripe payment events.
// Once the event is stored the response is 200 whatever processing does.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, ledger eventLedger, m *metrics.Fulfillment, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		source := string(enums.WebhookSourceStripe)

		if svc == nil || verifier == nil || ledger == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			m.IncWebhook(source, "unauthorized")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}
		event, err := verifier.VerifyEvent(payload, sigHeader)
		if err != nil {
			m.IncWebhook(source, "unauthorized")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		if _, err := ledger.Record(ctx, enums.WebhookSourceStripe, event.ID, string(event.Type), payload); err != nil {
			if errors.Is(err, webhooks.ErrDuplicate) {
				m.IncWebhook(source, metrics.OutcomeDuplicate)
				responses.WriteSuccess(w, map[string]any{"received": true, "duplicate": true})
				return
			}
			m.IncWebhook(source, metrics.OutcomeFailure)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store stripe event"))
			return
		}

		outcome := metrics.OutcomeSuccess
		if err := svc.HandleEvent(ctx, &event); err != nil {
			outcome = metrics.OutcomeFailure
			if logg != nil {
				logg.Error(ctx, "webhooks.stripe.process_failed", err)
			}
		} else if logg != nil {
			logg.Info(ctx, "webhooks.stripe.processed")
		}
		m.IncWebhook(source, outcome)
		responses.WriteSuccess(w, map[string]any{"received": true})
	}
}
