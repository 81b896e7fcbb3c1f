package shipping

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/fulfillment"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fulfillmentService interface {
	GetRates(ctx context.Context, input fulfillment.RatesInput) ([]carriers.Rate, error)
	PurchaseLabel(ctx context.Context, input fulfillment.PurchaseInput) (*fulfillment.PurchaseResult, error)
	VoidLabel(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
}

type originService interface {
	Origin(ctx context.Context) (models.Address, error)
	UpdateOrigin(ctx context.Context, input settings.OriginInput) (models.Address, error)
}

type voidRequest struct {
	ShipmentID uuid.UUID `json:"shipmentId" validate:"required"`
}

// Rates quotes carrier rates for an order's default or chosen package.
func Rates(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		var body fulfillment.RatesInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, body.OrderID.String())
		}
		rates, err := svc.GetRates(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if rates == nil {
			rates = []carriers.Rate{}
		}
		responses.WriteSuccess(w, map[string]any{"rates": rates})
	}
}

// PurchaseLabel buys a label for the chosen rate. The Idempotency-Key header,
// when present, travels with the purchase.
func PurchaseLabel(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		var body fulfillment.PurchaseInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.IdempotencyKey = middleware.IdempotencyKeyFromContext(r.Context())

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, body.OrderID.String())
		}
		result, err := svc.PurchaseLabel(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func VoidLabel(svc fulfillmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		var body voidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithShipmentID(ctx, body.ShipmentID.String())
		}
		shipment, err := svc.VoidLabel(ctx, body.ShipmentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, shipment)
	}
}

func GetOrigin(svc originService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		origin, err := svc.Origin(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, origin)
	}
}

func UpdateOrigin(svc originService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var body settings.OriginInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		origin, err := svc.UpdateOrigin(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, origin)
	}
}
