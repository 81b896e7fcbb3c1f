package fulfillment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/shipments"
	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"gorm.io/gorm"
)

const (
	persistAttempts = 3
	persistBackoff  = 250 * time.Millisecond
)

// purchaseEventPayload is stored on the LABEL_PURCHASED event.
type purchaseEventPayload struct {
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
	Provider       string             `json:"provider"`
	RateObjectID   string             `json:"rateObjectId"`
	TransactionID  string             `json:"transactionId,omitempty"`
	Status         string             `json:"status,omitempty"`
	LabelURL       string             `json:"labelUrl,omitempty"`
	TrackingNumber string             `json:"trackingNumber,omitempty"`
	PollAttempts   int                `json:"pollAttempts"`
	Messages       []carriers.Message `json:"messages,omitempty"`
}

func (s *service) PurchaseLabel(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	input.RateObjectID = strings.TrimSpace(input.RateObjectID)
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	if input.RateObjectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rateObjectId is required")
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	}

	guarded := s.enforceIdempotency && input.IdempotencyKey != ""
	fingerprint := purchaseFingerprint(input)
	if guarded {
		prior, err := s.guard.Begin(ctx, input.IdempotencyKey, fingerprint)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			s.metrics.IncPurchase(s.provider.Name(), metrics.OutcomeDuplicate)
			return prior, nil
		}
	}

	result, committed, err := s.purchase(ctx, input)
	if guarded {
		switch {
		case err == nil:
			if gerr := s.guard.Complete(context.WithoutCancel(ctx), input.IdempotencyKey, fingerprint, result); gerr != nil {
				s.logError(ctx, "fulfillment.idempotency_complete_failed", gerr)
			}
		case !committed:
			if gerr := s.guard.Abandon(context.WithoutCancel(ctx), input.IdempotencyKey); gerr != nil {
				s.logError(ctx, "fulfillment.idempotency_abandon_failed", gerr)
			}
		}
	}
	return result, err
}

// purchase reports committed=true once the carrier accepted the purchase;
// from that point the label exists whatever happens locally.
func (s *service) purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, bool, error) {
	provider := s.provider.Name()

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.shipments.FindPurchasedByOrder(ctx, order.ID)
	switch {
	case err == nil:
		s.metrics.IncPurchase(provider, metrics.OutcomeConflict)
		return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "a label has already been purchased for this order").
			WithDetails(map[string]any{"shipmentId": existing.ID})
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing shipment")
	}

	plan, err := s.plan(ctx, order, input.PackageRef)
	if err != nil {
		return nil, false, err
	}

	label, err := s.provider.PurchaseLabel(ctx, carriers.PurchaseRequest{
		RateObjectID:  input.RateObjectID,
		LabelFileType: s.labelFileType,
		From:          toCarrierAddress(plan.from),
		To:            toCarrierAddress(plan.to),
		Parcel:        toCarrierParcel(plan.parcel),
	})
	if err != nil {
		s.metrics.IncPurchase(provider, metrics.OutcomeFailure)
		return nil, false, carrierFailure(err, "purchase label")
	}
	if label == nil {
		label = &carriers.Label{}
	}

	attempts := s.awaitLabel(ctx, label)
	s.metrics.ObservePollAttempts(provider, attempts)

	if !label.HasLabelURL() && (len(label.MessageTexts()) > 0 || label.IsTerminalError()) {
		s.metrics.IncPurchase(provider, metrics.OutcomeRejected)
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"transaction_id": label.TransactionID,
				"carrier_status": label.Status,
			}), "fulfillment.label_blocked")
		}
		return nil, false, carrierRejected(label.Messages)
	}

	// The carrier has committed; local work must not be cancelled by the caller.
	ctx = context.WithoutCancel(ctx)

	shipment := buildShipment(plan, provider, input.RateObjectID, label)
	payload := purchaseEventPayload{
		IdempotencyKey: input.IdempotencyKey,
		Provider:       provider,
		RateObjectID:   input.RateObjectID,
		TransactionID:  label.TransactionID,
		Status:         label.Status,
		LabelURL:       label.LabelURL,
		TrackingNumber: label.TrackingNumber,
		PollAttempts:   attempts,
		Messages:       label.Messages,
	}
	if err := s.persistPurchase(ctx, shipment, payload); err != nil {
		s.metrics.IncPurchase(provider, metrics.OutcomeFailure)
		details := map[string]any{
			"provider":       provider,
			"orderId":        order.ID,
			"rateObjectId":   input.RateObjectID,
			"transactionId":  label.TransactionID,
			"labelUrl":       label.LabelURL,
			"trackingNumber": label.TrackingNumber,
		}
		if s.logg != nil {
			s.logg.Error(s.logg.WithFields(ctx, details), "fulfillment.shipment_persist_failed", err)
		}
		return nil, true, pkgerrors.Wrap(pkgerrors.CodeLabelUnrecorded, err, "label purchased but not recorded").
			WithDetails(details)
	}
	ctx = s.withShipment(ctx, shipment)

	effects := newAfterCommit(s.logg)
	if !label.HasLabelURL() && label.TransactionID != "" {
		effects.add("resolve_label_url", func(ctx context.Context) error {
			return s.resolveLabelURL(ctx, shipment)
		})
	}
	effects.add("order_status", func(ctx context.Context) error {
		fulfilled := enums.OrderStatusFulfilled
		shipped := enums.ShippingStatusShipped
		return s.orders.UpdateStatuses(ctx, order.ID, orders.StatusUpdate{OrderStatus: &fulfilled, ShippingStatus: &shipped})
	})
	if email := plan.to.Email; email != "" && s.mailer != nil {
		effects.add("confirmation_email", func(ctx context.Context) error {
			err := s.mailer.SendShipmentConfirmation(ctx, confirmationFor(order, plan.to, shipment))
			if errors.Is(err, mailer.ErrDisabled) {
				return nil
			}
			return err
		})
	}
	_ = effects.run(ctx)

	outcome := metrics.OutcomeSuccess
	if shipment.LabelURL == nil {
		outcome = metrics.OutcomeNoLabel
		s.logWarn(ctx, "fulfillment.label_url_pending")
	}
	s.metrics.IncPurchase(provider, outcome)
	if s.logg != nil {
		s.logg.Info(ctx, "fulfillment.label_purchased")
	}
	return resultFor(shipment), true, nil
}

// persistPurchase writes the shipment and its LABEL_PURCHASED event, retrying
// the transaction a few times since the carrier has already charged for the
// label.
func (s *service) persistPurchase(ctx context.Context, shipment *models.Shipment, payload purchaseEventPayload) error {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if attempt > 1 {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "fulfillment.shipment_persist_retry")
			}
			if serr := s.sleep(ctx, time.Duration(attempt-1)*persistBackoff); serr != nil {
				return errors.Join(err, serr)
			}
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.shipments.WithTx(tx)
			if err := repo.Create(ctx, shipment); err != nil {
				return err
			}
			event, err := shipments.NewEvent(shipment.ID, models.ShipmentEventLabelPurchased, "Label purchased", payload, s.now())
			if err != nil {
				return err
			}
			return repo.AppendEvent(ctx, event)
		})
		if err == nil {
			return nil
		}
	}
	return err
}

// awaitLabel looks the transaction up once, then polls on a fixed interval
// until a label URL appears, the carrier reports a terminal error, the
// attempt budget runs out or ctx ends. It returns the number of lookups made.
func (s *service) awaitLabel(ctx context.Context, label *carriers.Label) int {
	if label.HasLabelURL() || label.IsTerminalError() || label.TransactionID == "" {
		return 0
	}
	attempts := 0
	lookup := func() bool {
		attempts++
		fresh, err := s.provider.LookupLabel(ctx, label.TransactionID)
		if err != nil {
			if errors.Is(err, carriers.ErrLookupUnsupported) {
				return true
			}
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "fulfillment.label_lookup_failed")
			}
			return ctx.Err() != nil
		}
		label.Merge(fresh)
		return label.HasLabelURL() || label.IsTerminalError()
	}

	if lookup() {
		return attempts
	}
	for i := 0; i < s.pollAttempts; i++ {
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			break
		}
		if lookup() {
			break
		}
	}
	return attempts
}

// resolveLabelURL is the post-insert safety net for labels that were still
// rendering when the purchase returned.
func (s *service) resolveLabelURL(ctx context.Context, shipment *models.Shipment) error {
	if shipment.LabelObjectID == nil {
		return nil
	}
	label, err := s.provider.LookupLabel(ctx, *shipment.LabelObjectID)
	if err != nil {
		if errors.Is(err, carriers.ErrLookupUnsupported) {
			return nil
		}
		return err
	}
	if !label.HasLabelURL() {
		return nil
	}
	cols := map[string]any{"label_url": label.LabelURL}
	if shipment.TrackingNumber == nil && label.TrackingNumber != "" {
		cols["tracking_number"] = label.TrackingNumber
	}
	if shipment.TrackingURL == nil && label.TrackingURL != "" {
		cols["tracking_url"] = label.TrackingURL
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.shipments.WithTx(tx)
		if err := repo.Update(ctx, shipment.ID, cols); err != nil {
			return err
		}
		event, err := shipments.NewEvent(shipment.ID, models.ShipmentEventLabelResolved, "Label URL resolved after purchase",
			map[string]any{"transactionId": *shipment.LabelObjectID, "labelUrl": label.LabelURL}, s.now())
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		return err
	}
	shipment.LabelURL = &label.LabelURL
	if v, ok := cols["tracking_number"].(string); ok {
		shipment.TrackingNumber = &v
	}
	if v, ok := cols["tracking_url"].(string); ok {
		shipment.TrackingURL = &v
	}
	return nil
}

func buildShipment(plan *shipmentPlan, provider, rateObjectID string, label *carriers.Label) *models.Shipment {
	trackingURL := label.TrackingURL
	if trackingURL == "" {
		trackingURL = carriers.TrackingURL(label.Carrier, label.TrackingNumber)
	}
	currency := label.Currency
	if currency == "" {
		currency = carriers.NormalizeCurrency("")
	}
	return &models.Shipment{
		OrderID:          plan.order.ID,
		Status:           enums.ShipmentStatusPurchased,
		Provider:         enums.CarrierProvider(provider),
		Carrier:          label.Carrier,
		Service:          label.Service,
		TrackingNumber:   optional(label.TrackingNumber),
		TrackingURL:      optional(trackingURL),
		LabelURL:         optional(label.LabelURL),
		RateObjectID:     rateObjectID,
		LabelObjectID:    optional(label.TransactionID),
		PriceAmountCents: label.AmountCents,
		PriceCurrency:    currency,
		ToAddress:        plan.to,
		FromAddress:      plan.from,
		Parcel:           plan.parcel,
	}
}

func confirmationFor(order *models.Order, to models.Address, shipment *models.Shipment) mailer.ShipmentConfirmation {
	return mailer.ShipmentConfirmation{
		OrderNumber:    order.OrderNumber,
		CustomerName:   to.Name,
		CustomerEmail:  to.Email,
		Carrier:        shipment.Carrier,
		Service:        shipment.Service,
		TrackingNumber: deref(shipment.TrackingNumber),
		TrackingURL:    deref(shipment.TrackingURL),
	}
}

func resultFor(shipment *models.Shipment) *PurchaseResult {
	return &PurchaseResult{
		ShipmentID:     shipment.ID,
		LabelURL:       deref(shipment.LabelURL),
		TrackingNumber: deref(shipment.TrackingNumber),
		TrackingURL:    deref(shipment.TrackingURL),
		Carrier:        shipment.Carrier,
		Service:        shipment.Service,
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
