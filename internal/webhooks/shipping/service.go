// Package shippingwebhook reconciles carrier webhooks against stored shipments.
package shippingwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outcome describes what happened to an accepted webhook.
type Outcome string

const (
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOrphaned  Outcome = "orphaned"
	OutcomeApplied   Outcome = "applied"
	OutcomeFailed    Outcome = "failed"
)

type recorder interface {
	Record(ctx context.Context, source enums.WebhookSource, externalID, eventType string, raw []byte) (*models.WebhookEvent, error)
}

type shipmentFinder interface {
	FindByLabelObjectID(ctx context.Context, labelObjectID string) (*models.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
}

type shipmentWriter interface {
	ApplyStatus(ctx context.Context, shipment *models.Shipment, status enums.ShipmentStatus) error
	RecordEvent(ctx context.Context, shipmentID uuid.UUID, code, description string, payload any, occurredAt time.Time) error
}

type ServiceParams struct {
	Ledger    recorder
	Shipments shipmentFinder
	Writer    shipmentWriter
	Source    enums.WebhookSource
	Metrics   *metrics.Fulfillment
	Logger    *logger.Logger
}

type Service struct {
	ledger    recorder
	shipments shipmentFinder
	writer    shipmentWriter
	source    enums.WebhookSource
	metrics   *metrics.Fulfillment
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("webhook ledger required")
	}
	if params.Shipments == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("shipments service required")
	}
	source := params.Source
	if source == "" {
		source = enums.WebhookSourceShippo
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid webhook source %q", source)
	}
	return &Service{
		ledger:    params.Ledger,
		shipments: params.Shipments,
		writer:    params.Writer,
		source:    source,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Handle stores the raw body and applies it to the matching shipment.
// Only an unparseable body or a failed store returns an error; anything
// after the store is logged and reported through the Outcome.
func (s *Service) Handle(ctx context.Context, raw []byte) (Outcome, error) {
	ev, err := Normalize(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body")
	}
	key := webhooks.DedupKey(ev.EventID, raw)
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"webhook_source": s.source, "webhook_key": key})
	}

	if _, err := s.ledger.Record(ctx, s.source, key, ev.Type, raw); err != nil {
		if errors.Is(err, webhooks.ErrDuplicate) {
			s.count(OutcomeDuplicate)
			return OutcomeDuplicate, nil
		}
		s.count(OutcomeFailed)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store webhook event")
	}

	outcome, err := s.reconcile(ctx, ev, raw)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "webhooks.shipping.reconcile_failed", err)
		}
		outcome = OutcomeFailed
	}
	s.count(outcome)
	return outcome, nil
}

func (s *Service) reconcile(ctx context.Context, ev Event, raw []byte) (Outcome, error) {
	shipment, err := s.match(ctx, ev)
	if err != nil {
		return "", err
	}
	if shipment == nil {
		if s.logg != nil {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"transaction_id":  ev.TransactionID,
				"tracking_number": ev.TrackingNumber,
			}), "webhooks.shipping.orphaned")
		}
		return OutcomeOrphaned, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithShipmentID(ctx, shipment.ID.String())
	}

	if err := s.writer.RecordEvent(ctx, shipment.ID, EventCode(ev), describe(ev), raw, time.Time{}); err != nil {
		return "", fmt.Errorf("record shipment event: %w", err)
	}

	status, ok := DecideStatus(ev)
	if !ok {
		return OutcomeApplied, nil
	}
	// A late transaction-success callback must not revive a voided label.
	if status == enums.ShipmentStatusPurchased && shipment.Status == enums.ShipmentStatusVoided {
		return OutcomeApplied, nil
	}
	if err := s.writer.ApplyStatus(ctx, shipment, status); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// match tries the carrier transaction id first, then the tracking number.
func (s *Service) match(ctx context.Context, ev Event) (*models.Shipment, error) {
	if ev.TransactionID != "" {
		shipment, err := s.shipments.FindByLabelObjectID(ctx, ev.TransactionID)
		if err == nil {
			return shipment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find shipment by transaction: %w", err)
		}
	}
	if ev.TrackingNumber != "" {
		shipment, err := s.shipments.FindByTrackingNumber(ctx, ev.TrackingNumber)
		if err == nil {
			return shipment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find shipment by tracking number: %w", err)
		}
	}
	return nil, nil
}

func (s *Service) count(outcome Outcome) {
	s.metrics.IncWebhook(string(s.source), string(outcome))
}
