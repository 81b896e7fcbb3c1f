package shipments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderStatusWriter interface {
	UpdateStatuses(ctx context.Context, id uuid.UUID, update orders.StatusUpdate) error
}

// Detail is a shipment with its audit trail.
type Detail struct {
	Shipment models.Shipment        `json:"shipment"`
	Events   []models.ShipmentEvent `json:"events"`
}

// ManualUpdate carries admin edits; nil fields are left unchanged.
type ManualUpdate struct {
	Carrier        *string               `json:"carrier,omitempty"`
	Service        *string               `json:"service,omitempty"`
	TrackingNumber *string               `json:"trackingNumber,omitempty"`
	TrackingURL    *string               `json:"trackingUrl,omitempty"`
	LabelURL       *string               `json:"labelUrl,omitempty"`
	Status         *enums.ShipmentStatus `json:"status,omitempty"`
}

func (u ManualUpdate) columns() map[string]any {
	cols := map[string]any{}
	setString := func(column string, v *string) {
		if v == nil {
			return
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			cols[column] = nil
			return
		}
		cols[column] = trimmed
	}
	if u.Carrier != nil {
		cols["carrier"] = strings.TrimSpace(*u.Carrier)
	}
	if u.Service != nil {
		cols["service"] = strings.TrimSpace(*u.Service)
	}
	setString("tracking_number", u.TrackingNumber)
	setString("tracking_url", u.TrackingURL)
	setString("label_url", u.LabelURL)
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	return cols
}

type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error)
	Update(ctx context.Context, id uuid.UUID, input ManualUpdate) (*models.Shipment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ApplyStatus writes status and, for delivered, propagates
	// shipping_status=delivered to the parent order.
	ApplyStatus(ctx context.Context, shipment *models.Shipment, status enums.ShipmentStatus) error
	RecordEvent(ctx context.Context, shipmentID uuid.UUID, code, description string, payload any, occurredAt time.Time) error
}

type ServiceParams struct {
	Repo   Repository
	Orders orderStatusWriter
	Tx     txRunner
	Logger *logger.Logger
	Clock  func() time.Time
}

type service struct {
	repo   Repository
	orders orderStatusWriter
	tx     txRunner
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		orders: params.Orders,
		tx:     params.Tx,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	shipment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipment events")
	}
	return &Detail{Shipment: *shipment, Events: events}, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error) {
	list, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input ManualUpdate) (*models.Shipment, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipment status").
			WithDetails(map[string]any{"status": string(*input.Status)})
	}
	cols := input.columns()
	if len(cols) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipment fields supplied")
	}

	shipment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	reviving := input.Status != nil && *input.Status == enums.ShipmentStatusPurchased && shipment.Status != enums.ShipmentStatusPurchased

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if reviving {
			// an order holds at most one live label
			live, err := repo.FindPurchasedByOrder(ctx, shipment.OrderID)
			switch {
			case err == nil && live.ID != id:
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a purchased shipment").
					WithDetails(map[string]any{"shipmentId": live.ID})
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		if err := repo.Update(ctx, id, cols); err != nil {
			return err
		}
		event, err := NewEvent(id, models.ShipmentEventManualUpdate, "Shipment updated manually", input, s.now())
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shipment")
	}

	if input.Status != nil && *input.Status == enums.ShipmentStatusDelivered {
		s.propagateDelivered(ctx, shipment.OrderID)
	}
	return s.load(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete shipment")
	}
	return nil
}

func (s *service) ApplyStatus(ctx context.Context, shipment *models.Shipment, status enums.ShipmentStatus) error {
	if shipment == nil {
		return fmt.Errorf("shipment required")
	}
	if err := s.repo.Update(ctx, shipment.ID, map[string]any{"status": status}); err != nil {
		return fmt.Errorf("update shipment status: %w", err)
	}
	shipment.Status = status
	if status != enums.ShipmentStatusDelivered {
		return nil
	}
	delivered := enums.ShippingStatusDelivered
	if err := s.orders.UpdateStatuses(ctx, shipment.OrderID, orders.StatusUpdate{ShippingStatus: &delivered}); err != nil {
		return fmt.Errorf("propagate delivered to order: %w", err)
	}
	return nil
}

func (s *service) RecordEvent(ctx context.Context, shipmentID uuid.UUID, code, description string, payload any, occurredAt time.Time) error {
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	event, err := NewEvent(shipmentID, code, description, payload, occurredAt)
	if err != nil {
		return err
	}
	return s.repo.AppendEvent(ctx, event)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}
	return shipment, nil
}

func (s *service) propagateDelivered(ctx context.Context, orderID uuid.UUID) {
	delivered := enums.ShippingStatusDelivered
	if err := s.orders.UpdateStatuses(ctx, orderID, orders.StatusUpdate{ShippingStatus: &delivered}); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "shipments.propagate_delivered_failed", err)
	}
}

// NewEvent builds a ShipmentEvent with payload encoded as JSON.
func NewEvent(shipmentID uuid.UUID, code, description string, payload any, occurredAt time.Time) (*models.ShipmentEvent, error) {
	var raw datatypes.JSON
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = datatypes.JSON(p)
	case []byte:
		raw = datatypes.JSON(p)
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode shipment event payload: %w", err)
		}
		raw = datatypes.JSON(encoded)
	}
	return &models.ShipmentEvent{
		ShipmentID:  shipmentID,
		EventCode:   code,
		Description: description,
		RawPayload:  raw,
		OccurredAt:  occurredAt.UTC(),
	}, nil
}
