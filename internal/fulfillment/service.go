// Package fulfillment rates, buys and voids carrier labels for storefront
// orders and keeps shipment and order state in step with the carrier.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/shipments"
	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPollAttempts = 6
	defaultPollInterval = 750 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderStore interface {
	GetWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatuses(ctx context.Context, id uuid.UUID, update orders.StatusUpdate) error
}

type packageResolver interface {
	Resolve(ctx context.Context, ref string) (*models.Package, error)
}

type originSource interface {
	Origin(ctx context.Context) (models.Address, error)
}

type confirmationSender interface {
	SendShipmentConfirmation(ctx context.Context, data mailer.ShipmentConfirmation) error
}

// RatesInput selects the order and, optionally, a package preset by id or name.
type RatesInput struct {
	OrderID    uuid.UUID `json:"orderId" validate:"required"`
	PackageRef string    `json:"packageId,omitempty" validate:"omitempty,max=120"`
}

// PurchaseInput buys the chosen rate for an order.
type PurchaseInput struct {
	OrderID        uuid.UUID `json:"orderId" validate:"required"`
	RateObjectID   string    `json:"rateObjectId" validate:"required,max=255"`
	PackageRef     string    `json:"packageId,omitempty" validate:"omitempty,max=120"`
	IdempotencyKey string    `json:"-"`
}

// PurchaseResult is returned to the admin after a label purchase.
type PurchaseResult struct {
	ShipmentID     uuid.UUID `json:"shipmentId"`
	LabelURL       string    `json:"labelUrl"`
	TrackingNumber string    `json:"trackingNumber"`
	TrackingURL    string    `json:"trackingUrl"`
	Carrier        string    `json:"carrier"`
	Service        string    `json:"service"`
}

type Service interface {
	GetRates(ctx context.Context, input RatesInput) ([]carriers.Rate, error)
	PurchaseLabel(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
	VoidLabel(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
}

type ServiceParams struct {
	Provider  carriers.Provider
	Orders    orderStore
	Packages  packageResolver
	Settings  originSource
	Shipments shipments.Repository
	Tx        txRunner
	Mailer    confirmationSender
	Guard     PurchaseGuard
	Metrics   *metrics.Fulfillment
	Logger    *logger.Logger

	EnforceIdempotency bool
	DefaultItemWeightG int
	LabelFileType      string
	PollAttempts       int
	PollInterval       time.Duration

	Clock func() time.Time
	// Sleep waits between label lookups; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type service struct {
	provider  carriers.Provider
	orders    orderStore
	packages  packageResolver
	settings  originSource
	shipments shipments.Repository
	tx        txRunner
	mailer    confirmationSender
	guard     PurchaseGuard
	metrics   *metrics.Fulfillment
	logg      *logger.Logger

	enforceIdempotency bool
	defaultItemWeightG int
	labelFileType      string
	pollAttempts       int
	pollInterval       time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(params ServiceParams) (Service, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("carrier provider required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Packages == nil {
		return nil, fmt.Errorf("package resolver required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings service required")
	}
	if params.Shipments == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.EnforceIdempotency && params.Guard == nil {
		return nil, fmt.Errorf("purchase guard required when idempotency is enforced")
	}

	svc := &service{
		provider:           params.Provider,
		orders:             params.Orders,
		packages:           params.Packages,
		settings:           params.Settings,
		shipments:          params.Shipments,
		tx:                 params.Tx,
		mailer:             params.Mailer,
		guard:              params.Guard,
		metrics:            params.Metrics,
		logg:               params.Logger,
		enforceIdempotency: params.EnforceIdempotency,
		defaultItemWeightG: params.DefaultItemWeightG,
		labelFileType:      strings.TrimSpace(params.LabelFileType),
		pollAttempts:       params.PollAttempts,
		pollInterval:       params.PollInterval,
		now:                params.Clock,
		sleep:              params.Sleep,
	}
	if svc.defaultItemWeightG <= 0 {
		svc.defaultItemWeightG = DefaultItemWeightGrams
	}
	if svc.pollAttempts < 0 {
		svc.pollAttempts = defaultPollAttempts
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.sleep == nil {
		svc.sleep = sleepContext
	}
	return svc, nil
}

// shipmentPlan is everything resolved before talking to the carrier.
type shipmentPlan struct {
	order  *models.Order
	from   models.Address
	to     models.Address
	parcel models.Parcel
}

func (p shipmentPlan) rateRequest() carriers.RateRequest {
	return carriers.RateRequest{
		From:   toCarrierAddress(p.from),
		To:     toCarrierAddress(p.to),
		Parcel: toCarrierParcel(p.parcel),
	}
}

func (s *service) GetRates(ctx context.Context, input RatesInput) ([]carriers.Rate, error) {
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, order, input.PackageRef)
	if err != nil {
		return nil, err
	}
	rates, err := s.provider.GetRates(ctx, plan.rateRequest())
	if err != nil {
		return nil, carrierFailure(err, "fetch shipping rates")
	}
	if rates == nil {
		rates = []carriers.Rate{}
	}
	return rates, nil
}

func (s *service) VoidLabel(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.shipments.FindByID(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}
	if shipment.Status != enums.ShipmentStatusPurchased {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only purchased shipments can be voided").
			WithDetails(map[string]any{"status": shipment.Status})
	}
	if shipment.LabelObjectID == nil || strings.TrimSpace(*shipment.LabelObjectID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment has no carrier transaction to void")
	}
	if shipment.Provider != enums.CarrierProvider(s.provider.Name()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment was purchased through a different provider").
			WithDetails(map[string]any{"provider": shipment.Provider})
	}

	ctx = s.withShipment(ctx, shipment)
	if err := s.provider.VoidLabel(ctx, *shipment.LabelObjectID); err != nil {
		return nil, carrierFailure(err, "void label")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.shipments.WithTx(tx)
		if err := repo.Update(ctx, shipment.ID, map[string]any{"status": enums.ShipmentStatusVoided}); err != nil {
			return err
		}
		event, err := shipments.NewEvent(shipment.ID, models.ShipmentEventLabelVoided, "Label voided",
			map[string]any{"transactionId": *shipment.LabelObjectID, "provider": shipment.Provider}, s.now())
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		// The carrier already refunded the label; keep the caller informed.
		s.logError(ctx, "fulfillment.void_persist_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record voided label")
	}
	shipment.Status = enums.ShipmentStatusVoided
	if s.logg != nil {
		s.logg.Info(ctx, "fulfillment.label_voided")
	}
	return shipment, nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	order, err := s.orders.GetWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) plan(ctx context.Context, order *models.Order, packageRef string) (*shipmentPlan, error) {
	from, err := s.settings.Origin(ctx)
	if err != nil {
		return nil, err
	}
	pkg, err := s.packages.Resolve(ctx, packageRef)
	if err != nil {
		return nil, err
	}
	weight := EstimateWeight(order.Items, pkg, s.defaultItemWeightG)
	return &shipmentPlan{
		order:  order,
		from:   from,
		to:     Destination(order),
		parcel: parcelSnapshot(pkg, weight),
	}, nil
}

func (s *service) withShipment(ctx context.Context, shipment *models.Shipment) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithOrderID(ctx, shipment.OrderID.String())
	return s.logg.WithShipmentID(ctx, shipment.ID.String())
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

func (s *service) logWarn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

// carrierFailure maps a carrier error onto the API taxonomy. Rejections with
// carrier messages are passed through verbatim.
func carrierFailure(err error, action string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action+": carrier request timed out")
	}
	if errors.Is(err, carriers.ErrNoCredentials) {
		return pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "no carrier credential configured")
	}
	if cerr := carriers.AsError(err); cerr != nil {
		if texts := carriers.MessageTexts(cerr.Messages); len(texts) > 0 && cerr.IsValidation() {
			return carrierRejected(cerr.Messages)
		}
		if cerr.IsAuthClass() {
			return pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "carrier rejected every configured credential")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func carrierRejected(messages []carriers.Message) error {
	texts := carriers.MessageTexts(messages)
	msg := "carrier rejected the request"
	if len(texts) > 0 {
		msg = strings.Join(texts, "; ")
	}
	return pkgerrors.New(pkgerrors.CodeCarrierRejected, msg).
		WithDetails(map[string]any{"messages": messages})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
