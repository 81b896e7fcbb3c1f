package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

// metadataInvoiceID is the PaymentIntent metadata key set when an admin
// invoice is sent for payment.
const metadataInvoiceID = "invoice_id"

var errAlreadyMaterialized = errors.New("invoice already linked to an order")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Orders            orders.Repository
	Invoices          orders.InvoiceRepository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Clock             func() time.Time
}

type Service struct {
	orders   orders.Repository
	invoices orders.InvoiceRepository
	txRunner txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		orders:   params.Orders,
		invoices: params.Invoices,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// HandleEvent applies a verified Stripe event. Event types other than the
// PaymentIntent outcomes are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if strings.TrimSpace(intent.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "payment_intent_id", intent.ID)
	}

	if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
		return s.markFailed(ctx, intent.ID)
	}
	return s.markSucceeded(ctx, &intent)
}

func (s *Service) markSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	order, err := s.orders.FindByPaymentIntent(ctx, intent.ID)
	switch {
	case err == nil:
		return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.orders.WithTx(tx)
			paid := enums.PaymentStatusPaid
			if err := repo.UpdateStatuses(ctx, order.ID, orders.StatusUpdate{PaymentStatus: &paid}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
			if err := repo.PromotePending(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote order")
			}
			return nil
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.materializeInvoice(ctx, intent)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
}

func (s *Service) markFailed(ctx context.Context, paymentIntentID string) error {
	order, err := s.orders.FindByPaymentIntent(ctx, paymentIntentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.info(ctx, "webhooks.stripe.payment_failed_without_order")
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	failed := enums.PaymentStatusFailed
	if err := s.orders.UpdateStatuses(ctx, order.ID, orders.StatusUpdate{PaymentStatus: &failed}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order payment failed")
	}
	return nil
}

// materializeInvoice turns the invoice behind a paid PaymentIntent into a new
// paid order. The invoice link is claimed inside the same transaction, so a
// replay that loses the race rolls its order back.
func (s *Service) materializeInvoice(ctx context.Context, intent *stripe.PaymentIntent) error {
	invoice, err := s.findInvoice(ctx, intent)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.info(ctx, "webhooks.stripe.no_order_or_invoice")
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice.OrderID != nil || invoice.Status == enums.InvoiceStatusVoid {
		s.info(ctx, "webhooks.stripe.invoice_skipped")
		return nil
	}

	paidAt := s.now().UTC()
	order := orderFromInvoice(invoice, intent.ID)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order from invoice")
		}
		if err := s.invoices.WithTx(tx).MarkPaid(ctx, invoice.ID, order.ID, paidAt); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errAlreadyMaterialized
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice paid")
		}
		return nil
	})
	if errors.Is(err, errAlreadyMaterialized) {
		s.info(ctx, "webhooks.stripe.invoice_already_materialized")
		return nil
	}
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "webhooks.stripe.invoice_materialized")
	}
	return nil
}

func (s *Service) findInvoice(ctx context.Context, intent *stripe.PaymentIntent) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByPaymentIntent(ctx, intent.ID)
	if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		return invoice, err
	}
	raw := strings.TrimSpace(intent.Metadata[metadataInvoiceID])
	if raw == "" {
		return nil, gorm.ErrRecordNotFound
	}
	id, parseErr := uuid.Parse(raw)
	if parseErr != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.invoices.FindByID(ctx, id)
}

func orderFromInvoice(invoice *models.Invoice, paymentIntentID string) *models.Order {
	subtotal := invoice.SubtotalCents()
	pi := paymentIntentID
	currency := strings.ToUpper(strings.TrimSpace(invoice.Currency))
	if currency == "" {
		currency = "USD"
	}

	order := &models.Order{
		ID:                    uuid.New(),
		OrderNumber:           invoice.InvoiceNumber,
		CustomerID:            invoice.CustomerID,
		Email:                 invoice.Email,
		BillingName:           invoice.BillingName,
		BillingAddress:        invoice.BillingAddress,
		OrderStatus:           enums.OrderStatusProcessing,
		ShippingStatus:        enums.ShippingStatusPending,
		PaymentStatus:         enums.PaymentStatusPaid,
		StripePaymentIntentID: &pi,
		SubtotalCents:         subtotal,
		ShippingCents:         invoice.ShippingCents,
		TotalCents:            subtotal + invoice.ShippingCents,
		Currency:              currency,
	}
	for _, line := range invoice.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	if invoice.ShippingAddress != nil && !invoice.ShippingAddress.IsZero() {
		addr := *invoice.ShippingAddress
		name := addr.Name
		if name == "" {
			name = invoice.BillingName
		}
		order.ShippingDetails = &models.ShippingDetails{
			Name:    name,
			Address: addr,
			Phone:   addr.Phone,
			Email:   firstNonEmpty(addr.Email, invoice.Email),
		}
	}
	return order
}

func (s *Service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
