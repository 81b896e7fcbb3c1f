package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

var paidAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Orders:            orders.NewRepository(conn),
		Invoices:          orders.NewInvoiceRepository(conn),
		TransactionRunner: db.Wrap(conn),
		Clock:             func() time.Time { return paidAt },
	})
	require.NoError(t, err)
	return svc, conn
}

func paymentEvent(t *testing.T, eventType stripe.EventType, intent map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_test", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func strPtr(v string) *string { return &v }

func reloadOrder(t *testing.T, conn *gorm.DB, pi string) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.Preload("Items").Preload("ShippingDetails").Where("stripe_payment_intent_id = ?", pi).First(&order).Error)
	return order
}

func TestPaymentSucceededPromotesPendingOrder(t *testing.T) {
	svc, conn := newTestService(t)
	require.NoError(t, conn.Create(&models.Order{OrderNumber: "1001", StripePaymentIntentID: strPtr("pi_1")}).Error)

	err := svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_1", "object": "payment_intent"}))
	require.NoError(t, err)

	order := reloadOrder(t, conn, "pi_1")
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, order.OrderStatus)
}

func TestPaymentSucceededKeepsAdvancedOrderStatus(t *testing.T) {
	svc, conn := newTestService(t)
	require.NoError(t, conn.Create(&models.Order{
		OrderNumber:           "1002",
		OrderStatus:           enums.OrderStatusFulfilled,
		StripePaymentIntentID: strPtr("pi_2"),
	}).Error)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_2"})))

	order := reloadOrder(t, conn, "pi_2")
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusFulfilled, order.OrderStatus)
}

func TestPaymentFailedOnlyTouchesPaymentStatus(t *testing.T) {
	svc, conn := newTestService(t)
	require.NoError(t, conn.Create(&models.Order{OrderNumber: "1003", StripePaymentIntentID: strPtr("pi_3")}).Error)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{"id": "pi_3"})))

	order := reloadOrder(t, conn, "pi_3")
	assert.Equal(t, enums.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, order.OrderStatus)
}

func TestPaymentFailedWithoutOrderIsIgnored(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{"id": "pi_missing"}))
	assert.NoError(t, err)
}

func seedInvoice(t *testing.T, conn *gorm.DB, pi *string) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		InvoiceNumber:  "INV-7",
		Email:          "buyer@example.com",
		BillingName:    "Robin Buyer",
		BillingAddress: models.Address{Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
		ShippingAddress: &models.Address{
			Line1: "9 Dock Rd", City: "Tacoma", State: "WA", PostalCode: "98402", Country: "US", Phone: "555-0100",
		},
		Lines: []models.InvoiceLine{
			{Name: "Mug", Quantity: 2, UnitPriceCents: 1500},
			{Name: "Poster", Quantity: 1, UnitPriceCents: 2000},
		},
		ShippingCents:         800,
		Currency:              "usd",
		Status:                enums.InvoiceStatusSent,
		StripePaymentIntentID: pi,
	}
	require.NoError(t, conn.Create(invoice).Error)
	return invoice
}

func TestPaymentSucceededMaterializesInvoice(t *testing.T) {
	svc, conn := newTestService(t)
	invoice := seedInvoice(t, conn, strPtr("pi_inv"))

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_inv"})))

	order := reloadOrder(t, conn, "pi_inv")
	assert.Equal(t, "INV-7", order.OrderNumber)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, order.OrderStatus)
	assert.Equal(t, enums.ShippingStatusPending, order.ShippingStatus)
	assert.Equal(t, int64(5000), order.SubtotalCents)
	assert.Equal(t, int64(5800), order.TotalCents)
	assert.Equal(t, "USD", order.Currency)
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.ShippingDetails)
	assert.Equal(t, "Robin Buyer", order.ShippingDetails.Name)
	assert.Equal(t, "Tacoma", order.ShippingDetails.Address.City)
	assert.Equal(t, "buyer@example.com", order.ShippingDetails.Email)

	var stored models.Invoice
	require.NoError(t, conn.Where("id = ?", invoice.ID).First(&stored).Error)
	assert.Equal(t, enums.InvoiceStatusPaid, stored.Status)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, order.ID, *stored.OrderID)
	require.NotNil(t, stored.PaidAt)
}

func TestPaymentSucceededFindsInvoiceByMetadata(t *testing.T) {
	svc, conn := newTestService(t)
	invoice := seedInvoice(t, conn, nil)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":       "pi_meta",
		"metadata": map[string]string{"invoice_id": invoice.ID.String()},
	})))

	order := reloadOrder(t, conn, "pi_meta")
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
}

func TestMaterializedInvoiceReplayIsNoop(t *testing.T) {
	svc, conn := newTestService(t)
	seedInvoice(t, conn, strPtr("pi_twice"))
	event := paymentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_twice"})

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMaterializeLosingClaimRollsBack(t *testing.T) {
	svc, conn := newTestService(t)
	invoice := seedInvoice(t, conn, strPtr("pi_race"))

	// Another delivery already linked the invoice after this one read it.
	require.NoError(t, svc.txRunner.WithTx(context.Background(), func(tx *gorm.DB) error {
		order := orderFromInvoice(invoice, "pi_other")
		if err := orders.NewRepository(tx).Create(context.Background(), order); err != nil {
			return err
		}
		return orders.NewInvoiceRepository(tx).MarkPaid(context.Background(), invoice.ID, order.ID, paidAt)
	}))

	invoice.OrderID = nil
	intent := &stripe.PaymentIntent{ID: "pi_race"}
	stale := &staleInvoices{InvoiceRepository: orders.NewInvoiceRepository(conn), invoice: invoice}
	svc.invoices = stale
	require.NoError(t, svc.materializeInvoice(context.Background(), intent))

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

type staleInvoices struct {
	orders.InvoiceRepository
	invoice *models.Invoice
}

func (s *staleInvoices) FindByPaymentIntent(context.Context, string) (*models.Invoice, error) {
	copied := *s.invoice
	return &copied, nil
}

func (s *staleInvoices) WithTx(tx *gorm.DB) orders.InvoiceRepository {
	return orders.NewInvoiceRepository(tx)
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeChargeRefunded, Data: &stripe.EventData{Raw: []byte(`{}`)}})
	assert.NoError(t, err)
}

func TestHandleEventValidation(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.HandleEvent(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.HandleEvent(context.Background(), paymentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"object": "payment_intent"}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
