package orders

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceRepository reads admin invoices and links them to the order created
// when they are paid.
type InvoiceRepository interface {
	WithTx(tx *gorm.DB) InvoiceRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, orderID uuid.UUID, paidAt time.Time) error
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) WithTx(tx *gorm.DB) InvoiceRepository {
	if tx == nil {
		return r
	}
	return &invoiceRepository{db: tx}
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Invoice, error) {
	pi := strings.TrimSpace(paymentIntentID)
	if pi == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", pi).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// MarkPaid only touches invoices that are not linked to an order yet, so a
// replayed payment cannot relink an invoice.
func (r *invoiceRepository) MarkPaid(ctx context.Context, id uuid.UUID, orderID uuid.UUID, paidAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND order_id IS NULL", id).
		Updates(map[string]any{
			"status":   enums.InvoiceStatusPaid,
			"order_id": orderID,
			"paid_at":  paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
