package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNothingToUpdate is returned when a status update carries no fields.
var ErrNothingToUpdate = errors.New("no order status fields supplied")

// StatusUpdate names the order columns fulfillment may write. Nil fields are
// left untouched.
type StatusUpdate struct {
	OrderStatus    *enums.OrderStatus
	ShippingStatus *enums.ShippingStatus
	PaymentStatus  *enums.PaymentStatus
}

func (u StatusUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.OrderStatus != nil {
		cols["order_status"] = *u.OrderStatus
	}
	if u.ShippingStatus != nil {
		cols["shipping_status"] = *u.ShippingStatus
	}
	if u.PaymentStatus != nil {
		cols["payment_status"] = *u.PaymentStatus
	}
	return cols
}

// Repository reads orders for fulfillment and writes their status columns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateStatuses(ctx context.Context, id uuid.UUID, update StatusUpdate) error
	// PromotePending moves order_status from pending to next; other states are kept.
	PromotePending(ctx context.Context, id uuid.UUID, next enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		Preload("Items.Variant").
		Preload("Customer").
		Preload("ShippingDetails").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	pi := strings.TrimSpace(paymentIntentID)
	if pi == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", pi).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create inserts the order with its items and shipping details.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) UpdateStatuses(ctx context.Context, id uuid.UUID, update StatusUpdate) error {
	cols := update.columns()
	if len(cols) == 0 {
		return ErrNothingToUpdate
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) PromotePending(ctx context.Context, id uuid.UUID, next enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ?", id, enums.OrderStatusPending).
		Update("order_status", next).Error
}
