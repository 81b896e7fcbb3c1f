package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is owned by the storefront; fulfillment reads it and writes the
// three status columns.
type Order struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber           string               `gorm:"column:order_number;not null"`
	CustomerID            *uuid.UUID           `gorm:"column:customer_id;type:uuid"`
	Email                 string               `gorm:"column:email"`
	BillingName           string               `gorm:"column:billing_name"`
	BillingAddress        Address              `gorm:"column:billing_address;type:jsonb;serializer:json"`
	OrderStatus           enums.OrderStatus    `gorm:"column:order_status;type:text;not null;default:'pending'"`
	ShippingStatus        enums.ShippingStatus `gorm:"column:shipping_status;type:text;not null;default:'pending'"`
	PaymentStatus         enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	StripePaymentIntentID *string              `gorm:"column:stripe_payment_intent_id;index"`
	SubtotalCents         int64                `gorm:"column:subtotal_cents;not null;default:0"`
	ShippingCents         int64                `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents            int64                `gorm:"column:total_cents;not null;default:0"`
	Currency              string               `gorm:"column:currency;not null;default:'USD'"`
	Items                 []OrderItem          `gorm:"foreignKey:OrderID"`
	Customer              *Customer            `gorm:"foreignKey:CustomerID"`
	ShippingDetails       *ShippingDetails     `gorm:"foreignKey:OrderID"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one line item. Weight is resolved through the variant and product.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	VariantID      *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	Name           string          `gorm:"column:name;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPriceCents int64           `gorm:"column:unit_price_cents;not null;default:0"`
	Product        *Product        `gorm:"foreignKey:ProductID"`
	Variant        *ProductVariant `gorm:"foreignKey:VariantID"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
