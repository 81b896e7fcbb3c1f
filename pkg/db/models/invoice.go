package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// InvoiceLine is a single billed line on an admin invoice.
type InvoiceLine struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
}

// Invoice is an admin-issued payment request. It becomes an Order once paid.
type Invoice struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber         string              `gorm:"column:invoice_number;not null"`
	CustomerID            *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	Email                 string              `gorm:"column:email"`
	BillingName           string              `gorm:"column:billing_name"`
	BillingAddress        Address             `gorm:"column:billing_address;type:jsonb;serializer:json"`
	ShippingAddress       *Address            `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Lines                 []InvoiceLine       `gorm:"column:lines;type:jsonb;serializer:json"`
	ShippingCents         int64               `gorm:"column:shipping_cents;not null;default:0"`
	Currency              string              `gorm:"column:currency;not null;default:'USD'"`
	Status                enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'sent'"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id;index"`
	OrderID               *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SubtotalCents sums the invoice lines.
func (i Invoice) SubtotalCents() int64 {
	var total int64
	for _, line := range i.Lines {
		total += int64(line.Quantity) * line.UnitPriceCents
	}
	return total
}
