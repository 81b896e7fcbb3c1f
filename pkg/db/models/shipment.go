package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Shipment is one purchased (or attempted) carrier label tied to a single order.
type Shipment struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	Status           enums.ShipmentStatus  `gorm:"column:status;type:text;not null;default:'purchased'"`
	Provider         enums.CarrierProvider `gorm:"column:provider;type:text;not null"`
	Carrier          string                `gorm:"column:carrier"`
	Service          string                `gorm:"column:service"`
	TrackingNumber   *string               `gorm:"column:tracking_number;index"`
	TrackingURL      *string               `gorm:"column:tracking_url"`
	LabelURL         *string               `gorm:"column:label_url"`
	RateObjectID     string                `gorm:"column:rate_object_id"`
	LabelObjectID    *string               `gorm:"column:label_object_id;index"`
	PriceAmountCents int64                 `gorm:"column:price_amount_cents;not null;default:0"`
	PriceCurrency    string                `gorm:"column:price_currency;not null;default:'USD'"`
	ToAddress        Address               `gorm:"column:to_address;type:jsonb;serializer:json"`
	FromAddress      Address               `gorm:"column:from_address;type:jsonb;serializer:json"`
	Parcel           Parcel                `gorm:"column:parcel;type:jsonb;serializer:json"`
	Events           []ShipmentEvent       `gorm:"foreignKey:ShipmentID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
