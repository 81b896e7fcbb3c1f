package models

import (
	"github.com/google/uuid"
)

// Product is a read-only catalog row; weight may be unset.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name"`
	WeightGrams *int      `gorm:"column:weight_grams"`
}

// ProductVariant overrides the product weight when set.
type ProductVariant struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name        string    `gorm:"column:name"`
	WeightGrams *int      `gorm:"column:weight_grams"`
}

type Customer struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FullName string    `gorm:"column:full_name"`
	Email    string    `gorm:"column:email"`
	Phone    string    `gorm:"column:phone"`
}

// ShippingDetails is the dedicated per-order shipping address record.
type ShippingDetails struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Name    string    `gorm:"column:name"`
	Address Address   `gorm:"column:address;type:jsonb;serializer:json"`
	Phone   string    `gorm:"column:phone"`
	Email   string    `gorm:"column:email"`
}

func (ShippingDetails) TableName() string {
	return "shipping_details"
}
