package models

import "time"

// StoreSettingsID is the primary key of the singleton settings row.
const StoreSettingsID = 1

// StoreSettings holds the store-wide shipping origin.
type StoreSettings struct {
	ID             int       `gorm:"column:id;primaryKey"`
	StoreName      string    `gorm:"column:store_name"`
	ShippingOrigin Address   `gorm:"column:shipping_origin;type:jsonb;serializer:json"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StoreSettings) TableName() string {
	return "store_settings"
}
