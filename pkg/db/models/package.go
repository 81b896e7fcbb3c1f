package models

import (
	"time"

	"github.com/google/uuid"
)

// Package is a parcel preset. Exactly one preset is flagged as default.
type Package struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	LengthCm    float64   `gorm:"column:length_cm;not null"`
	WidthCm     float64   `gorm:"column:width_cm;not null"`
	HeightCm    float64   `gorm:"column:height_cm;not null"`
	WeightGrams int       `gorm:"column:weight_grams;not null;default:0"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
