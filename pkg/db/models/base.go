package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ids are assigned client-side so rows written through sqlite match the
// Postgres gen_random_uuid() default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (e *ShipmentEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (w *WebhookEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

func (p *Package) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (d *ShippingDetails) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
