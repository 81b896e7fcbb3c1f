package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Shipment event codes written by this service. Carrier webhooks add their own
// event type or STATUS_<X> codes.
const (
	ShipmentEventLabelPurchased = "LABEL_PURCHASED"
	ShipmentEventLabelVoided    = "LABEL_VOIDED"
	ShipmentEventManualUpdate   = "MANUAL_SHIPMENT_UPDATED"
	ShipmentEventLabelResolved  = "LABEL_URL_RESOLVED"
)

// ShipmentEvent is an append-only audit entry for a shipment.
type ShipmentEvent struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ShipmentID  uuid.UUID      `gorm:"column:shipment_id;type:uuid;not null;index"`
	EventCode   string         `gorm:"column:event_code;not null"`
	Description string         `gorm:"column:description"`
	RawPayload  datatypes.JSON `gorm:"column:raw_payload;type:jsonb"`
	OccurredAt  time.Time      `gorm:"column:occurred_at;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}
