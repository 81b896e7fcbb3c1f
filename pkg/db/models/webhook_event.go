package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// WebhookEvent is the durable record of an inbound webhook. The
// (source, external_event_id) pair is unique and drives deduplication.
type WebhookEvent struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Source          enums.WebhookSource `gorm:"column:source;type:text;not null;uniqueIndex:webhook_events_source_external_id_key"`
	ExternalEventID string              `gorm:"column:external_event_id;not null;uniqueIndex:webhook_events_source_external_id_key"`
	EventType       string              `gorm:"column:event_type"`
	RawPayload      datatypes.JSON      `gorm:"column:raw_payload;type:jsonb"`
	ReceivedAt      time.Time           `gorm:"column:received_at;not null"`
}
