// Package webhooks stores every inbound webhook once, keyed by source and
// the sender's event id.
package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrDuplicate reports that the (source, external id) pair was already stored.
var ErrDuplicate = errors.New("webhook event already recorded")

type Repository interface {
	Exists(ctx context.Context, source enums.WebhookSource, externalID string) (bool, error)
	Insert(ctx context.Context, event *models.WebhookEvent) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Exists(ctx context.Context, source enums.WebhookSource, externalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("source = ? AND external_event_id = ?", source, externalID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Insert(ctx context.Context, event *models.WebhookEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

// Ledger records inbound webhooks before they are processed.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

func NewLedger(repo Repository, now func() time.Time) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, now: now}, nil
}

// Record stores the raw payload under (source, externalID). A replay returns
// ErrDuplicate, including when a concurrent delivery wins the insert race.
func (l *Ledger) Record(ctx context.Context, source enums.WebhookSource, externalID, eventType string, raw []byte) (*models.WebhookEvent, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("external event id required")
	}
	exists, err := l.repo.Exists(ctx, source, externalID)
	if err != nil {
		return nil, fmt.Errorf("lookup webhook event: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}

	event := &models.WebhookEvent{
		Source:          source,
		ExternalEventID: externalID,
		EventType:       eventType,
		RawPayload:      rawJSON(raw),
		ReceivedAt:      l.now().UTC(),
	}
	if err := l.repo.Insert(ctx, event); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("insert webhook event: %w", err)
	}
	return event, nil
}

// DedupKey is the sender's event id, or the SHA-256 of the raw body when the
// sender supplies none.
func DedupKey(eventID string, raw []byte) string {
	if id := strings.TrimSpace(eventID); id != "" {
		return id
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func rawJSON(raw []byte) datatypes.JSON {
	if !json.Valid(raw) {
		encoded, _ := json.Marshal(string(raw))
		return datatypes.JSON(encoded)
	}
	return datatypes.JSON(raw)
}
