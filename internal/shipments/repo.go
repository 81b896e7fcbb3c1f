package shipments

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindPurchasedByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	FindByLabelObjectID(ctx context.Context, labelObjectID string) (*models.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error)
	Update(ctx context.Context, id uuid.UUID, columns map[string]any) error
	AppendEvent(ctx context.Context, event *models.ShipmentEvent) error
	ListEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error)
	// Delete removes the shipment's events and then the shipment.
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Omit("Events").Create(shipment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var s models.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindPurchasedByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var s models.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ShipmentStatusPurchased).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindByLabelObjectID(ctx context.Context, labelObjectID string) (*models.Shipment, error) {
	return r.findBy(ctx, "label_object_id", labelObjectID)
}

func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	return r.findBy(ctx, "tracking_number", trackingNumber)
}

func (r *repository) findBy(ctx context.Context, column, value string) (*models.Shipment, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var s models.Shipment
	err := r.db.WithContext(ctx).
		Where(column+" = ?", value).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error) {
	var out []models.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, columns map[string]any) error {
	if len(columns) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.ShipmentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	var out []models.ShipmentEvent
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("occurred_at ASC").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("shipment_id = ?", id).Delete(&models.ShipmentEvent{}).Error; err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Shipment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
