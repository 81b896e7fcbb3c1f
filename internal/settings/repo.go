package settings

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Get(ctx context.Context) (*models.StoreSettings, error)
	SaveOrigin(ctx context.Context, origin models.Address) (*models.StoreSettings, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context) (*models.StoreSettings, error) {
	var s models.StoreSettings
	if err := r.db.WithContext(ctx).Where("id = ?", models.StoreSettingsID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveOrigin upserts the singleton settings row.
func (r *repository) SaveOrigin(ctx context.Context, origin models.Address) (*models.StoreSettings, error) {
	row := models.StoreSettings{ID: models.StoreSettingsID, ShippingOrigin: origin}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"shipping_origin", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx)
}
