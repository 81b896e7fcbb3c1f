package packages

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]models.Package, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Package, error)
	FindByName(ctx context.Context, name string) (*models.Package, error)
	FindDefault(ctx context.Context) (*models.Package, error)
	Create(ctx context.Context, pkg *models.Package) error
	Update(ctx context.Context, pkg *models.Package) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearDefault(ctx context.Context) error
	MarkDefault(ctx context.Context, id uuid.UUID) error
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

func (r *repository) List(ctx context.Context) ([]models.Package, error) {
	var out []models.Package
	err := r.db.WithContext(ctx).Order("is_default DESC").Order("name ASC").Find(&out).Error
	return out, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// FindByName matches case-insensitively.
func (r *repository) FindByName(ctx context.Context, name string) (*models.Package, error) {
	var pkg models.Package
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("created_at ASC").
		First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) FindDefault(ctx context.Context) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) Create(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

func (r *repository) Update(ctx context.Context, pkg *models.Package) error {
	res := r.db.WithContext(ctx).
		Model(&models.Package{}).
		Where("id = ?", pkg.ID).
		Updates(map[string]any{
			"name":         pkg.Name,
			"length_cm":    pkg.LengthCm,
			"width_cm":     pkg.WidthCm,
			"height_cm":    pkg.HeightCm,
			"weight_grams": pkg.WeightGrams,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Package{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ClearDefault(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.Package{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}

func (r *repository) MarkDefault(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Package{}).
		Where("id = ?", id).
		Update("is_default", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
