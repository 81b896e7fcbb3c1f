package packages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input is the editable part of a package preset.
type Input struct {
	Name        string  `json:"name" validate:"required,max=120"`
	LengthCm    float64 `json:"lengthCm" validate:"gt=0"`
	WidthCm     float64 `json:"widthCm" validate:"gt=0"`
	HeightCm    float64 `json:"heightCm" validate:"gt=0"`
	WeightGrams int     `json:"weightGrams" validate:"gte=0"`
	IsDefault   bool    `json:"isDefault"`
}

type Service interface {
	List(ctx context.Context) ([]models.Package, error)
	Create(ctx context.Context, input Input) (*models.Package, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*models.Package, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetDefault(ctx context.Context, id uuid.UUID) (*models.Package, error)
	// Resolve returns the preset named by ref (id or name) or the default
	// preset when ref is blank.
	Resolve(ctx context.Context, ref string) (*models.Package, error)
}

type ServiceParams struct {
	Repo Repository
	Tx   txRunner
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("packages repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: params.Repo, tx: params.Tx}, nil
}

func (s *service) List(ctx context.Context) ([]models.Package, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list packages")
	}
	return list, nil
}

func (s *service) Create(ctx context.Context, input Input) (*models.Package, error) {
	pkg := &models.Package{
		Name:        strings.TrimSpace(input.Name),
		LengthCm:    input.LengthCm,
		WidthCm:     input.WidthCm,
		HeightCm:    input.HeightCm,
		WeightGrams: input.WeightGrams,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, pkg); err != nil {
			return err
		}
		if !input.IsDefault {
			return nil
		}
		if err := repo.ClearDefault(ctx); err != nil {
			return err
		}
		pkg.IsDefault = true
		return repo.MarkDefault(ctx, pkg.ID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create package")
	}
	return pkg, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*models.Package, error) {
	pkg := &models.Package{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		LengthCm:    input.LengthCm,
		WidthCm:     input.WidthCm,
		HeightCm:    input.HeightCm,
		WeightGrams: input.WeightGrams,
	}
	if err := s.repo.Update(ctx, pkg); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update package")
	}
	if input.IsDefault {
		return s.SetDefault(ctx, id)
	}
	return s.lookup(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete package")
	}
	return nil
}

// SetDefault clears the previous default and flags id in one transaction.
func (s *service) SetDefault(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := repo.ClearDefault(ctx); err != nil {
			return err
		}
		return repo.MarkDefault(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default package")
	}
	return s.lookup(ctx, id)
}

func (s *service) Resolve(ctx context.Context, ref string) (*models.Package, error) {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		var (
			pkg *models.Package
			err error
		)
		if id, parseErr := uuid.Parse(ref); parseErr == nil {
			pkg, err = s.repo.FindByID(ctx, id)
		} else {
			pkg, err = s.repo.FindByName(ctx, ref)
		}
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load package")
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "package not found").
			WithDetails(map[string]any{"package": ref})
	}

	pkg, err := s.repo.FindDefault(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "no package configured").
				WithDetails(map[string]any{"reason": "no_default_package"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default package")
	}
	return pkg, nil
}

func (s *service) lookup(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	pkg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load package")
	}
	return pkg, nil
}
