// Package settings manages the store-wide shipping origin.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

// OriginInput is the admin payload for the shipping origin.
type OriginInput struct {
	Name       string `json:"name" validate:"notblank"`
	Company    string `json:"company"`
	Line1      string `json:"line1" validate:"notblank"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"notblank"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"notblank"`
	Country    string `json:"country" validate:"country2"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
}

func (in OriginInput) address() models.Address {
	return models.Address{
		Name:       strings.TrimSpace(in.Name),
		Company:    strings.TrimSpace(in.Company),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.TrimSpace(in.Email),
	}
}

type Service interface {
	// Origin returns the configured origin or a configuration error.
	Origin(ctx context.Context) (models.Address, error)
	UpdateOrigin(ctx context.Context, input OriginInput) (models.Address, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Origin(ctx context.Context) (models.Address, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Address{}, missingOrigin()
		}
		return models.Address{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load store settings")
	}
	if row.ShippingOrigin.IsZero() {
		return models.Address{}, missingOrigin()
	}
	origin := row.ShippingOrigin
	if origin.Company == "" {
		origin.Company = row.StoreName
	}
	return origin, nil
}

func (s *service) UpdateOrigin(ctx context.Context, input OriginInput) (models.Address, error) {
	row, err := s.repo.SaveOrigin(ctx, input.address())
	if err != nil {
		return models.Address{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save shipping origin")
	}
	return row.ShippingOrigin, nil
}

func missingOrigin() error {
	return pkgerrors.New(pkgerrors.CodeConfiguration, "store shipping origin is not configured").
		WithDetails(map[string]any{"reason": "missing_shipping_origin"})
}
