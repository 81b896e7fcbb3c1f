package carriers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AmountToCents converts a decimal string amount ("12.34") to integer cents.
func AmountToCents(amount string) (int64, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// FloatToCents converts a float amount to integer cents without binary drift.
func FloatToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// GramsToOunces converts grams for backends that only accept imperial units.
func GramsToOunces(grams int) float64 {
	oz, _ := decimal.NewFromInt(int64(grams)).Div(decimal.RequireFromString("28.349523125")).Round(2).Float64()
	return oz
}

// NormalizeCurrency upper-cases the ISO code, defaulting to USD.
func NormalizeCurrency(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return "USD"
	}
	return trimmed
}
