package fulfillment

import "github.com/angelmondragon/storefront-backend/pkg/db/models"

// DefaultItemWeightGrams is assumed for line items with no usable weight.
const DefaultItemWeightGrams = 200

// EstimateWeight returns the parcel weight in grams: per-item weight times
// quantity, plus the package tare, floored at 1 g.
func EstimateWeight(items []models.OrderItem, pkg *models.Package, defaultItemGrams int) int {
	if defaultItemGrams <= 0 {
		defaultItemGrams = DefaultItemWeightGrams
	}
	total := 0
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		total += itemWeight(item, defaultItemGrams) * item.Quantity
	}
	if pkg != nil && pkg.WeightGrams > 0 {
		total += pkg.WeightGrams
	}
	if total < 1 {
		return 1
	}
	return total
}

// variant weight wins over product weight; zero counts as unset.
func itemWeight(item models.OrderItem, fallback int) int {
	if item.Variant != nil && item.Variant.WeightGrams != nil && *item.Variant.WeightGrams > 0 {
		return *item.Variant.WeightGrams
	}
	if item.Product != nil && item.Product.WeightGrams != nil && *item.Product.WeightGrams > 0 {
		return *item.Product.WeightGrams
	}
	return fallback
}
