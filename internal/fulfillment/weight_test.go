package fulfillment

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
)

func grams(v int) *int { return &v }

func TestEstimateWeight(t *testing.T) {
	box := &models.Package{Name: "Small", WeightGrams: 120}

	cases := []struct {
		name  string
		items []models.OrderItem
		pkg   *models.Package
		want  int
	}{
		{
			name:  "missing weight falls back to default per unit",
			items: []models.OrderItem{{Quantity: 3}},
			want:  600,
		},
		{
			name:  "zero weights count as missing",
			items: []models.OrderItem{{Quantity: 3, Product: &models.Product{WeightGrams: grams(0)}, Variant: &models.ProductVariant{WeightGrams: grams(0)}}},
			want:  600,
		},
		{
			name:  "variant weight wins over product weight",
			items: []models.OrderItem{{Quantity: 3, Product: &models.Product{WeightGrams: grams(900)}, Variant: &models.ProductVariant{WeightGrams: grams(50)}}},
			want:  150,
		},
		{
			name:  "product weight used without variant weight",
			items: []models.OrderItem{{Quantity: 2, Product: &models.Product{WeightGrams: grams(75)}, Variant: &models.ProductVariant{}}},
			want:  150,
		},
		{
			name:  "package tare is added",
			items: []models.OrderItem{{Quantity: 1, Product: &models.Product{WeightGrams: grams(80)}}},
			pkg:   box,
			want:  200,
		},
		{
			name: "empty order floors at one gram",
			want: 1,
		},
		{
			name:  "non-positive quantities are ignored",
			items: []models.OrderItem{{Quantity: 0}, {Quantity: -2}},
			want:  1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EstimateWeight(tc.items, tc.pkg, DefaultItemWeightGrams))
		})
	}
}

func TestEstimateWeightCustomDefault(t *testing.T) {
	assert.Equal(t, 900, EstimateWeight([]models.OrderItem{{Quantity: 3}}, nil, 300))
	assert.Equal(t, 600, EstimateWeight([]models.OrderItem{{Quantity: 3}}, nil, 0))
}

func TestDestinationFallbacks(t *testing.T) {
	billing := models.Address{Name: "Billing Addr", Line1: "1 Main", City: "Austin", PostalCode: "78701", Country: "US"}

	t.Run("shipping details win", func(t *testing.T) {
		order := &models.Order{
			BillingName:    "Bill Payer",
			BillingAddress: billing,
			Customer:       &models.Customer{FullName: "Casey Customer", Email: "casey@example.com"},
			ShippingDetails: &models.ShippingDetails{
				Name:    "Sam Shipper",
				Address: models.Address{Line1: "9 Elm", City: "Reno", Country: "US"},
			},
		}
		got := Destination(order)
		assert.Equal(t, "Sam Shipper", got.Name)
		assert.Equal(t, "Reno", got.City)
		assert.Equal(t, "casey@example.com", got.Email)
	})

	t.Run("billing address with customer name", func(t *testing.T) {
		order := &models.Order{
			BillingName:    "Bill Payer",
			BillingAddress: billing,
			Email:          "order@example.com",
			Customer:       &models.Customer{FullName: "Casey Customer"},
		}
		got := Destination(order)
		assert.Equal(t, "Casey Customer", got.Name)
		assert.Equal(t, "Austin", got.City)
		assert.Equal(t, "order@example.com", got.Email)
	})

	t.Run("billing name last", func(t *testing.T) {
		order := &models.Order{BillingName: "Bill Payer", BillingAddress: billing}
		assert.Equal(t, "Bill Payer", Destination(order).Name)
	})

	t.Run("no names at all", func(t *testing.T) {
		order := &models.Order{BillingAddress: models.Address{City: "Austin"}}
		got := Destination(order)
		assert.Empty(t, got.Name)
		assert.Empty(t, got.Line1)
	})
}
