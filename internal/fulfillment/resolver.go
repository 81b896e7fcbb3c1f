package fulfillment

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Destination returns the ship-to snapshot for an order. The dedicated
// shipping details record wins; the billing address is the fallback.
func Destination(order *models.Order) models.Address {
	if order == nil {
		return models.Address{}
	}
	var addr models.Address
	var shippingName, phone, email string
	if details := order.ShippingDetails; details != nil {
		addr = details.Address
		shippingName = firstNonEmpty(details.Name, details.Address.Name)
		phone = details.Phone
		email = details.Email
	} else {
		addr = order.BillingAddress
	}

	addr.Name = firstNonEmpty(shippingName, customerName(order), order.BillingName, order.BillingAddress.Name)
	addr.Phone = firstNonEmpty(phone, addr.Phone, customerPhone(order))
	addr.Email = firstNonEmpty(email, addr.Email, order.Email, customerEmail(order))
	return addr
}

func customerName(order *models.Order) string {
	if order.Customer == nil {
		return ""
	}
	return order.Customer.FullName
}

func customerPhone(order *models.Order) string {
	if order.Customer == nil {
		return ""
	}
	return order.Customer.Phone
}

func customerEmail(order *models.Order) string {
	if order.Customer == nil {
		return ""
	}
	return order.Customer.Email
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Missing fields are passed through as empty strings; the carrier validates.
func toCarrierAddress(a models.Address) carriers.Address {
	return carriers.Address{
		Name:       a.Name,
		Company:    a.Company,
		Street1:    a.Line1,
		Street2:    a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
		Email:      a.Email,
	}
}

func parcelSnapshot(pkg *models.Package, weightGrams int) models.Parcel {
	return models.Parcel{
		LengthCm:    pkg.LengthCm,
		WidthCm:     pkg.WidthCm,
		HeightCm:    pkg.HeightCm,
		WeightGrams: weightGrams,
		PackageName: pkg.Name,
	}
}

func toCarrierParcel(p models.Parcel) carriers.Parcel {
	return carriers.Parcel{
		LengthCm:    p.LengthCm,
		WidthCm:     p.WidthCm,
		HeightCm:    p.HeightCm,
		WeightGrams: p.WeightGrams,
	}
}
