package enums

import "fmt"

// ShippingStatus mirrors the physical shipping progress of an order.
type ShippingStatus string

const (
	ShippingStatusPending   ShippingStatus = "pending"
	ShippingStatusShipped   ShippingStatus = "shipped"
	ShippingStatusDelivered ShippingStatus = "delivered"
)

var validShippingStatuses = []ShippingStatus{
	ShippingStatusPending,
	ShippingStatusShipped,
	ShippingStatusDelivered,
}

// String implements fmt.Stringer.
func (s ShippingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingStatus.
func (s ShippingStatus) IsValid() bool {
	for _, candidate := range validShippingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingStatus converts raw input into a ShippingStatus.
func ParseShippingStatus(value string) (ShippingStatus, error) {
	for _, candidate := range validShippingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping status %q", value)
}
