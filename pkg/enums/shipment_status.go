package enums

import "fmt"

// ShipmentStatus tracks the lifecycle of a purchased carrier label.
type ShipmentStatus string

const (
	ShipmentStatusPurchased ShipmentStatus = "purchased"
	ShipmentStatusVoided    ShipmentStatus = "voided"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusError     ShipmentStatus = "error"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPurchased,
	ShipmentStatusVoided,
	ShipmentStatusDelivered,
	ShipmentStatusError,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
