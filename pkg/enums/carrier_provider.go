package enums

import "fmt"

// CarrierProvider names the aggregator backend that bought a label.
type CarrierProvider string

const (
	CarrierProviderShippo      CarrierProvider = "shippo"
	CarrierProviderShipEngine  CarrierProvider = "shipengine"
	CarrierProviderShipStation CarrierProvider = "shipstation"
	CarrierProviderManual      CarrierProvider = "manual"
)

var validCarrierProviders = []CarrierProvider{
	CarrierProviderShippo,
	CarrierProviderShipEngine,
	CarrierProviderShipStation,
	CarrierProviderManual,
}

// String implements fmt.Stringer.
func (c CarrierProvider) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CarrierProvider.
func (c CarrierProvider) IsValid() bool {
	for _, candidate := range validCarrierProviders {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCarrierProvider converts raw input into a CarrierProvider.
func ParseCarrierProvider(value string) (CarrierProvider, error) {
	for _, candidate := range validCarrierProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid carrier provider %q", value)
}
