package enums

import "fmt"

// WebhookSource identifies the sender of an inbound webhook.
type WebhookSource string

const (
	WebhookSourceStripe      WebhookSource = "stripe"
	WebhookSourceShippo      WebhookSource = "shippo"
	WebhookSourceShipEngine  WebhookSource = "shipengine"
	WebhookSourceShipStation WebhookSource = "shipstation"
)

var validWebhookSources = []WebhookSource{
	WebhookSourceStripe,
	WebhookSourceShippo,
	WebhookSourceShipEngine,
	WebhookSourceShipStation,
}

// String implements fmt.Stringer.
func (w WebhookSource) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WebhookSource.
func (w WebhookSource) IsValid() bool {
	for _, candidate := range validWebhookSources {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWebhookSource converts raw input into a WebhookSource.
func ParseWebhookSource(value string) (WebhookSource, error) {
	for _, candidate := range validWebhookSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook source %q", value)
}
