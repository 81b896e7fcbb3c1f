package carriers

import (
	"net/url"
	"strings"
)

var trackingURLTemplates = map[string]string{
	"usps":        "https://tools.usps.com/go/TrackConfirmAction?tLabels=",
	"stamps_com":  "https://tools.usps.com/go/TrackConfirmAction?tLabels=",
	"ups":         "https://www.ups.com/track?tracknum=",
	"fedex":       "https://www.fedex.com/fedextrack/?trknbr=",
	"dhl_express": "https://www.dhl.com/en/express/tracking.html?AWB=",
	"canada_post": "https://www.canadapost-postescanada.ca/track-reperage/en#/search?searchFor=",
}

// TrackingURL builds a public tracking link for well-known carriers. It
// returns "" when the carrier is unknown.
func TrackingURL(carrier, trackingNumber string) string {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return ""
	}
	key := strings.ToLower(strings.TrimSpace(carrier))
	key = strings.ReplaceAll(key, " ", "_")
	prefix, ok := trackingURLTemplates[key]
	if !ok {
		return ""
	}
	return prefix + url.QueryEscape(number)
}
