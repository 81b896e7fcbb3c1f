package shippingwebhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Event is the carrier-neutral view of a shipping webhook body.
type Event struct {
	EventID        string `json:"eventId,omitempty"`
	Type           string `json:"type,omitempty"`
	TransactionID  string `json:"transactionId,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Status         string `json:"status,omitempty"`
	TrackingStatus string `json:"trackingStatus,omitempty"`
}

// Field paths are tried in order; the first non-empty string wins.
var (
	eventIDPaths        = []string{"event_id", "eventId", "id"}
	typePaths           = []string{"event", "type", "resource_type"}
	transactionIDPaths  = []string{"data.object_id", "data.transaction", "data.transaction_id", "data.label_id", "object_id", "transaction"}
	trackingNumberPaths = []string{"data.tracking_number", "tracking_number", "data.tracking_status.tracking_number"}
	statusPaths         = []string{"data.status", "status", "data.object_status"}
	trackingStatusPaths = []string{
		"data.tracking_status.status",
		"data.tracking_status",
		"tracking_status.status",
		"tracking_status",
		"data.status_description",
		"data.status_code",
	}
)

// Normalize parses a raw webhook body. Unknown shapes yield an Event with
// empty fields; only invalid JSON is an error.
func Normalize(raw []byte) (Event, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Event{}, fmt.Errorf("decode webhook body: %w", err)
	}
	if doc == nil {
		return Event{}, fmt.Errorf("decode webhook body: expected a JSON object")
	}
	return Event{
		EventID:        firstString(doc, eventIDPaths),
		Type:           firstString(doc, typePaths),
		TransactionID:  firstString(doc, transactionIDPaths),
		TrackingNumber: firstString(doc, trackingNumberPaths),
		Status:         firstString(doc, statusPaths),
		TrackingStatus: firstString(doc, trackingStatusPaths),
	}, nil
}

func firstString(doc map[string]any, paths []string) string {
	for _, path := range paths {
		if v := lookupString(doc, path); v != "" {
			return v
		}
	}
	return ""
}

func lookupString(doc map[string]any, path string) string {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = obj[part]
		if !ok {
			return ""
		}
	}
	s, ok := cur.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// DecideStatus maps carrier vocabularies onto a shipment status. A delivered
// tracking status wins; then the transaction status decides.
func DecideStatus(ev Event) (enums.ShipmentStatus, bool) {
	tracking := strings.ToUpper(ev.TrackingStatus)
	status := strings.ToUpper(ev.Status)
	switch {
	case strings.Contains(tracking, "DELIVERED"):
		return enums.ShipmentStatusDelivered, true
	case strings.Contains(status, "SUCCESS"):
		return enums.ShipmentStatusPurchased, true
	case strings.Contains(status, "ERROR"), strings.Contains(status, "FAIL"):
		return enums.ShipmentStatusError, true
	}
	return "", false
}

// EventCode is the sender's event type, else STATUS_<X> from the reported status.
func EventCode(ev Event) string {
	if ev.Type != "" {
		return ev.Type
	}
	status := firstNonEmpty(ev.TrackingStatus, ev.Status)
	if status == "" {
		return "STATUS_UNKNOWN"
	}
	code := strings.ToUpper(strings.Join(strings.Fields(status), "_"))
	return "STATUS_" + code
}

func describe(ev Event) string {
	parts := []string{}
	if ev.TrackingStatus != "" {
		parts = append(parts, "tracking "+ev.TrackingStatus)
	}
	if ev.Status != "" {
		parts = append(parts, "transaction "+ev.Status)
	}
	if len(parts) == 0 {
		return "Carrier webhook received"
	}
	return "Carrier webhook: " + strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
