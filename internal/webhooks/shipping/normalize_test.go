package shippingwebhook

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Event
	}{
		{
			name: "shippo track_updated",
			body: `{"event":"track_updated","data":{"tracking_number":"9400","tracking_status":{"status":"DELIVERED"}}}`,
			want: Event{Type: "track_updated", TrackingNumber: "9400", TrackingStatus: "DELIVERED"},
		},
		{
			name: "shippo transaction_updated",
			body: `{"event":"transaction_updated","data":{"object_id":"txn_1","status":"SUCCESS","tracking_number":"9400"}}`,
			want: Event{Type: "transaction_updated", TransactionID: "txn_1", TrackingNumber: "9400", Status: "SUCCESS"},
		},
		{
			name: "flat body with id",
			body: `{"id":"evt_9","type":"label","transaction":"txn_2","status":"ERROR","tracking_status":"IN_TRANSIT"}`,
			want: Event{EventID: "evt_9", Type: "label", TransactionID: "txn_2", Status: "ERROR", TrackingStatus: "IN_TRANSIT"},
		},
		{
			name: "shipengine tracking",
			body: `{"resource_type":"API_TRACK","data":{"label_id":"se-1","tracking_number":"1Z","status_description":"Delivered"}}`,
			want: Event{Type: "API_TRACK", TransactionID: "se-1", TrackingNumber: "1Z", TrackingStatus: "Delivered"},
		},
		{
			name: "non-string values are ignored",
			body: `{"id":42,"data":{"object_id":{"nested":true},"status":7}}`,
			want: Event{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRejectsInvalidJSON(t *testing.T) {
	_, err := Normalize([]byte(`{"event":`))
	assert.Error(t, err)
	_, err = Normalize([]byte(`null`))
	assert.Error(t, err)
}

func TestDecideStatus(t *testing.T) {
	cases := []struct {
		ev     Event
		want   enums.ShipmentStatus
		change bool
	}{
		{Event{TrackingStatus: "delivered"}, enums.ShipmentStatusDelivered, true},
		{Event{TrackingStatus: "DELIVERED", Status: "ERROR"}, enums.ShipmentStatusDelivered, true},
		{Event{Status: "success"}, enums.ShipmentStatusPurchased, true},
		{Event{Status: "ERROR"}, enums.ShipmentStatusError, true},
		{Event{Status: "LABEL_FAILED"}, enums.ShipmentStatusError, true},
		{Event{TrackingStatus: "TRANSIT", Status: "QUEUED"}, "", false},
		{Event{}, "", false},
	}
	for _, tc := range cases {
		got, ok := DecideStatus(tc.ev)
		assert.Equal(t, tc.change, ok, "%+v", tc.ev)
		assert.Equal(t, tc.want, got, "%+v", tc.ev)
	}
}

func TestEventCode(t *testing.T) {
	assert.Equal(t, "track_updated", EventCode(Event{Type: "track_updated", TrackingStatus: "DELIVERED"}))
	assert.Equal(t, "STATUS_IN_TRANSIT", EventCode(Event{TrackingStatus: "in transit"}))
	assert.Equal(t, "STATUS_ERROR", EventCode(Event{Status: "error"}))
	assert.Equal(t, "STATUS_UNKNOWN", EventCode(Event{}))
}
