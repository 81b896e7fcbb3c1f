// Package carriers defines the contract shared by the shipping aggregator
// backends (Shippo, ShipEngine, ShipStation).
package carriers

import (
	"context"
	"strings"
)

// Transaction statuses normalized across providers.
const (
	StatusQueued  = "QUEUED"
	StatusWaiting = "WAITING"
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
	StatusRefund  = "REFUNDED"
)

// Provider is implemented by every carrier-aggregator backend.
type Provider interface {
	Name() string
	GetRates(ctx context.Context, req RateRequest) ([]Rate, error)
	PurchaseLabel(ctx context.Context, req PurchaseRequest) (*Label, error)
	LookupLabel(ctx context.Context, transactionID string) (*Label, error)
	VoidLabel(ctx context.Context, transactionID string) error
}

type Address struct {
	Name       string
	Company    string
	Street1    string
	Street2    string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	Email      string
}

// Parcel dimensions are centimeters, weight is grams.
type Parcel struct {
	LengthCm    float64
	WidthCm     float64
	HeightCm    float64
	WeightGrams int
}

type RateRequest struct {
	From   Address
	To     Address
	Parcel Parcel
}

type Rate struct {
	ObjectID      string `json:"rateObjectId"`
	Carrier       string `json:"carrier"`
	Service       string `json:"service"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	EstimatedDays *int   `json:"estimatedDays,omitempty"`
}

// PurchaseRequest buys the rate identified by RateObjectID. Addresses and
// parcel are required by backends whose rate ids are not server-side objects.
type PurchaseRequest struct {
	RateObjectID  string
	LabelFileType string
	From          Address
	To            Address
	Parcel        Parcel
}

// Message is a carrier-supplied diagnostic, surfaced to admins verbatim.
type Message struct {
	Source string `json:"source,omitempty"`
	Code   string `json:"code,omitempty"`
	Text   string `json:"text"`
}

// Label is the provider-neutral view of a label transaction.
type Label struct {
	TransactionID  string
	Status         string
	LabelURL       string
	TrackingNumber string
	TrackingURL    string
	Carrier        string
	Service        string
	AmountCents    int64
	Currency       string
	Messages       []Message
}

// HasLabelURL reports whether the label document is downloadable.
func (l *Label) HasLabelURL() bool {
	return l != nil && strings.TrimSpace(l.LabelURL) != ""
}

// IsTerminalError reports whether the carrier finished the transaction in error.
func (l *Label) IsTerminalError() bool {
	return l != nil && strings.EqualFold(l.Status, StatusError)
}

// MessageTexts returns the message texts, skipping blanks.
func (l *Label) MessageTexts() []string {
	if l == nil {
		return nil
	}
	return MessageTexts(l.Messages)
}

// Merge fills empty fields on l from other. Used when a lookup returns a
// fresher view of the same transaction.
func (l *Label) Merge(other *Label) {
	if l == nil || other == nil {
		return
	}
	if other.Status != "" {
		l.Status = other.Status
	}
	if l.TransactionID == "" {
		l.TransactionID = other.TransactionID
	}
	if other.LabelURL != "" {
		l.LabelURL = other.LabelURL
	}
	if other.TrackingNumber != "" {
		l.TrackingNumber = other.TrackingNumber
	}
	if other.TrackingURL != "" {
		l.TrackingURL = other.TrackingURL
	}
	if l.Carrier == "" {
		l.Carrier = other.Carrier
	}
	if l.Service == "" {
		l.Service = other.Service
	}
	if l.AmountCents == 0 {
		l.AmountCents = other.AmountCents
		l.Currency = other.Currency
	}
	if len(other.Messages) > 0 {
		l.Messages = other.Messages
	}
}

func MessageTexts(messages []Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		if text := strings.TrimSpace(m.Text); text != "" {
			out = append(out, text)
		}
	}
	return out
}
