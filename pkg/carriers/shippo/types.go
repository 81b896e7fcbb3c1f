package shippo

import (
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
)

type address struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type parcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type shipmentRequest struct {
	AddressFrom address  `json:"address_from"`
	AddressTo   address  `json:"address_to"`
	Parcels     []parcel `json:"parcels"`
	Async       bool     `json:"async"`
}

type message struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

type serviceLevel struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

type rate struct {
	ObjectID      string       `json:"object_id"`
	Provider      string       `json:"provider"`
	ServiceLevel  serviceLevel `json:"servicelevel"`
	Amount        string       `json:"amount"`
	Currency      string       `json:"currency"`
	EstimatedDays *int         `json:"estimated_days"`
}

type shipmentResponse struct {
	ObjectID string    `json:"object_id"`
	Status   string    `json:"status"`
	Rates    []rate    `json:"rates"`
	Messages []message `json:"messages"`
}

type transactionRequest struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type"`
	Async         bool   `json:"async"`
}

type transaction struct {
	ObjectID       string    `json:"object_id"`
	Status         string    `json:"status"`
	Rate           string    `json:"rate"`
	LabelURL       string    `json:"label_url"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url_provider"`
	Messages       []message `json:"messages"`
}

type refundRequest struct {
	Transaction string `json:"transaction"`
	Async       bool   `json:"async"`
}

type refundResponse struct {
	ObjectID string `json:"object_id"`
	Status   string `json:"status"`
}

func toAddress(a carriers.Address) address {
	return address{
		Name:    a.Name,
		Company: a.Company,
		Street1: a.Street1,
		Street2: a.Street2,
		City:    a.City,
		State:   a.State,
		Zip:     a.PostalCode,
		Country: a.Country,
		Phone:   a.Phone,
		Email:   a.Email,
	}
}

func toParcel(p carriers.Parcel) parcel {
	return parcel{
		Length:       formatFloat(p.LengthCm),
		Width:        formatFloat(p.WidthCm),
		Height:       formatFloat(p.HeightCm),
		DistanceUnit: "cm",
		Weight:       formatFloat(float64(p.WeightGrams)),
		MassUnit:     "g",
	}
}

func (r rate) toRate() (carriers.Rate, error) {
	cents, err := carriers.AmountToCents(r.Amount)
	if err != nil {
		return carriers.Rate{}, err
	}
	return carriers.Rate{
		ObjectID:      r.ObjectID,
		Carrier:       r.Provider,
		Service:       r.ServiceLevel.Name,
		AmountCents:   cents,
		Currency:      carriers.NormalizeCurrency(r.Currency),
		EstimatedDays: r.EstimatedDays,
	}, nil
}

func (t transaction) toLabel() *carriers.Label {
	return &carriers.Label{
		TransactionID:  t.ObjectID,
		Status:         strings.ToUpper(strings.TrimSpace(t.Status)),
		LabelURL:       strings.TrimSpace(t.LabelURL),
		TrackingNumber: strings.TrimSpace(t.TrackingNumber),
		TrackingURL:    strings.TrimSpace(t.TrackingURL),
		Messages:       toMessages(t.Messages),
	}
}

func toMessages(in []message) []carriers.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]carriers.Message, 0, len(in))
	for _, m := range in {
		out = append(out, carriers.Message{Source: m.Source, Code: m.Code, Text: m.Text})
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
