package shipengine

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
)

type address struct {
	Name          string `json:"name"`
	CompanyName   string `json:"company_name,omitempty"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	CityLocality  string `json:"city_locality"`
	StateProvince string `json:"state_province"`
	PostalCode    string `json:"postal_code"`
	CountryCode   string `json:"country_code"`
}

type weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type dimensions struct {
	Unit   string  `json:"unit"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type pkg struct {
	Weight     weight     `json:"weight"`
	Dimensions dimensions `json:"dimensions"`
}

type shipment struct {
	ShipFrom address `json:"ship_from"`
	ShipTo   address `json:"ship_to"`
	Packages []pkg   `json:"packages"`
}

type rateOptions struct {
	CarrierIDs []string `json:"carrier_ids"`
}

type rateRequest struct {
	RateOptions rateOptions `json:"rate_options"`
	Shipment    shipment    `json:"shipment"`
}

type money struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type apiError struct {
	ErrorSource string `json:"error_source"`
	ErrorType   string `json:"error_type"`
	ErrorCode   string `json:"error_code"`
	Message     string `json:"message"`
}

type rate struct {
	RateID              string `json:"rate_id"`
	CarrierFriendlyName string `json:"carrier_friendly_name"`
	CarrierCode         string `json:"carrier_code"`
	ServiceType         string `json:"service_type"`
	ServiceCode         string `json:"service_code"`
	ShippingAmount      money  `json:"shipping_amount"`
	OtherAmount         money  `json:"other_amount"`
	DeliveryDays        *int   `json:"delivery_days"`
}

type rateResponse struct {
	RateResponse struct {
		Rates  []rate     `json:"rates"`
		Errors []apiError `json:"errors"`
	} `json:"rate_response"`
}

type labelRequest struct {
	LabelFormat       string `json:"label_format"`
	LabelLayout       string `json:"label_layout"`
	LabelDownloadType string `json:"label_download_type"`
}

type labelDownload struct {
	Href string `json:"href"`
	PDF  string `json:"pdf"`
	PNG  string `json:"png"`
	ZPL  string `json:"zpl"`
}

type label struct {
	LabelID        string        `json:"label_id"`
	Status         string        `json:"status"`
	TrackingNumber string        `json:"tracking_number"`
	TrackingURL    string        `json:"tracking_url"`
	CarrierCode    string        `json:"carrier_code"`
	ServiceCode    string        `json:"service_code"`
	ShipmentCost   money         `json:"shipment_cost"`
	LabelDownload  labelDownload `json:"label_download"`
}

type voidResponse struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

func toAddress(a carriers.Address) address {
	return address{
		Name:          a.Name,
		CompanyName:   a.Company,
		Phone:         a.Phone,
		Email:         a.Email,
		AddressLine1:  a.Street1,
		AddressLine2:  a.Street2,
		CityLocality:  a.City,
		StateProvince: a.State,
		PostalCode:    a.PostalCode,
		CountryCode:   a.Country,
	}
}

func toPackage(p carriers.Parcel) pkg {
	return pkg{
		Weight: weight{Value: float64(p.WeightGrams), Unit: "gram"},
		Dimensions: dimensions{
			Unit:   "centimeter",
			Length: p.LengthCm,
			Width:  p.WidthCm,
			Height: p.HeightCm,
		},
	}
}

func (r rate) toRate() carriers.Rate {
	carrier := r.CarrierFriendlyName
	if carrier == "" {
		carrier = r.CarrierCode
	}
	service := r.ServiceType
	if service == "" {
		service = r.ServiceCode
	}
	return carriers.Rate{
		ObjectID:      r.RateID,
		Carrier:       carrier,
		Service:       service,
		AmountCents:   carriers.FloatToCents(r.ShippingAmount.Amount) + carriers.FloatToCents(r.OtherAmount.Amount),
		Currency:      carriers.NormalizeCurrency(r.ShippingAmount.Currency),
		EstimatedDays: r.DeliveryDays,
	}
}

func (l label) toLabel() *carriers.Label {
	out := &carriers.Label{
		TransactionID:  l.LabelID,
		Status:         normalizeStatus(l.Status),
		LabelURL:       l.LabelDownload.url(),
		TrackingNumber: l.TrackingNumber,
		TrackingURL:    l.TrackingURL,
		Carrier:        l.CarrierCode,
		Service:        l.ServiceCode,
		AmountCents:    carriers.FloatToCents(l.ShipmentCost.Amount),
		Currency:       carriers.NormalizeCurrency(l.ShipmentCost.Currency),
	}
	if out.TrackingURL == "" {
		out.TrackingURL = carriers.TrackingURL(l.CarrierCode, l.TrackingNumber)
	}
	return out
}

func (d labelDownload) url() string {
	for _, candidate := range []string{d.PDF, d.Href, d.PNG, d.ZPL} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return carriers.StatusSuccess
	case "processing":
		return carriers.StatusQueued
	case "voided":
		return carriers.StatusRefund
	case "error":
		return carriers.StatusError
	case "":
		return ""
	default:
		return strings.ToUpper(status)
	}
}

func toMessages(in []apiError) []carriers.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]carriers.Message, 0, len(in))
	for _, e := range in {
		out = append(out, carriers.Message{Source: e.ErrorSource, Code: e.ErrorCode, Text: e.Message})
	}
	return out
}
