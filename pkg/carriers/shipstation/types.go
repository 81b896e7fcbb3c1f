package shipstation

import (
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
)

type weight struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

type dimensions struct {
	Units  string  `json:"units"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type address struct {
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Street1    string `json:"street1"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type rateRequest struct {
	CarrierCode    string      `json:"carrierCode"`
	FromPostalCode string      `json:"fromPostalCode"`
	ToState        string      `json:"toState,omitempty"`
	ToCountry      string      `json:"toCountry"`
	ToPostalCode   string      `json:"toPostalCode"`
	ToCity         string      `json:"toCity,omitempty"`
	Weight         weight      `json:"weight"`
	Dimensions     *dimensions `json:"dimensions,omitempty"`
	Confirmation   string      `json:"confirmation"`
	Residential    bool        `json:"residential"`
}

type rate struct {
	ServiceName  string  `json:"serviceName"`
	ServiceCode  string  `json:"serviceCode"`
	ShipmentCost float64 `json:"shipmentCost"`
	OtherCost    float64 `json:"otherCost"`
}

type labelRequest struct {
	CarrierCode string      `json:"carrierCode"`
	ServiceCode string      `json:"serviceCode"`
	PackageCode string      `json:"packageCode"`
	ShipDate    string      `json:"shipDate"`
	Weight      weight      `json:"weight"`
	Dimensions  *dimensions `json:"dimensions,omitempty"`
	ShipFrom    address     `json:"shipFrom"`
	ShipTo      address     `json:"shipTo"`
	TestLabel   bool        `json:"testLabel"`
}

type labelResponse struct {
	ShipmentID     int64   `json:"shipmentId"`
	ShipmentCost   float64 `json:"shipmentCost"`
	InsuranceCost  float64 `json:"insuranceCost"`
	TrackingNumber string  `json:"trackingNumber"`
	LabelData      string  `json:"labelData"`
}

type voidRequest struct {
	ShipmentID int64 `json:"shipmentId"`
}

type voidResponse struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

func toAddress(a carriers.Address) address {
	return address{
		Name:       a.Name,
		Company:    a.Company,
		Street1:    a.Street1,
		Street2:    a.Street2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func toDimensions(p carriers.Parcel) *dimensions {
	if p.LengthCm <= 0 || p.WidthCm <= 0 || p.HeightCm <= 0 {
		return nil
	}
	return &dimensions{Units: "centimeters", Length: p.LengthCm, Width: p.WidthCm, Height: p.HeightCm}
}

func (r rate) toRate(carrierCode string) carriers.Rate {
	return carriers.Rate{
		ObjectID:    RateID(carrierCode, r.ServiceCode),
		Carrier:     carrierCode,
		Service:     r.ServiceName,
		AmountCents: carriers.FloatToCents(r.ShipmentCost) + carriers.FloatToCents(r.OtherCost),
		Currency:    "USD",
	}
}

func (l labelResponse) toLabel(carrierCode, serviceCode string) *carriers.Label {
	out := &carriers.Label{
		TransactionID:  strconv.FormatInt(l.ShipmentID, 10),
		Status:         carriers.StatusSuccess,
		TrackingNumber: l.TrackingNumber,
		TrackingURL:    carriers.TrackingURL(carrierCode, l.TrackingNumber),
		Carrier:        carrierCode,
		Service:        serviceCode,
		AmountCents:    carriers.FloatToCents(l.ShipmentCost) + carriers.FloatToCents(l.InsuranceCost),
		Currency:       "USD",
	}
	if data := strings.TrimSpace(l.LabelData); data != "" {
		out.LabelURL = "data:application/pdf;base64," + data
	} else {
		out.Status = carriers.StatusError
	}
	return out
}
