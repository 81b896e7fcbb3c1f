// Package shipstation implements the carrier contract against the ShipStation
// v1 API. Rates are not server-side objects there, so rate ids encode the
// carrier and service codes and purchases resend the shipment details.
package shipstation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
)

const (
	Name           = "shipstation"
	DefaultBaseURL = "https://ssapi.shipstation.com"
)

type Client struct {
	transport    *carriers.Transport
	creds        carriers.Credentials
	carrierCodes []string
	now          func() time.Time
}

var _ carriers.Provider = (*Client)(nil)

func New(apiKey, apiSecret string, carrierCodes []string, opts ...carriers.Option) (*Client, error) {
	creds := carriers.NewCredentials(carriers.Credential{Label: "live", Key: apiKey, Secret: apiSecret})
	if len(creds) == 0 {
		return nil, carriers.ErrNoCredentials
	}
	if len(carrierCodes) == 0 {
		return nil, fmt.Errorf("shipstation: at least one carrier code is required")
	}
	opts = append([]carriers.Option{carriers.WithErrorDecoder(decodeError)}, opts...)
	return &Client{
		transport:    carriers.NewTransport(Name, DefaultBaseURL, authorize, opts...),
		creds:        creds,
		carrierCodes: carrierCodes,
		now:          time.Now,
	}, nil
}

func authorize(req *http.Request, cred carriers.Credential) {
	req.SetBasicAuth(cred.Key, cred.Secret)
}

func (c *Client) Name() string { return Name }

// GetRates queries every configured carrier code. A carrier that fails is
// skipped as long as another one returned rates.
func (c *Client) GetRates(ctx context.Context, req carriers.RateRequest) ([]carriers.Rate, error) {
	var (
		rates   []carriers.Rate
		lastErr error
	)
	for _, code := range c.carrierCodes {
		body := rateRequest{
			CarrierCode:    code,
			FromPostalCode: req.From.PostalCode,
			ToState:        req.To.State,
			ToCountry:      req.To.Country,
			ToPostalCode:   req.To.PostalCode,
			ToCity:         req.To.City,
			Weight:         weight{Value: float64(req.Parcel.WeightGrams), Units: "grams"},
			Dimensions:     toDimensions(req.Parcel),
			Confirmation:   "none",
			Residential:    true,
		}
		got, err := carriers.Try(ctx, c.creds, func(cred carriers.Credential) ([]rate, error) {
			var resp []rate
			if err := c.transport.Do(ctx, cred, "rates", http.MethodPost, "/shipments/getrates", body, &resp); err != nil {
				return nil, err
			}
			return resp, nil
		})
		if err != nil {
			lastErr = err
			continue
		}
		for _, r := range got {
			rates = append(rates, r.toRate(code))
		}
	}
	if len(rates) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return rates, nil
}

func (c *Client) PurchaseLabel(ctx context.Context, req carriers.PurchaseRequest) (*carriers.Label, error) {
	carrierCode, serviceCode, ok := ParseRateID(req.RateObjectID)
	if !ok {
		return nil, carriers.ErrInvalidRateID
	}
	body := labelRequest{
		CarrierCode: carrierCode,
		ServiceCode: serviceCode,
		PackageCode: "package",
		ShipDate:    c.now().Format("2006-01-02"),
		Weight:      weight{Value: float64(req.Parcel.WeightGrams), Units: "grams"},
		Dimensions:  toDimensions(req.Parcel),
		ShipFrom:    toAddress(req.From),
		ShipTo:      toAddress(req.To),
	}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) (*carriers.Label, error) {
		var resp labelResponse
		if err := c.transport.Do(ctx, cred, "purchase", http.MethodPost, "/shipments/createlabel", body, &resp); err != nil {
			return nil, err
		}
		return resp.toLabel(carrierCode, serviceCode), nil
	})
}

// LookupLabel is unsupported: createlabel answers synchronously with the
// label document inline.
func (c *Client) LookupLabel(context.Context, string) (*carriers.Label, error) {
	return nil, carriers.ErrLookupUnsupported
}

func (c *Client) VoidLabel(ctx context.Context, transactionID string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(transactionID), 10, 64)
	if err != nil {
		return carriers.ErrTransactionMissing
	}
	_, err = carriers.Try(ctx, c.creds, func(cred carriers.Credential) (struct{}, error) {
		var resp voidResponse
		if err := c.transport.Do(ctx, cred, "void", http.MethodPost, "/shipments/voidlabel", voidRequest{ShipmentID: id}, &resp); err != nil {
			return struct{}{}, err
		}
		if !resp.Approved {
			return struct{}{}, &carriers.Error{
				Provider:   Name,
				Operation:  "void",
				StatusCode: http.StatusUnprocessableEntity,
				Messages:   []carriers.Message{{Source: Name, Text: resp.Message}},
			}
		}
		return struct{}{}, nil
	})
	return err
}

// RateID encodes a ShipStation rate as "carrierCode:serviceCode".
func RateID(carrierCode, serviceCode string) string {
	return carrierCode + ":" + serviceCode
}

// ParseRateID splits a rate id produced by RateID.
func ParseRateID(id string) (carrierCode, serviceCode string, ok bool) {
	carrierCode, serviceCode, ok = strings.Cut(strings.TrimSpace(id), ":")
	if !ok || carrierCode == "" || serviceCode == "" {
		return "", "", false
	}
	return carrierCode, serviceCode, true
}

func decodeError(body []byte) []carriers.Message {
	var resp struct {
		Message          string `json:"Message"`
		ExceptionMessage string `json:"ExceptionMessage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	var out []carriers.Message
	if resp.Message != "" {
		out = append(out, carriers.Message{Source: Name, Text: resp.Message})
	}
	if resp.ExceptionMessage != "" && resp.ExceptionMessage != resp.Message {
		out = append(out, carriers.Message{Source: Name, Text: resp.ExceptionMessage})
	}
	return out
}
