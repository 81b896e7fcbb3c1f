// Package shipengine implements the carrier contract against ShipEngine v1.
package shipengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
)

const (
	Name           = "shipengine"
	DefaultBaseURL = "https://api.shipengine.com"
)

type Client struct {
	transport  *carriers.Transport
	creds      carriers.Credentials
	carrierIDs []string
}

var _ carriers.Provider = (*Client)(nil)

// New builds a ShipEngine client. carrierIDs scopes rate shopping to the
// connected carrier accounts.
func New(liveKey, testKey string, carrierIDs []string, opts ...carriers.Option) (*Client, error) {
	creds := carriers.NewCredentials(
		carriers.Credential{Label: "live", Key: liveKey},
		carriers.Credential{Label: "test", Key: testKey},
	)
	if len(creds) == 0 {
		return nil, carriers.ErrNoCredentials
	}
	opts = append([]carriers.Option{carriers.WithErrorDecoder(decodeErrors)}, opts...)
	return &Client{
		transport:  carriers.NewTransport(Name, DefaultBaseURL, authorize, opts...),
		creds:      creds,
		carrierIDs: carrierIDs,
	}, nil
}

func authorize(req *http.Request, cred carriers.Credential) {
	req.Header.Set("API-Key", cred.Key)
}

func (c *Client) Name() string { return Name }

func (c *Client) GetRates(ctx context.Context, req carriers.RateRequest) ([]carriers.Rate, error) {
	body := rateRequest{
		RateOptions: rateOptions{CarrierIDs: c.carrierIDs},
		Shipment: shipment{
			ShipFrom: toAddress(req.From),
			ShipTo:   toAddress(req.To),
			Packages: []pkg{toPackage(req.Parcel)},
		},
	}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) ([]carriers.Rate, error) {
		var resp rateResponse
		if err := c.transport.Do(ctx, cred, "rates", http.MethodPost, "/v1/rates", body, &resp); err != nil {
			return nil, err
		}
		rates := make([]carriers.Rate, 0, len(resp.RateResponse.Rates))
		for _, r := range resp.RateResponse.Rates {
			rates = append(rates, r.toRate())
		}
		if len(rates) == 0 && len(resp.RateResponse.Errors) > 0 {
			return nil, &carriers.Error{
				Provider:   Name,
				Operation:  "rates",
				StatusCode: http.StatusUnprocessableEntity,
				Messages:   toMessages(resp.RateResponse.Errors),
			}
		}
		return rates, nil
	})
}

func (c *Client) PurchaseLabel(ctx context.Context, req carriers.PurchaseRequest) (*carriers.Label, error) {
	rateID := strings.TrimSpace(req.RateObjectID)
	if rateID == "" {
		return nil, carriers.ErrInvalidRateID
	}
	body := labelRequest{
		LabelFormat:       labelFormat(req.LabelFileType),
		LabelLayout:       "4x6",
		LabelDownloadType: "url",
	}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) (*carriers.Label, error) {
		var resp label
		if err := c.transport.Do(ctx, cred, "purchase", http.MethodPost, "/v1/labels/rates/"+url.PathEscape(rateID), body, &resp); err != nil {
			return nil, err
		}
		return resp.toLabel(), nil
	})
}

func (c *Client) LookupLabel(ctx context.Context, transactionID string) (*carriers.Label, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return nil, carriers.ErrTransactionMissing
	}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) (*carriers.Label, error) {
		var resp label
		if err := c.transport.Do(ctx, cred, "lookup", http.MethodGet, "/v1/labels/"+url.PathEscape(id), nil, &resp); err != nil {
			return nil, err
		}
		return resp.toLabel(), nil
	})
}

func (c *Client) VoidLabel(ctx context.Context, transactionID string) error {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return carriers.ErrTransactionMissing
	}
	_, err := carriers.Try(ctx, c.creds, func(cred carriers.Credential) (struct{}, error) {
		var resp voidResponse
		if err := c.transport.Do(ctx, cred, "void", http.MethodPut, "/v1/labels/"+url.PathEscape(id)+"/void", nil, &resp); err != nil {
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

func labelFormat(fileType string) string {
	switch strings.ToUpper(strings.TrimSpace(fileType)) {
	case "PNG":
		return "png"
	case "ZPLII", "ZPL":
		return "zpl"
	default:
		return "pdf"
	}
}

func decodeErrors(body []byte) []carriers.Message {
	var resp struct {
		Errors []apiError `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	return toMessages(resp.Errors)
}
