// Package shippo implements the carrier contract against the Shippo REST API.
package shippo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/carriers"
)

const (
	Name           = "shippo"
	DefaultBaseURL = "https://api.goshippo.com"
)

// Client talks to Shippo with an ordered list of API tokens (live first).
type Client struct {
	transport *carriers.Transport
	creds     carriers.Credentials
}

var _ carriers.Provider = (*Client)(nil)

// New builds a Shippo client. Live and test tokens are tried in that order;
// a blank token is skipped.
func New(liveToken, testToken string, opts ...carriers.Option) (*Client, error) {
	creds := carriers.NewCredentials(
		carriers.Credential{Label: "live", Key: liveToken},
		carriers.Credential{Label: "test", Key: testToken},
	)
	if len(creds) == 0 {
		return nil, carriers.ErrNoCredentials
	}
	opts = append([]carriers.Option{carriers.WithErrorDecoder(decodeMessages)}, opts...)
	return &Client{
		transport: carriers.NewTransport(Name, DefaultBaseURL, authorize, opts...),
		creds:     creds,
	}, nil
}

func authorize(req *http.Request, cred carriers.Credential) {
	req.Header.Set("Authorization", "ShippoToken "+cred.Key)
}

func (c *Client) Name() string { return Name }

func (c *Client) GetRates(ctx context.Context, req carriers.RateRequest) ([]carriers.Rate, error) {
	body := shipmentRequest{
		AddressFrom: toAddress(req.From),
		AddressTo:   toAddress(req.To),
		Parcels:     []parcel{toParcel(req.Parcel)},
		Async:       false,
	}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) ([]carriers.Rate, error) {
		var resp shipmentResponse
		if err := c.transport.Do(ctx, cred, "rates", http.MethodPost, "/shipments/", body, &resp); err != nil {
			return nil, err
		}
		rates := make([]carriers.Rate, 0, len(resp.Rates))
		for _, r := range resp.Rates {
			rate, err := r.toRate()
			if err != nil {
				return nil, err
			}
			rates = append(rates, rate)
		}
		if len(rates) == 0 && len(resp.Messages) > 0 {
			return nil, &carriers.Error{
				Provider:   Name,
				Operation:  "rates",
				StatusCode: http.StatusUnprocessableEntity,
				Messages:   toMessages(resp.Messages),
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
	fileType := strings.TrimSpace(req.LabelFileType)
	if fileType == "" {
		fileType = "PDF"
	}
	body := transactionRequest{Rate: rateID, LabelFileType: fileType, Async: false}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) (*carriers.Label, error) {
		var resp transaction
		if err := c.transport.Do(ctx, cred, "purchase", http.MethodPost, "/transactions/", body, &resp); err != nil {
			return nil, err
		}
		label := resp.toLabel()
		c.fillRateDetails(ctx, cred, rateID, label)
		return label, nil
	})
}

func (c *Client) LookupLabel(ctx context.Context, transactionID string) (*carriers.Label, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return nil, carriers.ErrTransactionMissing
	}
	return carriers.Try(ctx, c.creds, func(cred carriers.Credential) (*carriers.Label, error) {
		var resp transaction
		if err := c.transport.Do(ctx, cred, "lookup", http.MethodGet, "/transactions/"+url.PathEscape(id), nil, &resp); err != nil {
			return nil, err
		}
		label := resp.toLabel()
		if resp.Rate != "" {
			c.fillRateDetails(ctx, cred, resp.Rate, label)
		}
		return label, nil
	})
}

func (c *Client) VoidLabel(ctx context.Context, transactionID string) error {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return carriers.ErrTransactionMissing
	}
	body := refundRequest{Transaction: id, Async: false}
	_, err := carriers.Try(ctx, c.creds, func(cred carriers.Credential) (struct{}, error) {
		var resp refundResponse
		if err := c.transport.Do(ctx, cred, "void", http.MethodPost, "/refunds/", body, &resp); err != nil {
			return struct{}{}, err
		}
		if strings.EqualFold(resp.Status, "ERROR") {
			return struct{}{}, &carriers.Error{
				Provider:   Name,
				Operation:  "void",
				StatusCode: http.StatusUnprocessableEntity,
				Body:       fmt.Sprintf("refund %s returned status ERROR", resp.ObjectID),
			}
		}
		return struct{}{}, nil
	})
	return err
}

// fillRateDetails looks up the purchased rate for carrier and service names.
// Failures leave the label untouched.
func (c *Client) fillRateDetails(ctx context.Context, cred carriers.Credential, rateID string, label *carriers.Label) {
	if label == nil || (label.Carrier != "" && label.Service != "") {
		return
	}
	var r rate
	if err := c.transport.Do(ctx, cred, "rate_lookup", http.MethodGet, "/rates/"+url.PathEscape(rateID), nil, &r); err != nil {
		return
	}
	if label.Carrier == "" {
		label.Carrier = r.Provider
	}
	if label.Service == "" {
		label.Service = r.ServiceLevel.Name
	}
	if label.AmountCents == 0 {
		if cents, err := carriers.AmountToCents(r.Amount); err == nil {
			label.AmountCents = cents
			label.Currency = carriers.NormalizeCurrency(r.Currency)
		}
	}
	if label.TrackingURL == "" {
		label.TrackingURL = carriers.TrackingURL(label.Carrier, label.TrackingNumber)
	}
}

// decodeMessages reads the error shapes Shippo returns: a messages array,
// a detail string, or a field to message-list map.
func decodeMessages(body []byte) []carriers.Message {
	var withMessages struct {
		Messages []message `json:"messages"`
		Detail   string    `json:"detail"`
	}
	if err := json.Unmarshal(body, &withMessages); err == nil {
		if len(withMessages.Messages) > 0 {
			return toMessages(withMessages.Messages)
		}
		if withMessages.Detail != "" {
			return []carriers.Message{{Source: Name, Text: withMessages.Detail}}
		}
	}
	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil {
		out := make([]carriers.Message, 0, len(fields))
		for field, texts := range fields {
			for _, text := range texts {
				out = append(out, carriers.Message{Source: Name, Code: field, Text: field + ": " + text})
			}
		}
		return out
	}
	return nil
}
