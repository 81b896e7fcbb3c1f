// Package mailer sends transactional email through SendGrid.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrDisabled = errors.New("mailer disabled: sendgrid api key or sender missing")

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// ShipmentConfirmation is the data rendered into the "your order shipped" email.
type ShipmentConfirmation struct {
	OrderNumber    string
	CustomerName   string
	CustomerEmail  string
	Carrier        string
	Service        string
	TrackingNumber string
	TrackingURL    string
}

type Mailer struct {
	client   sender
	fromMail string
	fromName string
}

// New returns a Mailer, or ErrDisabled when SendGrid is not configured.
func New(apiKey, fromEmail, fromName string) (*Mailer, error) {
	apiKey = strings.TrimSpace(apiKey)
	fromEmail = strings.TrimSpace(fromEmail)
	if apiKey == "" || fromEmail == "" {
		return nil, ErrDisabled
	}
	return &Mailer{client: sendgrid.NewSendClient(apiKey), fromMail: fromEmail, fromName: fromName}, nil
}

func (m *Mailer) SendShipmentConfirmation(ctx context.Context, data ShipmentConfirmation) error {
	if m == nil {
		return ErrDisabled
	}
	to := strings.TrimSpace(data.CustomerEmail)
	if to == "" {
		return fmt.Errorf("shipment confirmation: customer email is required")
	}

	var html bytes.Buffer
	if err := shipmentTemplate.Execute(&html, data); err != nil {
		return fmt.Errorf("render shipment confirmation: %w", err)
	}

	subject := "Your order has shipped"
	if data.OrderNumber != "" {
		subject = fmt.Sprintf("Order %s has shipped", data.OrderNumber)
	}
	msg := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.fromMail),
		subject,
		mail.NewEmail(data.CustomerName, to),
		plainText(data),
		html.String(),
	)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func plainText(data ShipmentConfirmation) string {
	var b strings.Builder
	b.WriteString("Good news, your order is on its way.\n")
	if data.Carrier != "" {
		fmt.Fprintf(&b, "Carrier: %s %s\n", data.Carrier, data.Service)
	}
	if data.TrackingNumber != "" {
		fmt.Fprintf(&b, "Tracking number: %s\n", data.TrackingNumber)
	}
	if data.TrackingURL != "" {
		fmt.Fprintf(&b, "Track it here: %s\n", data.TrackingURL)
	}
	return b.String()
}

var shipmentTemplate = template.Must(template.New("shipment").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p>Good news, your order{{if .OrderNumber}} {{.OrderNumber}}{{end}} is on its way.</p>
{{if .Carrier}}<p>Carrier: {{.Carrier}} {{.Service}}</p>{{end}}
{{if .TrackingNumber}}<p>Tracking number: <strong>{{.TrackingNumber}}</strong></p>{{end}}
{{if .TrackingURL}}<p><a href="{{.TrackingURL}}">Track your package</a></p>{{end}}
</body></html>`))
