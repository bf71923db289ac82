package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sendgridMailURL = "https://api.sendgrid.com/v3/mail/send"

// SendGridGateway sends confirmation email through the SendGrid v3
// API and confirmation SMS through Twilio.
type SendGridGateway struct {
	apiKey     string
	fromEmail  string
	mailURL    string
	sms        *twilioSender
	httpClient *http.Client
}

// NewSendGridGateway creates the production gateway. Twilio
// credentials may be empty, in which case SMS sends fail and are
// logged by the caller.
func NewSendGridGateway(apiKey, fromEmail, twilioSID, twilioToken, twilioFrom string) *SendGridGateway {
	client := &http.Client{Timeout: 15 * time.Second}
	return &SendGridGateway{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		mailURL:   sendgridMailURL,
		sms: &twilioSender{
			accountSID: twilioSID,
			authToken:  twilioToken,
			from:       twilioFrom,
			httpClient: client,
		},
		httpClient: client,
	}
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridRequest struct {
	Personalizations []struct {
		To []sendgridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendgridAddress `json:"from"`
	Subject string          `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

// SendTicketEmail sends the confirmation email with one QR image per
// ticket.
func (g *SendGridGateway) SendTicketEmail(ctx context.Context, params EmailParams) error {
	req := sendgridRequest{
		From:    sendgridAddress{Email: g.fromEmail, Name: "RNB VERSUS LIVE"},
		Subject: fmt.Sprintf("Your Ticket for %s", params.EventTitle),
	}
	req.Personalizations = make([]struct {
		To []sendgridAddress `json:"to"`
	}, 1)
	req.Personalizations[0].To = []sendgridAddress{{Email: params.To, Name: params.Name}}
	req.Content = []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{{Type: "text/html", Value: renderTicketEmail(params)}}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode mail request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.mailURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// SendTicketSMS sends the confirmation text via Twilio.
func (g *SendGridGateway) SendTicketSMS(ctx context.Context, params SMSParams) error {
	if g.sms.accountSID == "" || g.sms.authToken == "" {
		return fmt.Errorf("twilio credentials not configured")
	}
	return g.sms.send(ctx, params)
}

func renderTicketEmail(params EmailParams) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; color: #000; background-color: #fff; padding: 20px; border: 1px solid #000;">`)
	b.WriteString(`<h1 style="text-align: center; text-transform: uppercase;">RNB VERSUS LIVE</h1>`)
	b.WriteString(`<h2 style="text-align: center;">Ticket Confirmation</h2>`)
	fmt.Fprintf(&b, `<p>Thank you for purchasing tickets to %s!</p>`, params.EventTitle)
	b.WriteString(`<div style="margin: 20px 0; padding: 15px; border: 1px solid #000; background-color: #f8f8f8;">`)
	fmt.Fprintf(&b, `<p><strong>Event:</strong> %s</p>`, params.EventTitle)
	fmt.Fprintf(&b, `<p><strong>Date:</strong> %s</p>`, params.EventDate.Format("Monday, January 2, 2006 3:04 PM"))
	fmt.Fprintf(&b, `<p><strong>Venue:</strong> %s</p>`, params.Venue)
	if params.OrderRef != "" {
		fmt.Fprintf(&b, `<p><strong>Order ID:</strong> %s</p>`, params.OrderRef)
	}
	b.WriteString(`</div>`)
	for _, t := range params.Tickets {
		b.WriteString(`<div style="text-align: center; margin: 30px 0;">`)
		fmt.Fprintf(&b, `<p><strong>%s &mdash; Ticket %s</strong></p>`, t.SeatLabel, t.TicketID)
		fmt.Fprintf(&b, `<img src="%s" alt="Ticket QR Code" style="max-width: 200px; height: auto;"/>`, t.QRCodeURL)
		b.WriteString(`<p style="font-size: 12px; margin-top: 10px;">Present this QR code at the venue for entry</p>`)
		b.WriteString(`</div>`)
	}
	b.WriteString(`<p style="text-align: center; margin-top: 30px; font-size: 12px;">This ticket is non-transferable and valid for one-time entry only.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}
