package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// twilioSender posts to the Twilio Messages API with basic auth.
type twilioSender struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func (t *twilioSender) send(ctx context.Context, params SMSParams) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", t.accountSID)

	body := fmt.Sprintf("RNB VERSUS LIVE: Your ticket for %s is confirmed! Event date: %s. Check your email for the QR code.",
		params.EventTitle, params.EventDate.Format("Jan 2, 2006 3:04 PM"))
	if params.OrderRef != "" {
		body += fmt.Sprintf(" Order ID: %s", params.OrderRef)
	}

	form := url.Values{}
	form.Set("To", params.To)
	form.Set("From", t.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
