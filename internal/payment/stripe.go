package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds how old a webhook timestamp may be,
// limiting replay of captured deliveries.
const signatureTolerance = 5 * time.Minute

// StripeProvider decodes Stripe checkout webhooks. Only the webhook
// surface is implemented here; Checkout session creation happens on
// the storefront.
type StripeProvider struct {
	webhookSecret []byte
	now           func() time.Time
}

// NewStripeProvider creates a provider verifying with the endpoint's
// webhook signing secret.
func NewStripeProvider(webhookSecret string) *StripeProvider {
	return &StripeProvider{
		webhookSecret: []byte(webhookSecret),
		now:           time.Now,
	}
}

func (p *StripeProvider) Name() string {
	return "stripe"
}

func (p *StripeProvider) SignatureHeader() string {
	return "Stripe-Signature"
}

// stripeEvent is the subset of the webhook envelope this service reads.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			PaymentIntent string            `json:"payment_intent"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies the Stripe-Signature header (t=...,v1=...
// scheme: HMAC-SHA256 over "{t}.{body}") and extracts the
// checkout.session.completed payload.
func (p *StripeProvider) ParseWebhook(body []byte, sigHeader string) (*CheckoutCompleted, error) {
	if err := p.verifySignature(body, sigHeader); err != nil {
		return nil, err
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	session := event.Data.Object
	if session.PaymentIntent == "" {
		return nil, fmt.Errorf("webhook session has no payment_intent")
	}

	quantity, err := strconv.Atoi(session.Metadata["quantity"])
	if err != nil {
		return nil, fmt.Errorf("invalid quantity in session metadata: %w", err)
	}

	return &CheckoutCompleted{
		OrderRef: session.PaymentIntent,
		EventID:  session.Metadata["eventId"],
		FullName: session.Metadata["fullName"],
		Email:    session.Metadata["email"],
		Phone:    session.Metadata["phone"],
		Quantity: quantity,
	}, nil
}

func (p *StripeProvider) verifySignature(body []byte, sigHeader string) error {
	var timestamp string
	var candidates []string

	for _, part := range strings.Split(sigHeader, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			candidates = append(candidates, v)
		}
	}

	if timestamp == "" || len(candidates) == 0 {
		return fmt.Errorf("%w: missing timestamp or signature", ErrBadSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrBadSignature)
	}
	if age := p.now().Sub(time.Unix(ts, 0)); age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}

	mac := hmac.New(sha256.New, p.webhookSecret)
	fmt.Fprintf(mac, "%s.%s", timestamp, body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}
