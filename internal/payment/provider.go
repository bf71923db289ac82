// Package payment abstracts the payment processor behind a single
// provider interface selected by configuration, so the webhook path is
// one code path regardless of processor.
package payment

import (
	"errors"
	"fmt"

	"github.com/MetroMindsErie/rnbvslive/config"
)

var (
	// ErrBadSignature means a webhook's signature did not verify.
	ErrBadSignature = errors.New("webhook signature verification failed")
	// ErrIgnoredEvent means the webhook carried an event type this
	// service does not act on; the caller acknowledges it and moves on.
	ErrIgnoredEvent = errors.New("ignored webhook event type")
)

// CheckoutCompleted is the processor-neutral result of a confirmed
// payment: everything issuance needs, plus the processor's reference
// used as the idempotency key.
type CheckoutCompleted struct {
	OrderRef string
	EventID  string
	FullName string
	Email    string
	Phone    string
	Quantity int
}

// Provider verifies and decodes processor webhooks.
type Provider interface {
	Name() string

	// SignatureHeader is the HTTP header carrying the webhook
	// signature, empty when the provider receives no webhooks.
	SignatureHeader() string

	// ParseWebhook authenticates the raw webhook body against the
	// signature header and extracts the completed checkout. Returns
	// ErrBadSignature on verification failure and ErrIgnoredEvent for
	// event types that do not confirm a checkout.
	ParseWebhook(body []byte, sigHeader string) (*CheckoutCompleted, error)
}

// NewProvider builds the configured provider.
func NewProvider(cfg config.TicketingConfig) (Provider, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		if cfg.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("stripe provider requires STRIPE_WEBHOOK_SECRET")
		}
		return NewStripeProvider(cfg.StripeWebhookSecret), nil
	case "direct":
		return DirectProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.PaymentProvider)
	}
}
