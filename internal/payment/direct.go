package payment

import "fmt"

// DirectProvider is the no-processor configuration: purchases come in
// through the purchase endpoint already confirmed, and there is no
// webhook traffic to decode.
type DirectProvider struct{}

func (DirectProvider) Name() string {
	return "direct"
}

func (DirectProvider) SignatureHeader() string {
	return ""
}

func (DirectProvider) ParseWebhook(body []byte, sigHeader string) (*CheckoutCompleted, error) {
	return nil, fmt.Errorf("%w: direct provider receives no webhooks", ErrIgnoredEvent)
}
