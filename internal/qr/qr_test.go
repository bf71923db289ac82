package qr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")

	ids := []struct {
		ticket string
		event  string
	}{
		{"6f1f64c2-3b55-4f0e-9f93-0a4c7ce2d9be", "e4f9d7d8-94f9-4a7a-8a70-2dd7c1b2a111"},
		{"ticket-1", "event-1"},
		{"a", "b"},
	}

	for _, tc := range ids {
		encoded := enc.Encode(tc.ticket, tc.event)
		decoded, err := enc.Decode(encoded.Payload)
		require.NoError(t, err)
		assert.Equal(t, tc.ticket, decoded)
	}
}

func TestEncodePayloadShape(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")
	encoded := enc.Encode("t-123", "e-456")

	assert.True(t, strings.HasPrefix(encoded.Payload, "https://rnbvslive.com/tickets/verify?"))
	assert.Contains(t, encoded.Payload, "ticket=t-123")
	assert.Contains(t, encoded.Payload, "event=e-456")
	assert.Contains(t, encoded.Payload, "sig=")
	assert.Equal(t, "https://rnbvslive.com/api/v1/tickets/t-123/qr.png", encoded.ImageURL)
}

func TestDecodeEmptyPayload(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")

	_, err := enc.Decode("")
	assert.ErrorIs(t, err, ErrMalformedCode)
}

func TestDecodeMissingParameters(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")

	for _, payload := range []string{
		"https://rnbvslive.com/tickets/verify?ticket=t-1",
		"https://rnbvslive.com/tickets/verify?event=e-1",
		"https://rnbvslive.com/tickets/verify?ticket=t-1&event=e-1",
		"not a url at all",
	} {
		_, err := enc.Decode(payload)
		assert.ErrorIs(t, err, ErrMalformedCode, "payload: %s", payload)
	}
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")
	encoded := enc.Encode("t-123", "e-456")

	// Swap the ticket id for another one, keeping the signature.
	forged := strings.Replace(encoded.Payload, "ticket=t-123", "ticket=t-999", 1)
	_, err := enc.Decode(forged)
	assert.ErrorIs(t, err, ErrMalformedCode)
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")
	other := NewEncoder("https://rnbvslive.com", "different-secret")

	// A payload produced with another key must not verify.
	foreign := other.Encode("t-123", "e-456")
	_, err := enc.Decode(foreign.Payload)
	assert.ErrorIs(t, err, ErrMalformedCode)
}

func TestImageRendersPNG(t *testing.T) {
	enc := NewEncoder("https://rnbvslive.com", "test-secret")

	png, err := enc.Image("t-123", "e-456")
	require.NoError(t, err)
	require.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
