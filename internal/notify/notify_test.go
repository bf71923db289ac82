package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEmailParams() EmailParams {
	return EmailParams{
		To:         "ada@example.com",
		Name:       "Ada Lovelace",
		EventTitle: "R&B Versus Live: 90s Edition",
		EventDate:  time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC),
		Venue:      "The Warner Theatre",
		OrderRef:   "pi_abc123",
		Tickets: []TicketInfo{
			{TicketID: "t-1", SeatLabel: "SEAT1", QRCodeURL: "https://rnbvslive.com/api/v1/tickets/t-1/qr.png"},
			{TicketID: "t-2", SeatLabel: "SEAT2", QRCodeURL: "https://rnbvslive.com/api/v1/tickets/t-2/qr.png"},
		},
	}
}

func TestRenderTicketEmail(t *testing.T) {
	html := renderTicketEmail(testEmailParams())

	assert.Contains(t, html, "RNB VERSUS LIVE")
	assert.Contains(t, html, "R&B Versus Live: 90s Edition")
	assert.Contains(t, html, "The Warner Theatre")
	assert.Contains(t, html, "Saturday, October 17, 2026 8:00 PM")
	assert.Contains(t, html, "pi_abc123")

	// One QR image per ticket.
	assert.Contains(t, html, "https://rnbvslive.com/api/v1/tickets/t-1/qr.png")
	assert.Contains(t, html, "https://rnbvslive.com/api/v1/tickets/t-2/qr.png")
}

func TestRenderTicketEmailOmitsEmptyOrderRef(t *testing.T) {
	params := testEmailParams()
	params.OrderRef = ""
	html := renderTicketEmail(params)
	assert.NotContains(t, html, "Order ID")
}

func TestSendTicketEmail(t *testing.T) {
	var received sendgridRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	gateway := NewSendGridGateway("sg-key", "tickets@rnbvslive.com", "", "", "")
	gateway.mailURL = server.URL

	err := gateway.SendTicketEmail(context.Background(), testEmailParams())
	require.NoError(t, err)

	assert.Equal(t, "Bearer sg-key", auth)
	assert.Equal(t, "tickets@rnbvslive.com", received.From.Email)
	require.Len(t, received.Personalizations, 1)
	assert.Equal(t, "ada@example.com", received.Personalizations[0].To[0].Email)
	assert.Equal(t, "Your Ticket for R&B Versus Live: 90s Edition", received.Subject)
}

func TestSendTicketEmailReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway := NewSendGridGateway("wrong-key", "tickets@rnbvslive.com", "", "", "")
	gateway.mailURL = server.URL

	err := gateway.SendTicketEmail(context.Background(), testEmailParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendTicketSMSWithoutCredentials(t *testing.T) {
	gateway := NewSendGridGateway("sg-key", "tickets@rnbvslive.com", "", "", "")
	err := gateway.SendTicketSMS(context.Background(), SMSParams{To: "+15551234567"})
	assert.Error(t, err)
}

func TestLogGatewayNeverFails(t *testing.T) {
	gateway := NewLogGateway(zap.NewNop())
	assert.NoError(t, gateway.SendTicketEmail(context.Background(), testEmailParams()))
	assert.NoError(t, gateway.SendTicketSMS(context.Background(), SMSParams{To: "+15551234567"}))
}
