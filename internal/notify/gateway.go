// Package notify delivers ticket confirmations. Delivery is
// best-effort: the purchase is the contract, a failed email or SMS is
// logged and never unwinds the sale.
package notify

import (
	"context"
	"time"
)

// TicketInfo is a single admission as rendered into a confirmation.
type TicketInfo struct {
	TicketID  string
	SeatLabel string
	QRCodeURL string
}

// EmailParams carries everything needed for a confirmation email.
type EmailParams struct {
	To         string
	Name       string
	EventTitle string
	EventDate  time.Time
	Venue      string
	OrderRef   string
	Tickets    []TicketInfo
}

// SMSParams carries everything needed for a confirmation text.
type SMSParams struct {
	To         string
	EventTitle string
	EventDate  time.Time
	OrderRef   string
}

// Gateway sends ticket confirmations to a buyer.
type Gateway interface {
	SendTicketEmail(ctx context.Context, params EmailParams) error
	SendTicketSMS(ctx context.Context, params SMSParams) error
}
