package models

import "time"

// Event types
const (
	EventTypeTicketsIssued    = "TICKETS_ISSUED"
	EventTypePurchaseRefunded = "PURCHASE_REFUNDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketsIssuedEvent published after a purchase and its tickets are
// persisted. The notification worker consumes it to send the
// confirmation email and SMS.
type TicketsIssuedEvent struct {
	BaseEvent
	PurchaseID    string       `json:"purchase_id"`
	EventRef      EventData    `json:"event"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail string       `json:"customer_email"`
	CustomerPhone string       `json:"customer_phone,omitempty"`
	OrderRef      string       `json:"order_ref,omitempty"`
	Tickets       []TicketData `json:"tickets"`
}

// PurchaseRefundedEvent published when a purchase is refunded and its
// tickets voided.
type PurchaseRefundedEvent struct {
	BaseEvent
	PurchaseID    string `json:"purchase_id"`
	EventID       string `json:"event_id"`
	TicketsVoided int    `json:"tickets_voided"`
}

// EventData is the show summary carried in events
type EventData struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventDate time.Time `json:"event_date"`
	Venue     string    `json:"venue"`
}

// TicketData is the per-ticket payload carried in events
type TicketData struct {
	TicketID  string `json:"ticket_id"`
	SeatLabel string `json:"seat_label"`
	QRCodeURL string `json:"qr_code_url"`
}
