package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a live show with a fixed ticket allocation
type Event struct {
	ID               string          `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	EventDate        time.Time       `db:"event_date" json:"event_date"`
	Venue            string          `db:"venue" json:"venue"`
	TicketPrice      decimal.Decimal `db:"ticket_price" json:"ticket_price"`
	TotalTickets     int             `db:"total_tickets" json:"total_tickets"`
	TicketsRemaining int             `db:"tickets_remaining" json:"tickets_remaining"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Purchase represents a confirmed ticket order
type Purchase struct {
	ID             string          `db:"id" json:"id"`
	EventID        string          `db:"event_id" json:"event_id"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	CustomerEmail  string          `db:"customer_email" json:"customer_email"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone,omitempty"`
	TicketQuantity int             `db:"ticket_quantity" json:"ticket_quantity"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	// OrderRef is the payment processor's reference (payment intent id).
	// Empty for direct purchases; unique when present so webhook
	// redeliveries cannot issue twice.
	OrderRef     sql.NullString `db:"order_ref" json:"order_ref,omitempty"`
	Status       string         `db:"status" json:"status"`
	PurchaseDate time.Time      `db:"purchase_date" json:"purchase_date"`
}

// Ticket represents a single admission, one QR code each
type Ticket struct {
	ID          string       `db:"id" json:"id"`
	PurchaseID  string       `db:"purchase_id" json:"purchase_id"`
	EventID     string       `db:"event_id" json:"event_id"`
	SeatLabel   string       `db:"seat_label" json:"seat_label"`
	QRPayload   string       `db:"qr_payload" json:"qr_payload"`
	QRCodeURL   string       `db:"qr_code_url" json:"qr_code_url"`
	Status      string       `db:"status" json:"status"`
	CheckInTime sql.NullTime `db:"check_in_time" json:"check_in_time,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Purchase statuses
const (
	PurchaseStatusConfirmed = "confirmed"
	PurchaseStatusRefunded  = "refunded"
	PurchaseStatusCancelled = "cancelled"
)

// Ticket statuses. A ticket moves valid->used exactly once at check-in,
// or valid->void on refund. Void tickets stay queryable for audit.
const (
	TicketStatusValid = "valid"
	TicketStatusUsed  = "used"
	TicketStatusVoid  = "void"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
