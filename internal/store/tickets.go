package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
)

// CreatePurchaseWithTickets inserts a purchase and all of its tickets
// in one transaction. A confirmed purchase is never observable without
// its full ticket count.
func (s *Store) CreatePurchaseWithTickets(ctx context.Context, purchase *models.Purchase, tickets []models.Ticket) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	purchaseQuery := `
		INSERT INTO ticket_purchases
			(id, event_id, customer_name, customer_email, customer_phone,
			 ticket_quantity, total_amount, order_ref, status, purchase_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := tx.ExecContext(ctx, purchaseQuery,
		purchase.ID, purchase.EventID, purchase.CustomerName, purchase.CustomerEmail,
		purchase.CustomerPhone, purchase.TicketQuantity, purchase.TotalAmount,
		purchase.OrderRef, purchase.Status, purchase.PurchaseDate); err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	ticketQuery := `
		INSERT INTO tickets
			(id, purchase_id, event_id, seat_label, qr_payload, qr_code_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	for i := range tickets {
		t := &tickets[i]
		if err := tx.GetContext(ctx, &t.CreatedAt, ticketQuery,
			t.ID, t.PurchaseID, t.EventID, t.SeatLabel, t.QRPayload, t.QRCodeURL, t.Status); err != nil {
			return fmt.Errorf("failed to create ticket %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetPurchaseByID retrieves a purchase by ID
func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase, "SELECT * FROM ticket_purchases WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrPurchaseNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetPurchaseByOrderRef retrieves a purchase by its payment processor
// reference. Returns (nil, nil) when no purchase exists for the ref,
// which is the common case on first webhook delivery.
func (s *Store) GetPurchaseByOrderRef(ctx context.Context, orderRef string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase, "SELECT * FROM ticket_purchases WHERE order_ref = $1", orderRef)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// UpdatePurchaseStatus transitions a purchase conditioned on its
// current status.
func (s *Store) UpdatePurchaseStatus(ctx context.Context, purchaseID, expectedStatus, newStatus string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE ticket_purchases SET status = $1 WHERE id = $2 AND status = $3",
		newStatus, purchaseID, expectedStatus)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: purchase %s is not %s", ErrStatusConflict, purchaseID, expectedStatus)
	}
	return nil
}

// GetTicket retrieves a ticket by ID
func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.GetContext(ctx, &ticket, "SELECT * FROM tickets WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketsByPurchase retrieves all tickets for a purchase
func (s *Store) GetTicketsByPurchase(ctx context.Context, purchaseID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.SelectContext(ctx, &tickets,
		"SELECT * FROM tickets WHERE purchase_id = $1 ORDER BY seat_label", purchaseID)
	return tickets, err
}

// CheckInTicket marks a ticket used, conditioned on it still being
// valid. With two scanners racing on the same code only one update
// matches; the loser gets ErrStatusConflict and the stored
// check_in_time is never overwritten.
func (s *Store) CheckInTicket(ctx context.Context, ticketID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = $1, check_in_time = $2
		 WHERE id = $3 AND status = $4`,
		models.TicketStatusUsed, at, ticketID, models.TicketStatusValid)
	if err != nil {
		return fmt.Errorf("failed to check in ticket: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: ticket %s is not valid", ErrStatusConflict, ticketID)
	}
	return nil
}

// VoidTicketsForPurchase voids every still-valid ticket of a purchase
// and returns how many were voided. Used tickets are left untouched
// and void tickets are never deleted, preserving the audit trail.
func (s *Store) VoidTicketsForPurchase(ctx context.Context, purchaseID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tickets SET status = $1 WHERE purchase_id = $2 AND status = $3",
		models.TicketStatusVoid, purchaseID, models.TicketStatusValid)
	if err != nil {
		return 0, fmt.Errorf("failed to void tickets: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// IsEventProcessed checks if a domain event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a domain event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
