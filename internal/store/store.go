package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Sentinel errors callers dispatch on with errors.Is.
var (
	ErrEventNotFound         = errors.New("event not found")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrInsufficientInventory = errors.New("insufficient tickets remaining")
	// ErrStatusConflict means a conditional status update matched no row:
	// the record's current status was not the expected one.
	ErrStatusConflict = errors.New("status conflict")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetEventByID retrieves an event by ID
func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents retrieves all events ordered by date
func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.db.SelectContext(ctx, &events, "SELECT * FROM events ORDER BY event_date")
	return events, err
}

// CreateEvent creates a new event with its full allocation available
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	event.TicketsRemaining = event.TotalTickets

	query := `
		INSERT INTO events (id, title, event_date, venue, ticket_price, total_tickets, tickets_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, event, query,
		event.ID, event.Title, event.EventDate, event.Venue,
		event.TicketPrice, event.TotalTickets, event.TicketsRemaining)
}

// UpdateEvent updates event details. Ticket counts are owned by the
// reserve/release operations and are not touched here.
func (s *Store) UpdateEvent(ctx context.Context, event *models.Event) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET title = $1, event_date = $2, venue = $3, ticket_price = $4, updated_at = NOW()
		 WHERE id = $5`,
		event.Title, event.EventDate, event.Venue, event.TicketPrice, event.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, event.ID)
	}
	return nil
}

// DeleteEvent deletes an event
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return nil
}

// ReserveTickets atomically takes n tickets from the event's remaining
// count. The decrement is conditioned on enough tickets being left, so
// concurrent purchases can never drive the count negative.
func (s *Store) ReserveTickets(ctx context.Context, eventID string, n int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events
		 SET tickets_remaining = tickets_remaining - $1, updated_at = NOW()
		 WHERE id = $2 AND tickets_remaining >= $1`,
		n, eventID)
	if err != nil {
		return fmt.Errorf("failed to reserve tickets: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	// Zero rows: either the event is missing or it is sold short.
	if _, err := s.GetEventByID(ctx, eventID); err != nil {
		return err
	}
	return fmt.Errorf("%w: event %s, requested %d", ErrInsufficientInventory, eventID, n)
}

// ReleaseTickets returns n tickets to the event's remaining count
// (compensation for a failed issuance, or a refund). Capped at the
// total allocation.
func (s *Store) ReleaseTickets(ctx context.Context, eventID string, n int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events
		 SET tickets_remaining = LEAST(tickets_remaining + $1, total_tickets), updated_at = NOW()
		 WHERE id = $2`,
		n, eventID)
	if err != nil {
		return fmt.Errorf("failed to release tickets: %w", err)
	}
	return nil
}
