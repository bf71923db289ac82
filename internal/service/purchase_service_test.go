package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/qr"
	"github.com/MetroMindsErie/rnbvslive/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent(remaining int) models.Event {
	return models.Event{
		ID:               uuid.New().String(),
		Title:            "R&B Versus Live: 90s Edition",
		EventDate:        time.Now().Add(30 * 24 * time.Hour),
		Venue:            "The Warner Theatre",
		TicketPrice:      decimal.NewFromFloat(45.50),
		TotalTickets:     remaining,
		TicketsRemaining: remaining,
	}
}

func newTestPurchaseService(fs *fakeStore) (*PurchaseService, *fakePublisher) {
	publisher := &fakePublisher{}
	encoder := qr.NewEncoder("https://rnbvslive.com", "test-secret")
	ps := NewPurchaseService(fs, &fakeInventory{store: fs}, publisher, encoder)
	return ps, publisher
}

func TestIssueTickets(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(10)
	fs.addEvent(event)
	ps, publisher := newTestPurchaseService(fs)

	result, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "+15551234567",
		Quantity: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseStatusConfirmed, result.Purchase.Status)
	assert.Len(t, result.Tickets, 3)
	assert.Equal(t, 7, fs.remaining(event.ID))
	assert.True(t, decimal.NewFromFloat(136.50).Equal(result.Purchase.TotalAmount))

	seen := make(map[string]bool)
	for i, ticket := range result.Tickets {
		assert.Equal(t, models.TicketStatusValid, ticket.Status)
		assert.Equal(t, result.Purchase.ID, ticket.PurchaseID)
		assert.Equal(t, fmt.Sprintf("SEAT%d", i+1), ticket.SeatLabel)
		assert.False(t, seen[ticket.ID], "ticket ids must be unique")
		seen[ticket.ID] = true
	}

	require.Len(t, publisher.issued, 1)
	assert.Equal(t, result.Purchase.ID, publisher.issued[0].PurchaseID)
	assert.Len(t, publisher.issued[0].Tickets, 3)
}

func TestIssueTicketsQRResolvesToTicket(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(2)
	fs.addEvent(event)
	ps, _ := newTestPurchaseService(fs)

	encoder := qr.NewEncoder("https://rnbvslive.com", "test-secret")
	result, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 2,
	})
	require.NoError(t, err)

	for _, ticket := range result.Tickets {
		decoded, err := encoder.Decode(ticket.QRPayload)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, decoded)
	}
}

func TestIssueTicketsInvalidQuantity(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(5)
	fs.addEvent(event)
	ps, _ := newTestPurchaseService(fs)

	for _, quantity := range []int{0, -1} {
		_, err := ps.IssueTickets(context.Background(), &IssueRequest{
			EventID:  event.ID,
			FullName: "Ada Lovelace",
			Email:    "ada@example.com",
			Quantity: quantity,
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Equal(t, 5, fs.remaining(event.ID))
}

func TestIssueTicketsEventNotFound(t *testing.T) {
	fs := newFakeStore()
	ps, _ := newTestPurchaseService(fs)

	_, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  "missing",
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 1,
	})
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestIssueTicketsInsufficientInventory(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(2)
	fs.addEvent(event)
	ps, publisher := newTestPurchaseService(fs)

	_, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 3,
	})
	assert.ErrorIs(t, err, store.ErrInsufficientInventory)
	assert.Equal(t, 2, fs.remaining(event.ID))
	assert.Empty(t, publisher.issued)
}

func TestIssueTicketsCompensatesOnWriteFailure(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(5)
	fs.addEvent(event)
	fs.failCreatePurchase = true
	ps, publisher := newTestPurchaseService(fs)

	_, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 2,
	})
	require.Error(t, err)

	// Reserved inventory must be released and nothing persisted.
	assert.Equal(t, 5, fs.remaining(event.ID))
	assert.Empty(t, fs.purchases)
	assert.Empty(t, fs.tickets)
	assert.Empty(t, publisher.issued)
}

func TestIssueTicketsIdempotentOnOrderRef(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(10)
	fs.addEvent(event)
	ps, publisher := newTestPurchaseService(fs)

	req := &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 2,
		OrderRef: "pi_abc123",
	}

	first, err := ps.IssueTickets(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 8, fs.remaining(event.ID))

	// Webhook redelivery must return the original purchase without
	// issuing again or touching inventory.
	second, err := ps.IssueTickets(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Purchase.ID, second.Purchase.ID)
	assert.Len(t, second.Tickets, 2)
	assert.Equal(t, 8, fs.remaining(event.ID))
	assert.Len(t, publisher.issued, 1)
}

func TestIssueTicketsSurvivesPublisherFailure(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(5)
	fs.addEvent(event)
	publisher := &fakePublisher{fail: true}
	encoder := qr.NewEncoder("https://rnbvslive.com", "test-secret")
	ps := NewPurchaseService(fs, &fakeInventory{store: fs}, publisher, encoder)

	result, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 1,
	})
	require.NoError(t, err)
	assert.Len(t, result.Tickets, 1)
	assert.Equal(t, 4, fs.remaining(event.ID))
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(2)
	fs.addEvent(event)
	ps, _ := newTestPurchaseService(fs)

	// Two requests totaling one ticket over capacity: exactly one
	// must fail with insufficient inventory.
	quantities := []int{2, 1}
	errs := make([]error, len(quantities))

	var wg sync.WaitGroup
	for i, quantity := range quantities {
		wg.Add(1)
		go func(i, quantity int) {
			defer wg.Done()
			_, errs[i] = ps.IssueTickets(context.Background(), &IssueRequest{
				EventID:  event.ID,
				FullName: "Ada Lovelace",
				Email:    "ada@example.com",
				Quantity: quantity,
			})
		}(i, quantity)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, store.ErrInsufficientInventory)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.GreaterOrEqual(t, fs.remaining(event.ID), 0)
}

func TestRefundPurchase(t *testing.T) {
	fs := newFakeStore()
	event := newTestEvent(5)
	fs.addEvent(event)
	ps, publisher := newTestPurchaseService(fs)

	issued, err := ps.IssueTickets(context.Background(), &IssueRequest{
		EventID:  event.ID,
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Quantity: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 2, fs.remaining(event.ID))

	refunded, err := ps.RefundPurchase(context.Background(), issued.Purchase.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseStatusRefunded, refunded.Purchase.Status)
	for _, ticket := range refunded.Tickets {
		assert.Equal(t, models.TicketStatusVoid, ticket.Status)
	}
	assert.Equal(t, 5, fs.remaining(event.ID))
	require.Len(t, publisher.refunded, 1)
	assert.Equal(t, 3, publisher.refunded[0].TicketsVoided)

	// Refunding twice is a status conflict.
	_, err = ps.RefundPurchase(context.Background(), issued.Purchase.ID)
	assert.ErrorIs(t, err, store.ErrStatusConflict)
}
