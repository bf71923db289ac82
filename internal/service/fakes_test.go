package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/store"
)

// fakeStore is an in-memory stand-in for the Postgres store with the
// same conditional-update semantics.
type fakeStore struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	purchases map[string]*models.Purchase
	tickets   map[string]*models.Ticket

	failCreatePurchase bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:    make(map[string]*models.Event),
		purchases: make(map[string]*models.Purchase),
		tickets:   make(map[string]*models.Ticket),
	}
}

func (f *fakeStore) addEvent(event models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = &event
}

func (f *fakeStore) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrEventNotFound, id)
	}
	copied := *event
	return &copied, nil
}

func (f *fakeStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.Event
	for _, e := range f.events {
		events = append(events, *e)
	}
	return events, nil
}

func (f *fakeStore) ReserveTickets(ctx context.Context, eventID string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrEventNotFound, eventID)
	}
	if event.TicketsRemaining < n {
		return fmt.Errorf("%w: event %s, requested %d", store.ErrInsufficientInventory, eventID, n)
	}
	event.TicketsRemaining -= n
	return nil
}

func (f *fakeStore) ReleaseTickets(ctx context.Context, eventID string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrEventNotFound, eventID)
	}
	event.TicketsRemaining += n
	if event.TicketsRemaining > event.TotalTickets {
		event.TicketsRemaining = event.TotalTickets
	}
	return nil
}

func (f *fakeStore) remaining(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].TicketsRemaining
}

func (f *fakeStore) GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	purchase, ok := f.purchases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrPurchaseNotFound, id)
	}
	copied := *purchase
	return &copied, nil
}

func (f *fakeStore) GetPurchaseByOrderRef(ctx context.Context, orderRef string) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.purchases {
		if p.OrderRef.Valid && p.OrderRef.String == orderRef {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreatePurchaseWithTickets(ctx context.Context, purchase *models.Purchase, tickets []models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreatePurchase {
		return errors.New("simulated write failure")
	}
	copied := *purchase
	f.purchases[purchase.ID] = &copied
	for i := range tickets {
		tickets[i].CreatedAt = time.Now()
		t := tickets[i]
		f.tickets[t.ID] = &t
	}
	return nil
}

func (f *fakeStore) GetTicketsByPurchase(ctx context.Context, purchaseID string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tickets []models.Ticket
	for _, t := range f.tickets {
		if t.PurchaseID == purchaseID {
			tickets = append(tickets, *t)
		}
	}
	return tickets, nil
}

func (f *fakeStore) UpdatePurchaseStatus(ctx context.Context, purchaseID, expectedStatus, newStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	purchase, ok := f.purchases[purchaseID]
	if !ok || purchase.Status != expectedStatus {
		return fmt.Errorf("%w: purchase %s is not %s", store.ErrStatusConflict, purchaseID, expectedStatus)
	}
	purchase.Status = newStatus
	return nil
}

func (f *fakeStore) VoidTicketsForPurchase(ctx context.Context, purchaseID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	voided := 0
	for _, t := range f.tickets {
		if t.PurchaseID == purchaseID && t.Status == models.TicketStatusValid {
			t.Status = models.TicketStatusVoid
			voided++
		}
	}
	return voided, nil
}

func (f *fakeStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTicketNotFound, id)
	}
	copied := *ticket
	return &copied, nil
}

// CheckInTicket has the same compare-and-swap behavior as the SQL
// conditional update: only one caller can move valid->used.
func (f *fakeStore) CheckInTicket(ctx context.Context, ticketID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.Status != models.TicketStatusValid {
		return fmt.Errorf("%w: ticket %s is not valid", store.ErrStatusConflict, ticketID)
	}
	ticket.Status = models.TicketStatusUsed
	ticket.CheckInTime.Time = at
	ticket.CheckInTime.Valid = true
	return nil
}

// fakeInventory reserves straight against the fake store, mirroring
// the production service's contract without Redis.
type fakeInventory struct {
	store *fakeStore
}

func (f *fakeInventory) Reserve(ctx context.Context, eventID string, n int) error {
	return f.store.ReserveTickets(ctx, eventID, n)
}

func (f *fakeInventory) Release(ctx context.Context, eventID string, n int) error {
	return f.store.ReleaseTickets(ctx, eventID, n)
}

// fakePublisher records published domain events.
type fakePublisher struct {
	mu       sync.Mutex
	issued   []*models.TicketsIssuedEvent
	refunded []*models.PurchaseRefundedEvent
	fail     bool
}

func (f *fakePublisher) PublishTicketsIssued(ctx context.Context, event *models.TicketsIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.issued = append(f.issued, event)
	return nil
}

func (f *fakePublisher) PublishPurchaseRefunded(ctx context.Context, event *models.PurchaseRefundedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.refunded = append(f.refunded, event)
	return nil
}
