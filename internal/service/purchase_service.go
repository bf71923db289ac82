package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/qr"
	"github.com/MetroMindsErie/rnbvslive/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidQuantity rejects purchases for zero or negative tickets.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type purchaseStore interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error)
	GetPurchaseByOrderRef(ctx context.Context, orderRef string) (*models.Purchase, error)
	CreatePurchaseWithTickets(ctx context.Context, purchase *models.Purchase, tickets []models.Ticket) error
	GetTicketsByPurchase(ctx context.Context, purchaseID string) ([]models.Ticket, error)
	UpdatePurchaseStatus(ctx context.Context, purchaseID, expectedStatus, newStatus string) error
	VoidTicketsForPurchase(ctx context.Context, purchaseID string) (int, error)
}

type inventory interface {
	Reserve(ctx context.Context, eventID string, n int) error
	Release(ctx context.Context, eventID string, n int) error
}

type eventPublisher interface {
	PublishTicketsIssued(ctx context.Context, event *models.TicketsIssuedEvent) error
	PublishPurchaseRefunded(ctx context.Context, event *models.PurchaseRefundedEvent) error
}

// PurchaseService turns a confirmed payment into a purchase with its
// tickets, with inventory correctly decremented.
type PurchaseService struct {
	store     purchaseStore
	inventory inventory
	publisher eventPublisher
	encoder   *qr.Encoder
	logger    *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(store purchaseStore, inventory inventory, publisher eventPublisher, encoder *qr.Encoder) *PurchaseService {
	return &PurchaseService{
		store:     store,
		inventory: inventory,
		publisher: publisher,
		encoder:   encoder,
		logger:    util.GetLogger(),
	}
}

// IssueRequest is a confirmed purchase to fulfil.
type IssueRequest struct {
	EventID  string
	FullName string
	Email    string
	Phone    string
	Quantity int
	// OrderRef is the payment processor's reference. When set,
	// issuance is idempotent on it: a redelivered confirmation
	// returns the original purchase.
	OrderRef string
}

// IssueResult is the persisted outcome of an issuance.
type IssueResult struct {
	Purchase *models.Purchase `json:"purchase"`
	Tickets  []models.Ticket  `json:"tickets"`
}

// IssueTickets reserves inventory, persists the purchase with exactly
// Quantity tickets, and announces the issuance. On any failure after
// the reservation the inventory is released again; a purchase is never
// visible without its full ticket count.
func (ps *PurchaseService) IssueTickets(ctx context.Context, req *IssueRequest) (*IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.IssueTickets")
	defer span.End()

	if req.Quantity < 1 {
		util.PurchasesFailedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
	}

	if req.OrderRef != "" {
		existing, err := ps.store.GetPurchaseByOrderRef(ctx, req.OrderRef)
		if err != nil {
			return nil, fmt.Errorf("failed to check order reference: %w", err)
		}
		if existing != nil {
			ps.logger.Info("Duplicate payment confirmation detected",
				zap.String("order_ref", req.OrderRef),
				zap.String("purchase_id", existing.ID))
			tickets, err := ps.store.GetTicketsByPurchase(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			return &IssueResult{Purchase: existing, Tickets: tickets}, nil
		}
	}

	event, err := ps.store.GetEventByID(ctx, req.EventID)
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues("event_not_found").Inc()
		return nil, err
	}

	start := time.Now()
	if err := ps.inventory.Reserve(ctx, event.ID, req.Quantity); err != nil {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
		util.PurchasesFailedTotal.WithLabelValues("insufficient_inventory").Inc()
		return nil, err
	}
	util.InventoryReserveLatency.Observe(time.Since(start).Seconds())

	purchase := &models.Purchase{
		ID:             uuid.New().String(),
		EventID:        event.ID,
		CustomerName:   req.FullName,
		CustomerEmail:  req.Email,
		CustomerPhone:  req.Phone,
		TicketQuantity: req.Quantity,
		TotalAmount:    event.TicketPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Status:         models.PurchaseStatusConfirmed,
		PurchaseDate:   time.Now(),
	}
	if req.OrderRef != "" {
		purchase.OrderRef = sql.NullString{String: req.OrderRef, Valid: true}
	}

	tickets := make([]models.Ticket, req.Quantity)
	for i := range tickets {
		ticketID := uuid.New().String()
		encoded := ps.encoder.Encode(ticketID, event.ID)
		tickets[i] = models.Ticket{
			ID:         ticketID,
			PurchaseID: purchase.ID,
			EventID:    event.ID,
			SeatLabel:  fmt.Sprintf("SEAT%d", i+1),
			QRPayload:  encoded.Payload,
			QRCodeURL:  encoded.ImageURL,
			Status:     models.TicketStatusValid,
		}
	}

	if err := ps.store.CreatePurchaseWithTickets(ctx, purchase, tickets); err != nil {
		ps.compensateReservation(ctx, event.ID, req.Quantity)
		util.PurchasesFailedTotal.WithLabelValues("store_write").Inc()
		return nil, fmt.Errorf("failed to persist purchase: %w", err)
	}

	util.PurchasesTotal.Inc()
	util.TicketsIssuedTotal.Add(float64(req.Quantity))
	ps.logger.Info("Tickets issued",
		zap.String("purchase_id", purchase.ID),
		zap.String("event_id", event.ID),
		zap.Int("quantity", req.Quantity))

	ps.publishIssued(ctx, purchase, event, tickets)

	return &IssueResult{Purchase: purchase, Tickets: tickets}, nil
}

// compensateReservation returns reserved inventory after a failed
// issuance step.
func (ps *PurchaseService) compensateReservation(ctx context.Context, eventID string, quantity int) {
	if err := ps.inventory.Release(ctx, eventID, quantity); err != nil {
		ps.logger.Error("Failed to compensate reservation",
			zap.String("event_id", eventID),
			zap.Int("quantity", quantity),
			zap.Error(err))
	}
}

// publishIssued announces the issuance for the notification worker.
// Best-effort: the sale stands even if the broker is down.
func (ps *PurchaseService) publishIssued(ctx context.Context, purchase *models.Purchase, event *models.Event, tickets []models.Ticket) {
	ticketData := make([]models.TicketData, len(tickets))
	for i, t := range tickets {
		ticketData[i] = models.TicketData{
			TicketID:  t.ID,
			SeatLabel: t.SeatLabel,
			QRCodeURL: t.QRCodeURL,
		}
	}

	issued := &models.TicketsIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTicketsIssued,
			Timestamp: time.Now(),
		},
		PurchaseID: purchase.ID,
		EventRef: models.EventData{
			ID:        event.ID,
			Title:     event.Title,
			EventDate: event.EventDate,
			Venue:     event.Venue,
		},
		CustomerName:  purchase.CustomerName,
		CustomerEmail: purchase.CustomerEmail,
		CustomerPhone: purchase.CustomerPhone,
		OrderRef:      purchase.OrderRef.String,
		Tickets:       ticketData,
	}

	if err := ps.publisher.PublishTicketsIssued(ctx, issued); err != nil {
		ps.logger.Error("Failed to publish TicketsIssued event",
			zap.String("purchase_id", purchase.ID),
			zap.Error(err))
	}
}

// GetPurchase retrieves a purchase with its tickets.
func (ps *PurchaseService) GetPurchase(ctx context.Context, purchaseID string) (*IssueResult, error) {
	purchase, err := ps.store.GetPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	tickets, err := ps.store.GetTicketsByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return &IssueResult{Purchase: purchase, Tickets: tickets}, nil
}

// RefundPurchase marks a confirmed purchase refunded, voids its
// still-valid tickets, and returns their inventory. Used tickets stay
// used and voided tickets stay queryable.
func (ps *PurchaseService) RefundPurchase(ctx context.Context, purchaseID string) (*IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.RefundPurchase")
	defer span.End()

	purchase, err := ps.store.GetPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	if err := ps.store.UpdatePurchaseStatus(ctx, purchaseID, models.PurchaseStatusConfirmed, models.PurchaseStatusRefunded); err != nil {
		return nil, err
	}
	purchase.Status = models.PurchaseStatusRefunded

	voided, err := ps.store.VoidTicketsForPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to void tickets: %w", err)
	}

	if voided > 0 {
		if err := ps.inventory.Release(ctx, purchase.EventID, voided); err != nil {
			ps.logger.Error("Failed to release inventory on refund",
				zap.String("purchase_id", purchaseID),
				zap.Error(err))
		}
	}

	util.PurchasesRefundedTotal.Inc()
	ps.logger.Info("Purchase refunded",
		zap.String("purchase_id", purchaseID),
		zap.Int("tickets_voided", voided))

	refunded := &models.PurchaseRefundedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePurchaseRefunded,
			Timestamp: time.Now(),
		},
		PurchaseID:    purchaseID,
		EventID:       purchase.EventID,
		TicketsVoided: voided,
	}
	if err := ps.publisher.PublishPurchaseRefunded(ctx, refunded); err != nil {
		ps.logger.Error("Failed to publish PurchaseRefunded event", zap.Error(err))
	}

	tickets, err := ps.store.GetTicketsByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return &IssueResult{Purchase: purchase, Tickets: tickets}, nil
}
