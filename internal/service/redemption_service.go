package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/store"
	"github.com/MetroMindsErie/rnbvslive/internal/util"

	"go.uber.org/zap"
)

type redemptionStore interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	CheckInTicket(ctx context.Context, ticketID string, at time.Time) error
}

type payloadDecoder interface {
	Decode(payload string) (string, error)
}

// RedemptionService validates a scanned code and consumes the ticket
// exactly once.
type RedemptionService struct {
	store   redemptionStore
	decoder payloadDecoder
	grace   time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewRedemptionService creates a redemption service. grace is how long
// after the event start tickets remain redeemable.
func NewRedemptionService(store redemptionStore, decoder payloadDecoder, grace time.Duration) *RedemptionService {
	return &RedemptionService{
		store:   store,
		decoder: decoder,
		grace:   grace,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// RedemptionResult is what the check-in kiosk displays. The ticket is
// included whenever one was found, valid or not.
type RedemptionResult struct {
	Valid   bool           `json:"valid"`
	Message string         `json:"message"`
	Ticket  *models.Ticket `json:"ticket,omitempty"`
}

// Redeem decodes a scanned payload and checks the ticket in.
// Validation failures (already used, void, event passed) come back as
// an invalid result, not an error; errors are reserved for malformed
// codes, missing tickets, and store failures.
func (rs *RedemptionService) Redeem(ctx context.Context, qrData string) (*RedemptionResult, error) {
	ctx, span := util.StartSpan(ctx, "RedemptionService.Redeem")
	defer span.End()

	ticketID, err := rs.decoder.Decode(qrData)
	if err != nil {
		util.RedemptionsTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}

	ticket, err := rs.store.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			util.RedemptionsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	switch ticket.Status {
	case models.TicketStatusUsed:
		util.RedemptionsTotal.WithLabelValues("already_used").Inc()
		return &RedemptionResult{
			Valid:   false,
			Message: alreadyUsedMessage(ticket),
			Ticket:  ticket,
		}, nil
	case models.TicketStatusVoid:
		util.RedemptionsTotal.WithLabelValues("void").Inc()
		return &RedemptionResult{
			Valid:   false,
			Message: "ticket void/refunded",
			Ticket:  ticket,
		}, nil
	}

	event, err := rs.store.GetEventByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if rs.now().After(event.EventDate.Add(rs.grace)) {
		util.RedemptionsTotal.WithLabelValues("event_passed").Inc()
		return &RedemptionResult{
			Valid:   false,
			Message: "event has passed",
			Ticket:  ticket,
		}, nil
	}

	checkInAt := rs.now()
	if err := rs.store.CheckInTicket(ctx, ticket.ID, checkInAt); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Lost the race against another scanner. Re-read so the
			// kiosk shows the winning check-in time.
			current, getErr := rs.store.GetTicket(ctx, ticket.ID)
			if getErr != nil {
				return nil, getErr
			}
			util.RedemptionsTotal.WithLabelValues("already_used").Inc()
			return &RedemptionResult{
				Valid:   false,
				Message: alreadyUsedMessage(current),
				Ticket:  current,
			}, nil
		}
		return nil, fmt.Errorf("failed to check in ticket: %w", err)
	}

	ticket.Status = models.TicketStatusUsed
	ticket.CheckInTime.Time = checkInAt
	ticket.CheckInTime.Valid = true

	util.RedemptionsTotal.WithLabelValues("valid").Inc()
	rs.logger.Info("Ticket checked in",
		zap.String("ticket_id", ticket.ID),
		zap.String("event_id", ticket.EventID))

	return &RedemptionResult{
		Valid:   true,
		Message: "Ticket is valid",
		Ticket:  ticket,
	}, nil
}

func alreadyUsedMessage(ticket *models.Ticket) string {
	if ticket.CheckInTime.Valid {
		return fmt.Sprintf("already used at %s", ticket.CheckInTime.Time.Format("3:04 PM"))
	}
	return "already used"
}
