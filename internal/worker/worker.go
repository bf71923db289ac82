package worker

import (
	"context"
	"log"

	"github.com/MetroMindsErie/rnbvslive/internal/broker"
	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/notify"
	"github.com/MetroMindsErie/rnbvslive/internal/util"

	"go.uber.org/zap"
)

type processedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes TicketsIssued events and delivers the
// confirmation email and SMS. Delivery is best-effort; failures are
// logged and the event is still marked processed so a broken mailbox
// cannot wedge the consumer.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	gateway      notify.Gateway
	store        processedEventStore
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, gateway notify.Gateway, store processedEventStore) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		gateway:  gateway,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnTicketsIssued(w.handleTicketsIssued)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleTicketsIssued(ctx context.Context, event *models.TicketsIssuedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	tickets := make([]notify.TicketInfo, len(event.Tickets))
	for i, t := range event.Tickets {
		tickets[i] = notify.TicketInfo{
			TicketID:  t.TicketID,
			SeatLabel: t.SeatLabel,
			QRCodeURL: t.QRCodeURL,
		}
	}

	emailErr := w.gateway.SendTicketEmail(ctx, notify.EmailParams{
		To:         event.CustomerEmail,
		Name:       event.CustomerName,
		EventTitle: event.EventRef.Title,
		EventDate:  event.EventRef.EventDate,
		Venue:      event.EventRef.Venue,
		OrderRef:   event.OrderRef,
		Tickets:    tickets,
	})
	if emailErr != nil {
		util.NotificationsSentTotal.WithLabelValues("email", "failed").Inc()
		w.logger.Error("Failed to send confirmation email",
			zap.String("purchase_id", event.PurchaseID),
			zap.Error(emailErr))
	} else {
		util.NotificationsSentTotal.WithLabelValues("email", "sent").Inc()
	}

	if event.CustomerPhone != "" {
		if err := w.gateway.SendTicketSMS(ctx, notify.SMSParams{
			To:         event.CustomerPhone,
			EventTitle: event.EventRef.Title,
			EventDate:  event.EventRef.EventDate,
			OrderRef:   event.OrderRef,
		}); err != nil {
			util.NotificationsSentTotal.WithLabelValues("sms", "failed").Inc()
			w.logger.Error("Failed to send confirmation SMS",
				zap.String("purchase_id", event.PurchaseID),
				zap.Error(err))
		} else {
			util.NotificationsSentTotal.WithLabelValues("sms", "sent").Inc()
		}
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	return nil
}
