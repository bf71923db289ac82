package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/MetroMindsErie/rnbvslive/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTicketsIssued publishes a TicketsIssued event keyed by
// purchase so redeliveries for the same purchase stay ordered.
func (ep *EventPublisher) PublishTicketsIssued(ctx context.Context, event *models.TicketsIssuedEvent) error {
	key := fmt.Sprintf("purchase-%s", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPurchaseRefunded publishes a PurchaseRefunded event
func (ep *EventPublisher) PublishPurchaseRefunded(ctx context.Context, event *models.PurchaseRefundedEvent) error {
	key := fmt.Sprintf("purchase-%s", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming domain events
type EventHandler struct {
	onTicketsIssued    func(context.Context, *models.TicketsIssuedEvent) error
	onPurchaseRefunded func(context.Context, *models.PurchaseRefundedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnTicketsIssued registers a handler for TicketsIssued events
func (eh *EventHandler) OnTicketsIssued(handler func(context.Context, *models.TicketsIssuedEvent) error) {
	eh.onTicketsIssued = handler
}

// OnPurchaseRefunded registers a handler for PurchaseRefunded events
func (eh *EventHandler) OnPurchaseRefunded(handler func(context.Context, *models.PurchaseRefundedEvent) error) {
	eh.onPurchaseRefunded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeTicketsIssued:
		if eh.onTicketsIssued != nil {
			var event models.TicketsIssuedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketsIssued event: %w", err)
			}
			return eh.onTicketsIssued(ctx, &event)
		}

	case models.EventTypePurchaseRefunded:
		if eh.onPurchaseRefunded != nil {
			var event models.PurchaseRefundedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseRefunded event: %w", err)
			}
			return eh.onPurchaseRefunded(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
