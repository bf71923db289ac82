package service

import (
	"context"
	"fmt"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/redisclient"
	"github.com/MetroMindsErie/rnbvslive/internal/store"
	"github.com/MetroMindsErie/rnbvslive/internal/util"

	"go.uber.org/zap"
)

type inventoryStore interface {
	ReserveTickets(ctx context.Context, eventID string, n int) error
	ReleaseTickets(ctx context.Context, eventID string, n int) error
	ListEvents(ctx context.Context) ([]models.Event, error)
}

type inventoryMirror interface {
	ReserveInventory(ctx context.Context, eventID string, quantity int) (redisclient.ReserveResult, error)
	ReleaseInventory(ctx context.Context, eventID string, quantity int) error
	InitInventory(ctx context.Context, eventID string, remaining int) error
}

// InventoryService guards event capacity. Postgres owns the count; the
// Redis mirror exists to reject sold-out purchases before they reach
// the database.
type InventoryService struct {
	store  inventoryStore
	mirror inventoryMirror
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store inventoryStore, mirror inventoryMirror) *InventoryService {
	return &InventoryService{
		store:  store,
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// Reserve atomically takes n tickets for an event. The mirror is
// consulted first; the database decrement is the authoritative step
// and the mirror is compensated if it refuses.
func (is *InventoryService) Reserve(ctx context.Context, eventID string, n int) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Reserve")
	defer span.End()

	mirrored := false
	result, err := is.mirror.ReserveInventory(ctx, eventID, n)
	switch {
	case err != nil:
		is.logger.Warn("Redis reservation failed, falling back to DB",
			zap.String("event_id", eventID),
			zap.Error(err))
	case result == redisclient.ReserveInsufficient:
		util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		return fmt.Errorf("%w: event %s, requested %d", store.ErrInsufficientInventory, eventID, n)
	case result == redisclient.ReserveOK:
		mirrored = true
	}

	if err := is.store.ReserveTickets(ctx, eventID, n); err != nil {
		if mirrored {
			if relErr := is.mirror.ReleaseInventory(ctx, eventID, n); relErr != nil {
				is.logger.Error("Failed to compensate mirror reservation",
					zap.String("event_id", eventID),
					zap.Error(relErr))
			}
		}
		util.InventoryReservationsFailed.WithLabelValues("store").Inc()
		return err
	}

	return nil
}

// Release returns n tickets to an event (compensation or refund).
func (is *InventoryService) Release(ctx context.Context, eventID string, n int) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Release")
	defer span.End()

	if err := is.mirror.ReleaseInventory(ctx, eventID, n); err != nil {
		is.logger.Error("Failed to release mirrored inventory",
			zap.String("event_id", eventID),
			zap.Error(err))
	}

	return is.store.ReleaseTickets(ctx, eventID, n)
}

// SyncToRedis seeds the mirror with every event's remaining count.
// Run at startup.
func (is *InventoryService) SyncToRedis(ctx context.Context) error {
	events, err := is.store.ListEvents(ctx)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := is.mirror.InitInventory(ctx, event.ID, event.TicketsRemaining); err != nil {
			is.logger.Error("Failed to init mirrored inventory",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	is.logger.Info("Inventory sync completed", zap.Int("count", len(events)))
	return nil
}
