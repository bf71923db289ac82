package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_inventory.lua
var reserveInventoryScript string

//go:embed scripts/release_inventory.lua
var releaseInventoryScript string

// Reserve outcomes from the Lua script.
const (
	reserveUnknown      = -1
	reserveInsufficient = 0
	reserveOK           = 1
)

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientFromRedis(rdb), nil
}

// NewClientFromRedis wraps an existing Redis connection. Used by tests
// with a mock connection.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveInventoryScript),
		releaseScript: redis.NewScript(releaseInventoryScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(eventID string) string {
	return fmt.Sprintf("inventory:%s", eventID)
}

// ReserveResult reports what the mirror knows about a reservation.
type ReserveResult int

const (
	// ReserveOK means the mirror had capacity and was decremented.
	ReserveOK ReserveResult = iota
	// ReserveInsufficient means the mirror shows the event sold short.
	ReserveInsufficient
	// ReserveUnknown means the mirror has no count for the event.
	ReserveUnknown
)

// ReserveInventory atomically decrements the mirrored remaining count
// for an event using a Lua script.
func (c *Client) ReserveInventory(ctx context.Context, eventID string, quantity int) (ReserveResult, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{inventoryKey(eventID)}, quantity).Result()
	if err != nil {
		return ReserveUnknown, fmt.Errorf("reserve inventory script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return ReserveUnknown, fmt.Errorf("unexpected script result type %T", result)
	}

	switch code {
	case reserveOK:
		return ReserveOK, nil
	case reserveInsufficient:
		return ReserveInsufficient, nil
	default:
		return ReserveUnknown, nil
	}
}

// ReleaseInventory atomically returns quantity to the mirrored count
// (compensation).
func (c *Client) ReleaseInventory(ctx context.Context, eventID string, quantity int) error {
	if _, err := c.releaseScript.Run(ctx, c.rdb, []string{inventoryKey(eventID)}, quantity).Result(); err != nil {
		return fmt.Errorf("release inventory script failed: %w", err)
	}
	return nil
}

// InitInventory seeds the mirrored remaining count for an event
func (c *Client) InitInventory(ctx context.Context, eventID string, remaining int) error {
	return c.rdb.Set(ctx, inventoryKey(eventID), remaining, 0).Err()
}

// AcquireOrderRefGuard takes a short-lived lock on a payment reference
// so concurrently redelivered webhooks serialize before the database
// unique constraint is even consulted.
func (c *Client) AcquireOrderRefGuard(ctx context.Context, orderRef string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("orderref:%s", orderRef), "1", ttl).Result()
}

// ReleaseOrderRefGuard releases a payment reference lock
func (c *Client) ReleaseOrderRefGuard(ctx context.Context, orderRef string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("orderref:%s", orderRef)).Err()
}
