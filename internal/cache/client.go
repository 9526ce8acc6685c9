package cache

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// State is the lifecycle of the connection to the cache store.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrNotConfigured is returned when no store client was supplied.
var ErrNotConfigured = errors.New("cache store not configured")

// Client owns the store handle and its connection state. Cache operations
// only reach the store while the client is Ready.
type Client struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
	state  atomic.Int32
}

// NewClient wraps rdb. The client starts Disconnected until Connect succeeds.
func NewClient(rdb redis.UniversalClient, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rdb: rdb, logger: logger}
}

// Connect pings the store, drops whatever it holds and moves the client to
// Ready or Failed.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return ErrNotConfigured
	}
	c.state.Store(int32(StateConnecting))
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.fail(err)
		return err
	}
	if err := c.reset(ctx); err != nil {
		return err
	}
	c.state.Store(int32(StateReady))
	c.logger.Info("cache store ready")
	return nil
}

// Probe re-checks the store. A Failed client that answers is flushed before
// it becomes Ready again, since invalidations were skipped while it was down.
func (c *Client) Probe(ctx context.Context) State {
	if c == nil || c.rdb == nil {
		return StateDisconnected
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.fail(err)
		return StateFailed
	}
	prev := c.State()
	if prev == StateReady {
		return StateReady
	}
	if err := c.reset(ctx); err != nil {
		return StateFailed
	}
	c.state.Store(int32(StateReady))
	c.logger.Info("cache store recovered", zap.String("previous_state", prev.String()))
	return StateReady
}

// reset empties the store database. Entries written before an outage or a
// restart may have missed their invalidation.
func (c *Client) reset(ctx context.Context) error {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// Ping reports store reachability without changing state.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return ErrNotConfigured
	}
	return c.rdb.Ping(ctx).Err()
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	if c == nil {
		return StateDisconnected
	}
	return State(c.state.Load())
}

// Ready reports whether operations may use the store.
func (c *Client) Ready() bool {
	return c != nil && c.rdb != nil && c.State() == StateReady
}

// Close releases the store handle.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	c.state.Store(int32(StateDisconnected))
	return c.rdb.Close()
}

func (c *Client) fail(err error) {
	if prev := State(c.state.Swap(int32(StateFailed))); prev != StateFailed {
		c.logger.Warn("cache store unavailable; serving without cache", zap.Error(err))
	}
}

func (c *Client) store() redis.UniversalClient {
	return c.rdb
}
