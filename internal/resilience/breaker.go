package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config controls when a remote is considered dead
type Config struct {
	Enabled      bool
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
	HalfOpenMax  uint32
}

// DefaultConfig trips after half of at least five calls fail
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MinRequests:  5,
		FailureRatio: 0.5,
		OpenTimeout:  30 * time.Second,
		HalfOpenMax:  1,
	}
}

func (c Config) normalize() Config {
	if c.MinRequests == 0 {
		c.MinRequests = 1
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMax == 0 {
		c.HalfOpenMax = 1
	}
	return c
}

// Guard runs remote calls through one circuit breaker per operation.
// Calls are never retried.
type Guard struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewGuard creates a Guard
func NewGuard(cfg Config) *Guard {
	return &Guard{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Do executes fn under the breaker for operation. A nil Guard just calls fn.
func (g *Guard) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil || !g.cfg.Enabled {
		return fn(ctx)
	}

	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}

	_, err := g.breaker(op).Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (g *Guard) breaker(operation string) *gobreaker.CircuitBreaker[any] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[operation]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: g.cfg.HalfOpenMax,
		Timeout:     g.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < g.cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= g.cfg.FailureRatio
		},
		// cancellation is the caller's doing, not the remote's
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	g.breakers[operation] = b
	return b
}

// IsOpen reports whether err was produced by an open breaker
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
