// Package ratelimit provides admission control for upstream calls: a token
// bucket sized to the configured request budget plus an explicit cool-down
// engaged when the upstream reports a rate-limit error.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is how long the gate stays closed after an upstream
// rate-limit error.
const DefaultCooldown = 60 * time.Second

// Gate is shared by every request handler; it is the only process-wide
// mutable state in the gateway.
type Gate struct {
	limiter *rate.Limiter
	logger  *slog.Logger

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewGate sizes the bucket so at most limit admissions happen per window,
// with bursts up to the full budget.
func NewGate(limit int, window time.Duration, logger *slog.Logger) *Gate {
	if limit <= 0 {
		limit = 1
	}

	if window <= 0 {
		window = time.Second
	}

	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit),
		logger:  logger,
	}
}

// Wait blocks until the caller is admitted. The returned flag reports
// whether a cool-down forced the caller to sleep, so the stream can surface
// a rate-limit notice to the client. Returns early with the context's error
// if the caller goes away.
func (g *Gate) Wait(ctx context.Context) (forcedWait bool, err error) {
	g.mu.Lock()
	until := g.blockedUntil
	g.mu.Unlock()

	if d := time.Until(until); d > 0 {
		g.logger.Warn("rate limited, waiting", "seconds", d.Seconds())

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			forcedWait = true
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return forcedWait, err
	}

	return forcedWait, nil
}

// Block closes the gate for the given duration. Later calls extend or
// shorten the deadline; the latest call wins.
func (g *Gate) Block(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.blockedUntil = time.Now().Add(d)
}

// BlockedFor reports the remaining cool-down, zero when the gate is open.
func (g *Gate) BlockedFor() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if d := time.Until(g.blockedUntil); d > 0 {
		return d
	}

	return 0
}
