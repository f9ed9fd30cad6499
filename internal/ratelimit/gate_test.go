package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(limit int, window time.Duration) *Gate {
	return NewGate(limit, window, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGate_WaitAdmitsImmediately(t *testing.T) {
	g := newTestGate(10, time.Second)

	forced, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, forced)
}

func TestGate_BlockForcesWait(t *testing.T) {
	g := newTestGate(10, time.Second)
	g.Block(30 * time.Millisecond)

	start := time.Now()
	forced, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, forced)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestGate_BlockedFor(t *testing.T) {
	g := newTestGate(10, time.Second)
	assert.Equal(t, time.Duration(0), g.BlockedFor())

	g.Block(time.Minute)
	remaining := g.BlockedFor()
	assert.Greater(t, remaining, 50*time.Second)
	assert.LessOrEqual(t, remaining, time.Minute)

	g.Block(0)
	assert.Equal(t, time.Duration(0), g.BlockedFor())
}

func TestGate_WaitHonorsContextDuringCooldown(t *testing.T) {
	g := newTestGate(10, time.Second)
	g.Block(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	forced, err := g.Wait(ctx)
	assert.False(t, forced)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_LimiterThrottlesBeyondBurst(t *testing.T) {
	g := newTestGate(2, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Wait(ctx)
		require.NoError(t, err)
	}

	start := time.Now()
	_, err := g.Wait(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestNewGate_SanitizesArguments(t *testing.T) {
	g := NewGate(0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	forced, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, forced)
}
