package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowRespectsBurst(t *testing.T) {
	rl := NewRateLimiter(map[string]Policy{
		"x": {Events: 1, Per: time.Hour, Burst: 3},
	})

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("u1", "x")
		assert.True(t, ok)
	}

	ok, wait := rl.Allow("u1", "x")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	// Buckets are per subject.
	ok, _ = rl.Allow("u2", "x")
	assert.True(t, ok)
}

func TestUnknownActionUsesDefault(t *testing.T) {
	rl := NewRateLimiter(nil)
	ok, _ := rl.Allow("u1", "something")
	assert.True(t, ok)
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.idleTTL = time.Millisecond

	rl.Allow("u1", ActionTyping)
	assert.Equal(t, 1, rl.Size())

	time.Sleep(5 * time.Millisecond)
	rl.Cleanup()
	assert.Equal(t, 0, rl.Size())
}

func TestRunStopsOnCancel(t *testing.T) {
	rl := NewRateLimiter(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
