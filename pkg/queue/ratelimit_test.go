package queue

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestRateLimiter() *RateLimiter {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetLevel(logrus.DebugLevel)
	return NewRateLimiter(100*time.Millisecond, log)
}

func TestApplyDelay_RespectsContextCancellation(t *testing.T) {
	rl := newTestRateLimiter()
	host := "example.com"

	rl.UpdateLastRequestTime(host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // pre-cancel

	start := time.Now()
	err := rl.ApplyDelay(ctx, host, 5*time.Second)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.Canceled)
	if elapsed > 100*time.Millisecond {
		t.Errorf("ApplyDelay with cancelled context took %v, expected <100ms", elapsed)
	}
}

func TestApplyDelay_WaitsAtLeastMinDelay(t *testing.T) {
	rl := newTestRateLimiter()
	host := "example.com"

	rl.UpdateLastRequestTime(host)

	start := time.Now()
	err := rl.ApplyDelay(context.Background(), host, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.NoError(t, err)
	if elapsed < 90*time.Millisecond {
		t.Errorf("ApplyDelay returned too quickly: %v, expected ~100ms", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("ApplyDelay took too long: %v, expected ~100ms", elapsed)
	}
}

func TestApplyDelay_NoDelayOnFirstRequest(t *testing.T) {
	rl := newTestRateLimiter()

	start := time.Now()
	assert.NoError(t, rl.ApplyDelay(context.Background(), "fresh-host.com", 5*time.Second))
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("ApplyDelay on first request took %v, expected instant return", elapsed)
	}
}

func TestApplyDelay_HostsAreIndependent(t *testing.T) {
	rl := newTestRateLimiter()
	rl.UpdateLastRequestTime("a.example")

	start := time.Now()
	assert.NoError(t, rl.ApplyDelay(context.Background(), "b.example", time.Second))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestApplyDelay_ZeroDelayDisablesLimit(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	rl := NewRateLimiter(0, log)
	rl.UpdateLastRequestTime("example.com")

	start := time.Now()
	assert.NoError(t, rl.ApplyDelay(context.Background(), "example.com", 0))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
