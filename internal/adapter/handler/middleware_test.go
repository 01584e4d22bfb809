package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_DropsIdleVisitors(t *testing.T) {
	start := time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)
	now := start
	l := NewRateLimiter(60)
	l.now = func() time.Time { return now }
	l.lastPrune = start

	first := l.get("10.0.0.1")
	l.get("10.0.0.2")
	assert.Len(t, l.visitors, 2)

	now = start.Add(6 * time.Minute)
	assert.Same(t, first, l.get("10.0.0.1"))

	now = start.Add(11 * time.Minute)
	l.get("10.0.0.3")

	assert.Len(t, l.visitors, 2)
	assert.Contains(t, l.visitors, "10.0.0.1")
	assert.NotContains(t, l.visitors, "10.0.0.2")
}

func TestRateLimiter_ReturningVisitorKeepsBucket(t *testing.T) {
	now := time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(6)
	l.now = func() time.Time { return now }
	l.lastPrune = now

	assert.True(t, l.get("10.0.0.1").AllowN(now, 1))
	assert.False(t, l.get("10.0.0.1").AllowN(now, 1))
	assert.Len(t, l.visitors, 1)
}
