package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	l := NewLimiter(1, 3)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "fourth immediate request should exceed the burst")
}

func TestLimiterRefillsOverTime(t *testing.T) {
	l := NewLimiter(100, 1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow(), "limiter should refill at least one token after 20ms at 100/sec")
}
