package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterEnforcesBudgetPerKey(t *testing.T) {
	limiter := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"))
	}
	assert.False(t, limiter.Allow("10.0.0.1"))

	// Other clients keep their own budget
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestLimiterResetRestoresBudget(t *testing.T) {
	limiter := New(1, 50*time.Millisecond)
	limiter.Start()
	defer limiter.Stop()

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	time.Sleep(120 * time.Millisecond)
	assert.True(t, limiter.Allow("10.0.0.1"))
}
