// Package ratelimit implements a fixed-window request limiter keyed by client.
// Counters accumulate per window and are reset in bulk by a repeating task,
// trading per-request precision for zero allocation on the hot path.
package ratelimit

import (
	"time"

	"github.com/fishbridge/gateway/internal/task"
	"github.com/fishbridge/gateway/internal/threadsafe"
)

// Limiter counts requests per key within a fixed window
type Limiter struct {
	budget    int
	counts    *threadsafe.Map[string, int]
	resetTask *task.RepeatingTask
}

// New creates a new limiter allowing the given number of requests per window
func New(budget int, window time.Duration) *Limiter {
	limiter := &Limiter{
		budget: budget,
		counts: threadsafe.NewMap[string, int](),
	}
	limiter.resetTask = task.NewRepeating(limiter.counts.Clear, window)
	return limiter
}

// Start schedules the window reset task
func (limiter *Limiter) Start() {
	limiter.resetTask.Start()
}

// Stop stops the window reset task
func (limiter *Limiter) Stop() {
	limiter.resetTask.Stop(false)
}

// Allow records a request for the given key and reports whether it still fits
// into the current window's budget
func (limiter *Limiter) Allow(key string) bool {
	allowed := false
	limiter.counts.Do(func(values map[string]int) {
		values[key]++
		allowed = values[key] <= limiter.budget
	})
	return allowed
}
