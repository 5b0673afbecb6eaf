package recovery

import (
	"math"
	"time"
)

// backoffDelay computes the wait before a retry, given how many sync attempts
// the chunk has already consumed. The first attempt in a pass never waits.
func backoffDelay(cfg Config, priorAttempts int) time.Duration {
	if priorAttempts < 1 {
		return 0
	}
	delay := float64(cfg.BaseRetryDelay) * math.Pow(cfg.BackoffMultiplier, float64(priorAttempts-1))
	if delay > float64(cfg.MaxRetryDelay) {
		return cfg.MaxRetryDelay
	}
	return time.Duration(delay)
}
