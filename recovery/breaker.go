package recovery

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerRegistry maintains one circuit breaker per downstream destination.
// Breaker state is process-local and resets on restart.
type BreakerRegistry struct {
	threshold int
	timeout   time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a registry whose breakers open after threshold
// consecutive failures and allow a probe after timeout.
func NewBreakerRegistry(threshold int, timeout time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		threshold: threshold,
		timeout:   timeout,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *BreakerRegistry) breaker(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[name]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     r.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(r.threshold)
			},
		})
		r.breakers[name] = cb
	}
	return cb
}

// Execute runs fn through the named breaker. When the breaker is open the
// call is not attempted and the error wraps ErrCircuitOpen.
func (r *BreakerRegistry) Execute(name string, fn func() error) error {
	_, err := r.breaker(name).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", name, ErrCircuitOpen)
	}
	return err
}

// State reports the named breaker's current state. Destinations never seen
// report closed.
func (r *BreakerRegistry) State(name string) gobreaker.State {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
