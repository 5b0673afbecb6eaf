package recovery

import "time"

// Config controls retry pacing, circuit breaking, and operation bookkeeping.
type Config struct {
	// MaxRetryAttempts is the total sync-attempt budget per chunk, counting
	// attempts made by the queue processor. A chunk at or past this budget
	// is unrecoverable.
	MaxRetryAttempts int

	// BaseRetryDelay is the delay before a chunk's second attempt.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff.
	MaxRetryDelay time.Duration

	// BackoffMultiplier scales the delay between consecutive attempts.
	BackoffMultiplier float64

	// FailureThreshold is how many consecutive downstream failures open
	// the circuit breaker.
	FailureThreshold int

	// CircuitTimeout is how long the breaker stays open before allowing a
	// probe request through.
	CircuitTimeout time.Duration

	// InterDocumentDelay paces batch recovery between documents. Zero
	// disables the pause.
	InterDocumentDelay time.Duration

	// OperationRetention is how long finished recovery operations remain
	// queryable.
	OperationRetention time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts:   3,
		BaseRetryDelay:     time.Second,
		MaxRetryDelay:      30 * time.Second,
		BackoffMultiplier:  2,
		FailureThreshold:   5,
		CircuitTimeout:     60 * time.Second,
		InterDocumentDelay: time.Second,
		OperationRetention: time.Hour,
	}
}

// normalize fills zero values with defaults. InterDocumentDelay is left
// untouched; zero is a valid setting that disables batch pacing.
func (c *Config) normalize() {
	defaults := DefaultConfig()
	if c.MaxRetryAttempts < 1 {
		c.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = defaults.BaseRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaults.MaxRetryDelay
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.CircuitTimeout <= 0 {
		c.CircuitTimeout = defaults.CircuitTimeout
	}
	if c.OperationRetention <= 0 {
		c.OperationRetention = defaults.OperationRetention
	}
}
