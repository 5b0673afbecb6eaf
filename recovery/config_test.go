package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigNormalize(t *testing.T) {
	cfg := Config{FailureThreshold: 2}
	cfg.normalize()

	defaults := DefaultConfig()
	assert.Equal(t, 2, cfg.FailureThreshold)
	assert.Equal(t, defaults.MaxRetryAttempts, cfg.MaxRetryAttempts)
	assert.Equal(t, defaults.BaseRetryDelay, cfg.BaseRetryDelay)
	assert.Equal(t, defaults.MaxRetryDelay, cfg.MaxRetryDelay)
	assert.Equal(t, defaults.BackoffMultiplier, cfg.BackoffMultiplier)
	assert.Equal(t, defaults.CircuitTimeout, cfg.CircuitTimeout)
	assert.Equal(t, defaults.OperationRetention, cfg.OperationRetention)

	// Zero stays zero: it means no pause between documents in a batch.
	assert.Equal(t, time.Duration(0), cfg.InterDocumentDelay)
}
