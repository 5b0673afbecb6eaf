package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	registry := NewBreakerRegistry(3, time.Minute)
	boom := errors.New("downstream down")

	for i := 0; i < 3; i++ {
		err := registry.Execute("dest", func() error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, registry.State("dest"))

	err := registry.Execute("dest", func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	registry := NewBreakerRegistry(3, time.Minute)
	boom := errors.New("blip")

	for i := 0; i < 2; i++ {
		_ = registry.Execute("dest", func() error { return boom })
	}
	require.NoError(t, registry.Execute("dest", func() error { return nil }))

	// The earlier failures no longer count toward the threshold.
	for i := 0; i < 2; i++ {
		_ = registry.Execute("dest", func() error { return boom })
	}
	assert.Equal(t, gobreaker.StateClosed, registry.State("dest"))
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	registry := NewBreakerRegistry(1, 20*time.Millisecond)

	_ = registry.Execute("dest", func() error { return errors.New("down") })
	require.Equal(t, gobreaker.StateOpen, registry.State("dest"))

	time.Sleep(40 * time.Millisecond)
	require.Equal(t, gobreaker.StateHalfOpen, registry.State("dest"))

	require.NoError(t, registry.Execute("dest", func() error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, registry.State("dest"))
}

func TestBreakersAreIndependent(t *testing.T) {
	registry := NewBreakerRegistry(1, time.Minute)

	_ = registry.Execute("sick", func() error { return errors.New("down") })
	assert.Equal(t, gobreaker.StateOpen, registry.State("sick"))
	assert.Equal(t, gobreaker.StateClosed, registry.State("healthy"))

	assert.NoError(t, registry.Execute("healthy", func() error { return nil }))
}
