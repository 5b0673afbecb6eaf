package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGracefulDegradationPrimarySucceeds(t *testing.T) {
	reporter := NewMemoryReporter()

	value, err := WithGracefulDegradation(context.Background(), reporter, "lookup",
		func(ctx context.Context) (string, error) { return "primary", nil },
		func(ctx context.Context) (string, error) {
			t.Fatal("fallback must not run")
			return "", nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "primary", value)
	assert.Empty(t, reporter.Incidents())
}

func TestGracefulDegradationFallsBack(t *testing.T) {
	reporter := NewMemoryReporter()
	primaryErr := errors.New("primary down")

	value, err := WithGracefulDegradation(context.Background(), reporter, "lookup",
		func(ctx context.Context) ([]int, error) { return nil, primaryErr },
		func(ctx context.Context) ([]int, error) { return []int{1, 2}, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, value)

	incidents := reporter.Incidents()
	require.Len(t, incidents, 2)
	assert.Equal(t, "lookup", incidents[0].Source)
	assert.ErrorIs(t, incidents[0].Err, primaryErr)
	assert.False(t, incidents[0].Resolved)
	assert.Equal(t, "lookup", incidents[1].Source)
	assert.True(t, incidents[1].Resolved)
}

func TestGracefulDegradationBothFail(t *testing.T) {
	reporter := NewMemoryReporter()
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down too")

	value, err := WithGracefulDegradation(context.Background(), reporter, "lookup",
		func(ctx context.Context) (int, error) { return 7, primaryErr },
		func(ctx context.Context) (int, error) { return 9, fallbackErr },
	)
	require.ErrorIs(t, err, fallbackErr)
	assert.Zero(t, value)

	incidents := reporter.Incidents()
	require.Len(t, incidents, 2)
	assert.Equal(t, "lookup", incidents[0].Source)
	assert.Equal(t, "lookup-fallback", incidents[1].Source)
	assert.ErrorIs(t, incidents[1].Err, fallbackErr)
}
