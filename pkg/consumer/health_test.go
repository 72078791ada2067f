package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSampleHealthReturnsPlausibleReadings(t *testing.T) {
	h, err := SampleHealth(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, h.CPUPercent, 0.0)
	require.GreaterOrEqual(t, h.MemPercent, 0.0)
}

func TestHealthOverloadedThreshold(t *testing.T) {
	require.False(t, Health{CPUPercent: 50, MemPercent: 50}.Overloaded())
	require.True(t, Health{CPUPercent: 95, MemPercent: 10}.Overloaded())
	require.True(t, Health{CPUPercent: 10, MemPercent: 95}.Overloaded())
}

func TestHealthSamplerLatestUpdatesAfterInterval(t *testing.T) {
	hs := NewHealthSampler(10 * time.Millisecond)
	require.Equal(t, Health{}, hs.Latest())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hs.Run(ctx)

	require.Eventually(t, func() bool {
		return hs.Latest() != (Health{})
	}, time.Second, 5*time.Millisecond, "expected at least one health sample")
}
