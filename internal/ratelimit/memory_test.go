package ratelimit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/ratelimit"
)

func TestMemoryLimiterAllowsUpToBurstThenRejects(t *testing.T) {
	l := ratelimit.NewMemory()

	// "reaction" bursts to 100; well within the burst we expect a
	// long run of admits before the bucket needs to refill.
	admitted := 0
	for i := 0; i < ratelimit.LimitFor("reaction"); i++ {
		d, err := l.Allow("device_1", "reaction")
		require.NoError(t, err)
		if d.Allowed {
			admitted++
		}
	}
	assert.Equal(t, ratelimit.LimitFor("reaction"), admitted)

	d, err := l.Allow("device_1", "reaction")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter.Milliseconds(), int64(0))
}

func TestMemoryLimiterBucketsAreIndependentPerDeviceAndType(t *testing.T) {
	l := ratelimit.NewMemory()

	for i := 0; i < ratelimit.LimitFor("text"); i++ {
		d, err := l.Allow("device_a", "text")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// A different device, or a different message type on the same
	// device, has its own untouched bucket.
	d, err := l.Allow("device_b", "text")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow("device_a", "media")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimitForFallsBackForUnknownMessageType(t *testing.T) {
	assert.Equal(t, 60, ratelimit.LimitFor("delete"))
}
