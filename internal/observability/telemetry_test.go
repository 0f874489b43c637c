package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-terrain/internal/config"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler(0).Description(), "AlwaysOnSampler", "Нулевая доля трассирует всё")
	assert.Contains(t, Sampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
