package observability

import (
	"context"
	"testing"

	"bomflow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "collector:4317", EndpointHost("http://collector:4317"))
	assert.Equal(t, "collector:4317", EndpointHost("https://collector:4317/"))
	assert.Equal(t, "collector:4317", EndpointHost("collector:4317"))
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 0.1, SampleRatio(0))
	assert.Equal(t, 0.1, SampleRatio(3))
	assert.Equal(t, 0.5, SampleRatio(0.5))
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
