package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidpendyala/marketmaker/internal/config"
	"github.com/sidpendyala/marketmaker/internal/telemetry"
)

func TestInit_DisabledIsNoOp(t *testing.T) {
	t.Parallel()

	shutdown, err := telemetry.Init(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
