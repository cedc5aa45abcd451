package main

import (
	"testing"

	"github.com/nikolayk812/cartprice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = newLogger("loud")
	require.Error(t, err)
}

func TestRun_NothingToDo(t *testing.T) {
	err := run(t.Context(), config.Config{RateProviderURL: "http://rates.local"}, zap.NewNop())
	require.NoError(t, err)

	err = run(t.Context(), config.Config{}, zap.NewNop())
	require.EqualError(t, err, "RATE_PROVIDER_URL is empty")
}
