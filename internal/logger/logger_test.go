package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"IXScan/internal/config"
)

func TestNew(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	before := zap.L()
	restore, err := Setup(config.LogConfig{Level: "error"})
	require.NoError(t, err)
	assert.NotSame(t, before, zap.L())
	restore()
	assert.Same(t, before, zap.L())
}
