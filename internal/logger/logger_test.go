package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{7, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestInitialize(t *testing.T) {
	t.Cleanup(func() { Initialize(false, VerbosityUser) })

	t.Run("console", func(t *testing.T) {
		require.NoError(t, Initialize(false, VerbosityDebug))
		assert.False(t, JSONOutput)
		assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("json", func(t *testing.T) {
		require.NoError(t, Initialize(true, VerbosityUser))
		assert.True(t, JSONOutput)
		assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, Logger.Desugar().Core().Enabled(zapcore.WarnLevel))
	})
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := ComponentLogger("runner")
	assert.Same(t, l, OrNop(l))
}
