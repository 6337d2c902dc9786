package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestSetLevel(t *testing.T) {
	l := New("info").(*zapLogger)
	assert.False(t, l.ZapLogger().Core().Enabled(zapcore.DebugLevel))

	SetLevel(l, "debug")
	assert.True(t, l.ZapLogger().Core().Enabled(zapcore.DebugLevel))

	child := l.With("component", "test")
	SetLevel(l, "error")
	assert.False(t, child.(*zapLogger).ZapLogger().Core().Enabled(zapcore.WarnLevel))
}

func TestNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Info("hello", "k", "v")
	l.With("a", 1).Warn("warn")
}
