package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*Logger, *observer.ObservedLogs) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	return NewLogger(zap.New(zcore)), logs
}

func TestLoggerKeyValueArgs(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.With(map[string]interface{}{"room": "practice-1"}).Info("turn recorded", "words", 4)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "turn recorded", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "practice-1", fields["room"])
	assert.EqualValues(t, 4, fields["words"])
}

func TestLoggerPrintfArgs(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Warnf("retry %d of %d", 2, 3)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "retry 2 of 3", logs.All()[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestLoggerErrorField(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Error("request failed", "error", errors.New("boom"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestLoggerWithDoesNotMutateParent(t *testing.T) {
	logger, logs := newObservedLogger()
	child := logger.With(map[string]interface{}{"session": "a"})

	logger.Info("parent")
	child.Info("child")

	require.Equal(t, 2, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "session")
	assert.Equal(t, "a", logs.All()[1].ContextMap()["session"])
}

func TestSessionLoggerFromContext(t *testing.T) {
	logger, _ := newObservedLogger()

	assert.Same(t, GetLogger(), SessionLoggerFromContext(context.Background()))

	ctx := ContextWithSessionLogger(context.Background(), logger)
	assert.Same(t, logger, SessionLoggerFromContext(ctx))
}
