package zaplog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eventlock/eventlock/es/zaplog"
)

func TestLogger_ForwardsLevelsAndKeyvals(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := zaplog.New(zap.New(core))
	ctx := context.Background()

	logger.Debug(ctx, "replaying", "aggregate", "counter")
	logger.Info(ctx, "persisted", "events", 2)
	logger.Error(ctx, "post-commit side effects failed", "failures", 1)

	entries := observed.All()
	require.Len(t, entries, 3)

	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "replaying", entries[0].Message)
	require.Equal(t, "counter", entries[0].ContextMap()["aggregate"])

	require.Equal(t, zapcore.InfoLevel, entries[1].Level)
	require.EqualValues(t, 2, entries[1].ContextMap()["events"])

	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "post-commit side effects failed", entries[2].Message)
}
