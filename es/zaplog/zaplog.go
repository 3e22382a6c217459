// Package zaplog adapts a zap logger to the es.Logger interface.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/eventlock/eventlock/es"
)

// Logger is an es.Logger backed by zap.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New wraps a zap logger. Keyvals are passed through as zap's
// loosely-typed key-value pairs.
func New(logger *zap.Logger) *Logger {
	return &Logger{sugar: logger.Sugar()}
}

// Debug implements es.Logger.
func (l *Logger) Debug(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

// Info implements es.Logger.
func (l *Logger) Info(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error implements es.Logger.
func (l *Logger) Error(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

var _ es.Logger = (*Logger)(nil)
