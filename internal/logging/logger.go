// Package logging provides zap-based structured logging for browserlet,
// with a redacting core that scrubs registered credential values from
// every log message and string-typed field before it reaches any sink.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. verbose switches the level from info to
// debug; output always goes through the redacting core.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return newRedactingCore(core)
	}))
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.Logger { return zap.NewNop() }
