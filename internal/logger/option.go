package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithSink tees every entry into an additional core.
// The extra core keeps its own level, so a file sink may record debug lines
// the console drops.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithSink(extra zapcore.Core) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, extra)
		})
}
