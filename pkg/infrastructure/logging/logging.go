// Package logging builds the zap-backed logr.Logger used across the CLI and
// the allocation engine.
package logging

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to w. Verbose loggers use the console encoder
// and enable V(1) detail such as per-product allocation summaries; otherwise
// only info and errors are written, JSON encoded.
func New(w io.Writer, verbose bool) (logr.Logger, func()) {
	var (
		encoder zapcore.Encoder
		level   zapcore.Level
	)
	if verbose {
		cfg := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(cfg)
		level = zapcore.Level(-1)
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
		level = zapcore.InfoLevel
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	zl := zap.New(core).Named("stockalloc")
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }
}
