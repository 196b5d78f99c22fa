// Package logging configures the process-wide structured logger. The
// terminal surface talks to the user on stdout directly; everything else
// (orchestrator transitions, tool dispatch, apply results) goes through
// zap so scripted runs leave a usable trail.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where and how verbosely the logger writes.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Empty means info.
	Level string
	// File receives the log output when set; otherwise stderr is used so
	// stdout stays clean for user-facing output and the ACP JSON stream.
	File string
}

// New builds a zap logger from the given options. It never fails the
// program over a bad level string; unknown levels fall back to info.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch opts.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stderr)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.Lock(f)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	return zap.New(core), nil
}

// Nop returns a logger that discards everything. Tests and library callers
// that do not care about logs pass this instead of nil.
func Nop() *zap.Logger {
	return zap.NewNop()
}
