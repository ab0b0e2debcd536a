// Package logger builds the structured loggers used across abilib.
// Diagnostics from header parsing are data and travel in reports; the
// logger only records what the tool itself is doing.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names.
const (
	FieldJob      = "job"
	FieldProfile  = "profile"
	FieldLanguage = "language"
	FieldSymbol   = "symbol"
	FieldFile     = "file"
	FieldStatus   = "status"
	FieldCount    = "count"
	FieldError    = "error"
	FieldWorkers  = "workers"
)

// Options configures New.
type Options struct {
	// JSON selects the production JSON encoder instead of console output.
	JSON bool
	// Verbosity 0 logs warnings and errors, 1 adds info, 2 and above debug.
	Verbosity int
	// Output defaults to stderr.
	Output io.Writer
}

// New builds a logger from opts.
func New(opts Options) *zap.SugaredLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		cfg.CallerKey = ""
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), Level(opts.Verbosity))
	return zap.New(core).Sugar()
}

// Level maps a verbosity count to a zap level.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zap.WarnLevel
	case verbosity == 1:
		return zap.InfoLevel
	}
	return zap.DebugLevel
}

// Nop returns a logger that discards everything. Packages default to it so
// a nil logger is never dereferenced.
func Nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }
