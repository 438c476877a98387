package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// Standard field names for structured logs
const (
	FieldComponent   = "component"
	FieldJobID       = "job_id"
	FieldStepID      = "step_id"
	FieldStockID     = "stock_id"
	FieldRFQID       = "rfq_id"
	FieldQuotationID = "quotation_id"
	FieldCurrency    = "currency"
	FieldEvent       = "event"
	FieldCount       = "count"
	FieldError       = "error"
)

// Options selects level and encoding
type Options struct {
	Level string
	JSON  bool
	// Output defaults to stderr so command output on stdout stays clean
	Output io.Writer
}

// New builds a sugared logger. JSON output is meant for machines, the
// console encoder for people at a terminal.
func New(opts Options) (*zap.SugaredLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.CallerKey = ""
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return zap.New(core).Sugar(), nil
}

// ParseLevel accepts debug, info, warn and error; empty means info
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, entities.NewValidationError("log.level", "unknown log level %q", s)
}

// Component tags every entry of l with the component name
func Component(l *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return l.With(FieldComponent, name)
}
