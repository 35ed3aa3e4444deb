// Package logging builds the zap loggers used across the service.
// Every logger writes a "ts" field formatted as RFC3339Nano in the configured location.
package logging

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docvault/internal/config"
)

type Encoding string

const (
	JSON    Encoding = "json"
	Console Encoding = "console"
)

// New builds a production logger writing to stdout from cfg.
func New(cfg config.LogConfig, loc *time.Location) (*zap.Logger, error) {
	builder := zap.NewProductionConfig()

	switch Encoding(cfg.Encoding) {
	case JSON, Console:
		builder.Encoding = cfg.Encoding
	case "":
		builder.Encoding = string(JSON)
	default:
		return nil, fmt.Errorf("unsupported log encoding %q", cfg.Encoding)
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = lvl
	}
	builder.Level = zap.NewAtomicLevelAt(level)
	builder.EncoderConfig = encoderConfig(loc)

	return builder.Build()
}

// NewWithWriter builds a JSON logger at debug level writing to w.
func NewWithWriter(w io.Writer, loc *time.Location) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig(loc)),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

// TimeEncoder formats entry times as RFC3339Nano in loc.
func TimeEncoder(loc *time.Location) zapcore.TimeEncoder {
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(time.RFC3339Nano))
	}
}

type requestIDKey struct{}

// ContextWithRequestID returns a copy of ctx carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// WithContext annotates log with the request ID and the active trace ID carried by ctx, if any.
func WithContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

func encoderConfig(loc *time.Location) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = TimeEncoder(loc)
	return cfg
}
