package logger

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/log"
)

// otelLogger emits records to an OpenTelemetry log.Logger
type otelLogger struct {
	ctx        context.Context
	prefixes   []string
	metadata   map[string]log.Value
	logLevel   LogLevel
	otelLogger log.Logger
}

var _ Logger = (*otelLogger)(nil)

func (o *otelLogger) clone() *otelLogger {
	kv := make(map[string]log.Value, len(o.metadata))
	for k, v := range o.metadata {
		kv[k] = v
	}
	return &otelLogger{
		ctx:        o.ctx,
		prefixes:   slices.Clone(o.prefixes),
		metadata:   kv,
		logLevel:   o.logLevel,
		otelLogger: o.otelLogger,
	}
}

func toLogValue(unknown interface{}) log.Value {
	switch v := unknown.(type) {
	case string:
		return log.StringValue(v)
	case int:
		return log.IntValue(v)
	case int64:
		return log.Int64Value(v)
	case bool:
		return log.BoolValue(v)
	case float64:
		return log.Float64Value(v)
	case time.Duration:
		return log.StringValue(v.String())
	case []byte:
		return log.BytesValue(v)
	case error:
		return log.StringValue(v.Error())
	case []interface{}:
		values := make([]log.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toLogValue(item))
		}
		return log.SliceValue(values...)
	case map[string]interface{}:
		values := make([]log.KeyValue, 0, len(v))
		for key, item := range v {
			values = append(values, log.KeyValue{Key: key, Value: toLogValue(item)})
		}
		return log.MapValue(values...)
	default:
		return log.StringValue(fmt.Sprintf("%v", v))
	}
}

func (o *otelLogger) With(metadata map[string]interface{}) Logger {
	clone := o.clone()
	for k, v := range metadata {
		clone.metadata[k] = toLogValue(v)
	}
	return clone
}

func (o *otelLogger) WithPrefix(prefix string) Logger {
	clone := o.clone()
	if !slices.Contains(clone.prefixes, prefix) {
		clone.prefixes = append(clone.prefixes, prefix)
	}
	return clone
}

// WithContext binds ctx so emitted records carry its span context
func (o *otelLogger) WithContext(ctx context.Context) Logger {
	clone := o.clone()
	clone.ctx = ctx
	return clone
}

func (o *otelLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= o.logLevel
}

func (o *otelLogger) emit(level LogLevel, severity log.Severity, msg string, args ...interface{}) {
	if !o.IsLevelEnabled(level) {
		return
	}
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	if len(o.prefixes) > 0 {
		text = strings.Join(o.prefixes, " ") + " " + text
	}
	now := time.Now()
	var record log.Record
	record.SetBody(log.StringValue(ansiColorStripper.ReplaceAllString(text, "")))
	record.SetSeverity(severity)
	record.SetSeverityText(severity.String())
	record.SetObservedTimestamp(now)
	record.SetTimestamp(now)
	for k, v := range o.metadata {
		record.AddAttributes(log.KeyValue{Key: k, Value: v})
	}
	o.otelLogger.Emit(o.ctx, record)
}

func (o *otelLogger) Trace(msg string, args ...interface{}) {
	o.emit(LevelTrace, log.SeverityTrace, msg, args...)
}

func (o *otelLogger) Debug(msg string, args ...interface{}) {
	o.emit(LevelDebug, log.SeverityDebug, msg, args...)
}

func (o *otelLogger) Info(msg string, args ...interface{}) {
	o.emit(LevelInfo, log.SeverityInfo, msg, args...)
}

func (o *otelLogger) Warn(msg string, args ...interface{}) {
	o.emit(LevelWarn, log.SeverityWarn, msg, args...)
}

func (o *otelLogger) Error(msg string, args ...interface{}) {
	o.emit(LevelError, log.SeverityError, msg, args...)
}

func (o *otelLogger) Fatal(msg string, args ...interface{}) {
	o.emit(LevelError, log.SeverityFatal, msg, args...)
	os.Exit(1)
}

// Stack is not supported for the otel logger, stack it under a console logger instead
func (o *otelLogger) Stack(next Logger) Logger {
	return o
}

// NewOtelLogger returns a Logger that emits to the given OpenTelemetry logger at or above level
func NewOtelLogger(otelsLogger log.Logger, level LogLevel) Logger {
	return &otelLogger{
		ctx:        context.Background(),
		metadata:   map[string]log.Value{},
		logLevel:   level,
		otelLogger: otelsLogger,
	}
}
