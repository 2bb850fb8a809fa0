package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// JSONLogEntry is a single structured log line.
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Component string                 `json:"component,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// String renders the entry as a JSON object. Severity defaults to INFO.
func (e JSONLogEntry) String() string {
	if e.Severity == "" {
		e.Severity = "INFO"
	}
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"message":%q,"severity":"ERROR"}`, "json.Marshal: "+err.Error())
	}
	return string(out)
}

type jsonLogger struct {
	out          io.Writer
	metadata     map[string]interface{}
	component    string
	sink         Sink
	sinkLogLevel LogLevel
	logLevel     LogLevel
	now          func() time.Time
	child        Logger
}

var _ SinkLogger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	return &jsonLogger{
		out:          c.out,
		metadata:     cloneMetadata(c.metadata),
		component:    c.component,
		sink:         c.sink,
		sinkLogLevel: c.sinkLogLevel,
		logLevel:     c.logLevel,
		now:          c.now,
		child:        c.child,
	}
}

func (c *jsonLogger) WithContext(ctx context.Context) Logger {
	clone := c.clone()
	if clone.child != nil {
		clone.child = clone.child.WithContext(ctx)
	}
	return clone
}

// WithPrefix appends prefix to the entry component.
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	prefix = strings.Trim(prefix, "[]")
	switch {
	case clone.component == "":
		clone.component = prefix
	case !strings.Contains(clone.component, prefix):
		clone.component += " " + prefix
	}
	if clone.child != nil {
		clone.child = clone.child.WithPrefix(prefix)
	}
	return clone
}

func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	clone := c.clone()
	for k, v := range metadata {
		clone.metadata[k] = v
	}
	if comp, ok := clone.metadata["component"].(string); ok {
		clone.component = comp
		delete(clone.metadata, "component")
	}
	if clone.child != nil {
		clone.child = clone.child.With(metadata)
	}
	return clone
}

func (c *jsonLogger) SetSink(sink Sink, level LogLevel) {
	c.sink = sink
	c.sinkLogLevel = level
	if child, ok := c.child.(SinkLogger); ok {
		child.SetSink(sink, level)
	}
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return (c.out != nil && level >= c.logLevel) || (c.sink != nil && level >= c.sinkLogLevel)
}

func (c *jsonLogger) log(level LogLevel, severity string, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Timestamp: c.now(),
		Message:   ansiColorStripper.ReplaceAllString(text, ""),
		Severity:  severity,
		Component: c.component,
	}
	if len(c.metadata) > 0 {
		entry.Metadata = c.metadata
	}
	line := entry.String() + "\n"
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if c.out != nil && level >= c.logLevel {
		io.WriteString(c.out, line)
	}
	if c.sink != nil && level >= c.sinkLogLevel {
		c.sink.Write([]byte(line))
	}
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, "TRACE", msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *jsonLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, "DEBUG", msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *jsonLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, "INFO", msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *jsonLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, "WARNING", msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *jsonLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, "ERROR", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

// Fatal logs at error level. Unlike the console logger it does not exit, the caller decides.
func (c *jsonLogger) Fatal(msg string, args ...interface{}) {
	c.Error(msg, args...)
}

func (c *jsonLogger) Stack(next Logger) Logger {
	clone := c.clone()
	clone.child = next
	return clone
}

// NewJSONLogger returns a new Logger instance which writes one JSON object per line to stderr
func NewJSONLogger(levels ...LogLevel) SinkLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &jsonLogger{
		out:          consoleOut,
		metadata:     map[string]interface{}{},
		logLevel:     level,
		sinkLogLevel: LevelNone,
		now:          time.Now,
	}
}

// NewJSONLoggerWithSink returns a new Logger instance using a sink and suppressing the console logging
func NewJSONLoggerWithSink(sink Sink, level LogLevel) SinkLogger {
	return &jsonLogger{
		metadata:     map[string]interface{}{},
		sink:         sink,
		sinkLogLevel: level,
		logLevel:     LevelNone,
		now:          time.Now,
	}
}
