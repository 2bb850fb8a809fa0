package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
}

// Text returns the formatted message
func (e TestLogEntry) Text() string {
	if len(e.Arguments) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Arguments...)
}

type testLog struct {
	mu      sync.Mutex
	entries []TestLogEntry
}

// TestLogger records every entry in memory. Loggers derived via With share the same record,
// and it is safe to use from multiple goroutines.
type TestLogger struct {
	metadata map[string]interface{}
	log      *testLog
	child    Logger
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithContext(ctx context.Context) Logger {
	return c
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := cloneMetadata(c.metadata)
	for k, v := range metadata {
		kv[k] = v
	}
	child := c.child
	if child != nil {
		child = child.With(metadata)
	}
	return &TestLogger{metadata: kv, log: c.log, child: child}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) record(level string, msg string, args ...interface{}) {
	c.log.mu.Lock()
	c.log.entries = append(c.log.entries, TestLogEntry{level, msg, args, c.metadata})
	c.log.mu.Unlock()
}

// Logs returns a copy of all recorded entries
func (c *TestLogger) Logs() []TestLogEntry {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	out := make([]TestLogEntry, len(c.log.entries))
	copy(out, c.log.entries)
	return out
}

// Find returns the entries with the given severity whose formatted text contains substr
func (c *TestLogger) Find(severity string, substr string) []TestLogEntry {
	var found []TestLogEntry
	for _, entry := range c.Logs() {
		if entry.Severity == severity && strings.Contains(entry.Text(), substr) {
			found = append(found, entry)
		}
	}
	return found
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.record("TRACE", msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.record("DEBUG", msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.record("INFO", msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.record("WARNING", msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.record("ERROR", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

// Fatal records the entry without exiting so tests can assert on it.
func (c *TestLogger) Fatal(msg string, args ...interface{}) {
	c.record("FATAL", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

func (c *TestLogger) Stack(next Logger) Logger {
	return &TestLogger{metadata: c.metadata, log: c.log, child: next}
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{log: &testLog{}}
}
