package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level LogLevel
		ok    bool
	}{
		{"trace", LevelTrace, true},
		{"DEBUG", LevelDebug, true},
		{"info", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"off", LevelNone, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestGetLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, LevelWarn, GetLevelFromEnv())
	os.Unsetenv("LOG_LEVEL")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}

func TestConsoleLoggerOutput(t *testing.T) {
	var out bytes.Buffer
	log := newConsoleLogger(&out, LevelInfo)
	assert.False(t, log.color)

	log.WithPrefix("[cache]").With(map[string]interface{}{"backend": "redis"}).Info("resolved %s", "ok")
	log.Debug("hidden")

	text := out.String()
	assert.Contains(t, text, "[INFO] ")
	assert.Contains(t, text, "[cache] resolved ok")
	assert.Contains(t, text, `{"backend":"redis"}`)
	assert.NotContains(t, text, "hidden")
	assert.Equal(t, 1, strings.Count(text, "\n"))
}

func TestConsoleLoggerSink(t *testing.T) {
	var out, sink bytes.Buffer
	log := newConsoleLogger(&out, LevelError)
	log.SetSink(&sink, LevelDebug)

	log.Debug("to sink only")
	assert.Empty(t, out.String())
	assert.Contains(t, sink.String(), "[DEBUG] to sink only")
}

func TestConsoleLoggerStack(t *testing.T) {
	var out bytes.Buffer
	test := NewTestLogger()
	log := newConsoleLogger(&out, LevelInfo).Stack(test)
	log.Warn("both")
	assert.Contains(t, out.String(), "both")
	assert.Len(t, test.Find("WARNING", "both"), 1)
}
