package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	Reset       = "\033[0m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Magenta     = "\033[35m"
	BlueBold    = "\033[34;1m"
	MagentaBold = "\033[35;1m"
	RedBold     = "\033[31;1m"
	YellowBold  = "\033[33;1m"
	WhiteBold   = "\033[37;1m"
	CyanBold    = "\033[36;1m"
	Gray        = "\033[1;90m"
	Purple      = "\u001b[38;5;200m"
)

type palette struct {
	level   string
	message string
}

var palettes = map[LogLevel]palette{
	LevelTrace: {CyanBold, Gray},
	LevelDebug: {BlueBold, Green},
	LevelInfo:  {YellowBold, WhiteBold},
	LevelWarn:  {MagentaBold, Magenta},
	LevelError: {RedBold, Red},
}

// the MCP stdio transport owns stdout, so console output always goes to stderr
var consoleOut io.Writer = os.Stderr

var consoleMu sync.Mutex

func useColor(w io.Writer) bool {
	if runtime.GOOS == "windows" || os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type consoleLogger struct {
	out          io.Writer
	color        bool
	prefixes     []string
	metadata     map[string]interface{}
	sink         Sink
	logLevel     LogLevel
	sinkLogLevel LogLevel
	child        Logger
}

var _ SinkLogger = (*consoleLogger)(nil)

func (c *consoleLogger) clone() *consoleLogger {
	return &consoleLogger{
		out:          c.out,
		color:        c.color,
		prefixes:     slices.Clone(c.prefixes),
		metadata:     cloneMetadata(c.metadata),
		sink:         c.sink,
		logLevel:     c.logLevel,
		sinkLogLevel: c.sinkLogLevel,
		child:        c.child,
	}
}

func (c *consoleLogger) paint(code, s string) string {
	if !c.color {
		return s
	}
	return code + s + Reset
}

func (c *consoleLogger) WithContext(ctx context.Context) Logger {
	clone := c.clone()
	if clone.child != nil {
		clone.child = clone.child.WithContext(ctx)
	}
	return clone
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	if !slices.Contains(clone.prefixes, prefix) {
		clone.prefixes = append(clone.prefixes, prefix)
	}
	if clone.child != nil {
		clone.child = clone.child.WithPrefix(prefix)
	}
	return clone
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	clone := c.clone()
	for k, v := range metadata {
		clone.metadata[k] = v
	}
	if clone.child != nil {
		clone.child = clone.child.With(metadata)
	}
	return clone
}

func (c *consoleLogger) SetSink(sink Sink, level LogLevel) {
	c.sink = sink
	c.sinkLogLevel = level
	if child, ok := c.child.(SinkLogger); ok {
		child.SetSink(sink, level)
	}
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel || (c.sink != nil && level >= c.sinkLogLevel)
}

func (c *consoleLogger) format(level LogLevel, msg string, args ...interface{}) string {
	p := palettes[level]
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	var b strings.Builder
	name := level.String()
	b.WriteString(c.paint(p.level, "["+name+"]"+strings.Repeat(" ", 5-len(name))))
	b.WriteByte(' ')
	if len(c.prefixes) > 0 {
		b.WriteString(c.paint(Purple, strings.Join(c.prefixes, " ")))
		b.WriteByte(' ')
	}
	b.WriteString(c.paint(p.message, text))
	if len(c.metadata) > 0 {
		buf, err := json.Marshal(c.metadata)
		if err == nil {
			b.WriteByte(' ')
			b.WriteString(c.paint(Gray, string(buf)))
		}
	}
	return b.String()
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	out := c.format(level, msg, args...)
	ts := time.Now().Format(time.RFC3339Nano)
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if level >= c.logLevel {
		fmt.Fprintln(c.out, ts+" "+out)
	}
	if c.sink != nil && level >= c.sinkLogLevel {
		c.sink.Write([]byte(ts + " " + ansiColorStripper.ReplaceAllString(out, "") + "\n"))
	}
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

func (c *consoleLogger) Fatal(msg string, args ...interface{}) {
	c.Error(msg, args...)
	os.Exit(1)
}

func (c *consoleLogger) Stack(next Logger) Logger {
	clone := c.clone()
	clone.child = next
	return clone
}

// NewConsoleLogger returns a new Logger instance which will log to stderr. If no level is
// given the level is read from LOG_LEVEL.
func NewConsoleLogger(levels ...LogLevel) SinkLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return newConsoleLogger(consoleOut, level)
}

func newConsoleLogger(out io.Writer, level LogLevel) *consoleLogger {
	return &consoleLogger{
		out:          out,
		color:        useColor(out),
		metadata:     map[string]interface{}{},
		logLevel:     level,
		sinkLogLevel: LevelNone,
	}
}
