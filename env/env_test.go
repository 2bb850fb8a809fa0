package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentuity/fetch-mcp/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test.env")

	tests := []struct {
		name     string
		content  string
		expected []EnvLine
	}{
		{
			name:     "empty file",
			content:  "",
			expected: []EnvLine{},
		},
		{
			name: "valid env file",
			content: `
REDIS_URL=redis://localhost:6379/0
JINA_API_KEY="jina_abc"
LOG_LEVEL='debug'
# This is a comment
export CACHE_TTL=1h
`,
			expected: []EnvLine{
				{Key: "REDIS_URL", Val: "redis://localhost:6379/0"},
				{Key: "JINA_API_KEY", Val: "jina_abc"},
				{Key: "LOG_LEVEL", Val: "debug"},
				{Key: "CACHE_TTL", Val: "1h"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(tmpFile, []byte(tt.content), 0644))
			got, err := ParseEnvFile(tmpFile)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("non-existent file", func(t *testing.T) {
		got, err := ParseEnvFile(filepath.Join(tmpDir, "nonexistent.env"))
		assert.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestParseEnvBufferInterpolation(t *testing.T) {
	t.Setenv("FETCH_MCP_TEST_HOST", "cache.internal")

	tests := []struct {
		name     string
		content  string
		expected []EnvLine
	}{
		{
			name:    "backward reference",
			content: "HOST=localhost\nREDIS_URL=redis://${HOST}:6379",
			expected: []EnvLine{
				{Key: "HOST", Val: "localhost"},
				{Key: "REDIS_URL", Val: "redis://localhost:6379"},
			},
		},
		{
			name:    "forward reference",
			content: "REDIS_URL=redis://${HOST}:6379\nHOST=localhost",
			expected: []EnvLine{
				{Key: "REDIS_URL", Val: "redis://localhost:6379"},
				{Key: "HOST", Val: "localhost"},
			},
		},
		{
			name:    "default value",
			content: "PORT=${MISSING:-8002}",
			expected: []EnvLine{
				{Key: "PORT", Val: "8002"},
			},
		},
		{
			name:    "process environment",
			content: "REDIS_URL=redis://${env:FETCH_MCP_TEST_HOST}",
			expected: []EnvLine{
				{Key: "REDIS_URL", Val: "redis://cache.internal"},
			},
		},
		{
			name:    "unresolved kept",
			content: "A=${NOPE}\nB=${unterminated",
			expected: []EnvLine{
				{Key: "A", Val: "${NOPE}"},
				{Key: "B", Val: "${unterminated"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnvBuffer([]byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestProcessEnvLine(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected EnvLine
	}{
		{"simple key value", "KEY=value", EnvLine{Key: "KEY", Val: "value"}},
		{"quoted value", "KEY=\"value\"", EnvLine{Key: "KEY", Val: "value"}},
		{"single quoted value", "KEY='value'", EnvLine{Key: "KEY", Val: "value"}},
		{"value with equals", "REDIS_URL=redis://h/0?a=b", EnvLine{Key: "REDIS_URL", Val: "redis://h/0?a=b"}},
		{"export prefix", "export KEY=value", EnvLine{Key: "KEY", Val: "value"}},
		{"no value", "KEY", EnvLine{Key: "KEY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProcessEnvLine(tt.env))
		})
	}
}

func TestDequote(t *testing.T) {
	assert.Equal(t, "value", dequote("value"))
	assert.Equal(t, "value", dequote("\"value\""))
	assert.Equal(t, "value", dequote("'value'"))
	assert.Equal(t, "'value\"", dequote("'value\""))
	assert.Equal(t, "\"", dequote("\""))
}

func TestLoadDoesNotOverride(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(tmpFile, []byte("FETCH_MCP_A=from-file\nFETCH_MCP_B=from-file\n"), 0644))
	t.Setenv("FETCH_MCP_A", "from-process")
	t.Setenv("FETCH_MCP_B", "")
	os.Unsetenv("FETCH_MCP_B")

	set, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"FETCH_MCP_B"}, set)
	assert.Equal(t, "from-process", os.Getenv("FETCH_MCP_A"))
	assert.Equal(t, "from-file", os.Getenv("FETCH_MCP_B"))
}

func TestLoadMissingFile(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
	assert.Empty(t, set)
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("log-format", "", "")
	cmd.Flags().String("otlp-url", "", "")
	cmd.Flags().String("port", "8002", "")
	return cmd
}

func TestFlagOrEnv(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		cmd := newCommand()
		require.NoError(t, cmd.Flags().Set("port", "9100"))
		assert.Equal(t, "9100", FlagOrEnv(cmd, "port", "PORT", "1"))
	})
	t.Run("env beats flag default", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		assert.Equal(t, "9000", FlagOrEnv(newCommand(), "port", "PORT", "1"))
	})
	t.Run("flag default", func(t *testing.T) {
		t.Setenv("PORT", "")
		assert.Equal(t, "8002", FlagOrEnv(newCommand(), "port", "PORT", "1"))
	})
	t.Run("fallback", func(t *testing.T) {
		t.Setenv("NOT_A_FLAG", "")
		assert.Equal(t, "x", FlagOrEnv(newCommand(), "missing", "NOT_A_FLAG", "x"))
	})
}

func TestCommandLookup(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "9000")
	cmd := newCommand()
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	lookup := CommandLookup(cmd, map[string]string{"LOG_LEVEL": "log-level", "PORT": "port"})

	val, ok := lookup("LOG_LEVEL")
	assert.True(t, ok)
	assert.Equal(t, "debug", val)

	// unchanged flag defaults never shadow the environment
	val, ok = lookup("PORT")
	assert.True(t, ok)
	assert.Equal(t, "9000", val)

	os.Unsetenv("FETCH_MCP_NOT_SET")
	_, ok = lookup("FETCH_MCP_NOT_SET")
	assert.False(t, ok)
}

func TestNewLogger(t *testing.T) {
	assert.True(t, NewLogger(logger.LevelWarn, "console").IsLevelEnabled(logger.LevelWarn))
	assert.False(t, NewLogger(logger.LevelWarn, "JSON").IsLevelEnabled(logger.LevelInfo))
}

func TestNewTelemetryWithoutEndpoint(t *testing.T) {
	log, shutdown, err := NewTelemetry(context.Background(), Telemetry{Level: logger.LevelInfo, Format: "console"}, "fetch-mcp")
	require.NoError(t, err)
	assert.NotNil(t, log)
	shutdown()
}

func TestNewTelemetryBadEndpoint(t *testing.T) {
	_, _, err := NewTelemetry(context.Background(), Telemetry{OTLPURL: "ftp://collector"}, "fetch-mcp")
	assert.ErrorContains(t, err, "error creating telemetry")
}
