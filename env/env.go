package env

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agentuity/fetch-mcp/logger"
	"github.com/agentuity/fetch-mcp/telemetry"
	"github.com/spf13/cobra"
)

type EnvLine struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseEnvFile parses an environment file and returns a list of EnvLine structs.
// A missing file is not an error and yields no lines.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	buf, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return []EnvLine{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEnvBuffer(buf)
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ProcessEnvLine splits a KEY=value line. An optional "export " prefix is ignored.
func ProcessEnvLine(line string) EnvLine {
	line = strings.TrimPrefix(line, "export ")
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return EnvLine{Key: strings.TrimSpace(line)}
	}
	return EnvLine{Key: strings.TrimSpace(key), Val: dequote(strings.TrimSpace(val))}
}

type reference struct {
	varName      string
	defaultValue string
}

// parseReference splits the inside of ${...} on :- for a default value
func parseReference(inner string) reference {
	name, def, _ := strings.Cut(inner, ":-")
	return reference{varName: name, defaultValue: def}
}

func lookup(ref reference, envMap map[string]string) (string, bool) {
	var val string
	if name, ok := strings.CutPrefix(ref.varName, "env:"); ok {
		val = os.Getenv(name)
	} else {
		val = envMap[ref.varName]
	}
	if val != "" {
		return val, true
	}
	if ref.defaultValue != "" {
		return ref.defaultValue, true
	}
	return "", false
}

// interpolateValue expands ${VAR}, ${VAR:-default} and ${env:VAR}. Unresolvable
// references and malformed input are preserved as written.
func interpolateValue(input string, envMap map[string]string) string {
	if !strings.Contains(input, "${") {
		return input
	}
	var result strings.Builder
	rest := input
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			result.WriteString(rest)
			return result.String()
		}
		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			result.WriteString(rest)
			return result.String()
		}
		end += start + 2
		result.WriteString(rest[:start])
		inner := rest[start+2 : end]
		if val, ok := lookup(parseReference(inner), envMap); ok && inner != "" {
			result.WriteString(val)
		} else {
			result.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
}

// ParseEnvBuffer parses an environment buffer and returns a list of EnvLine structs.
// Values may reference earlier or later keys in the same buffer.
func ParseEnvBuffer(buf []byte) ([]EnvLine, error) {
	envs := make([]EnvLine, 0)
	envMap := make(map[string]string)

	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		env := ProcessEnvLine(line)
		if env.Key == "" {
			continue
		}
		env.Val = interpolateValue(env.Val, envMap)
		envMap[env.Key] = env.Val
		envs = append(envs, env)
	}

	// second pass resolves forward references
	for i := range envs {
		envs[i].Val = interpolateValue(envs[i].Val, envMap)
	}
	return envs, nil
}

// Load reads filename and sets each variable that is not already present in the
// process environment. It returns the keys it set.
func Load(filename string) ([]string, error) {
	lines, err := ParseEnvFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}
	var set []string
	for _, line := range lines {
		if _, exists := os.LookupEnv(line.Key); exists {
			continue
		}
		if err := os.Setenv(line.Key, line.Val); err != nil {
			return set, fmt.Errorf("error setting %s: %w", line.Key, err)
		}
		set = append(set, line.Key)
	}
	return set, nil
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
		return flag.Value.String()
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Value.String() != "" {
		return flag.Value.String()
	}
	return defaultValue
}

// CommandLookup returns a lookup in the shape of os.LookupEnv that answers from
// cmd's explicitly set flags first and the process environment second. flags maps
// environment names to flag names.
func CommandLookup(cmd *cobra.Command, flags map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if name, ok := flags[key]; ok {
			if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
				return flag.Value.String(), true
			}
		}
		return os.LookupEnv(key)
	}
}

// NewLogger returns a JSON logger when format is "json" and a console logger otherwise
func NewLogger(level logger.LogLevel, format string) logger.Logger {
	if strings.EqualFold(format, "json") {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}

// Telemetry selects the logger and the optional OTLP/HTTP log export
type Telemetry struct {
	Level   logger.LogLevel
	Format  string
	OTLPURL string
	// Token is sent to the collector as a bearer token
	Token string
}

// NewTelemetry returns a logger and a shutdown function. When OTLPURL is set, log
// records are also exported to it.
func NewTelemetry(ctx context.Context, cfg Telemetry, serviceName string) (logger.Logger, func(), error) {
	log := NewLogger(cfg.Level, cfg.Format)
	if cfg.OTLPURL == "" {
		return log, func() {}, nil
	}
	otelLogger, shutdown, err := telemetry.New(ctx, cfg.OTLPURL, cfg.Token, serviceName, cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating telemetry: %w", err)
	}
	return log.Stack(otelLogger), shutdown, nil
}
