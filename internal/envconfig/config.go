// Package envconfig reads the runtime's environment configuration.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns an environment variable with surrounding spaces and quotes
// removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// BoolWithDefault returns a reader for a boolean variable. Values that do
// not parse count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a reader for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String returns a reader for a string variable.
func String(k string) func() string {
	return func() string {
		return Var(k)
	}
}

var (
	// Strict makes unknown functions fail context creation. NNRT_STRICT,
	// default true.
	Strict = func() bool { return BoolWithDefault("NNRT_STRICT")(true) }
	// LogFormat selects the log handler, "text" or "json". NNRT_LOG_FORMAT.
	LogFormat = String("NNRT_LOG_FORMAT")
)

// LogLevel returns the log level from NNRT_DEBUG. A true boolean selects
// debug; an integer n selects level -4n.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("NNRT_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// EnvVar describes one configuration variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every configuration variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"NNRT_DEBUG":      {"NNRT_DEBUG", LogLevel(), "Show additional debug information (e.g. NNRT_DEBUG=1)"},
		"NNRT_STRICT":     {"NNRT_STRICT", Strict(), "Fail on functions the runtime does not implement (default true)"},
		"NNRT_LOG_FORMAT": {"NNRT_LOG_FORMAT", LogFormat(), "Log output format: text or json (default text)"},
	}
}

// Values returns every configuration variable formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
