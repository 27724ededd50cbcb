// Package config loads settings from the environment with a fail-open policy:
// a value that does not parse or validate never stops the process. The
// default is used instead and the caller gets a warning to log and count.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is the outcome of loading one setting.
//
// Value always holds something usable: the parsed value, or the default when
// the variable was unset or rejected. FallbackApplied is only true in the
// rejected case, so an unset variable is silent.
//
//	result := LoadEnvDuration("RUN_TIMEOUT", 10*time.Minute, nil)
//	if result.FallbackApplied {
//	    for _, w := range result.Warnings {
//	        logger.Warn("Configuration fallback applied", slog.String("warning", w))
//	    }
//	}
//	timeout := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the variable, or defaultValue when it is unset or empty.
func LoadEnvString(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and checks it with validator.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, "string", func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration loads a Go duration string such as "90s" or "1h30m".
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, "duration", time.ParseDuration, validator)
}

// LoadEnvInt loads a base-10 integer.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, "integer", strconv.Atoi, validator)
}

// LoadEnvBool loads a boolean in any form strconv.ParseBool accepts
// (1, t, true, TRUE, 0, f, false, ...).
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, "boolean", strconv.ParseBool, nil)
}

func loadEnv[T any](envKey string, defaultValue T, kind string, parse func(string) (T, error), validator func(T) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	v, err := parse(raw)
	if err != nil {
		return fallback(envKey, raw, defaultValue, "invalid "+kind+" format")
	}
	if validator != nil {
		if err := validator(v); err != nil {
			return fallback(envKey, raw, defaultValue, err.Error())
		}
	}
	return ConfigLoadResult{Value: v}
}

func fallback[T any](envKey, raw string, defaultValue T, reason string) ConfigLoadResult {
	return ConfigLoadResult{
		Value: defaultValue,
		Warnings: []string{
			fmt.Sprintf("Invalid %s='%s': %s, falling back to default '%v'", envKey, raw, reason, defaultValue),
		},
		FallbackApplied: true,
	}
}
