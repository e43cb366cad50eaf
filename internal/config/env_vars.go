package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AppNameVar  = "APP_NAME"
	EnvNameVar  = "ENV"
	LogLevelVar = "LOG_LEVEL"
	FolderVar   = "FOLDER"
)

type lookupFunc func(envVar, defaultValue string) string

type resolver struct {
	overrides map[string]string
}

func (r *resolver) get(envVar, defaultValue string) string {
	if v, ok := r.overrides[envVar]; ok {
		return v
	}
	return GetEnv(envVar, defaultValue)
}

type EnvVars struct {
	get lookupFunc
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.get(AppNameVar, "Supplier Portal")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.get(EnvNameVar, "DEV"))
}

func (e EnvVars) GetLogLevel() string {
	return e.get(LogLevelVar, "info")
}

func (e EnvVars) GetDataFolder() string {
	return e.get(FolderVar, "./data")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// parseDuration accepts Go durations ("15s") or a bare number of seconds.
func parseDuration(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
