package config

import (
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
)

type Config interface {
	EnvConfig
	PortalConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
}

type PortalConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetNeedsRequireAuth() bool
	GetSubmitMode() SubmitMode
	GetUserAgent() string
}

type StorageConfig interface {
	GetStoreDriver() string
	GetStorePath() string
	GetStoreScope() string
}

type mainConfig struct {
	EnvVars
	Portal
	Storage
}

// Option adjusts how configuration values are resolved.
type Option func(*resolver)

// WithOverride pins envVar to value, taking precedence over the environment.
// Empty values are ignored so unset CLI flags fall through to the environment.
func WithOverride(envVar, value string) Option {
	return func(r *resolver) {
		if value != "" {
			r.overrides[envVar] = value
		}
	}
}

func New(options ...Option) Config {
	r := &resolver{overrides: make(map[string]string)}
	for _, opt := range options {
		opt(r)
	}
	return mainConfig{
		EnvVars: EnvVars{get: r.get},
		Portal:  Portal{get: r.get},
		Storage: Storage{get: r.get},
	}
}

// Validate checks the values that cannot be defaulted sensibly.
func Validate(c Config) error {
	u, err := url.Parse(c.GetBaseURL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s %q is not an absolute URL", BaseURLVar, c.GetBaseURL())
	}
	switch c.GetSubmitMode() {
	case SubmitModeSession, SubmitModeAnonymous:
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s must be %q or %q", SubmitModeVar, SubmitModeSession, SubmitModeAnonymous)
	}
	switch strings.ToLower(c.GetStoreDriver()) {
	case StoreDriverMemory, StoreDriverFile, StoreDriverSQLite:
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s %q is not supported", StoreDriverVar, c.GetStoreDriver())
	}
	if c.GetRequestTimeout() <= 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s must be positive", TimeoutVar)
	}
	return nil
}
