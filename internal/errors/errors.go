package errors

import (
	"errors"
	"fmt"
)

// Common error types for the supplier portal client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Transport errors
	ErrNetwork           = errors.New("network failure")
	ErrRequestFailed     = errors.New("request failed")
	ErrMalformedResponse = errors.New("malformed response")

	// Proposal errors
	ErrSubmitInProgress  = errors.New("submission in progress")
	ErrSubmitterRequired = errors.New("submitter email required")
	ErrStaleResponse     = errors.New("stale response discarded")

	// Storage errors
	ErrMalformedState   = errors.New("malformed persisted state")
	ErrUnsupportedStore = errors.New("unsupported store driver")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
