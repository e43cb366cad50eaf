package portal

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
)

// Fallback messages shown when the portal does not provide one.
const (
	MsgLoginFailed    = "Ошибка входа."
	MsgRegisterFailed = "Ошибка регистрации."
	MsgNeedsFailed    = "Ошибка загрузки потребностей."
	MsgSubmitFailed   = "Ошибка отправки предложения."
)

// APIError is returned by every Client call that fails. Error() is the user facing
// message, taken from the portal response when present. Err classifies the failure
// (apperrors.ErrNetwork, ErrInvalidCredentials, ErrNotAuthenticated, ErrRequestFailed,
// ErrMalformedResponse) and is reachable through errors.Is.
type APIError struct {
	Status  int    // HTTP status, 0 when the portal was not reached
	Message string // User facing message
	Err     error  // Classification and cause
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Message extracts the user facing text from err, or returns fallback when err carries none.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if apperrors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func serverMessage(body []byte, fallback string) string {
	var mr messageResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(mr.Message); msg != "" {
		return msg
	}
	return fallback
}

func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ErrNotAuthenticated
	default:
		return apperrors.ErrRequestFailed
	}
}
