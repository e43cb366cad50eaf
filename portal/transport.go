package portal

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const HeaderRequestID = "X-Request-ID"

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Middleware decorates a RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// ChainTransport wraps base so that mw[0] is the outermost middleware.
func ChainTransport(base http.RoundTripper, mw ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	chained := base
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// BearerToken attaches the current token of src to every request. Requests go out
// unauthenticated while src has no token, since some portal routes are public.
func BearerToken(src oauth2.TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if src == nil || r.Header.Get("Authorization") != "" {
				return next.RoundTrip(r)
			}
			tok, err := src.Token()
			if err != nil || tok == nil || tok.AccessToken == "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			tok.SetAuthHeader(r)
			return next.RoundTrip(r)
		})
	}
}

// RequestID tags requests that have no X-Request-ID yet.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(HeaderRequestID) != "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set(HeaderRequestID, uuid.New().String())
			return next.RoundTrip(r)
		})
	}
}

func LogRequests() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			event := log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", r.Header.Get(HeaderRequestID)).
				Dur("elapsed", time.Since(start))
			if err != nil {
				event.Err(err).Msg("Portal request failed")
				return resp, err
			}
			event.Int("status", resp.StatusCode).Msg("Portal request")
			return resp, nil
		})
	}
}
