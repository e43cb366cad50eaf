package config

import (
	"strings"
	"time"
)

const (
	BaseURLVar          = "PORTAL_BASE_URL"
	TimeoutVar          = "PORTAL_TIMEOUT"
	NeedsRequireAuthVar = "NEEDS_REQUIRE_AUTH"
	SubmitModeVar       = "SUBMIT_MODE"
	UserAgentVar        = "PORTAL_USER_AGENT"

	DefaultBaseURL = "https://ngb2.ru:3000/sup_post/api/public"
)

// SubmitMode selects the payload shape used for proposal submission.
type SubmitMode string

const (
	// SubmitModeSession sends only the request ids; the bearer token identifies the supplier.
	SubmitModeSession SubmitMode = "session"
	// SubmitModeAnonymous sends the supplier email alongside the request ids.
	SubmitModeAnonymous SubmitMode = "anonymous"
)

type Portal struct {
	get lookupFunc
}

var _ PortalConfig = Portal{}

// GetBaseURL returns the API root all portal routes are resolved against
func (p Portal) GetBaseURL() string {
	return strings.TrimRight(p.get(BaseURLVar, DefaultBaseURL), "/")
}

func (p Portal) GetRequestTimeout() time.Duration {
	return parseDuration(p.get(TimeoutVar, ""), 15*time.Second)
}

// GetNeedsRequireAuth reports whether GET /needs is only attempted with a session.
// Deployments differ on this, so it is a toggle rather than a constant.
func (p Portal) GetNeedsRequireAuth() bool {
	return parseBool(p.get(NeedsRequireAuthVar, ""), true)
}

func (p Portal) GetSubmitMode() SubmitMode {
	return SubmitMode(strings.ToLower(p.get(SubmitModeVar, string(SubmitModeSession))))
}

func (p Portal) GetUserAgent() string {
	return p.get(UserAgentVar, "go-supplier-portal")
}
