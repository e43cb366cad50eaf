package session

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/internal/utils"
)

// Identity is the supplier as described by the token claims or the login payload.
// It is for display and local UI state only; the portal does its own authorization.
type Identity struct {
	ID        string           `json:"id,omitempty" yaml:"id,omitempty"`               // Supplier id ("id" or "sub")
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`           // Display name, usually the organisation
	Email     string           `json:"email,omitempty" yaml:"email,omitempty"`         // Login email
	INN       string           `json:"inn,omitempty" yaml:"inn,omitempty"`             // Taxpayer identification number
	Roles     []string         `json:"roles,omitempty" yaml:"roles,omitempty"`         // Roles granted by the portal, if any
	ExpiresAt *time.Time       `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"` // Token expiry from the "exp" claim
	Claims    jwtlib.MapClaims `json:"-" yaml:"-"`                                     // Everything that was decoded
}

// DisplayName falls back to the email when the portal sent no name.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Roles = append([]string(nil), i.Roles...)
	if i.ExpiresAt != nil {
		cp.ExpiresAt = utils.Ptr(*i.ExpiresAt)
	}
	if i.Claims != nil {
		cp.Claims = make(jwtlib.MapClaims, len(i.Claims))
		for k, v := range i.Claims {
			cp.Claims[k] = v
		}
	}
	return &cp
}

// claimsParser decodes segments only. Signatures are never checked here.
var claimsParser = jwtlib.NewParser(jwtlib.WithPaddingAllowed())

// DecodeIdentity reads the claim segment (the second dot separated part) of rawToken.
// The header and signature are not inspected, so any "x.<claims>.y" token decodes as
// long as its middle part is base64url encoded JSON. An "exp" claim in the past makes
// the token invalid.
func DecodeIdentity(rawToken string, now time.Time) (*Identity, error) {
	parts := strings.Split(strings.TrimSpace(rawToken), ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "expected at least two segments")
	}

	segment, err := claimsParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "decode claims segment: %v", err)
	}

	claims := jwtlib.MapClaims{}
	if err := json.Unmarshal(segment, &claims); err != nil || claims == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "claims are not a JSON object: %v", err)
	}

	identity, err := identityFromClaims(claims)
	if err != nil {
		return nil, err
	}
	if identity.ExpiresAt != nil && !now.Before(*identity.ExpiresAt) {
		return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "expired at %s", identity.ExpiresAt.Format(time.RFC3339))
	}
	return identity, nil
}

// identityFromPayload reads the "user" object of a login response.
func identityFromPayload(payload json.RawMessage) (*Identity, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return nil, apperrors.ErrNotFound
	}
	claims := jwtlib.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, "user payload: %v", err)
	}
	return identityFromClaims(claims)
}

func identityFromClaims(claims jwtlib.MapClaims) (*Identity, error) {
	identity := &Identity{
		ID:     firstString(claims, "id", "sub", "supplierId"),
		Name:   firstString(claims, "name", "organization"),
		Email:  firstString(claims, "email"),
		INN:    firstString(claims, "inn"),
		Claims: claims,
	}

	if roles, ok := claims["roles"].([]any); ok {
		identity.Roles = utils.ToStringSlice(roles)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "exp claim: %v", err)
	}
	if exp != nil {
		identity.ExpiresAt = utils.Ptr(exp.Time)
	}
	return identity, nil
}

// firstString returns the first claim among keys holding a string or a number.
func firstString(claims jwtlib.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
