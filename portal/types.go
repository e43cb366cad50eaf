package portal

import (
	"encoding/json"

	"github.com/jrsteele09/go-supplier-portal/needs"
)

// Credentials is the body of a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of a supplier sign-up request.
type Registration struct {
	Name     string `json:"name"` // Organisation name
	INN      string `json:"inn"`  // Taxpayer identification number, 10 or 12 digits
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token and the identity payload returned by the portal.
// User is kept raw; the session decides how to interpret it.
type LoginResponse struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

// ProposalRequest is one batch submission. Email is only sent by anonymous deployments.
type ProposalRequest struct {
	Email      string   `json:"email,omitempty"`
	RequestIDs []string `json:"request_ids"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type needsResponse struct {
	Needs []needs.Need `json:"needs"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
