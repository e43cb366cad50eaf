package session

import (
	"strings"

	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/storage"
	"golang.org/x/oauth2"
)

type storeTokenSource struct {
	store storage.Store
}

// TokenSource reads the persisted session token on every call, so requests always
// carry whatever token the last login or logout left behind.
func TokenSource(store storage.Store) oauth2.TokenSource {
	return storeTokenSource{store: store}
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	raw, found, err := s.store.Get(storage.TokenKey)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[TokenSource] read token")
	}
	raw = strings.TrimSpace(raw)
	if !found || raw == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
}
