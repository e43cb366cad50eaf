package session_test

import (
	"encoding/base64"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/session"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// signedToken mints a real HS256 token; the session never checks the signature.
func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("portal-secret"))
	require.NoError(t, err)
	return tok
}

func segmentToken(payload string) string {
	return "abc." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func TestDecodeIdentity(t *testing.T) {
	t.Run("claims segment only", func(t *testing.T) {
		identity, err := session.DecodeIdentity("abc.eyJuYW1lIjoiQWNtZSJ9.sig", fixedNow)
		require.NoError(t, err)
		require.Equal(t, "Acme", identity.Name)
		require.Equal(t, "Acme", identity.DisplayName())
		require.Nil(t, identity.ExpiresAt)
	})

	t.Run("signed token", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{
			"id":    42,
			"name":  "ООО Ромашка",
			"email": "sales@romashka.ru",
			"inn":   "7707083893",
			"roles": []string{"supplier"},
			"exp":   fixedNow.Add(time.Hour).Unix(),
		})

		identity, err := session.DecodeIdentity(raw, fixedNow)
		require.NoError(t, err)
		require.Equal(t, "42", identity.ID)
		require.Equal(t, "ООО Ромашка", identity.Name)
		require.Equal(t, "sales@romashka.ru", identity.Email)
		require.Equal(t, "7707083893", identity.INN)
		require.Equal(t, []string{"supplier"}, identity.Roles)
		require.NotNil(t, identity.ExpiresAt)
		require.Equal(t, fixedNow.Add(time.Hour).Unix(), identity.ExpiresAt.Unix())
	})

	t.Run("padded segment", func(t *testing.T) {
		raw := "abc." + base64.URLEncoding.EncodeToString([]byte(`{"name":"Acme Ltd"}`)) + ".sig"
		identity, err := session.DecodeIdentity(raw, fixedNow)
		require.NoError(t, err)
		require.Equal(t, "Acme Ltd", identity.Name)
	})

	t.Run("no name falls back to email for display", func(t *testing.T) {
		identity, err := session.DecodeIdentity(segmentToken(`{"email":"a@b.co"}`), fixedNow)
		require.NoError(t, err)
		require.Equal(t, "a@b.co", identity.DisplayName())
	})

	t.Run("expired", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"name": "Acme", "exp": fixedNow.Add(-time.Minute).Unix()})
		_, err := session.DecodeIdentity(raw, fixedNow)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	invalid := map[string]string{
		"empty":          "",
		"single segment": "opaque-token",
		"empty claims":   "abc..sig",
		"not base64":     "abc.!!!.sig",
		"not json":       segmentToken("name=Acme"),
		"json null":      segmentToken("null"),
		"json array":     segmentToken(`["Acme"]`),
		"exp wrong type": segmentToken(`{"name":"Acme","exp":"tomorrow"}`),
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			identity, err := session.DecodeIdentity(raw, fixedNow)
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
			require.Nil(t, identity)
		})
	}
}
