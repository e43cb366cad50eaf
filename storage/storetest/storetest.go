// Package storetest holds the behaviour every storage.Store implementation must share.
package storetest

import (
	"testing"

	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/stretchr/testify/require"
)

// Run exercises newStore against the storage.Store contract. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("absent key", func(t *testing.T) {
		s := newStore(t)
		v, found, err := s.Get(storage.TokenKey)
		require.NoError(t, err)
		require.False(t, found)
		require.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.TokenKey, "abc.def.ghi"))
		v, found, err := s.Get(storage.TokenKey)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "abc.def.ghi", v)
	})

	t.Run("last write wins", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.CartKey, `["REQ1"]`))
		require.NoError(t, s.Set(storage.CartKey, `["REQ2"]`))
		v, _, err := s.Get(storage.CartKey)
		require.NoError(t, err)
		require.Equal(t, `["REQ2"]`, v)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.TokenKey, "t"))
		require.NoError(t, s.Clear(storage.TokenKey))
		require.NoError(t, s.Clear(storage.TokenKey))
		_, found, err := s.Get(storage.TokenKey)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.TokenKey, "t"))
		require.NoError(t, s.Set(storage.CartKey, "[]"))
		require.NoError(t, s.Clear(storage.TokenKey))
		v, found, err := s.Get(storage.CartKey)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "[]", v)
	})

	t.Run("scoped stores do not collide", func(t *testing.T) {
		s := newStore(t)
		a := storage.Scoped(s, "portal-a")
		b := storage.Scoped(s, "portal-b")
		require.NoError(t, a.Set(storage.TokenKey, "token-a"))
		require.NoError(t, b.Set(storage.TokenKey, "token-b"))

		v, _, err := a.Get(storage.TokenKey)
		require.NoError(t, err)
		require.Equal(t, "token-a", v)

		require.NoError(t, b.Clear(storage.TokenKey))
		_, found, err := a.Get(storage.TokenKey)
		require.NoError(t, err)
		require.True(t, found)
	})
}
