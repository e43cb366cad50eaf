// Package storage defines the durable key/value store shared by the session and the proposal cart.
package storage

import "strings"

// Keys owned by the client core. They are independent; no cross-key transaction exists.
const (
	TokenKey = "supplierToken"
	CartKey  = "proposalCart"
)

// Store is a durable string key/value store. Get reports found=false for absent keys.
// Clear on an absent key is not an error.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Clear(key string) error
	Close() error
}

type scopedStore struct {
	Store
	prefix string
}

// Scoped namespaces every key of s under scope, so several portals can share one backing store.
func Scoped(s Store, scope string) Store {
	scope = strings.Trim(scope, "/")
	if scope == "" {
		return s
	}
	return &scopedStore{Store: s, prefix: scope + "/"}
}

func (s *scopedStore) Get(key string) (string, bool, error) {
	return s.Store.Get(s.prefix + key)
}

func (s *scopedStore) Set(key, value string) error {
	return s.Store.Set(s.prefix+key, value)
}

func (s *scopedStore) Clear(key string) error {
	return s.Store.Clear(s.prefix + key)
}
