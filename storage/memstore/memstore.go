package memstore

import (
	"sync"

	"github.com/jrsteele09/go-supplier-portal/storage"
)

var _ storage.Store = (*MemStore)(nil)

// MemStore keeps values for the lifetime of the process only.
type MemStore struct {
	values map[string]string
	writes int
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string]string),
	}
}

func (ms *MemStore) Get(key string) (string, bool, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	v, ok := ms.values[key]
	return v, ok, nil
}

func (ms *MemStore) Set(key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.values[key] = value
	ms.writes++
	return nil
}

func (ms *MemStore) Clear(key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	delete(ms.values, key)
	ms.writes++
	return nil
}

func (ms *MemStore) Close() error {
	return nil
}

// Writes counts Set and Clear calls.
func (ms *MemStore) Writes() int {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.writes
}
