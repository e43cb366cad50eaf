package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var _ storage.Store = (*FileStore)(nil)

// FileStore persists all keys in one JSON document. Every Set/Clear rewrites the
// document through a temp file and rename, so a crash leaves either the old or the new copy.
type FileStore struct {
	path   string
	values map[string]string
	lock   sync.Mutex
}

// Open loads path, creating its directory if needed. A missing file is an empty store;
// an unreadable or malformed one is logged and treated as empty.
func Open(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.Open] create directory")
	}

	fs := &FileStore{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return fs, nil
	case err != nil:
		return nil, errors.Wrap(err, "[filestore.Open] read")
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.values); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Discarding malformed store file")
			fs.values = make(map[string]string)
		}
	}
	return fs, nil
}

func (fs *FileStore) Get(key string) (string, bool, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	v, ok := fs.values[key]
	return v, ok, nil
}

func (fs *FileStore) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	previous, existed := fs.values[key]
	fs.values[key] = value
	if err := fs.flush(); err != nil {
		if existed {
			fs.values[key] = previous
		} else {
			delete(fs.values, key)
		}
		return errors.Wrapf(err, "[FileStore.Set] %s", key)
	}
	return nil
}

func (fs *FileStore) Clear(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	previous, existed := fs.values[key]
	if !existed {
		return nil
	}
	delete(fs.values, key)
	if err := fs.flush(); err != nil {
		fs.values[key] = previous
		return errors.Wrapf(err, "[FileStore.Clear] %s", key)
	}
	return nil
}

func (fs *FileStore) Close() error {
	return nil
}

func (fs *FileStore) flush() error {
	data, err := json.MarshalIndent(fs.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fs.path), "rename temp file")
}
