package config

import (
	"path/filepath"
	"strings"
)

const (
	StoreDriverVar = "STORE_DRIVER"
	StorePathVar   = "STORE_PATH"
	StoreScopeVar  = "STORE_SCOPE"

	StoreDriverMemory = "memory"
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
)

type Storage struct {
	get lookupFunc
}

var _ StorageConfig = Storage{}

func (s Storage) GetStoreDriver() string {
	return strings.ToLower(s.get(StoreDriverVar, StoreDriverFile))
}

// GetStorePath defaults to a driver specific file inside the data folder
func (s Storage) GetStorePath() string {
	folder := EnvVars(s).GetDataFolder()
	switch s.GetStoreDriver() {
	case StoreDriverSQLite:
		return s.get(StorePathVar, filepath.Join(folder, "portal.db"))
	default:
		return s.get(StorePathVar, filepath.Join(folder, "portal.json"))
	}
}

func (s Storage) GetStoreScope() string {
	return s.get(StoreScopeVar, "supplier-portal")
}
