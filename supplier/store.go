package supplier

import (
	"github.com/jrsteele09/go-supplier-portal/internal/config"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/jrsteele09/go-supplier-portal/storage/filestore"
	"github.com/jrsteele09/go-supplier-portal/storage/memstore"
	"github.com/jrsteele09/go-supplier-portal/storage/sqlitestore"
	"github.com/pkg/errors"
)

// OpenStore opens the configured store driver, scoped to the configured namespace.
func OpenStore(cfg config.StorageConfig) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch driver := cfg.GetStoreDriver(); driver {
	case config.StoreDriverMemory:
		store = memstore.New()
	case config.StoreDriverFile:
		store, err = filestore.Open(cfg.GetStorePath())
	case config.StoreDriverSQLite:
		store, err = sqlitestore.Open(cfg.GetStorePath())
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnsupportedStore, "[OpenStore] %q", driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[OpenStore] %s store at %s", cfg.GetStoreDriver(), cfg.GetStorePath())
	}

	return storage.Scoped(store, cfg.GetStoreScope()), nil
}
