package sqlitestore

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store on a single key/value table.
type SQLiteStore struct {
	db      *sql.DB
	nowTime func() time.Time
}

// Open creates (or reuses) the database at dbPath.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] create database directory")
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] open database")
	}

	// One writer keeps writes totally ordered; last write wins.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] ping database")
	}

	s := &SQLiteStore{db: db, nowTime: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] initialize schema")
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrap(err, "[SQLiteStore.initSchema] create schema")
	}
	return nil
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "[SQLiteStore.Get] %s", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	if _, err := s.db.Exec(query, key, value, s.nowTime().Unix()); err != nil {
		return errors.Wrapf(err, "[SQLiteStore.Set] %s", key)
	}
	return nil
}

func (s *SQLiteStore) Clear(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "[SQLiteStore.Clear] %s", key)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
