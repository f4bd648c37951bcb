package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	configNamespace = "storage"
	configKey       = "json_config"
)

// ErrNotFound is returned when a namespace/key pair has no stored blob.
var ErrNotFound = errors.New("blob not found")

// Store persists opaque blobs in a local sqlite file. The accepted
// configuration document is kept verbatim so a reboot replays exactly the
// bytes that were applied.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	// sqlite is single-writer, one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyPragmas() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) applySchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a blob, replacing any previous value under the same key.
func (s *Store) Put(namespace, key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO blobs (namespace, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		namespace, key, value)
	if err != nil {
		return fmt.Errorf("store blob %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get loads a blob or ErrNotFound.
func (s *Store) Get(namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(
		"SELECT value FROM blobs WHERE namespace = ? AND key = ?",
		namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Store) Delete(namespace, key string) error {
	if _, err := s.db.Exec(
		"DELETE FROM blobs WHERE namespace = ? AND key = ?", namespace, key); err != nil {
		return fmt.Errorf("delete blob %s/%s: %w", namespace, key, err)
	}
	return nil
}

// SaveConfig replaces the persisted configuration document.
func (s *Store) SaveConfig(data []byte) error {
	if err := s.Delete(configNamespace, configKey); err != nil {
		return err
	}
	if err := s.Put(configNamespace, configKey, data); err != nil {
		return err
	}
	s.logger.Info("configuration persisted", zap.Int("bytes", len(data)))
	return nil
}

// LoadConfig returns the persisted configuration document or ErrNotFound.
func (s *Store) LoadConfig() ([]byte, error) {
	return s.Get(configNamespace, configKey)
}
