// Package sqlite implements the large-capacity archive tier on SQLite.
//
// Values live in the single "images" collection keyed by (scope, key). The
// tier is never purged by the image store; rows outlive the sessions that
// wrote them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"posemaster/pkg/storage"
	"posemaster/pkg/storage/sqlite/migrations"
)

const (
	// TierName is reported by Name and used as the "tier" metric label.
	TierName = "archive"
	// SchemaVersion is stored in PRAGMA user_version once migrations ran.
	SchemaVersion = 1
)

// Store is the SQLite-backed archive tier.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Tier = (*Store)(nil)

// Open opens and migrates the archive database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := applyMigrations(ctx, s.sqlDB, migrations.FS); err != nil {
		return err
	}
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version < SchemaVersion {
		if _, err := s.sqlDB.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports PRAGMA user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, storage.ErrClosed
	}
	var version int
	if err := s.sqlDB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Name() string { return TierName }

// Get loads the value stored for (scope, key).
func (s *Store) Get(ctx context.Context, scope, key string) (string, error) {
	if s == nil || s.sqlDB == nil {
		return "", storage.ErrClosed
	}

	var value string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT value FROM images WHERE scope = ? AND key = ?`,
		scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get image: %w", err)
	}
	return value, nil
}

// Put upserts the value for (scope, key).
func (s *Store) Put(ctx context.Context, scope, key, value string) error {
	if s == nil || s.sqlDB == nil {
		return storage.ErrClosed
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO images (scope, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET
		    value = excluded.value,
		    updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put image: %w", err)
	}
	return nil
}

// Delete removes the value for (scope, key).
func (s *Store) Delete(ctx context.Context, scope, key string) error {
	if s == nil || s.sqlDB == nil {
		return storage.ErrClosed
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM images WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
