package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/sessioncore/internal/db"
	"storefront/sessioncore/internal/db/migrate"
	"storefront/sessioncore/internal/security"
	"storefront/sessioncore/internal/session/domain"
)

const (
	loadSessionQuery = `SELECT payload FROM device_session WHERE id = 1`
	saveSessionQuery = `
INSERT INTO device_session (id, payload, updated_at) VALUES (1, ?1, ?2)
ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	deleteSessionQuery = `DELETE FROM device_session WHERE id = 1`
)

// SQLiteStore keeps the session as the single row of device_session. Each write is one statement,
// so SQLite's journal guarantees the row is replaced whole or not at all.
type SQLiteStore struct {
	sqlDB *sql.DB
	codec codec
}

// OpenSQLiteStore opens the database at path and applies the device schema.
func OpenSQLiteStore(path string, sealer security.Sealer) (*SQLiteStore, error) {
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		return nil, domain.NewStorageError("open", err)
	}
	if err := migrate.RunSQLite(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, domain.NewStorageError("migrate", err)
	}
	return &SQLiteStore{sqlDB: sqlDB, codec: newCodec(sealer)}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored session, or nil when the row is absent.
func (s *SQLiteStore) Load(ctx context.Context) (*domain.Session, error) {
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx, loadSessionQuery).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("load", err)
	}
	return s.codec.decode(payload)
}

// Save upserts the single row.
func (s *SQLiteStore) Save(ctx context.Context, sess *domain.Session) error {
	payload, err := s.codec.encode(sess)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, saveSessionQuery, payload, time.Now().UTC().UnixMilli()); err != nil {
		return domain.NewStorageError("save", err)
	}
	return nil
}

// Delete removes the row if present.
func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, deleteSessionQuery); err != nil {
		return domain.NewStorageError("delete", err)
	}
	return nil
}
