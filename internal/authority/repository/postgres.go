package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/sessioncore/internal/authority/domain"
	sessiondomain "storefront/sessioncore/internal/session/domain"
)

const (
	getAccountQuery = `
SELECT user_id, role, approved, refresh_jti, refresh_token_hash, revoked_at, created_at, updated_at
FROM accounts WHERE user_id = $1`
	upsertAccountQuery = `
INSERT INTO accounts (user_id, role, approved, refresh_jti, refresh_token_hash, revoked_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO UPDATE SET
    role = EXCLUDED.role,
    approved = EXCLUDED.approved,
    refresh_jti = EXCLUDED.refresh_jti,
    refresh_token_hash = EXCLUDED.refresh_token_hash,
    revoked_at = EXCLUDED.revoked_at,
    updated_at = EXCLUDED.updated_at`
	updateRefreshQuery = `
UPDATE accounts SET refresh_jti = $2, refresh_token_hash = $3, updated_at = $4
WHERE user_id = $1 AND revoked_at IS NULL AND COALESCE(refresh_jti, '') = $5`
	revokeRefreshQuery = `
UPDATE accounts SET revoked_at = $2, refresh_jti = NULL, refresh_token_hash = NULL, updated_at = $2
WHERE user_id = $1`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUserID returns the account for userID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	var (
		a         domain.Account
		role      string
		jti, hash sql.NullString
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getAccountQuery, userID).Scan(
		&a.UserID, &role, &a.Approved, &jti, &hash, &revokedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Role = sessiondomain.Role(role)
	a.RefreshJTI = jti.String
	a.RefreshTokenHash = hash.String
	if revokedAt.Valid {
		t := revokedAt.Time
		a.RevokedAt = &t
	}
	return &a, nil
}

// Upsert creates the account or replaces its mutable fields. CreatedAt is kept on update.
func (r *PostgresRepository) Upsert(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	created := a.CreatedAt
	if created.IsZero() {
		created = now
	}
	var revokedAt sql.NullTime
	if a.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *a.RevokedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, upsertAccountQuery,
		a.UserID, string(a.Role), a.Approved,
		nullString(a.RefreshJTI), nullString(a.RefreshTokenHash), revokedAt,
		created, now,
	)
	return err
}

// UpdateRefreshToken replaces the account's jti and token hash if its current jti is still prevJTI
// (empty for an account that was never issued a token). Otherwise it returns domain.ErrStaleRotation.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, userID, prevJTI, jti, refreshTokenHash string) error {
	res, err := r.db.ExecContext(ctx, updateRefreshQuery, userID, jti, refreshTokenHash, time.Now().UTC(), prevJTI)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStaleRotation
	}
	return nil
}

// RevokeRefresh revokes the account's refresh credential. Revoking an unknown account is a no-op.
func (r *PostgresRepository) RevokeRefresh(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, revokeRefreshQuery, userID, time.Now().UTC())
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
