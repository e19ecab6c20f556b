package repository

import (
	"context"

	"storefront/sessioncore/internal/authority/domain"
)

// Repository defines persistence for authority accounts.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Account, error)
	Upsert(ctx context.Context, a *domain.Account) error
	UpdateRefreshToken(ctx context.Context, userID, prevJTI, jti, refreshTokenHash string) error
	RevokeRefresh(ctx context.Context, userID string) error
}
