// Package service implements the reference authority: refresh-token validation with rotation and
// reuse detection over the accounts table.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"storefront/sessioncore/internal/authority/domain"
	"storefront/sessioncore/internal/security"
	sessiondomain "storefront/sessioncore/internal/session/domain"
)

// Sentinel errors for the account service; the handler maps them to 401.
var (
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected; account credentials revoked")
)

// AccountRepo is the minimal account repository needed by the account service.
type AccountRepo interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Account, error)
	Upsert(ctx context.Context, a *domain.Account) error
	UpdateRefreshToken(ctx context.Context, userID, prevJTI, jti, refreshTokenHash string) error
	RevokeRefresh(ctx context.Context, userID string) error
}

// RefreshResult is the authority's answer for an accepted refresh token.
// RefreshToken is empty when the credential was not rotated (unapproved accounts).
type RefreshResult struct {
	UserID       string
	Approved     bool
	Role         sessiondomain.Role
	RefreshToken string
	ExpiresAt    time.Time
}

// AccountService validates and rotates device refresh tokens.
type AccountService struct {
	repo   AccountRepo
	tokens *security.TokenProvider
}

// NewAccountService returns an AccountService with the given dependencies.
func NewAccountService(repo AccountRepo, tokens *security.TokenProvider) *AccountService {
	return &AccountService{repo: repo, tokens: tokens}
}

// Refresh validates the refresh token against the account's current rotation and, for approved
// accounts, rotates it. Presenting a superseded token revokes the account's credentials.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	acct, err := s.repo.GetByUserID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Revoked() {
		return nil, ErrInvalidRefreshToken
	}
	if acct.RefreshJTI != claims.JTI {
		if err := s.repo.RevokeRefresh(ctx, acct.UserID); err != nil {
			log.Printf("authority: revoke after reuse for %s: %v", acct.UserID, err)
		}
		return nil, ErrRefreshTokenReuse
	}
	if acct.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, acct.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	if !acct.Approved {
		return &RefreshResult{UserID: acct.UserID, Approved: false, Role: acct.Role}, nil
	}
	token, expiresAt, err := s.rotate(ctx, acct.UserID, acct.RefreshJTI, claims.DeviceID)
	if errors.Is(err, domain.ErrStaleRotation) {
		// Another request spent this token between the read and the rotation.
		if err := s.repo.RevokeRefresh(ctx, acct.UserID); err != nil {
			log.Printf("authority: revoke after concurrent reuse for %s: %v", acct.UserID, err)
		}
		return nil, ErrRefreshTokenReuse
	}
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		UserID:       acct.UserID,
		Approved:     true,
		Role:         acct.Role,
		RefreshToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}

// Provision creates the account or updates its role and approval, clearing any revocation.
// The current refresh rotation is kept.
func (s *AccountService) Provision(ctx context.Context, userID string, role sessiondomain.Role, approved bool) (*domain.Account, error) {
	acct, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		acct = &domain.Account{UserID: userID, CreatedAt: time.Now().UTC()}
	}
	acct.Role = role
	acct.Approved = approved
	acct.RevokedAt = nil
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Issue starts a new refresh rotation for the account and returns its first token.
// Any previously issued token stops being accepted.
func (s *AccountService) Issue(ctx context.Context, userID, deviceID string) (string, time.Time, error) {
	acct, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	if acct == nil || acct.Revoked() {
		return "", time.Time{}, fmt.Errorf("issue refresh token: account %q is missing or revoked", userID)
	}
	return s.rotate(ctx, userID, acct.RefreshJTI, deviceID)
}

// Revoke revokes the account's refresh credentials.
func (s *AccountService) Revoke(ctx context.Context, userID string) error {
	return s.repo.RevokeRefresh(ctx, userID)
}

func (s *AccountService) rotate(ctx context.Context, userID, prevJTI, deviceID string) (string, time.Time, error) {
	token, jti, expiresAt, err := s.tokens.IssueRefresh(userID, deviceID)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.repo.UpdateRefreshToken(ctx, userID, prevJTI, jti, security.HashRefreshToken(token)); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}
