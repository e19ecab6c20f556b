package domain

import (
	"errors"
	"time"

	sessiondomain "storefront/sessioncore/internal/session/domain"
)

// ErrStaleRotation is returned when a refresh rotation no longer matches the account: the account is
// missing or revoked, or another request rotated its token first.
var ErrStaleRotation = errors.New("refresh rotation is stale")

// Account is the authority's record of one storefront actor and the refresh credential currently issued to them.
type Account struct {
	UserID           string
	Role             sessiondomain.Role
	Approved         bool
	RefreshJTI       string // empty until a refresh token has been issued
	RefreshTokenHash string
	RevokedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks the account fields the authority relies on.
func (a *Account) Validate() error {
	if a.UserID == "" {
		return errors.New("user_id is required")
	}
	if !a.Role.Valid() {
		return errors.New("role must be merchant, store_owner, or admin")
	}
	return nil
}

// Revoked reports whether the account's refresh credentials have been revoked.
func (a *Account) Revoked() bool { return a.RevokedAt != nil }
