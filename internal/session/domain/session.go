package domain

import (
	"errors"
	"time"
)

// Role is the storefront area an authenticated actor belongs to.
type Role string

const (
	RoleMerchant   Role = "merchant"
	RoleStoreOwner Role = "store_owner"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMerchant, RoleStoreOwner, RoleAdmin:
		return true
	}
	return false
}

// SchemaVersion is the current serialized session layout.
const SchemaVersion = 1

// Session is the single device-local record asserting an actor's identity, role,
// and approval status. RefreshToken is opaque to this package.
type Session struct {
	Version      int       `json:"version"`
	UserID       string    `json:"user_id"`
	Role         Role      `json:"role"`
	Approved     bool      `json:"approved"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// New returns a session issued at now that expires after ttl.
func New(userID string, role Role, approved bool, refreshToken string, now time.Time, ttl time.Duration) (*Session, error) {
	s := &Session{
		Version:      SchemaVersion,
		UserID:       userID,
		Role:         role,
		Approved:     approved,
		IssuedAt:     now.UTC(),
		ExpiresAt:    now.UTC().Add(ttl),
		RefreshToken: refreshToken,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the structural invariants of a session.
func (s *Session) Validate() error {
	if s == nil {
		return errors.New("session is nil")
	}
	if s.Version != SchemaVersion {
		return errors.New("unsupported session version")
	}
	if s.UserID == "" {
		return errors.New("user_id is required")
	}
	if !s.Role.Valid() {
		return errors.New("unknown role")
	}
	if s.RefreshToken == "" {
		return errors.New("refresh_token is required")
	}
	if !s.ExpiresAt.After(s.IssuedAt) {
		return errors.New("expires_at must be after issued_at")
	}
	return nil
}

// IsLive reports whether the session has not yet expired at now.
func (s *Session) IsLive(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// IsUsable reports whether the session is live and approved at now.
func (s *Session) IsUsable(now time.Time) bool {
	return s.IsLive(now) && s.Approved
}

// Extend moves ExpiresAt to now+ttl unless that would shorten it.
func (s *Session) Extend(now time.Time, ttl time.Duration) {
	next := now.UTC().Add(ttl)
	if next.After(s.ExpiresAt) {
		s.ExpiresAt = next
	}
}
