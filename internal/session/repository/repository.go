// Package repository persists the single device-local session record.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/sessioncore/internal/security"
	"storefront/sessioncore/internal/session/domain"
)

// Store defines persistence for the device session. There is at most one record.
type Store interface {
	// Load returns the stored session, or nil if none exists. A record that cannot be decoded
	// returns domain.ErrCorruptSession; local I/O failures return a *domain.StorageError.
	Load(ctx context.Context) (*domain.Session, error)
	// Save atomically replaces the stored record.
	Save(ctx context.Context, s *domain.Session) error
	// Delete removes the stored record. Deleting an absent record is not an error.
	Delete(ctx context.Context) error
}

// codec turns a session into its sealed at-rest payload and back.
type codec struct {
	sealer security.Sealer
}

func newCodec(sealer security.Sealer) codec {
	if sealer == nil {
		sealer = security.NoopSealer{}
	}
	return codec{sealer: sealer}
}

func (c codec) encode(s *domain.Session) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid session: %w", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return c.sealer.Seal(raw)
}

func (c codec) decode(payload []byte) (*domain.Session, error) {
	raw, err := c.sealer.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSession, err)
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSession, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSession, err)
	}
	return &s, nil
}
