package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidateRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, jti, exp, err := p.IssueRefresh("u1", "d1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("refresh token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("refresh expires at in the past")
	}

	rt, err := p.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if rt.UserID != "u1" || rt.DeviceID != "d1" || rt.JTI != jti {
		t.Errorf("ValidateRefresh: got userID=%q deviceID=%q jti=%q", rt.UserID, rt.DeviceID, rt.JTI)
	}
}

func TestTokenProvider_ValidateRefreshInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateRefresh("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateRefresh invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateRefreshExpired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, _, err := p.IssueRefresh("u1", "d1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	p.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	if _, err := p.ValidateRefresh(token); err != ErrInvalidToken {
		t.Errorf("expired token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateRefreshWrongAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, _, err := p.IssueRefresh("u1", "d1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	p.audience = "other-audience"
	if _, err := p.ValidateRefresh(token); err != ErrInvalidToken {
		t.Errorf("wrong audience: want ErrInvalidToken, got %v", err)
	}
}
