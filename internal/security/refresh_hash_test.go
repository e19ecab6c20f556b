package security

import "testing"

func TestHashRefreshToken(t *testing.T) {
	h1 := HashRefreshToken("token-1")
	if h1 != HashRefreshToken("token-1") {
		t.Error("HashRefreshToken is not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if h1 == HashRefreshToken("token-2") {
		t.Error("different tokens produced the same hash")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("token-1")
	if !RefreshTokenHashEqual("token-1", stored) {
		t.Error("matching token should compare equal")
	}
	if RefreshTokenHashEqual("token-2", stored) {
		t.Error("different token should not compare equal")
	}
	if RefreshTokenHashEqual("token-1", "") {
		t.Error("empty stored hash should not compare equal")
	}
}
