package security

import (
	"bytes"
	"testing"
)

var testSealSecret = []byte("0123456789abcdef0123456789abcdef")

func TestAEADSealer_RoundTrip(t *testing.T) {
	s, err := NewAEADSealer(testSealSecret, "device-1")
	if err != nil {
		t.Fatalf("NewAEADSealer: %v", err)
	}
	plain := []byte(`{"user_id":"u1"}`)
	sealed, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed payload contains plaintext")
	}
	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Open = %q, want %q", got, plain)
	}
}

func TestAEADSealer_OtherDeviceCannotOpen(t *testing.T) {
	a, _ := NewAEADSealer(testSealSecret, "device-1")
	b, _ := NewAEADSealer(testSealSecret, "device-2")
	sealed, err := a.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := b.Open(sealed); err != ErrSealedPayload {
		t.Errorf("Open with other device key: err = %v, want ErrSealedPayload", err)
	}
}

func TestAEADSealer_TamperedOrTruncated(t *testing.T) {
	s, _ := NewAEADSealer(testSealSecret, "device-1")
	sealed, _ := s.Seal([]byte("payload"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open(sealed); err != ErrSealedPayload {
		t.Errorf("tampered: err = %v, want ErrSealedPayload", err)
	}
	if _, err := s.Open([]byte("short")); err != ErrSealedPayload {
		t.Errorf("truncated: err = %v, want ErrSealedPayload", err)
	}
}

func TestNewAEADSealer_ShortSecret(t *testing.T) {
	if _, err := NewAEADSealer([]byte("short"), "d"); err == nil {
		t.Error("NewAEADSealer should reject a short secret")
	}
}

func TestNewSealerFromHex(t *testing.T) {
	s, err := NewSealerFromHex("", "d")
	if err != nil {
		t.Fatalf("NewSealerFromHex(empty): %v", err)
	}
	if _, ok := s.(NoopSealer); !ok {
		t.Errorf("empty secret: got %T, want NoopSealer", s)
	}
	if _, err := NewSealerFromHex("zz", "d"); err == nil {
		t.Error("non-hex secret should fail")
	}
	s, err = NewSealerFromHex("000102030405060708090a0b0c0d0e0f", "d")
	if err != nil {
		t.Fatalf("NewSealerFromHex: %v", err)
	}
	if _, ok := s.(*AEADSealer); !ok {
		t.Errorf("hex secret: got %T, want *AEADSealer", s)
	}
}
