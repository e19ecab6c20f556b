package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrSealedPayload is returned when a sealed payload cannot be authenticated or is truncated.
var ErrSealedPayload = errors.New("sealed payload is invalid")

// Sealer protects the device session record at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// NoopSealer passes payloads through unchanged (dev/test mode).
type NoopSealer struct{}

func (NoopSealer) Seal(p []byte) ([]byte, error) { return p, nil }
func (NoopSealer) Open(p []byte) ([]byte, error) { return p, nil }

// AEADSealer seals payloads with XChaCha20-Poly1305. Output is nonce || ciphertext || tag.
type AEADSealer struct {
	aead cipher.AEAD
}

// NewAEADSealer derives a 256-bit key from secret and deviceID with HKDF-SHA256.
// Records sealed on one device cannot be opened with another device's key.
func NewAEADSealer(secret []byte, deviceID string) (*AEADSealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("seal secret must be at least 16 bytes")
	}
	h := hkdf.New(sha256.New, secret, []byte(deviceID), []byte("storefront-session-record"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEADSealer{aead: aead}, nil
}

// NewSealerFromHex returns an AEADSealer for a hex-encoded secret, or NoopSealer when hexSecret is empty.
func NewSealerFromHex(hexSecret, deviceID string) (Sealer, error) {
	hexSecret = strings.TrimSpace(hexSecret)
	if hexSecret == "" {
		return NoopSealer{}, nil
	}
	secret, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, errors.New("seal secret must be hex encoded")
	}
	return NewAEADSealer(secret, deviceID)
}

// Seal encrypts plaintext under a fresh random nonce.
func (s *AEADSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a payload produced by Seal.
func (s *AEADSealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrSealedPayload
	}
	out, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, ErrSealedPayload
	}
	return out, nil
}
