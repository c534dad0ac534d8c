package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sb1:"
	nonceSize    = 24
	keySize      = 32
)

// ErrUnsealFailed is returned when a sealed value cannot be opened with the
// configured secret.
var ErrUnsealFailed = errors.New("auth: cannot open sealed value")

// Sealer protects the API token while it sits in local storage.
type Sealer struct {
	key     *[keySize]byte
	enabled bool
}

// NewSealer derives the sealing key from secret. An empty secret returns a
// pass-through sealer.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return &Sealer{}, nil
	}

	var key [keySize]byte
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("blanko-console token"))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("auth: deriving sealing key: %w", err)
	}
	return &Sealer{key: &key, enabled: true}, nil
}

// Enabled reports whether values are actually encrypted.
func (s *Sealer) Enabled() bool { return s.enabled }

// Seal encrypts plaintext for storage.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if !s.enabled {
		return plaintext, nil
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("auth: generating nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open reverses Seal. A value written before sealing was enabled is returned
// unchanged.
func (s *Sealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !s.enabled {
		return "", fmt.Errorf("%w: no secret configured", ErrUnsealFailed)
	}

	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrUnsealFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	out, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.key)
	if !ok {
		return "", ErrUnsealFailed
	}
	return string(out), nil
}
