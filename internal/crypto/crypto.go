// Package crypto seals the persisted history with NaCl secretbox.
//
// A 32-byte symmetric key is derived from the configured token using
// HKDF-SHA256. Every document is encrypted with a random 24-byte nonce
// prepended to the ciphertext:
//
//	[ 24-byte nonce ][ ciphertext ]
//
// Clipboard history routinely holds passwords and tokens, so the daemon
// seals its document whenever --encrypt is set.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var hkdfInfo = []byte("keepclip-history-v1")

// ErrDecrypt is returned when a sealed document cannot be opened.
var ErrDecrypt = errors.New("decryption failed (wrong token?)")

// DeriveKey derives a 32-byte NaCl secretbox key from a token string using
// HKDF-SHA256. The same token always derives the same key.
func DeriveKey(token string) (*[keySize]byte, error) {
	h := hkdf.New(sha256.New, []byte(token), nil, hkdfInfo)
	var key [keySize]byte
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return &key, nil
}

// Sealer encrypts and decrypts persisted documents. A nil *Sealer passes
// data through unchanged.
type Sealer struct {
	key *[keySize]byte
}

// NewSealer returns a Sealer keyed from token.
func NewSealer(token string) (*Sealer, error) {
	if token == "" {
		return nil, errors.New("sealing requires a non-empty token")
	}
	key, err := DeriveKey(token)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext, prepending a random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, s.key), nil
}

// Open decrypts nonce+ciphertext produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if s == nil {
		return data, nil
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short: %w", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
