// Package cryptox implements the symmetric encryption that keeps custodial
// private keys at rest, plus fresh wallet keypair generation. One Cipher is
// constructed at process start from a passphrase-derived key and shared
// read-only by everything that touches key material.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrDecryption marks ciphertext that cannot be opened with the current
// process key: either the key was rotated without re-encrypting stored
// rows, or the stored blob was tampered with. Callers must surface this,
// never swallow it.
var ErrDecryption = errors.New("decryption failed")

const nonceSize = 12

// DeriveKey stretches a passphrase into a 32-byte AES-256 key using
// argon2id. The salt is a deployment-wide constant configured next to
// the passphrase; both inputs must stay stable for the life of the
// stored ciphertexts.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// Cipher performs authenticated symmetric encryption with a single
// process-wide key. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher around an AES-256-GCM AEAD. The key must be
// 32 bytes (use DeriveKey).
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// nonce||ciphertext as one blob suitable for a single DB column.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Tampered input or input
// sealed under a different key yields ErrDecryption; garbage plaintext
// is never returned silently.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: blob too short", ErrDecryption)
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}
