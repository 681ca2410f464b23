// Package cryptox seals small blobs at rest with AES-GCM under a key derived
// from a device secret with Argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KeySize is the derived key length (AES-256).
const KeySize = 32

var (
	ErrEmptySecret        = errors.New("empty secret")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// DeriveKey stretches secret with salt into a KeySize-byte key.
func DeriveKey(secret []byte, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize), nil
}

// Seal encrypts plaintext with AES-GCM. The random nonce is prepended to the
// returned ciphertext. additionalData is authenticated but not encrypted; the
// same value must be passed to Open.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal. Any modification of the sealed bytes or a different
// additionalData makes it fail.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, additionalData)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
