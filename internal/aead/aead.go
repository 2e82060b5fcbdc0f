// Package aead implements AES-256-GCM authenticated encryption for the
// envelope codec (spec §4.1). It is a pure function layer: no key
// storage, no KDFs, no envelope framing — those live in internal/kdf and
// internal/envelope.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// KeySize is the DEK/KEK length in bytes (AES-256).
const KeySize = 32

// NonceSize is the GCM IV length in bytes (96-bit, per spec §4.1).
const NonceSize = 12

// TagSize is the GCM authentication tag length in bytes (128-bit).
const TagSize = 16

// ErrVerifyFailed is returned when the GCM tag does not authenticate —
// wrong key, tampered ciphertext, or mismatched AAD. It is the Go
// realization of spec §4.1's AEAD_VERIFY_FAILED.
var ErrVerifyFailed = errors.New("aead: verify failed")

// Sealed is a ciphertext produced by Encrypt: the {ct,iv,tag} tuple that
// the envelope codec serializes to base64 (spec §6).
type Sealed struct {
	CT  []byte
	IV  []byte
	Tag []byte
}

// Encrypt seals plaintext under key using AES-256-GCM with a fresh
// CSPRNG-drawn 96-bit IV. aad is bound but not encrypted.
func Encrypt(key, plaintext, aad []byte) (Sealed, error) {
	if len(key) != KeySize {
		return Sealed{}, fmt.Errorf("aead: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return Sealed{}, fmt.Errorf("aead: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return Sealed{}, fmt.Errorf("aead: new gcm: %w", err)
	}

	iv := make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("aead: draw iv: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it back out so the
	// envelope codec can store ct/tag as separate base64 fields (spec §6).
	sealed := gcm.Seal(nil, iv, plaintext, aad)
	ctLen := len(sealed) - TagSize
	if ctLen < 0 {
		return Sealed{}, errors.New("aead: sealed output shorter than tag")
	}

	return Sealed{
		CT:  sealed[:ctLen],
		IV:  iv,
		Tag: sealed[ctLen:],
	}, nil
}

// Decrypt opens a Sealed value under key, returning ErrVerifyFailed on any
// tag mismatch (tampered ct/iv/tag or wrong aad). It never distinguishes
// the cause beyond that — do not leak more than "verify failed" to callers
// (spec §7, cryptographic failures produce opaque messages).
func Decrypt(key []byte, s Sealed, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aead: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(s.IV) != NonceSize || len(s.Tag) != TagSize {
		return nil, ErrVerifyFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("aead: new gcm: %w", err)
	}

	combined := make([]byte, 0, len(s.CT)+len(s.Tag))
	combined = append(combined, s.CT...)
	combined = append(combined, s.Tag...)

	plaintext, err := gcm.Open(nil, s.IV, combined, aad)
	if err != nil {
		return nil, ErrVerifyFailed
	}
	return plaintext, nil
}

// Zero overwrites b with zeros in place. Used on every exit path that has
// held a DEK, KEK, or raw secret (spec §5, zeroization).
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
