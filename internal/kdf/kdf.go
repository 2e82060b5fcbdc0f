// Package kdf derives Key Encryption Keys for the two envelope provenances
// described in spec §4.2: a passphrase-derived KEK (Argon2id) for protected
// wallets, and a server-secret-derived KEK (HKDF-SHA-256) for unprotected
// wallets.
package kdf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the derived KEK length in bytes.
const KeySize = 32

// SaltSize is the Argon2id salt length in bytes (spec §4.2/§6).
const SaltSize = 16

// Argon2Params tunes the passphrase KDF. Defaults match spec §4.2:
// timeCost=3, memoryCost=2^16 KiB, parallelism=1.
type Argon2Params struct {
	Time    uint32
	MemoryKiB uint32
	Threads uint8
}

// DefaultArgon2Params returns the spec-mandated Argon2id tuning.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 3, MemoryKiB: 1 << 16, Threads: 1}
}

// DerivePassphraseKEK derives a 32-byte KEK from a user passphrase and a
// 16-byte salt using Argon2id (spec §4.2). The same (passphrase, salt)
// pair always yields the same KEK, so salt must be persisted alongside
// the envelope and never reused across wallets.
func DerivePassphraseKEK(passphrase string, salt []byte, p Argon2Params) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("kdf: salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	if passphrase == "" {
		return nil, fmt.Errorf("kdf: passphrase must not be empty")
	}
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}

// DeriveServerKEK derives a 32-byte KEK from the server secret and a user
// ID using HKDF-SHA-256 (spec §4.2): salt=userID, info="wallet-kek", L=32.
//
// serverSecret is interpreted as hex if it is an even-length valid hex
// string, else as raw UTF-8 bytes — exactly the ambiguity spec §4.2
// specifies, preserved rather than resolved because downstream envelopes
// already exist under both interpretations.
func DeriveServerKEK(serverSecret, userID string) ([]byte, error) {
	secretBytes := secretMaterial(serverSecret)

	h := hkdf.New(sha256.New, secretBytes, []byte(userID), []byte("wallet-kek"))
	kek := make([]byte, KeySize)
	if _, err := io.ReadFull(h, kek); err != nil {
		return nil, fmt.Errorf("kdf: hkdf expand: %w", err)
	}
	return kek, nil
}

// secretMaterial normalizes the server secret per spec §4.2: even-length
// hex strings decode to raw bytes, everything else is used as UTF-8.
func secretMaterial(serverSecret string) []byte {
	if len(serverSecret)%2 == 0 {
		if decoded, err := hex.DecodeString(serverSecret); err == nil {
			return decoded
		}
	}
	return []byte(serverSecret)
}
