package kdf_test

import (
	"bytes"
	"testing"

	"github.com/caesar-terminal/caesar/internal/kdf"
)

func fastParams() kdf.Argon2Params {
	return kdf.Argon2Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1}
}

func TestDerivePassphraseKEKDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, kdf.SaltSize)

	k1, err := kdf.DerivePassphraseKEK("correct horse battery staple", salt, fastParams())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := kdf.DerivePassphraseKEK("correct horse battery staple", salt, fastParams())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("expected deterministic output for same passphrase+salt")
	}
	if len(k1) != kdf.KeySize {
		t.Fatalf("expected %d bytes, got %d", kdf.KeySize, len(k1))
	}
}

func TestDerivePassphraseKEKDifferentSaltDiffers(t *testing.T) {
	saltA := bytes.Repeat([]byte{0x01}, kdf.SaltSize)
	saltB := bytes.Repeat([]byte{0x02}, kdf.SaltSize)

	kA, err := kdf.DerivePassphraseKEK("pw", saltA, fastParams())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	kB, err := kdf.DerivePassphraseKEK("pw", saltB, fastParams())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(kA, kB) {
		t.Fatal("expected different KEKs for different salts")
	}
}

func TestDerivePassphraseKEKRejectsBadSaltSize(t *testing.T) {
	_, err := kdf.DerivePassphraseKEK("pw", []byte{1, 2, 3}, fastParams())
	if err == nil {
		t.Fatal("expected error for short salt")
	}
}

func TestDeriveServerKEKDeterministic(t *testing.T) {
	k1, err := kdf.DeriveServerKEK("server-secret", "user-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := kdf.DeriveServerKEK("server-secret", "user-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("expected deterministic output for same secret+userID")
	}
}

func TestDeriveServerKEKDiffersPerUser(t *testing.T) {
	k1, err := kdf.DeriveServerKEK("server-secret", "user-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := kdf.DeriveServerKEK("server-secret", "user-2")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(k1, k2) {
		t.Fatal("expected different KEKs for different users")
	}
}

func TestDeriveServerKEKHexVsUTF8(t *testing.T) {
	// "cafe" is valid even-length hex, so it's interpreted as 2 raw bytes
	// rather than the 4-byte UTF-8 string.
	hexKey, err := kdf.DeriveServerKEK("cafe", "user-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	utf8Key, err := kdf.DeriveServerKEK("cafe ", "user-1") // odd length, forces utf-8 path
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(hexKey, utf8Key) {
		t.Fatal("expected hex and utf-8 interpretations to diverge")
	}
}
