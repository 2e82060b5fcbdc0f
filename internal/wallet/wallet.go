// Package wallet defines the identity record for a signing-key holder
// (spec §3) and the invariant checks that separate legacy, protected,
// and unprotected wallets.
package wallet

import (
	"errors"
	"fmt"

	"github.com/caesar-terminal/caesar/internal/envelope"
)

// Sentinel errors surfaced by Validate.
var (
	ErrMissingEncrypted       = errors.New("wallet: isProtected wallet requires an encrypted envelope")
	ErrWrongScheme            = errors.New("wallet: encrypted envelope scheme does not match isProtected")
	ErrPrivateKeyNotNull      = errors.New("wallet: unprotected wallet must not carry a legacy privateKey")
	ErrPublicKeyWrongSize     = errors.New("wallet: publicKey must be 32 bytes")
	ErrEncryptionVersionOmit  = errors.New("wallet: encryptionVersion must be set for non-legacy wallets")
)

// Row is the persisted representation of a wallet record (spec §3).
// Fields mirror the repository row exactly; no field is derived.
type Row struct {
	ID       string
	UserID   string
	Label    string
	PublicKey [32]byte

	IsProtected bool

	// Encrypted holds the parsed envelope for non-legacy wallets. Nil
	// means either a legacy wallet (PrivateKey set) or a row that has
	// never been provisioned.
	Encrypted *envelope.Envelope

	// PrivateKey is the legacy field (spec §3, §7): either a bare
	// base58 secret or an "iv:tag:ct" hex tuple. Its presence on any
	// non-legacy wallet is an error.
	PrivateKey string

	// PassphraseHash is an Argon2id-encoded string used only for fast
	// passphrase-validity checks. It is never a source of key material.
	PassphraseHash string

	EncryptionVersion int
}

// IsLegacy reports whether the row still carries the legacy privateKey
// field instead of an envelope.
func (r Row) IsLegacy() bool {
	return r.PrivateKey != ""
}

// Validate enforces the invariants in spec §3: exactly one encryption
// scheme is authoritative per wallet, the scheme matches IsProtected,
// and legacy/non-legacy fields are never mixed.
func Validate(r Row) error {
	if r.Encrypted == nil {
		if r.IsLegacy() {
			// Legacy rows are read-only and exempt from the envelope
			// invariants (spec §7); internal/legacy classifies them.
			return nil
		}
		if r.IsProtected {
			return ErrMissingEncrypted
		}
		// An unprotected wallet with no envelope yet (not provisioned)
		// is not itself an error at the data-model layer.
		return nil
	}

	if !r.IsProtected && r.PrivateKey != "" {
		return ErrPrivateKeyNotNull
	}

	// The "scheme" JSON field is the literal string "envelope" for both
	// provenances (spec §6); the KDF descriptor's name is what actually
	// distinguishes protected (argon2id) from unprotected (hkdf-sha256).
	wantKDF := envelope.KDFHKDFSHA256
	if r.IsProtected {
		wantKDF = envelope.KDFArgon2id
	}
	if r.Encrypted.KDF.Name != wantKDF {
		return fmt.Errorf("%w: isProtected=%v, envelope.kdf.name=%q", ErrWrongScheme, r.IsProtected, r.Encrypted.KDF.Name)
	}

	if r.EncryptionVersion == 0 {
		return ErrEncryptionVersionOmit
	}

	return nil
}

// AAD returns the protected-scheme AEAD associated data for this wallet
// (spec §3/§4.1): "user:{userId}:wallet:{walletId}".
func AAD(userID, walletID string) []byte {
	return []byte(fmt.Sprintf("user:%s:wallet:%s", userID, walletID))
}
