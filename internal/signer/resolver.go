// Package signer implements the Signer Resolver (spec §4.4): given a
// (userId, walletId) pair it selects the wallet's envelope scheme,
// retrieves key material (from the Arm-Session Manager for protected
// wallets, or by direct server-KEK derivation for unprotected wallets),
// and constructs a ready-to-use Solana transaction signer. Every path
// zeroizes intermediate secret and DEK copies before returning.
package signer

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"

	solana "github.com/gagliardetto/solana-go"

	"github.com/caesar-terminal/caesar/internal/aead"
	"github.com/caesar-terminal/caesar/internal/armsession"
	"github.com/caesar-terminal/caesar/internal/envelope"
	"github.com/caesar-terminal/caesar/internal/wallet"
)

// ErrorCode is the stable error-code contract from spec §4.4; these map
// onto HTTP-style status codes at the API boundary.
type ErrorCode string

const (
	CodeWalletNotFound           ErrorCode = "WALLET_NOT_FOUND"
	CodeEncryptedMissing         ErrorCode = "ENCRYPTED_MISSING"
	CodeAutomationNotArmed       ErrorCode = "AUTOMATION_NOT_ARMED"
	CodeEnvMissing               ErrorCode = "ENV_MISSING"
	CodeLegacyPrivateKeyUnsupported ErrorCode = "LEGACY_PRIVATEKEY_UNSUPPORTED"
	CodeSecretMissing            ErrorCode = "SECRET_MISSING"
)

// statusFor maps each ErrorCode to the HTTP-style status spec §4.4 assigns.
var statusFor = map[ErrorCode]int{
	CodeWalletNotFound:             http.StatusNotFound,
	CodeEncryptedMissing:           http.StatusInternalServerError,
	CodeAutomationNotArmed:         http.StatusUnauthorized,
	CodeEnvMissing:                 http.StatusInternalServerError,
	CodeLegacyPrivateKeyUnsupported: http.StatusBadRequest,
	CodeSecretMissing:              http.StatusInternalServerError,
}

// ResolveError is the typed error the resolver returns on every failure
// path; it carries the stable code and HTTP-style status spec §4.4 names.
type ResolveError struct {
	Code   ErrorCode
	Status int
	Err    error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signer: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("signer: %s", e.Code)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func newResolveError(code ErrorCode, err error) *ResolveError {
	return &ResolveError{Code: code, Status: statusFor[code], Err: err}
}

// WalletStore is the narrow read interface the resolver needs from the
// repository (spec §4.10's wallet.findOne).
type WalletStore interface {
	FindOne(ctx context.Context, userID, walletID string) (*wallet.Row, error)
}

// Signer produces Solana transaction signatures. Constructed fresh per
// resolve call; never persisted beyond the caller's immediate use.
type Signer struct {
	PublicKey solana.PublicKey
	key       solana.PrivateKey
}

// Sign signs msg with the resolved wallet's Ed25519 key.
func (s *Signer) Sign(msg []byte) (solana.Signature, error) {
	return s.key.Sign(msg)
}

// SignTransaction signs tx with this Signer's key. The key getter yields
// no key for any other public key, so tx.Sign returns an error if tx
// requires a signer other than this one.
// The raw private key never leaves this method.
func (s *Signer) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if !key.Equals(s.PublicKey) {
			return nil
		}
		return &s.key
	})
	return err
}

// Zeroize wipes the in-memory private key. Callers must invoke this once
// the signer is no longer needed.
func (s *Signer) Zeroize() {
	aead.Zero(s.key)
}

// Resolver implements resolveSigner (spec §4.4). The protected path never
// re-derives a KEK itself — it only consults the Arm-Session Manager for
// an already-unwrapped DEK — so the resolver carries no Argon2 params.
type Resolver struct {
	wallets      WalletStore
	sessions     *armsession.Manager
	serverSecret func() (string, bool) // returns ("", false) if ENV_MISSING
}

// New builds a Resolver. serverSecret is called lazily so a missing
// SERVER_ENCRYPTION_SECRET only fails unprotected-path resolutions,
// matching spec §4.4 step 4a.
func New(wallets WalletStore, sessions *armsession.Manager, serverSecret func() (string, bool)) *Resolver {
	return &Resolver{wallets: wallets, sessions: sessions, serverSecret: serverSecret}
}

// Resolve implements spec §4.4's resolveSigner(userId, walletId) algorithm.
func (r *Resolver) Resolve(ctx context.Context, userID, walletID string) (*Signer, error) {
	row, err := r.wallets.FindOne(ctx, userID, walletID)
	if err != nil {
		return nil, newResolveError(CodeWalletNotFound, err)
	}
	if row == nil {
		return nil, newResolveError(CodeWalletNotFound, nil)
	}

	// Legacy detection takes priority: the resolver must never silently
	// consume a legacy secret (spec §4.4 step 5).
	if row.IsLegacy() && row.Encrypted == nil {
		return nil, newResolveError(CodeLegacyPrivateKeyUnsupported, nil)
	}

	aad := wallet.AAD(userID, walletID)

	switch {
	case row.IsProtected:
		return r.resolveProtected(userID, walletID, row, aad)
	case row.Encrypted != nil:
		return r.resolveUnprotected(userID, row, aad)
	default:
		return nil, newResolveError(CodeSecretMissing, nil)
	}
}

func (r *Resolver) resolveProtected(userID, walletID string, row *wallet.Row, aad []byte) (*Signer, error) {
	if row.Encrypted == nil {
		return nil, newResolveError(CodeEncryptedMissing, nil)
	}

	dek := r.sessions.GetDEK(userID, walletID)
	if dek == nil {
		return nil, newResolveError(CodeAutomationNotArmed, nil)
	}
	defer aead.Zero(dek)

	secret, err := decryptWithDEK(*row.Encrypted, dek, aad)
	if err != nil {
		return nil, newResolveError(CodeAutomationNotArmed, err)
	}
	defer aead.Zero(secret)

	return newSolanaSigner(secret)
}

func (r *Resolver) resolveUnprotected(userID string, row *wallet.Row, aad []byte) (*Signer, error) {
	if row.Encrypted == nil {
		return nil, newResolveError(CodeEncryptedMissing, nil)
	}

	secretEnv, ok := r.serverSecret()
	if !ok || secretEnv == "" {
		return nil, newResolveError(CodeEnvMissing, nil)
	}

	secret, err := envelope.DecryptUnprotected(*row.Encrypted, envelope.UnprotectedParams{
		UserID:       userID,
		ServerSecret: secretEnv,
	})
	if err != nil {
		return nil, newResolveError(CodeSecretMissing, err)
	}
	defer aead.Zero(secret)

	return newSolanaSigner(secret)
}

// decryptWithDEK unwraps the envelope's "wrapped" field directly with an
// already-retrieved DEK, skipping the KEK-unwrap step DecryptProtected
// normally performs (the Arm-Session Manager already did that once, at
// arm time).
func decryptWithDEK(env envelope.Envelope, dek, aad []byte) ([]byte, error) {
	sealed, err := env.WrappedSealed()
	if err != nil {
		return nil, err
	}
	return aead.Decrypt(dek, sealed, aad)
}

func newSolanaSigner(secret []byte) (*Signer, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, newResolveError(CodeSecretMissing, fmt.Errorf("signer: expected %d-byte ed25519 key, got %d", ed25519.PrivateKeySize, len(secret)))
	}
	key := make(solana.PrivateKey, ed25519.PrivateKeySize)
	copy(key, secret)
	return &Signer{PublicKey: key.PublicKey(), key: key}, nil
}
