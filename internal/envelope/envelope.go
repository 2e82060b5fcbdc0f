// Package envelope implements the persisted ciphertext bundle described in
// spec §4.3/§6: a two-tier scheme where a random DEK wraps the raw wallet
// secret and a KEK (passphrase-derived or server-derived) wraps the DEK.
//
// This package is pure: it never touches a repository, never talks to the
// Arm-Session Manager, and never decides which scheme a wallet uses — that
// orchestration belongs to internal/signer (spec §9, "Envelope Codec is
// pure").
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/caesar-terminal/caesar/internal/aead"
	"github.com/caesar-terminal/caesar/internal/kdf"
)

// Scheme is the envelope's "scheme" field. Both KEK provenances write the
// same value, "envelope"; KDF.Name is what tells them apart.
type Scheme string

const (
	SchemeProtected   Scheme = "envelope"
	SchemeUnprotected Scheme = "envelope"
)

// KDFName identifies which KDF produced the KEK for this envelope.
type KDFName string

const (
	KDFArgon2id   KDFName = "argon2id"
	KDFHKDFSHA256 KDFName = "hkdf-sha256"
)

// sealedJSON is the base64 wire form of an aead.Sealed value (spec §6).
type sealedJSON struct {
	CT  string `json:"ct"`
	IV  string `json:"iv"`
	Tag string `json:"tag"`
}

func toSealedJSON(s aead.Sealed) sealedJSON {
	return sealedJSON{
		CT:  base64.StdEncoding.EncodeToString(s.CT),
		IV:  base64.StdEncoding.EncodeToString(s.IV),
		Tag: base64.StdEncoding.EncodeToString(s.Tag),
	}
}

func (s sealedJSON) toSealed() (aead.Sealed, error) {
	ct, err := base64.StdEncoding.DecodeString(s.CT)
	if err != nil {
		return aead.Sealed{}, fmt.Errorf("envelope: decode ct: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil {
		return aead.Sealed{}, fmt.Errorf("envelope: decode iv: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(s.Tag)
	if err != nil {
		return aead.Sealed{}, fmt.Errorf("envelope: decode tag: %w", err)
	}
	return aead.Sealed{CT: ct, IV: iv, Tag: tag}, nil
}

// kdfDescriptor is the "kdf" field of the envelope JSON (spec §6). Salt is
// only meaningful for argon2id; Info/SaltSrc only for hkdf-sha256.
type kdfDescriptor struct {
	Name    KDFName `json:"name"`
	Salt    string  `json:"salt,omitempty"`
	Info    string  `json:"info,omitempty"`
	SaltSrc string  `json:"saltSrc,omitempty"`
}

// Envelope is the bit-exact on-disk JSON structure from spec §6.
type Envelope struct {
	V             int           `json:"v"`
	Scheme        Scheme        `json:"scheme"`
	Alg           string        `json:"alg"`
	KDF           kdfDescriptor `json:"kdf"`
	Wrapped       sealedJSON    `json:"wrapped"`
	KekWrappedDek sealedJSON    `json:"kekWrappedDek"`

	// legacyFields carries the pre-normalization protected-scheme layout
	// (dekCipher/dekIV/dekTag/salt, all base64) so Parse can accept
	// it on read (spec §6, "Field set for protected legacy compatibility").
	legacyFields *legacyProtectedFields
}

type legacyProtectedFields struct {
	DekCipher string `json:"dekCipher"`
	DekIV     string `json:"dekIV"`
	DekTag    string `json:"dekTag"`
	Salt      string `json:"salt"`
}

const schemaVersion = 1
const algAES256GCM = "aes-256-gcm"

// EncryptProtected implements spec §4.3 encryptProtected: derive a random
// DEK, wrap the secret under it with aad, derive a KEK from passphrase+salt,
// and wrap the DEK under the KEK with empty AAD.
func EncryptProtected(secret []byte, passphrase string, aad []byte, p kdf.Argon2Params) (Envelope, error) {
	dek := make([]byte, aead.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return Envelope{}, fmt.Errorf("envelope: draw dek: %w", err)
	}
	defer aead.Zero(dek)

	salt := make([]byte, kdf.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Envelope{}, fmt.Errorf("envelope: draw salt: %w", err)
	}

	kek, err := kdf.DerivePassphraseKEK(passphrase, salt, p)
	if err != nil {
		return Envelope{}, err
	}
	defer aead.Zero(kek)

	wrapped, err := aead.Encrypt(dek, secret, aad)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: wrap secret: %w", err)
	}

	kekWrappedDek, err := aead.Encrypt(kek, dek, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: wrap dek: %w", err)
	}

	return Envelope{
		V:      schemaVersion,
		Scheme: SchemeProtected,
		Alg:    algAES256GCM,
		KDF: kdfDescriptor{
			Name: KDFArgon2id,
			Salt: base64.StdEncoding.EncodeToString(salt),
		},
		Wrapped:       toSealedJSON(wrapped),
		KekWrappedDek: toSealedJSON(kekWrappedDek),
	}, nil
}

// DecryptProtected implements spec §4.3 decryptProtected: re-derive the KEK
// from the envelope's persisted salt and the supplied passphrase, unwrap
// the DEK, then unwrap the secret with aad. Returns aead.ErrVerifyFailed on
// any tampering or wrong-passphrase attempt.
func DecryptProtected(env Envelope, passphrase string, aad []byte, p kdf.Argon2Params) (secret []byte, err error) {
	salt, kekWrappedDek, wrapped, err := protectedFields(env)
	if err != nil {
		return nil, err
	}

	kek, err := kdf.DerivePassphraseKEK(passphrase, salt, p)
	if err != nil {
		return nil, err
	}
	defer aead.Zero(kek)

	dek, err := aead.Decrypt(kek, kekWrappedDek, nil)
	if err != nil {
		return nil, err
	}
	defer aead.Zero(dek)

	return aead.Decrypt(dek, wrapped, aad)
}

// WrappedSealed exposes the envelope's "wrapped" field (the secret sealed
// under the DEK) for callers that already hold the DEK directly — the
// Signer Resolver's protected path (spec §4.4 step 3c), which retrieves
// the DEK from the Arm-Session Manager rather than re-deriving the KEK.
func (env Envelope) WrappedSealed() (aead.Sealed, error) {
	return env.Wrapped.toSealed()
}

// UnwrapDEK derives the KEK from passphrase and the envelope's persisted
// salt, then unwraps and returns the DEK alone, without touching the
// wrapped secret. This is the building block the arm endpoint (outside
// this module's scope, per spec §4.5) uses to obtain the dek argument it
// passes to the Arm-Session Manager's arm operation.
func UnwrapDEK(env Envelope, passphrase string, p kdf.Argon2Params) ([]byte, error) {
	salt, kekWrappedDek, _, err := protectedFields(env)
	if err != nil {
		return nil, err
	}

	kek, err := kdf.DerivePassphraseKEK(passphrase, salt, p)
	if err != nil {
		return nil, err
	}
	defer aead.Zero(kek)

	return aead.Decrypt(kek, kekWrappedDek, nil)
}

// protectedFields extracts salt, kekWrappedDek, and wrapped from either the
// normalized (§6 primary) or legacy protected-scheme layout.
func protectedFields(env Envelope) ([]byte, aead.Sealed, aead.Sealed, error) {
	wrapped, err := env.Wrapped.toSealed()
	if err != nil {
		return nil, aead.Sealed{}, aead.Sealed{}, err
	}

	if env.legacyFields != nil {
		lf := env.legacyFields
		salt, err := base64.StdEncoding.DecodeString(lf.Salt)
		if err != nil {
			return nil, aead.Sealed{}, aead.Sealed{}, fmt.Errorf("envelope: decode legacy salt: %w", err)
		}
		ct, err := base64.StdEncoding.DecodeString(lf.DekCipher)
		if err != nil {
			return nil, aead.Sealed{}, aead.Sealed{}, fmt.Errorf("envelope: decode legacy dekCipher: %w", err)
		}
		iv, err := base64.StdEncoding.DecodeString(lf.DekIV)
		if err != nil {
			return nil, aead.Sealed{}, aead.Sealed{}, fmt.Errorf("envelope: decode legacy dekIV: %w", err)
		}
		tag, err := base64.StdEncoding.DecodeString(lf.DekTag)
		if err != nil {
			return nil, aead.Sealed{}, aead.Sealed{}, fmt.Errorf("envelope: decode legacy dekTag: %w", err)
		}
		return salt, aead.Sealed{CT: ct, IV: iv, Tag: tag}, wrapped, nil
	}

	salt, err := base64.StdEncoding.DecodeString(env.KDF.Salt)
	if err != nil {
		return nil, aead.Sealed{}, aead.Sealed{}, fmt.Errorf("envelope: decode salt: %w", err)
	}
	kekWrappedDek, err := env.KekWrappedDek.toSealed()
	if err != nil {
		return nil, aead.Sealed{}, aead.Sealed{}, err
	}
	return salt, kekWrappedDek, wrapped, nil
}

// UnprotectedParams bundles the inputs to the unprotected scheme (spec
// §4.3): the server secret and owning userID feed HKDF; the envelope binds
// nothing else (empty AAD throughout, since the KEK already binds the user).
type UnprotectedParams struct {
	UserID       string
	ServerSecret string
}

// EncryptUnprotected implements spec §4.3 encryptUnprotected.
func EncryptUnprotected(secret []byte, p UnprotectedParams) (Envelope, error) {
	dek := make([]byte, aead.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return Envelope{}, fmt.Errorf("envelope: draw dek: %w", err)
	}
	defer aead.Zero(dek)

	kek, err := kdf.DeriveServerKEK(p.ServerSecret, p.UserID)
	if err != nil {
		return Envelope{}, err
	}
	defer aead.Zero(kek)

	wrapped, err := aead.Encrypt(dek, secret, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: wrap secret: %w", err)
	}
	kekWrappedDek, err := aead.Encrypt(kek, dek, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: wrap dek: %w", err)
	}

	return Envelope{
		V:      schemaVersion,
		Scheme: SchemeUnprotected,
		Alg:    algAES256GCM,
		KDF: kdfDescriptor{
			Name:    KDFHKDFSHA256,
			Info:    "wallet-kek",
			SaltSrc: "userId",
		},
		Wrapped:       toSealedJSON(wrapped),
		KekWrappedDek: toSealedJSON(kekWrappedDek),
	}, nil
}

// DecryptUnprotected implements spec §4.3 decryptUnprotected. Decrypting
// with any userID other than the one used at encryption time fails with
// aead.ErrVerifyFailed because the HKDF salt differs (spec §8, property 2).
func DecryptUnprotected(env Envelope, p UnprotectedParams) (secret []byte, err error) {
	kek, err := kdf.DeriveServerKEK(p.ServerSecret, p.UserID)
	if err != nil {
		return nil, err
	}
	defer aead.Zero(kek)

	kekWrappedDek, err := env.KekWrappedDek.toSealed()
	if err != nil {
		return nil, err
	}
	dek, err := aead.Decrypt(kek, kekWrappedDek, nil)
	if err != nil {
		return nil, err
	}
	defer aead.Zero(dek)

	wrapped, err := env.Wrapped.toSealed()
	if err != nil {
		return nil, err
	}
	return aead.Decrypt(dek, wrapped, nil)
}

// Marshal serializes an Envelope to its normalized on-disk JSON form
// (spec §6). Legacy fields are never re-emitted: "normalized to the above
// on next write".
func Marshal(env Envelope) ([]byte, error) {
	env.legacyFields = nil
	return json.Marshal(env)
}

// rawEnvelope mirrors Envelope's JSON shape plus the legacy protected
// fields, used only for detecting which layout is on the wire.
type rawEnvelope struct {
	V             int           `json:"v"`
	Scheme        Scheme        `json:"scheme"`
	Alg           string        `json:"alg"`
	KDF           kdfDescriptor `json:"kdf"`
	Wrapped       sealedJSON    `json:"wrapped"`
	KekWrappedDek sealedJSON    `json:"kekWrappedDek"`
	DekCipher     string        `json:"dekCipher,omitempty"`
	DekIV         string        `json:"dekIV,omitempty"`
	DekTag        string        `json:"dekTag,omitempty"`
	Salt          string        `json:"salt,omitempty"`
}

// Parse decodes an envelope JSON document, transparently accepting the
// legacy protected-scheme field set (spec §6) alongside the normalized one.
func Parse(data []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("envelope: unmarshal: %w", err)
	}

	env := Envelope{
		V:             raw.V,
		Scheme:        raw.Scheme,
		Alg:           raw.Alg,
		KDF:           raw.KDF,
		Wrapped:       raw.Wrapped,
		KekWrappedDek: raw.KekWrappedDek,
	}

	if raw.KDF.Name == "" && raw.DekCipher != "" {
		env.legacyFields = &legacyProtectedFields{
			DekCipher: raw.DekCipher,
			DekIV:     raw.DekIV,
			DekTag:    raw.DekTag,
			Salt:      raw.Salt,
		}
		env.KDF.Name = KDFArgon2id
	}

	return env, nil
}
