package wallet_test

import (
	"errors"
	"testing"

	"github.com/caesar-terminal/caesar/internal/envelope"
	"github.com/caesar-terminal/caesar/internal/kdf"
	"github.com/caesar-terminal/caesar/internal/wallet"
)

func fastArgon2() kdf.Argon2Params {
	return kdf.Argon2Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1}
}

func TestValidateProtectedRequiresEncrypted(t *testing.T) {
	row := wallet.Row{ID: "w1", UserID: "u1", IsProtected: true, EncryptionVersion: 1}
	if err := wallet.Validate(row); !errors.Is(err, wallet.ErrMissingEncrypted) {
		t.Fatalf("expected ErrMissingEncrypted, got %v", err)
	}
}

func TestValidateProtectedAcceptsProtectedEnvelope(t *testing.T) {
	aad := wallet.AAD("u1", "w1")
	env, err := envelope.EncryptProtected([]byte("secret-key-material"), "pw", aad, fastArgon2())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	row := wallet.Row{ID: "w1", UserID: "u1", IsProtected: true, Encrypted: &env, EncryptionVersion: 1}
	if err := wallet.Validate(row); err != nil {
		t.Fatalf("expected valid row, got %v", err)
	}
}

func TestValidateRejectsMismatchedScheme(t *testing.T) {
	params := envelope.UnprotectedParams{UserID: "u1", ServerSecret: "server-secret"}
	env, err := envelope.EncryptUnprotected([]byte("secret-key-material"), params)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	row := wallet.Row{ID: "w1", UserID: "u1", IsProtected: true, Encrypted: &env, EncryptionVersion: 1}
	if err := wallet.Validate(row); !errors.Is(err, wallet.ErrWrongScheme) {
		t.Fatalf("expected ErrWrongScheme, got %v", err)
	}
}

func TestValidateUnprotectedRejectsPrivateKey(t *testing.T) {
	params := envelope.UnprotectedParams{UserID: "u1", ServerSecret: "server-secret"}
	env, err := envelope.EncryptUnprotected([]byte("secret-key-material"), params)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	row := wallet.Row{
		ID: "w1", UserID: "u1", IsProtected: false,
		Encrypted: &env, PrivateKey: "some-legacy-value", EncryptionVersion: 1,
	}
	if err := wallet.Validate(row); !errors.Is(err, wallet.ErrPrivateKeyNotNull) {
		t.Fatalf("expected ErrPrivateKeyNotNull, got %v", err)
	}
}

func TestValidateLegacyRowSkipsEnvelopeChecks(t *testing.T) {
	row := wallet.Row{ID: "w1", UserID: "u1", PrivateKey: "5Kd3...legacybase58"}
	if err := wallet.Validate(row); err != nil {
		t.Fatalf("expected legacy row to pass, got %v", err)
	}
}

func TestAADFormat(t *testing.T) {
	got := string(wallet.AAD("u1", "w1"))
	want := "user:u1:wallet:w1"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
