package legacy

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func TestClassifyEmpty(t *testing.T) {
	f, err := Classify("")
	if err != nil || f != FormatEmpty {
		t.Fatalf("expected FormatEmpty, got %v, %v", f, err)
	}
}

func TestClassifyBase58(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	encoded := base58.Encode(priv)

	f, err := Classify(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != FormatBase58 {
		t.Fatalf("expected FormatBase58, got %v", f)
	}
}

func TestClassifyIVTagCT(t *testing.T) {
	iv := hex.EncodeToString([]byte("0123456789ab"))
	tag := hex.EncodeToString([]byte("0123456789abcdef"))
	ct := hex.EncodeToString([]byte("ciphertextbytes"))
	value := iv + ":" + tag + ":" + ct

	f, err := Classify(value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != FormatIVTagCT {
		t.Fatalf("expected FormatIVTagCT, got %v", f)
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	_, err := Classify("not-a-valid-key-at-all!!")
	if !errors.Is(err, ErrUnrecognizedFormat) {
		t.Fatalf("expected ErrUnrecognizedFormat, got %v", err)
	}
}
