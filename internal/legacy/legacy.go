// Package legacy classifies a wallet row's legacy privateKey field
// (spec §3, §7). It never decrypts or migrates anything — the resolver's
// refusal to consume legacy secrets (spec §4.4 step 5) stands untouched;
// this is read-only tooling for an operator deciding how to migrate a
// row offline.
package legacy

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

// Format is the shape a legacy privateKey field was written in.
type Format string

const (
	FormatBase58  Format = "base58"
	FormatIVTagCT Format = "iv_tag_ct_hex"
	FormatEmpty   Format = "empty"
)

// ErrUnrecognizedFormat is returned when a non-empty value matches
// neither known legacy shape.
var ErrUnrecognizedFormat = errors.New("legacy: unrecognized privateKey format")

// Classify identifies which legacy format privateKey is in, without
// touching key material beyond what's needed to tell the two formats
// apart. A bare base58 secret decodes to exactly ed25519.PrivateKeySize
// (64) bytes; the legacy `iv:tag:ct` tuple is three colon-separated hex
// segments.
func Classify(privateKey string) (Format, error) {
	if privateKey == "" {
		return FormatEmpty, nil
	}

	if parts := strings.Split(privateKey, ":"); len(parts) == 3 {
		if isHexTuple(parts) {
			return FormatIVTagCT, nil
		}
	}

	if decoded, err := base58.Decode(privateKey); err == nil && len(decoded) == 64 {
		return FormatBase58, nil
	}

	return "", ErrUnrecognizedFormat
}

func isHexTuple(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := hex.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}
