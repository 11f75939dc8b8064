// Package fingerprint derives dedup keys from submitted media bytes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Fingerprint is the lowercase hex SHA-256 digest of a payload.
type Fingerprint string

// Size is the length of a Fingerprint in hex characters.
const Size = sha256.Size * 2

// Of hashes b. Identical bytes always produce the same Fingerprint; empty input is valid.
func Of(b []byte) Fingerprint {
	sum := sha256.Sum256(b)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// OfReader hashes everything read from r.
func OfReader(r io.Reader) (Fingerprint, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// Parse validates a hex digest produced by Of.
func Parse(s string) (Fingerprint, error) {
	if len(s) != Size {
		return "", fmt.Errorf("fingerprint must be %d hex chars, got %d", Size, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("fingerprint is not hex: %w", err)
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string { return string(f) }

// Short is a log-friendly prefix.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}
