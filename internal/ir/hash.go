package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainConfig separates configuration hashes from any other digest the
// tool may compute.
const DomainConfig = "lockstep/config/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash returns a stable digest of a configuration payload. Replay
// compares the recorded hash with the live one to warn about runs that
// were recorded under different settings.
func ConfigHash(payload map[string]any) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("config hash: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}
