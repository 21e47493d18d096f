// Package sha256 provides SHA-256 fingerprinting utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/crickstats/cricsync/internal/scrape"
)

// Hasher implements scrape.Hasher using SHA-256 over canonical JSON.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint serializes the payload to JSON and returns a hex digest.
// Struct field order fixes the JSON key order, so equal payloads always
// produce equal fingerprints.
func (h *Hasher) Fingerprint(p scrape.Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return h.Hash(data), nil
}

// Hash hashes raw bytes and returns a hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
