package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Checksum returns the BLAKE3 digest of entries, hex encoded.
// Equal entry lists in the same order always produce the same checksum;
// map keys in Fields are serialized sorted, so field order does not matter.
// It fails when a field value has no JSON form (NaN, channels, functions).
func Checksum(entries []Entry) (string, error) {
	h := blake3.New()
	enc := json.NewEncoder(h)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", fmt.Errorf("checksum entry %q: %w", e.ID, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
