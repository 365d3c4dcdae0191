package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashParams returns the SHA-256 hex digest of the canonical JSON encoding of
// the parameters. encoding/json emits map keys in sorted order, so two
// parameter objects with equal content hash identically regardless of the
// order they arrived in.
func HashParams(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Params come from decoded JSON bodies, which always re-marshal.
		data = []byte("unhashable")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
