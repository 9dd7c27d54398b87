package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// FilterHashLen keeps cache keys short; 16 hex chars of a sha256 digest give
// 64 bits of discriminator, plenty for the tiny filter space.
const FilterHashLen = 16

// FilterHash builds a short deterministic token from a filter struct for use
// inside cache keys. The whole marshalled value feeds the digest, so any
// field change changes the token. Pass a struct (not a map) so field order
// is stable.
func FilterHash(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "nofilter"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:FilterHashLen]
}
