package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey names a cache entry. Keys are lowercase hex SHA-256 digests of
// the identifier: stable across runs and platforms, collision-resistant, and
// safe to use verbatim as filenames. The requested display size is
// deliberately not part of the key, so one entry exists per identifier no
// matter what sizes it was fetched at.
type CacheKey string

// DeriveKey maps an image identifier (typically a URL) to its CacheKey.
func DeriveKey(identifier string) CacheKey {
	sum := sha256.Sum256([]byte(identifier))
	return CacheKey(hex.EncodeToString(sum[:]))
}

func (k CacheKey) String() string { return string(k) }
