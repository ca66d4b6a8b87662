package ria

import (
	"crypto/md5"
	"encoding/hex"
)

// DirhashFunc computes the two-level dirhash directory prefix for a key
// ("<hA>/<hB>"). git-annex's dirhash-lower/dirhash-mixed semantics are an
// external annex-helper contract, delegated and not respecified here
// (spec.md §9's "Open questions"); DirhashFunc is the seam a byte-exact
// implementation of either scheme can be plugged into without touching
// handler logic.
type DirhashFunc func(key string) (hA, hB string)

// DirhashLower is the default DirhashFunc: the key's MD5 hex digest,
// sliced into two two-character directory components. It reproduces the
// documented shape of git-annex's lowercase-hex dirhash scheme, not the
// exact bit-packed alphabet of dirhash-mixed (reserved for filesystems
// that need case-insensitive-safe directory names).
func DirhashLower(key string) (hA, hB string) {
	sum := md5.Sum([]byte(key))
	digest := hex.EncodeToString(sum[:])
	return digest[0:2], digest[2:4]
}
