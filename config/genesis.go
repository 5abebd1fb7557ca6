package config

import "strings"

// ZeroHash is the canonical all-zeros hash used throughout the betting
// engine to mean both "no block" (finalized_hashes[h] when a height
// finalizes to empty) and "no previous bet" (a guardian's prevhash before
// its first bet). It is a valid hash value, distinct from a hole/nil slot.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// IsZeroHash reports whether h is the canonical zero hash.
func IsZeroHash(h string) bool {
	return len(h) == len(ZeroHash) && strings.Count(h, "0") == len(h)
}
