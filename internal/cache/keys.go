package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const sep = "|"

// Key joins normalized parts: trimmed, lowercased, inner whitespace
// collapsed. Equal inputs modulo case and spacing produce the same key.
func Key(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	return strings.Join(out, sep)
}

// HashedKey is Key hashed behind a readable prefix. Used for remote keys,
// where long free text would bloat the keyspace.
func HashedKey(prefix string, parts ...string) string {
	sum := sha1.Sum([]byte(Key(parts...)))
	return prefix + hex.EncodeToString(sum[:])
}
