package digest

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Equal reports whether a and b represent the same digest value. Comparison
// is case-insensitive. For well-formed hex strings the comparison is
// constant-time over the decoded bytes.
func Equal(a, b string) bool {
	rawA, errA := hex.DecodeString(strings.ToLower(a))
	rawB, errB := hex.DecodeString(strings.ToLower(b))
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return subtle.ConstantTimeCompare(rawA, rawB) == 1
}
