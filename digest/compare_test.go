package digest_test

import (
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl/digest"
)

func TestEqual(t *testing.T) {
	be.True(t, digest.Equal("abc123", "ABC123"))
	be.True(t, digest.Equal("", ""))
	be.False(t, digest.Equal("abc123", "abc124"))
	be.False(t, digest.Equal("abc123", "abc1234"))
	// non-hex values fall back to case-insensitive string comparison
	be.True(t, digest.Equal("not-hex", "NOT-HEX"))
	be.False(t, digest.Equal("not-hex", "not-hexx"))
}
