package diff_test

import (
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl/cmd/ocfl/internal/diff"
)

func TestDiff(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		result, err := diff.Diff(nil, nil)
		be.NilErr(t, err)
		be.True(t, result.Empty())
	})
	t.Run("added", func(t *testing.T) {
		a := map[string]string{"greet.txt": "abc"}
		b := map[string]string{"greet.txt": "abc", "greet2.txt": "abc"}
		result, err := diff.Diff(a, b)
		be.NilErr(t, err)
		be.DeepEqual(t, []string{"greet2.txt"}, result.Added)
		be.Zero(t, len(result.Removed))
		be.Zero(t, len(result.Modified))
	})
	t.Run("removed", func(t *testing.T) {
		a := map[string]string{"a.txt": "abc", "b.txt": "def"}
		b := map[string]string{"b.txt": "def"}
		result, err := diff.Diff(a, b)
		be.NilErr(t, err)
		be.DeepEqual(t, []string{"a.txt"}, result.Removed)
	})
	t.Run("modified", func(t *testing.T) {
		a := map[string]string{"a.txt": "abc"}
		b := map[string]string{"a.txt": "def"}
		result, err := diff.Diff(a, b)
		be.NilErr(t, err)
		be.DeepEqual(t, []string{"a.txt"}, result.Modified)
	})
	t.Run("rename is a removal and an addition", func(t *testing.T) {
		// same digest at a new logical path is not collapsed into a rename
		a := map[string]string{"a.txt": "abc"}
		b := map[string]string{"b.txt": "abc"}
		result, err := diff.Diff(a, b)
		be.NilErr(t, err)
		be.DeepEqual(t, []string{"b.txt"}, result.Added)
		be.DeepEqual(t, []string{"a.txt"}, result.Removed)
		be.Zero(t, len(result.Modified))
		be.Equal(t, "+ b.txt\n- a.txt\n", result.String())
	})
}
