// Package diff compares two versions of an object's logical state.
package diff

import (
	"fmt"
	"sort"
	"strings"
)

// Result describes the changes between two version states by logical path.
// Renames (same digest at a different logical path) are presented as one
// removal and one addition.
type Result struct {
	Added    []string // logical paths only in the second state
	Removed  []string // logical paths only in the first state
	Modified []string // logical paths in both states with different digests
}

// Diff compares two mappings of logical paths to digests, from the first
// state (aPaths) to the second (bPaths).
func Diff(aPaths, bPaths map[string]string) (result Result, err error) {
	for aPath, aDigest := range aPaths {
		bDigest, inB := bPaths[aPath]
		switch {
		case !inB:
			// aPath is not in bPaths: it was removed
			result.Removed = append(result.Removed, aPath)
		case bDigest != aDigest:
			// modified
			result.Modified = append(result.Modified, aPath)
		}
	}
	for bPath := range bPaths {
		if _, inA := aPaths[bPath]; !inA {
			// bPath is not in aPaths: it's new
			result.Added = append(result.Added, bPath)
		}
	}
	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Modified)
	return
}

func (r Result) String() string {
	b := &strings.Builder{}
	for _, n := range r.Added {
		fmt.Fprintln(b, "+", n)
	}
	for _, n := range r.Removed {
		fmt.Fprintln(b, "-", n)
	}
	for _, n := range r.Modified {
		fmt.Fprintln(b, "~", n)
	}
	return b.String()
}

func (diff Result) Empty() bool {
	return len(diff.Added) == 0 &&
		len(diff.Removed) == 0 &&
		len(diff.Modified) == 0
}
