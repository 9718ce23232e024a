package ocfl_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/fs/local"
)

func testStateObject(t *testing.T) *ocfl.Object {
	t.Helper()
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	be.NilErr(t, err)
	obj, err := ocfl.NewObject(ctx, fsys, "obj", ocfl.ObjectWithID("urn:test:state"))
	be.NilErr(t, err)
	v1, err := ocfl.StageBytes(map[string][]byte{
		"readme.txt":     []byte("readme"),
		"src/main.c":     []byte("int main() {}\n"),
		"src/lib/util.c": []byte("// utils\n"),
	}, digest.SHA256)
	be.NilErr(t, err)
	_, err = obj.Update(ctx, v1, "first", ocfl.User{Name: "Test"})
	be.NilErr(t, err)
	v2, err := ocfl.StageBytes(map[string][]byte{
		"readme.txt":     []byte("readme v2"),
		"src/main.c":     []byte("int main() {}\n"),
		"src/lib/util.c": []byte("// utils\n"),
	}, digest.SHA256)
	be.NilErr(t, err)
	_, err = obj.Update(ctx, v2, "second", ocfl.User{Name: "Test"})
	be.NilErr(t, err)
	return obj
}

func TestListLogicalPaths(t *testing.T) {
	obj := testStateObject(t)

	t.Run("all paths", func(t *testing.T) {
		var paths []string
		lastUpdated := map[string]int{}
		for info, err := range obj.ListLogicalPaths(0, "", false) {
			be.NilErr(t, err)
			be.Nonzero(t, info.Digest)
			be.Nonzero(t, info.ContentPath)
			be.False(t, info.LastUpdatedTime.IsZero())
			paths = append(paths, info.LogicalPath)
			lastUpdated[info.LogicalPath] = info.LastUpdatedVersion.Num()
		}
		sort.Strings(paths)
		be.DeepEqual(t, []string{"readme.txt", "src/lib/util.c", "src/main.c"}, paths)
		// readme.txt changed in v2; the src files haven't changed since v1
		be.Equal(t, 2, lastUpdated["readme.txt"])
		be.Equal(t, 1, lastUpdated["src/main.c"])
		be.Equal(t, 1, lastUpdated["src/lib/util.c"])
	})

	t.Run("directory mode", func(t *testing.T) {
		var names []string
		for info, err := range obj.ListLogicalPaths(0, ".", true) {
			be.NilErr(t, err)
			name := info.LogicalPath
			if info.IsDir {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		be.DeepEqual(t, []string{"readme.txt", "src/"}, names)
	})

	t.Run("directory mode subdir", func(t *testing.T) {
		var names []string
		for info, err := range obj.ListLogicalPaths(0, "src", true) {
			be.NilErr(t, err)
			name := info.LogicalPath
			if info.IsDir {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		be.DeepEqual(t, []string{"src/lib/", "src/main.c"}, names)
	})

	t.Run("prior version", func(t *testing.T) {
		for info, err := range obj.ListLogicalPaths(1, "readme.txt", false) {
			be.NilErr(t, err)
			be.Equal(t, 1, info.LastUpdatedVersion.Num())
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		var lastErr error
		for _, err := range obj.ListLogicalPaths(0, "nothing-here", true) {
			lastErr = err
		}
		be.True(t, lastErr != nil)
	})
}

func TestObjectStateFS(t *testing.T) {
	ctx := context.Background()
	obj := testStateObject(t)
	state, err := obj.ObjectState(0)
	be.NilErr(t, err)
	f, err := state.OpenFile(ctx, "src/main.c")
	be.NilErr(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	be.NilErr(t, err)
	be.Equal(t, "int main() {}\n", string(content))

	entries, err := state.ReadDir(ctx, ".")
	be.NilErr(t, err)
	be.Equal(t, 2, len(entries))

	_, err = state.OpenFile(ctx, "missing")
	be.True(t, err != nil)
	var pathErr *fs.PathError
	be.True(t, errors.As(err, &pathErr))
	be.True(t, errors.Is(err, fs.ErrNotExist))
}
