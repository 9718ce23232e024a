package staging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/extension"
	"github.com/ocflkit/ocfl/fs/local"
	"github.com/ocflkit/ocfl/staging"
)

func testRoot(t *testing.T) *ocfl.Root {
	t.Helper()
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	be.NilErr(t, err)
	root, err := ocfl.NewRoot(ctx, fsys, ".", ocfl.InitRoot(ocfl.Spec1_1, "test root", extension.Ext0002()))
	be.NilErr(t, err)
	return root
}

func testStore(t *testing.T, root *ocfl.Root) *staging.Store {
	t.Helper()
	store, err := staging.NewStore(root, "")
	be.NilErr(t, err)
	return store
}

func TestStageNewCommit(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)

	// stage a new object with zero-padded version numbers
	staged, err := store.StageNew(ctx, "urn:test:a", digest.SHA256.ID(), "content", 4)
	be.NilErr(t, err)
	defer staged.Close()
	be.Equal(t, "v0001", staged.Version().String())

	dig, err := staged.WriteFile(ctx, "greet.txt", strings.NewReader("hi\n"))
	be.NilErr(t, err)
	be.Nonzero(t, dig)
	be.NilErr(t, staged.Commit(ctx, "first version", ocfl.User{Name: "Test", Address: "mailto:t@example.org"}))
	be.NilErr(t, staged.Close())

	// the object exists at the layout-computed path with the staged content
	obj, err := root.NewObject(ctx, "urn:test:a", ocfl.ObjectMustExist())
	be.NilErr(t, err)
	inv := obj.Inventory()
	be.Equal(t, "v0001", inv.Head.String())
	be.Equal(t, dig, inv.Versions[inv.Head].State.GetDigest("greet.txt"))
	be.DeepEqual(t, []string{"v0001/content/greet.txt"}, inv.Manifest[dig])
	_, err = ocfl.StatFile(ctx, root.FS(), "urn:test:a/v0001/content/greet.txt")
	be.NilErr(t, err)

	// the staged version is gone from the staging area
	be.False(t, store.HasStaged("urn:test:a"))

	// the object validates
	be.NilErr(t, root.ValidateObject(ctx, "urn:test:a").Err())
}

func TestStageDedup(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:dedup"

	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	_, err = staged.WriteFile(ctx, "greet.txt", strings.NewReader("hi\n"))
	be.NilErr(t, err)
	be.NilErr(t, staged.Commit(ctx, "v1", ocfl.User{Name: "Test"}))
	be.NilErr(t, staged.Close())

	// stage the same bytes under a second logical path
	staged, err = store.Stage(ctx, id)
	be.NilErr(t, err)
	defer staged.Close()
	be.Equal(t, "v2", staged.Version().String())
	dig, err := staged.WriteFile(ctx, "greet2.txt", strings.NewReader("hi\n"))
	be.NilErr(t, err)
	// nothing is written to the staging area for duplicate content
	err = filepath.WalkDir(store.Path(), func(name string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() && entry.Name() == "v2" {
			t.Errorf("staging area has a content directory for duplicate content: %s", name)
		}
		return nil
	})
	be.NilErr(t, err)
	be.NilErr(t, staged.Commit(ctx, "v2", ocfl.User{Name: "Test"}))

	obj, err := root.NewObject(ctx, id, ocfl.ObjectMustExist())
	be.NilErr(t, err)
	inv := obj.Inventory()
	// single manifest entry with one content path; v2 state has both paths
	be.Equal(t, 1, len(inv.Manifest))
	be.DeepEqual(t, []string{"v1/content/greet.txt"}, inv.Manifest[dig])
	be.DeepEqual(t, []string{"greet.txt", "greet2.txt"}, inv.Versions[inv.Head].State[dig])
}

func TestStageRemove(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:rm"

	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	_, err = staged.WriteFile(ctx, "greet.txt", strings.NewReader("hi\n"))
	be.NilErr(t, err)
	_, err = staged.WriteFile(ctx, "greet2.txt", strings.NewReader("hi\n"))
	be.NilErr(t, err)
	be.NilErr(t, staged.Commit(ctx, "v1", ocfl.User{Name: "Test"}))
	be.NilErr(t, staged.Close())

	// remove a path that exists in a committed version: only the state
	// reference is dropped; content remains in its original version
	staged, err = store.Stage(ctx, id)
	be.NilErr(t, err)
	defer staged.Close()
	be.NilErr(t, staged.Remove("greet.txt", false))
	be.NilErr(t, staged.Commit(ctx, "v2", ocfl.User{Name: "Test"}))

	obj, err := root.NewObject(ctx, id, ocfl.ObjectMustExist())
	be.NilErr(t, err)
	inv := obj.Inventory()
	state := inv.Versions[inv.Head].State
	be.Equal(t, "", state.GetDigest("greet.txt"))
	be.Nonzero(t, state.GetDigest("greet2.txt"))
	_, err = ocfl.StatFile(ctx, root.FS(), id+"/v1/content/greet.txt")
	be.NilErr(t, err)
	be.NilErr(t, root.ValidateObject(ctx, id).Err())
}

func TestStageReset(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:reset"

	// reset on a just-staged object with no prior version leaves no files
	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	defer staged.Close()
	be.NilErr(t, staged.Save())
	_, err = staged.WriteFile(ctx, "a.txt", strings.NewReader("aaa\n"))
	be.NilErr(t, err)
	be.NilErr(t, staged.Reset())
	be.False(t, store.HasStaged(id))
	entries, err := os.ReadDir(store.Path())
	be.NilErr(t, err)
	for _, e := range entries {
		if e.Name() == "rocfl-locks" {
			continue
		}
		t.Errorf("unexpected entry in staging area after reset: %s", e.Name())
	}
}

func TestStageResetPaths(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:reset-paths"

	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	_, err = staged.WriteFile(ctx, "keep.txt", strings.NewReader("keep\n"))
	be.NilErr(t, err)
	be.NilErr(t, staged.Commit(ctx, "v1", ocfl.User{Name: "Test"}))
	be.NilErr(t, staged.Close())

	staged, err = store.Stage(ctx, id)
	be.NilErr(t, err)
	defer staged.Close()
	_, err = staged.WriteFile(ctx, "keep.txt", strings.NewReader("changed\n"))
	be.NilErr(t, err)
	_, err = staged.WriteFile(ctx, "new.txt", strings.NewReader("new\n"))
	be.NilErr(t, err)
	// restore only keep.txt to its committed value
	be.NilErr(t, staged.Reset("keep.txt"))
	state := staged.State()
	be.Equal(t, staged.BaseState().GetDigest("keep.txt"), state.GetDigest("keep.txt"))
	be.Nonzero(t, state.GetDigest("new.txt"))
}

func TestStageRename(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:mv"

	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	defer staged.Close()
	_, err = staged.WriteFile(ctx, "dir/a.txt", strings.NewReader("a\n"))
	be.NilErr(t, err)
	be.NilErr(t, staged.Rename("dir/a.txt", "b.txt"))
	be.Equal(t, "", staged.State().GetDigest("dir/a.txt"))
	be.Nonzero(t, staged.State().GetDigest("b.txt"))

	be.NilErr(t, staged.CopyPath("b.txt", "c.txt"))
	be.Equal(t, staged.State().GetDigest("b.txt"), staged.State().GetDigest("c.txt"))
}

func TestStageAddDir(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:adddir"

	srcDir := t.TempDir()
	be.NilErr(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0777))
	be.NilErr(t, os.WriteFile(filepath.Join(srcDir, "one.txt"), []byte("one\n"), 0666))
	be.NilErr(t, os.WriteFile(filepath.Join(srcDir, "sub", "two.txt"), []byte("two\n"), 0666))
	be.NilErr(t, os.WriteFile(filepath.Join(srcDir, "sub", "dup.txt"), []byte("one\n"), 0666))

	staged, err := store.StageNew(ctx, id, digest.SHA512.ID(), "", 0)
	be.NilErr(t, err)
	defer staged.Close()
	be.NilErr(t, staged.AddDir(ctx, srcDir, ".", 2))
	state := staged.State()
	be.Nonzero(t, state.GetDigest("one.txt"))
	be.Nonzero(t, state.GetDigest("sub/two.txt"))
	// duplicate content shares a digest and a single manifest entry
	be.Equal(t, state.GetDigest("one.txt"), state.GetDigest("sub/dup.txt"))
	be.Equal(t, 2, len(staged.Inventory().Manifest))
	be.NilErr(t, staged.Commit(ctx, "v1", ocfl.User{Name: "Test"}))
	be.NilErr(t, root.ValidateObject(ctx, id).Err())
}

func TestStageLock(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:lock"

	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	// a second stage for the same object fails while the lock is held
	_, err = store.Stage(ctx, id)
	be.True(t, errors.Is(err, staging.ErrLockHeld))
	be.NilErr(t, staged.Close())
}

func TestStagePurge(t *testing.T) {
	ctx := context.Background()
	root := testRoot(t)
	store := testStore(t, root)
	id := "urn:test:purge"

	staged, err := store.StageNew(ctx, id, digest.SHA256.ID(), "", 0)
	be.NilErr(t, err)
	_, err = staged.WriteFile(ctx, "f.txt", strings.NewReader("f\n"))
	be.NilErr(t, err)
	be.NilErr(t, staged.Commit(ctx, "v1", ocfl.User{Name: "Test"}))
	be.NilErr(t, staged.Close())

	// declined confirmation leaves the object alone
	be.NilErr(t, store.Purge(ctx, id, func(string) bool { return false }))
	_, err = root.NewObject(ctx, id, ocfl.ObjectMustExist())
	be.NilErr(t, err)

	be.NilErr(t, store.Purge(ctx, id, func(string) bool { return true }))
	_, err = root.NewObject(ctx, id, ocfl.ObjectMustExist())
	be.True(t, err != nil)
}
