package ocfl_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/digest"
	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/internal/testutil"
)

var objectFixturePath = filepath.Join(`testdata`, `object-fixtures`)

func TestValidateObject(t *testing.T) {
	ctx := context.Background()

	t.Run("fixture objects are valid", func(t *testing.T) {
		fsys := ocflfs.DirFS(objectFixturePath)
		for _, dir := range []string{
			"1.0/good-objects/spec-ex-full",
			"1.1/good-objects/spec-ex-full",
			"1.1/good-objects/updates_all_actions",
		} {
			result := ocfl.ValidateObject(ctx, fsys, dir)
			be.NilErr(t, result.Err())
			be.Nonzero(t, result.Object())
		}
	})

	t.Run("missing namaste", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		rm(t, fsys, "spec-ex-full/0=ocfl_object_1.0")
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full")
		be.True(t, result.Err() != nil)
		testutil.ErrorsIncludeOCFLCode(t, "E003", result.Fatal()...)
	})

	t.Run("bad sidecar digest", func(t *testing.T) {
		// an inventory whose sidecar records the wrong digest is E060 and
		// nothing else
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		badSum := "cafe" + mustReadString(t, fsys, "spec-ex-full/inventory.json.sha512")[4:]
		write(t, fsys, "spec-ex-full/inventory.json.sha512", badSum)
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full")
		be.True(t, result.Err() != nil)
		testutil.ErrorsIncludeOCFLCode(t, "E060", result.Fatal()...)
		be.Equal(t, 1, len(result.Fatal()))
	})

	t.Run("content digest mismatch", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		write(t, fsys, "spec-ex-full/v1/content/foo/bar.xml", "<bar>tampered</bar>\n")
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full")
		be.True(t, result.Err() != nil)
		testutil.ErrorsIncludeOCFLCode(t, "E092", result.Fatal()...)
	})

	t.Run("content digests skipped", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		write(t, fsys, "spec-ex-full/v1/content/foo/bar.xml", "<bar>tampered</bar>\n")
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full", ocfl.ValidationSkipDigest())
		be.NilErr(t, result.Err())
	})

	t.Run("extra file in object root", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		write(t, fsys, "spec-ex-full/stray.txt", "should not be here\n")
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full")
		testutil.ErrorsIncludeOCFLCode(t, "E001", result.Fatal()...)
	})

	t.Run("unreferenced content file", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		write(t, fsys, "spec-ex-full/v1/content/unreferenced.txt", "not in the manifest\n")
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full")
		testutil.ErrorsIncludeOCFLCode(t, "E023", result.Fatal()...)
	})

	t.Run("ignored codes are suppressed", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		write(t, fsys, "spec-ex-full/stray.txt", "should not be here\n")
		result := ocfl.ValidateObject(ctx, fsys, "spec-ex-full", ocfl.ValidationIgnoreCodes("E001"))
		be.NilErr(t, result.Err())
	})

	t.Run("callback receives issues", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t, filepath.Join(objectFixturePath, "1.0", "good-objects", "spec-ex-full"))
		write(t, fsys, "spec-ex-full/stray.txt", "should not be here\n")
		var count int
		ocfl.ValidateObject(ctx, fsys, "spec-ex-full", ocfl.ValidationCallback(func(isWarn bool, err error) bool {
			count++
			return true
		}))
		be.True(t, count > 0)
	})

	t.Run("created object is valid", func(t *testing.T) {
		fsys := testutil.TmpLocalFS(t)
		obj, err := ocfl.NewObject(ctx, fsys, "obj", ocfl.ObjectWithID("urn:example:new"))
		be.NilErr(t, err)
		stage, err := ocfl.StageBytes(map[string][]byte{
			"a.txt":        []byte("content a"),
			"dir/b.txt":    []byte("content b"),
			"dir/same.txt": []byte("content a"),
		}, digest.SHA256)
		be.NilErr(t, err)
		_, err = obj.Update(ctx, stage, "first", ocfl.User{Name: "Test", Address: "mailto:t@example.org"})
		be.NilErr(t, err)
		result := ocfl.ValidateObject(ctx, fsys, "obj")
		be.NilErr(t, result.Err())
	})
}

func TestRootValidate(t *testing.T) {
	ctx := context.Background()
	t.Run("good store", func(t *testing.T) {
		fsys := ocflfs.DirFS(storeFixturePath)
		root, err := ocfl.NewRoot(ctx, fsys, "1.0/good-stores/simple-root")
		be.NilErr(t, err)
		result := root.Validate(ctx)
		be.NilErr(t, result.Err())
		be.Equal(t, 3, result.NumObjects())
	})
	t.Run("store with object errors", func(t *testing.T) {
		fsys := ocflfs.DirFS(storeFixturePath)
		root, err := ocfl.NewRoot(ctx, fsys, "1.0/bad-stores/multi_level_errors")
		be.NilErr(t, err)
		result := root.Validate(ctx)
		be.True(t, result.Err() != nil)
		// object errors don't hide results for the rest of the root
		be.Equal(t, 3, result.NumObjects())
		be.True(t, result.ObjectErrors() != nil)
		be.NilErr(t, result.Validation.Err())
	})
}

func rm(t *testing.T, fsys ocfl.WriteFS, name string) {
	t.Helper()
	be.NilErr(t, ocflfs.Remove(context.Background(), fsys, name))
}

func write(t *testing.T, fsys ocfl.WriteFS, name string, content string) {
	t.Helper()
	_, err := ocflfs.Write(context.Background(), fsys, name, strings.NewReader(content))
	be.NilErr(t, err)
}

func mustReadString(t *testing.T, fsys ocfl.FS, name string) string {
	t.Helper()
	b, err := ocflfs.ReadAll(context.Background(), fsys, name)
	be.NilErr(t, err)
	return string(b)
}
