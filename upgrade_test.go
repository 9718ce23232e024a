package ocfl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/carlmjohnson/be"
	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/extension"
	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/fs/local"
)

func TestUpgrade(t *testing.T) {
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	be.NilErr(t, err)
	root, err := ocfl.NewRoot(ctx, fsys, "root", ocfl.InitRoot(ocfl.Spec1_0, "upgradable", extension.Ext0002()))
	be.NilErr(t, err)
	be.Equal(t, ocfl.Spec1_0, root.Spec())

	obj, err := root.NewObject(ctx, "urn:test:upgrade")
	be.NilErr(t, err)
	stage, err := ocfl.StageBytes(map[string][]byte{"f.txt": []byte("hello")}, digest.SHA512)
	be.NilErr(t, err)
	_, err = obj.Update(ctx, stage, "first", ocfl.User{Name: "Test", Address: "mailto:t@example.org"})
	be.NilErr(t, err)

	t.Run("object upgrade", func(t *testing.T) {
		obj, err := root.NewObject(ctx, "urn:test:upgrade", ocfl.ObjectMustExist())
		be.NilErr(t, err)
		be.NilErr(t, obj.Upgrade(ctx, ocfl.Spec1_1))
		// re-open: the object declares 1.1 and remains valid
		again, err := root.NewObject(ctx, "urn:test:upgrade", ocfl.ObjectMustExist())
		be.NilErr(t, err)
		be.Equal(t, ocfl.Spec1_1, again.Inventory().Spec())
		be.NilErr(t, ocfl.ValidateObject(ctx, again.FS(), again.Path()).Err())
	})

	t.Run("object downgrade is an error", func(t *testing.T) {
		obj, err := root.NewObject(ctx, "urn:test:upgrade", ocfl.ObjectMustExist())
		be.NilErr(t, err)
		err = obj.Upgrade(ctx, ocfl.Spec1_0)
		be.True(t, errors.Is(err, ocfl.ErrSpecDowngrade))
	})

	t.Run("root upgrade", func(t *testing.T) {
		be.NilErr(t, root.Upgrade(ctx, ocfl.Spec1_1))
		again, err := ocfl.NewRoot(ctx, fsys, "root")
		be.NilErr(t, err)
		be.Equal(t, ocfl.Spec1_1, again.Spec())
		// an object declaring 1.1 in a 1.1 root is fine
		be.NilErr(t, again.Validate(ctx).Err())
	})
}

func TestInventoryRoundTrip(t *testing.T) {
	// re-encoding a decoded inventory yields the same canonical bytes
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	be.NilErr(t, err)
	obj, err := ocfl.NewObject(ctx, fsys, "obj", ocfl.ObjectWithID("urn:test:roundtrip"))
	be.NilErr(t, err)
	stage, err := ocfl.StageBytes(map[string][]byte{
		"z.txt":     []byte("zzz"),
		"a/b.txt":   []byte("abab"),
		"a/c.txt":   []byte("zzz"),
		"empty.txt": []byte(""),
	}, digest.SHA512)
	be.NilErr(t, err)
	inv, err := obj.Update(ctx, stage, "first", ocfl.User{Name: "Test"})
	be.NilErr(t, err)

	raw, err := ocflfs.ReadAll(ctx, fsys, "obj/inventory.json")
	be.NilErr(t, err)
	reparsed, err := ocfl.NewInventory(raw)
	be.NilErr(t, err)
	be.Equal(t, inv.ID, reparsed.ID)
	be.Equal(t, inv.Head, reparsed.Head)
	be.Equal(t, inv.Digest, reparsed.Digest)
	be.DeepEqual(t, inv.Manifest, reparsed.Manifest)
	be.DeepEqual(t, inv.Versions[inv.Head].State, reparsed.Versions[reparsed.Head].State)
}
