package ocfl

import (
	"context"
	"errors"
	"fmt"
	"path"

	ocflfs "github.com/ocflkit/ocfl/fs"
)

// ErrSpecDowngrade is returned by upgrade operations that would lower an
// object's or storage root's OCFL specification version.
var ErrSpecDowngrade = errors.New("an OCFL specification version can't be lowered")

// Upgrade rewrites the object's inventories and NAMASTE declaration so the
// object declares newSpec. The inventory in the head version directory is
// rewritten along with the root inventory so the two remain identical.
// Object content and prior version inventories are not modified.
func (o *Object) Upgrade(ctx context.Context, newSpec Spec) error {
	if !o.exists {
		return fmt.Errorf("%s: %w", o.path, ErrObjectNamasteNotExist)
	}
	writeFS, ok := o.fs.(WriteFS)
	if !ok {
		return errors.New("object's backend is not writable")
	}
	if _, err := getOCFL(newSpec); err != nil {
		return err
	}
	oldSpec := o.inventory.Spec()
	if newSpec == oldSpec {
		return nil
	}
	if newSpec.Cmp(oldSpec) < 0 {
		return fmt.Errorf("upgrading %s from v%s to v%s: %w", o.path, oldSpec, newSpec, ErrSpecDowngrade)
	}
	inv := o.inventory
	inv.Type = newSpec.InventoryType()
	headDir := path.Join(o.path, inv.Head.String())
	if err := writeInventory(ctx, writeFS, inv, o.path, headDir); err != nil {
		return fmt.Errorf("rewriting inventories: %w", err)
	}
	oldDecl := Namaste{Type: NamasteTypeObject, Version: oldSpec}
	if err := ocflfs.Remove(ctx, writeFS, path.Join(o.path, oldDecl.Name())); err != nil {
		return fmt.Errorf("removing old object declaration: %w", err)
	}
	newDecl := Namaste{Type: NamasteTypeObject, Version: newSpec}
	if err := WriteDeclaration(ctx, writeFS, o.path, newDecl); err != nil {
		return fmt.Errorf("writing new object declaration: %w", err)
	}
	o.declSpec = newSpec
	return nil
}

// Upgrade replaces the storage root's NAMASTE declaration so the root
// declares newSpec. Objects in the root are not modified: an object may
// declare an earlier OCFL specification than its storage root.
func (r *Root) Upgrade(ctx context.Context, newSpec Spec) error {
	writeFS, ok := r.fs.(WriteFS)
	if !ok {
		return errors.New("storage root backend is not writable")
	}
	if _, err := getOCFL(newSpec); err != nil {
		return err
	}
	if newSpec == r.spec {
		return nil
	}
	if newSpec.Cmp(r.spec) < 0 {
		return fmt.Errorf("upgrading storage root from v%s to v%s: %w", r.spec, newSpec, ErrSpecDowngrade)
	}
	oldDecl := Namaste{Type: NamasteTypeRoot, Version: r.spec}
	newDecl := Namaste{Type: NamasteTypeRoot, Version: newSpec}
	if err := WriteDeclaration(ctx, writeFS, r.dir, newDecl); err != nil {
		return err
	}
	if err := ocflfs.Remove(ctx, writeFS, path.Join(r.dir, oldDecl.Name())); err != nil {
		return fmt.Errorf("removing old root declaration: %w", err)
	}
	r.spec = newSpec
	return nil
}
