package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	ocflfs "github.com/ocflkit/ocfl/fs"
	logical "github.com/ocflkit/ocfl/internal/logical-fs"
)

// Object represents an OCFL object, which may or may not exist yet, at a
// specific path in an [FS].
type Object struct {
	fs        ocflfs.FS
	path      string
	id        string // expected id, set by ObjectWithID before the object is read
	root      *Root  // storage root the object belongs to, if any
	mustExist bool

	exists    bool
	declSpec  Spec
	inventory *Inventory
}

// ObjectOption is used to configure the behavior of [NewObject].
type ObjectOption func(*Object)

// ObjectMustExist returns an option requiring the object to exist; without
// it, [NewObject] returns an *Object representing a location where a new
// object may be created.
func ObjectMustExist() ObjectOption {
	return func(o *Object) { o.mustExist = true }
}

// ObjectWithID returns an option that sets the expected id for an object that
// does not exist yet.
func ObjectWithID(id string) ObjectOption {
	return func(o *Object) { o.id = id }
}

// objectWithRoot associates obj with the [Root] it was opened from.
func objectWithRoot(r *Root) ObjectOption {
	return func(o *Object) { o.root = r }
}

// NewObject returns an *Object for the OCFL object at path dir in fsys. If no
// object exists at dir, the returned *Object can be used to create one with
// [Object.Commit], unless [ObjectMustExist] is used.
func NewObject(ctx context.Context, fsys ocflfs.FS, dir string, opts ...ObjectOption) (*Object, error) {
	obj := &Object{fs: fsys, path: dir}
	for _, opt := range opts {
		opt(obj)
	}
	entries, err := ocflfs.ReadDir(ctx, fsys, dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		if errors.Is(err, ocflfs.ErrOpUnsupported) {
			// the backend can't list directories (e.g., plain HTTP): find
			// the object through its inventory instead
			return newObjectReadInventory(ctx, obj)
		}
		return nil, fmt.Errorf("reading object directory: %w", err)
	}
	decl, err := FindNamaste(entries)
	switch {
	case err == nil:
		if !decl.IsObject() {
			return nil, fmt.Errorf("%s: %w", dir, ErrObjRootStructure)
		}
		if _, err := getOCFL(decl.Version); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		raw, err := ocflfs.ReadAll(ctx, fsys, path.Join(dir, inventoryFile))
		if err != nil {
			return nil, fmt.Errorf("reading object inventory: %w", err)
		}
		inv, err := NewInventory(raw)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", path.Join(dir, inventoryFile), err)
		}
		obj.exists = true
		obj.declSpec = decl.Version
		obj.inventory = inv
	case obj.mustExist:
		return nil, fmt.Errorf("%s: %w", dir, ErrObjectNamasteNotExist)
	}
	return obj, nil
}

// newObjectReadInventory initializes an *Object for a backend that can't
// list directories: the object's root inventory is read directly and its
// NAMASTE declaration is checked using the spec version the inventory
// declares.
func newObjectReadInventory(ctx context.Context, obj *Object) (*Object, error) {
	raw, err := ocflfs.ReadAll(ctx, obj.fs, path.Join(obj.path, inventoryFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !obj.mustExist {
			return obj, nil
		}
		return nil, fmt.Errorf("reading object inventory: %w", err)
	}
	inv, err := NewInventory(raw)
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", path.Join(obj.path, inventoryFile), err)
	}
	decl := Namaste{Type: NamasteTypeObject, Version: inv.Spec()}
	if err := ValidateNamaste(ctx, obj.fs, path.Join(obj.path, decl.Name())); err != nil {
		return nil, fmt.Errorf("%s: %w", obj.path, err)
	}
	obj.exists = true
	obj.declSpec = inv.Spec()
	obj.inventory = inv
	return obj, nil
}

// Exists returns true if the object exists: its root has a valid NAMASTE
// declaration and inventory.
func (o *Object) Exists() bool { return o.exists }

// FS returns the object's backing [ocflfs.FS].
func (o *Object) FS() ocflfs.FS { return o.fs }

// Path returns the object's path, relative to its FS.
func (o *Object) Path() string { return o.path }

// ID returns the object's id. For an object that doesn't exist yet, this is
// the id set with [ObjectWithID].
func (o *Object) ID() string {
	if o.inventory != nil {
		return o.inventory.ID
	}
	return o.id
}

// Inventory returns the object's inventory, or nil if the object doesn't
// exist.
func (o *Object) Inventory() *Inventory { return o.inventory }

// Root returns the storage root the object was opened from, or nil if the
// object wasn't opened through a [Root].
func (o *Object) Root() *Root { return o.root }

// OpenVersion returns an [fs.FS] for reading the logical content of object
// version v. v == 0 refers to the object's head version.
func (o *Object) OpenVersion(ctx context.Context, v int) (fs.FS, error) {
	if o.inventory == nil {
		return nil, fmt.Errorf("%s: %w", o.path, ErrObjectNamasteNotExist)
	}
	ver := o.inventory.Version(v)
	if ver == nil {
		return nil, fmt.Errorf("%s: version %d: %w", o.path, v, fs.ErrNotExist)
	}
	refs := make(map[string]string, ver.State.NumPaths())
	ver.State.EachPath(func(name, dig string) bool {
		if contentPaths := o.inventory.Manifest.DigestPaths(dig); len(contentPaths) > 0 {
			refs[name] = path.Join(o.path, contentPaths[0])
		}
		return true
	})
	return logical.NewLogicalFS(ctx, o.fs, refs, ver.Created), nil
}

// Update creates a new version of the object (or the object itself, if it
// doesn't exist yet) with the logical state in stage. The message and user
// are applied to the new version's metadata. It returns the object's new
// inventory.
func (o *Object) Update(ctx context.Context, stage *Stage, message string, user User) (*Inventory, error) {
	c := &Commit{
		ID:      o.ID(),
		Stage:   stage,
		Message: message,
		User:    user,
	}
	if err := o.Commit(ctx, c); err != nil {
		return nil, err
	}
	return o.inventory, nil
}

// Commit creates a new version of the object (or the object itself, if it
// doesn't exist yet) using the state and content described by c.
func (o *Object) Commit(ctx context.Context, c *Commit) error {
	if c == nil {
		return errors.New("commit is nil")
	}
	writeFS, ok := o.fs.(ocflfs.WriteFS)
	if !ok {
		return &CommitError{Err: errors.New("object's backend is not writable")}
	}
	if o.exists && c.ID != "" && c.ID != o.inventory.ID {
		err := fmt.Errorf("commit id %q does not match existing object id %q", c.ID, o.inventory.ID)
		return &CommitError{Err: err}
	}
	if !o.exists {
		if c.ID == "" {
			c.ID = o.id
		}
		if c.ID == "" {
			return &CommitError{Err: errors.New("commit is missing the new object's id")}
		}
	}
	prev := o.inventory
	newInv, err := nextInventory(prev, c)
	if err != nil {
		return &CommitError{Err: fmt.Errorf("building new inventory: %w", err)}
	}
	if c.NewHEAD > 0 && newInv.Head.Num() != c.NewHEAD {
		err := fmt.Errorf("commit would create version %s, not the expected v%d", newInv.Head, c.NewHEAD)
		return &CommitError{Err: err}
	}
	newContent, err := newContentMap(newInv)
	if err != nil {
		return &CommitError{Err: fmt.Errorf("resolving new content: %w", err)}
	}
	plan := &commitPlan{
		FS:            writeFS,
		Path:          o.path,
		NewInventory:  newInv,
		PrevInventoy:  prev,
		NewContent:    newContent,
		ContentSource: c.Stage.ContentSource,
	}
	if err := plan.Run(ctx, c.Logger); err != nil {
		return err
	}
	o.exists = true
	o.declSpec = newInv.Spec()
	o.inventory = newInv
	return nil
}
