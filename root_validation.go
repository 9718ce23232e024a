package ocfl

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/ocflkit/ocfl/extension"
	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/internal/walkdirs"
	"github.com/ocflkit/ocfl/validation"
	"github.com/ocflkit/ocfl/validation/code"
)

// RootValidation accumulates the results of validating an OCFL storage root
// with [Root.Validate]. Structural problems with the root itself are recorded
// in the embedded [Validation]; validation failures for individual objects
// are aggregated separately so that one bad object doesn't mask the results
// for the rest of the root.
type RootValidation struct {
	Validation

	objectErrs *multierror.Error
	numObjects int
}

// NumObjects returns the number of objects checked during validation.
func (v *RootValidation) NumObjects() int { return v.numObjects }

// ObjectErrors returns an aggregate of fatal validation errors from objects
// in the root, or nil if all objects validated cleanly.
func (v *RootValidation) ObjectErrors() error {
	return v.objectErrs.ErrorOrNil()
}

// Err returns an error if validation found fatal errors in the root's
// structure or in any of its objects.
func (v *RootValidation) Err() error {
	if err := v.Validation.Err(); err != nil {
		return err
	}
	return v.objectErrs.ErrorOrNil()
}

// Validate validates the storage root: its conformance declaration, layout
// configuration, directory hierarchy, and every object in it. Object
// validation failures are accumulated; validation continues with remaining
// objects. The opts are applied to each object validation.
func (r *Root) Validate(ctx context.Context, opts ...ObjectValidationOption) *RootValidation {
	v := &RootValidation{Validation: Validation{Result: &validation.Result{}}}
	specStr := string(r.spec)
	entries, err := ocflfs.ReadDir(ctx, r.fs, r.dir)
	if err != nil {
		v.AddFatal(err)
		return v
	}
	decl, err := FindNamaste(entries)
	switch {
	case err != nil:
		v.AddFatal(ec(fmt.Errorf("root declaration: %w", err), code.E069(specStr)))
		return v
	case decl.Type != NamasteTypeRoot:
		v.AddFatal(ec(fmt.Errorf("%q is not a storage root declaration", decl.Name()), code.E069(specStr)))
		return v
	}
	if err := ValidateNamaste(ctx, r.fs, path.Join(r.dir, decl.Name())); err != nil {
		v.AddFatal(ec(err, code.E080(specStr)))
	}
	r.validateRootFiles(entries, specStr, v)
	r.validateLayoutConfig(specStr, v)
	skip := func(dir string) bool {
		// the extensions directory is not part of the object hierarchy
		return dir == path.Join(r.dir, extensionsDir)
	}
	walkFn := func(dir string, entries []fs.DirEntry, err error) error {
		if err != nil {
			v.AddFatal(err)
			return nil
		}
		if dir == r.dir {
			return nil
		}
		if objDecl, err := FindNamaste(entries); err == nil && objDecl.IsObject() {
			r.validateRootObject(ctx, dir, objDecl, specStr, v, opts...)
			return walkdirs.ErrSkipDirs
		}
		if len(entries) == 0 {
			v.AddFatal(ec(fmt.Errorf("empty directory: %s", dir), code.E073(specStr)))
			return nil
		}
		for _, e := range entries {
			if !e.IsDir() {
				err := fmt.Errorf("file outside of an object root: %s", path.Join(dir, e.Name()))
				v.AddFatal(ec(err, code.E072(specStr)))
			}
		}
		return nil
	}
	if err := walkdirs.WalkDirs(ctx, rootDirFS{r.fs}, r.dir, skip, walkFn, 1); err != nil {
		v.AddFatal(err)
	}
	return v
}

// validateRootFiles checks that the root directory includes only files
// allowed by the OCFL specification.
func (r *Root) validateRootFiles(entries []fs.DirEntry, specStr string, v *RootValidation) {
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == layoutConfigFile:
		case strings.HasPrefix(name, "0="):
		case name == "ocfl_"+specStr+".txt":
		default:
			err := fmt.Errorf("unexpected file in storage root: %s", name)
			v.AddFatal(ec(err, code.E072(specStr)))
		}
	}
}

// validateLayoutConfig checks the contents of ocfl_layout.json, if the root
// has one.
func (r *Root) validateLayoutConfig(specStr string, v *RootValidation) {
	if r.layoutConfig == nil {
		return
	}
	if r.layoutConfig[extensionKey] == "" || r.layoutConfig[descriptionKey] == "" {
		err := fmt.Errorf("%s: missing required key(s): %q, %q", layoutConfigFile, extensionKey, descriptionKey)
		v.AddWarn(ec(err, code.E070(specStr)))
	}
	if name := r.layoutConfig[extensionKey]; name != "" && !extension.IsRegistered(name) {
		err := fmt.Errorf("%s: extension is not registered: %q", layoutConfigFile, name)
		v.AddWarn(ec(err, code.E071(specStr)))
	}
}

// validateRootObject validates a single object found at dir during a root
// walk. Fatal errors from the object's validation are added to the
// aggregated object errors, not the root validation's own results.
func (r *Root) validateRootObject(ctx context.Context, dir string, decl Namaste, specStr string, v *RootValidation, opts ...ObjectValidationOption) {
	v.numObjects++
	if decl.Version.Cmp(r.spec) > 0 {
		err := fmt.Errorf("%s: object declares OCFL v%s, storage root declares v%s", dir, decl.Version, r.spec)
		v.AddFatal(ec(err, code.E081(specStr)))
	}
	objValid := ValidateObject(ctx, r.fs, dir, opts...)
	if err := objValid.Err(); err != nil {
		v.objectErrs = multierror.Append(v.objectErrs, fmt.Errorf("object %s: %w", dir, err))
		return
	}
	// the layout, if there is one, must map the object's id back to its path
	if r.layout != nil {
		objID := objValid.Object().ID()
		want, err := r.ResolveID(objID)
		if err != nil || path.Join(r.dir, want) != dir {
			err := fmt.Errorf("object id %q does not resolve to its storage path under the root's layout", objID)
			v.AddWarn(ec(err, code.E083(specStr)))
		}
	}
}

// rootDirFS adapts an ocflfs.FS to the walkdirs.FS interface.
type rootDirFS struct {
	fsys ocflfs.FS
}

func (r rootDirFS) ReadDir(ctx context.Context, name string) ([]fs.DirEntry, error) {
	return ocflfs.ReadDir(ctx, r.fsys, name)
}

