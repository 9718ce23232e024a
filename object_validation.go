package ocfl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"sort"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/extension"
	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/internal/schema"
	"github.com/ocflkit/ocfl/validation/code"
)

var invSchema *jsonschema.Schema

func init() {
	jsonschema.RegisterKeyword("definitions", jsonschema.NewDefs)
	jsonschema.LoadDraft2019_09()
	invSchema = jsonschema.Must(string(schema.InventorySchema))
}

// ValidateObject validates the OCFL object at dir in fsys against the OCFL
// specification declared in the object's NAMASTE file. The returned
// *ObjectValidation includes all fatal errors and warnings found during
// validation. Unless the [ValidationSkipDigest] option is used, the digests
// of all object content files are recomputed and checked against the values
// recorded in the object's inventories.
func ValidateObject(ctx context.Context, fsys ocflfs.FS, dir string, opts ...ObjectValidationOption) *ObjectValidation {
	v := newObjectValidation(fsys, dir, opts...)
	entries, err := ocflfs.ReadDir(ctx, fsys, dir)
	if err != nil {
		v.AddFatal(err)
		return v
	}
	state := ParseObjectDir(entries)
	if state.Namaste.Type != NamasteTypeObject {
		v.AddFatal(ec(fmt.Errorf("%s: %w", dir, ErrObjectNamasteNotExist), code.E003(string(Spec1_0))))
		return v
	}
	ocflV := state.Namaste.Version
	specStr := string(ocflV)
	if _, err := getOCFL(ocflV); err != nil {
		v.AddFatal(ec(err, code.E004(specStr)))
		return v
	}
	if err := ValidateNamaste(ctx, fsys, path.Join(dir, state.Namaste.Name())); err != nil {
		v.AddFatal(ec(err, code.E007(specStr)))
	}
	for _, name := range state.Extra {
		v.AddFatal(ec(fmt.Errorf("%w: %s", ErrObjRootStructure, name), code.E001(specStr)))
	}
	if !state.HasInventory() {
		v.AddFatal(ec(errors.New("inventory.json: "+fs.ErrNotExist.Error()), code.E063(specStr)))
	}
	if state.SidecarAlg == "" {
		v.AddFatal(ec(errors.New("inventory sidecar: "+fs.ErrNotExist.Error()), code.E058(specStr)))
	}
	if err := state.VersionDirs.Valid(); err != nil {
		switch {
		case errors.Is(err, ErrVerEmpty):
			err = ec(err, code.E008(specStr))
		case errors.Is(err, ErrVNumMissing):
			err = ec(err, code.E010(specStr))
		case errors.Is(err, ErrVNumPadding):
			err = ec(err, code.E012(specStr))
		}
		v.AddFatal(err)
	} else if state.VersionDirs.Padding() > 0 {
		v.AddWarn(ec(errors.New("version directory names are zero-padded"), code.W001(specStr)))
	}
	if v.Err() != nil {
		return v
	}
	rootInv := v.validateInventory(ctx, dir, specStr, state.SidecarAlg)
	if rootInv == nil {
		return v
	}
	if rootInv.Spec() != ocflV {
		err := fmt.Errorf("inventory declares OCFL v%s, NAMASTE declares v%s", rootInv.Spec(), ocflV)
		v.AddFatal(ec(err, code.E038(specStr)))
	}
	if expHead := state.VersionDirs.Head(); expHead != rootInv.Head {
		v.AddFatal(ec(fmt.Errorf("inventory 'head' is not %s", expHead), code.E040(specStr)))
		v.AddFatal(ec(fmt.Errorf("inventory versions don't include %s", expHead), code.E046(specStr)))
	}
	v.addInventoryDigests(rootInv, true, specStr)
	prevSpec := Spec("")
	for _, dirNum := range state.VersionDirs {
		prevSpec = v.validateVersionDir(ctx, rootInv, dirNum, prevSpec)
	}
	if state.HasExtensions() {
		v.validateExtensionsDir(ctx, specStr)
	}
	v.validateContentLedger(ctx, rootInv, specStr)
	if v.Err() == nil {
		obj := &Object{fs: v.fs, path: v.path, exists: true, declSpec: ocflV, inventory: rootInv}
		v.obj = obj
	}
	return v
}

// ObjectDirState summarizes the contents of an object's root directory.
type ObjectDirState struct {
	Namaste     Namaste // the object's NAMASTE declaration, if present
	SidecarAlg  string  // digest algorithm from the inventory sidecar's name
	VersionDirs VNums   // version directories, sorted
	Extra       []string

	hasInventory  bool
	hasExtensions bool
}

// HasNamaste returns true if the directory includes an object declaration.
func (s ObjectDirState) HasNamaste() bool { return s.Namaste.Type != "" }

// HasInventory returns true if the directory includes inventory.json.
func (s ObjectDirState) HasInventory() bool { return s.hasInventory }

// HasSidecar returns true if the directory includes an inventory sidecar.
func (s ObjectDirState) HasSidecar() bool { return s.SidecarAlg != "" }

// HasExtensions returns true if the directory includes an extensions
// directory.
func (s ObjectDirState) HasExtensions() bool { return s.hasExtensions }

// HasVersionDir returns true if the directory includes a version directory
// for v.
func (s ObjectDirState) HasVersionDir(v VNum) bool {
	for _, dir := range s.VersionDirs {
		if dir == v {
			return true
		}
	}
	return false
}

// ParseObjectDir summarizes entries as the contents of an object root
// directory.
func ParseObjectDir(entries []fs.DirEntry) *ObjectDirState {
	state := &ObjectDirState{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
			var vnum VNum
			switch {
			case name == extensionsDir:
				state.hasExtensions = true
			case ParseVNum(name, &vnum) == nil:
				state.VersionDirs = append(state.VersionDirs, vnum)
			default:
				state.Extra = append(state.Extra, name)
			}
		case validFileType(e.Type()):
			switch {
			case name == inventoryFile:
				state.hasInventory = true
			case strings.HasPrefix(name, inventoryFile+"."):
				if state.SidecarAlg == "" {
					state.SidecarAlg = strings.TrimPrefix(name, inventoryFile+".")
					continue
				}
				state.Extra = append(state.Extra, name)
			default:
				if decl, err := ParseNamaste(name); err == nil && decl.IsObject() {
					if state.Namaste.Type == "" {
						state.Namaste = decl
						continue
					}
				}
				state.Extra = append(state.Extra, name)
			}
		default:
			state.Extra = append(state.Extra, name)
		}
	}
	sort.Sort(state.VersionDirs)
	return state
}

// validateInventory reads, decodes, and validates the inventory.json in dir,
// checking it against its sidecar file. It returns nil if the inventory
// couldn't be decoded.
func (v *ObjectValidation) validateInventory(ctx context.Context, dir string, specStr string, sidecarAlg string) *Inventory {
	invPath := path.Join(dir, inventoryFile)
	raw, err := ocflfs.ReadAll(ctx, v.fs, invPath)
	if err != nil {
		v.AddFatal(ec(err, code.E063(specStr)))
		return nil
	}
	inv := v.validateInventoryBytes(raw, specStr, invPath)
	if inv == nil {
		return nil
	}
	if sidecarAlg != "" {
		v.validateInventorySidecar(ctx, raw, inv, dir, sidecarAlg, specStr)
	}
	return inv
}

// validateInventoryBytes decodes raw as an inventory, reporting structural
// problems with OCFL validation codes. The returned inventory is nil if raw
// couldn't be decoded.
func (v *ObjectValidation) validateInventoryBytes(raw []byte, specStr string, name string) *Inventory {
	schemaErrs, err := invSchema.ValidateBytes(context.Background(), raw)
	if err != nil {
		v.AddFatal(ec(fmt.Errorf("%s: %w", name, err), code.E033(specStr)))
		return nil
	}
	for _, keyErr := range schemaErrs {
		err := fmt.Errorf("%s: %s: %s", name, keyErr.PropertyPath, keyErr.Message)
		switch {
		case strings.Contains(keyErr.Message, "additional properties"):
			v.AddFatal(ec(err, code.E102(specStr)))
		case strings.Contains(keyErr.Message, `"id"`),
			strings.Contains(keyErr.Message, `"type"`),
			strings.Contains(keyErr.Message, `"head"`),
			strings.Contains(keyErr.Message, `"digestAlgorithm"`):
			v.AddFatal(ec(err, code.E036(specStr)))
		case strings.Contains(keyErr.Message, `"versions"`),
			strings.Contains(keyErr.Message, `"manifest"`):
			v.AddFatal(ec(err, code.E041(specStr)))
		case strings.Contains(keyErr.Message, "unique"):
			v.AddFatal(ec(err, code.E095(specStr)))
		default:
			v.AddFatal(ec(err, code.E033(specStr)))
		}
	}
	inv := &Inventory{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(inv); err != nil {
		if len(schemaErrs) == 0 {
			v.AddFatal(ec(fmt.Errorf("%s: %w", name, err), code.E033(specStr)))
		}
		return nil
	}
	if len(schemaErrs) > 0 {
		return nil
	}
	if err := inv.setDigest(raw); err != nil {
		v.AddFatal(fmt.Errorf("%s: %w", name, err))
		return nil
	}
	result := inv.Validate()
	for _, err := range result.Fatal() {
		v.AddFatal(fmt.Errorf("%s: %w", name, err))
	}
	for _, err := range result.Warn() {
		v.AddWarn(fmt.Errorf("%s: %w", name, err))
	}
	if result.Err() != nil {
		return nil
	}
	return inv
}

// validateInventorySidecar checks the inventory sidecar file in dir against
// the digest of the inventory's raw bytes.
func (v *ObjectValidation) validateInventorySidecar(ctx context.Context, raw []byte, inv *Inventory, dir string, sidecarAlg string, specStr string) {
	sidecarPath := path.Join(dir, inventoryFile+"."+sidecarAlg)
	content, err := ocflfs.ReadAll(ctx, v.fs, sidecarPath)
	if err != nil {
		v.AddFatal(ec(err, code.E058(specStr)))
		return
	}
	fields := strings.Fields(string(content))
	if len(fields) != 2 || fields[1] != inventoryFile {
		v.AddFatal(ec(fmt.Errorf("%s: %w", sidecarPath, ErrInventorySidecarContents), code.E061(specStr)))
		return
	}
	digester, err := digest.DefaultRegistry().NewDigester(sidecarAlg)
	if err != nil {
		v.AddFatal(ec(fmt.Errorf("%s: %w", sidecarPath, err), code.E025(specStr)))
		return
	}
	if _, err := digester.Write(raw); err != nil {
		v.AddFatal(err)
		return
	}
	if !digest.Equal(digester.String(), fields[0]) {
		err := fmt.Errorf("%s: inventory digest doesn't match sidecar value", sidecarPath)
		v.AddFatal(ec(err, code.E060(specStr)))
	}
}

// addInventoryDigests records the digests from inv's manifest and fixity in
// the validation's file ledger. Conflicts with digests recorded by other
// inventories are reported as E066.
func (v *ObjectValidation) addInventoryDigests(inv *Inventory, isRoot bool, specStr string) {
	algID := inv.DigestAlgorithm
	maxContentVer := inv.Head.Num()
	for dig, contentPaths := range inv.Manifest {
		for _, name := range contentPaths {
			var vnum VNum
			first, _, hasVer := strings.Cut(name, "/")
			if !hasVer || ParseVNum(first, &vnum) != nil || vnum.Num() > maxContentVer {
				err := fmt.Errorf("manifest includes invalid content path: %s", name)
				v.AddFatal(ec(err, code.E042(specStr)))
				continue
			}
			if v.addManifestDigest(name, algID, dig, isRoot) {
				err := fmt.Errorf("inventory manifest disagrees with a previous inventory about the %s digest of %s", algID, name)
				v.AddFatal(ec(err, code.E066(specStr)))
			}
		}
	}
	for fixAlg, fixMap := range inv.Fixity {
		for dig, contentPaths := range fixMap {
			for _, name := range contentPaths {
				if v.addFixityDigest(name, fixAlg, dig) {
					err := fmt.Errorf("inventory fixity disagrees with a previous inventory about the %s digest of %s", fixAlg, name)
					v.AddFatal(ec(err, code.E066(specStr)))
				}
			}
		}
	}
}

// validateVersionDir validates the version directory for dirNum, including
// its version inventory (if any) and its content files. It returns the OCFL
// spec version declared by the version inventory, for the E103 check.
func (v *ObjectValidation) validateVersionDir(ctx context.Context, rootInv *Inventory, dirNum VNum, prevSpec Spec) Spec {
	specStr := string(rootInv.Spec())
	vDir := path.Join(v.path, dirNum.String())
	entries, err := ocflfs.ReadDir(ctx, v.fs, vDir)
	if err != nil {
		v.AddFatal(err)
		return prevSpec
	}
	state := parseVersionDirEntries(entries)
	for _, name := range state.extraFiles {
		err := fmt.Errorf("unexpected file in %s: %s", dirNum, name)
		v.AddFatal(ec(err, code.E015(specStr)))
	}
	contDir := rootInv.EffectiveContentDirectory()
	for _, name := range state.dirs {
		if name != contDir {
			err := fmt.Errorf("extra directory in %s: %s", dirNum, name)
			v.AddWarn(ec(err, code.W002(specStr)))
			continue
		}
		var added int
		for ref, err := range ocflfs.WalkFiles(ctx, v.fs, path.Join(vDir, contDir)) {
			if err != nil {
				v.AddFatal(err)
				return prevSpec
			}
			objPath := strings.TrimPrefix(ref.FullPath(), v.path+"/")
			v.addExistingContent(objPath, dirNum)
			added++
		}
		if added == 0 {
			err := fmt.Errorf("content directory (%s/%s) contains no files", dirNum, contDir)
			v.AddFatal(ec(err, code.E016(specStr)))
		}
	}
	if !state.hasInventory {
		v.AddWarn(ec(fmt.Errorf("missing %s/inventory.json", dirNum), code.W010(specStr)))
		return prevSpec
	}
	verInv := v.validateInventory(ctx, vDir, specStr, state.sidecarAlg)
	if verInv == nil {
		return prevSpec
	}
	if !prevSpec.Empty() && verInv.Spec().Cmp(prevSpec) < 0 {
		err := fmt.Errorf("%s/inventory.json uses an earlier OCFL spec than the preceding version directory (%s < %s)", dirNum, verInv.Spec(), prevSpec)
		v.AddFatal(ec(err, code.E103(specStr)))
	}
	if verInv.Spec().Cmp(rootInv.Spec()) > 0 {
		err := fmt.Errorf("%s/inventory.json uses a later OCFL spec than the root inventory (%s > %s)", dirNum, verInv.Spec(), rootInv.Spec())
		v.AddFatal(ec(err, code.E103(specStr)))
	}
	if dirNum == rootInv.Head {
		if digest.Equal(verInv.Digest, rootInv.Digest) {
			// identical to the root inventory: nothing left to check
			return verInv.Spec()
		}
		err := fmt.Errorf("%s/inventory.json is not the same as the root inventory", dirNum)
		v.AddFatal(ec(err, code.E064(specStr)))
	}
	if verInv.ID != rootInv.ID {
		err := fmt.Errorf("%s/inventory.json has unexpected id: %s", dirNum, verInv.ID)
		v.AddFatal(ec(err, code.E037(specStr)))
	}
	if verInv.ContentDirectory != rootInv.ContentDirectory {
		err := fmt.Errorf("%s/inventory.json has unexpected contentDirectory: %q", dirNum, verInv.ContentDirectory)
		v.AddFatal(ec(err, code.E019(specStr)))
	}
	if verInv.Head != dirNum {
		err := fmt.Errorf("%s/inventory.json head is %s, expected %s", dirNum, verInv.Head, dirNum)
		v.AddFatal(ec(err, code.E040(specStr)))
	}
	v.compareVersionStates(verInv, rootInv, dirNum, specStr)
	v.addInventoryDigests(verInv, false, specStr)
	return verInv.Spec()
}

// compareVersionStates checks that every version block in verInv represents
// the same logical state and metadata as the corresponding block in the root
// inventory.
func (v *ObjectValidation) compareVersionStates(verInv, rootInv *Inventory, dirNum VNum, specStr string) {
	for _, vnum := range verInv.Head.Lineage() {
		thisVer := verInv.Version(vnum.Num())
		rootVer := rootInv.Version(vnum.Num())
		if thisVer == nil || rootVer == nil {
			continue
		}
		if !logicalStateEq(thisVer.State, verInv.Manifest, rootVer.State, rootInv.Manifest) {
			err := fmt.Errorf("%s/inventory.json has a different logical state in its %s block than the root inventory", dirNum, vnum)
			v.AddFatal(ec(err, code.E066(specStr)))
		}
		if thisVer.Message != rootVer.Message {
			err := fmt.Errorf("%s/inventory.json has a different 'message' in its %s block than the root inventory", dirNum, vnum)
			v.AddWarn(ec(err, code.W011(specStr)))
		}
		if !usersEq(thisVer.User, rootVer.User) {
			err := fmt.Errorf("%s/inventory.json has a different 'user' in its %s block than the root inventory", dirNum, vnum)
			v.AddWarn(ec(err, code.W011(specStr)))
		}
		if !thisVer.Created.Equal(rootVer.Created) {
			err := fmt.Errorf("%s/inventory.json has a different 'created' in its %s block than the root inventory", dirNum, vnum)
			v.AddWarn(ec(err, code.W011(specStr)))
		}
	}
}

// logicalStateEq compares two version states from (potentially) different
// inventories. States are equal if they include the same logical paths and
// each logical path resolves to the same content paths in the respective
// manifests. Content paths, rather than digests, are compared so that states
// from inventories with different digest algorithms can be checked.
func logicalStateEq(stateA, manifestA, stateB, manifestB DigestMap) bool {
	pathsA := stateA.PathMap()
	pathsB := stateB.PathMap()
	if len(pathsA) != len(pathsB) {
		return false
	}
	for name, digA := range pathsA {
		digB, ok := pathsB[name]
		if !ok {
			return false
		}
		contentA := append([]string{}, manifestA[digA]...)
		contentB := append([]string{}, manifestB[digB]...)
		sort.Strings(contentA)
		sort.Strings(contentB)
		if len(contentA) == 0 || len(contentA) != len(contentB) {
			return false
		}
		for i := range contentA {
			if contentA[i] != contentB[i] {
				return false
			}
		}
	}
	return true
}

func usersEq(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type versionDirState struct {
	hasInventory bool
	sidecarAlg   string
	extraFiles   []string
	dirs         []string
}

func parseVersionDirEntries(entries []fs.DirEntry) versionDirState {
	var state versionDirState
	for _, e := range entries {
		if e.IsDir() {
			state.dirs = append(state.dirs, e.Name())
			continue
		}
		if validFileType(e.Type()) {
			if e.Name() == inventoryFile {
				state.hasInventory = true
				continue
			}
			if strings.HasPrefix(e.Name(), inventoryFile+".") && state.sidecarAlg == "" {
				state.sidecarAlg = strings.TrimPrefix(e.Name(), inventoryFile+".")
				continue
			}
		}
		state.extraFiles = append(state.extraFiles, e.Name())
	}
	return state
}

// validateExtensionsDir checks the object's extensions directory: it may
// only include directories, and those directories should have registered
// extension names.
func (v *ObjectValidation) validateExtensionsDir(ctx context.Context, specStr string) {
	extDir := path.Join(v.path, extensionsDir)
	entries, err := ocflfs.ReadDir(ctx, v.fs, extDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		v.AddFatal(err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			err := fmt.Errorf("unexpected file in %s: %s", extensionsDir, e.Name())
			v.AddFatal(ec(err, code.E067(specStr)))
			continue
		}
		if !extension.IsRegistered(e.Name()) {
			err := fmt.Errorf("unregistered extension: %s", e.Name())
			v.AddWarn(ec(err, code.W013(specStr)))
		}
	}
}

// validateContentLedger checks that every content path referenced by an
// inventory exists, that every existing content file is referenced by the
// root inventory's manifest, and (unless digest checks are skipped) that
// file contents match their recorded digests.
func (v *ObjectValidation) validateContentLedger(ctx context.Context, rootInv *Inventory, specStr string) {
	primaryAlg := rootInv.DigestAlgorithm
	for name, info := range v.files {
		switch {
		case info.existsIn.IsZero():
			if info.inManifest {
				err := fmt.Errorf("content path referenced in an inventory manifest does not exist: %s", name)
				v.AddFatal(ec(err, code.E092(specStr)))
			} else if info.inFixity {
				err := fmt.Errorf("content path referenced in an inventory fixity block does not exist: %s", name)
				v.AddFatal(ec(err, code.E093(specStr)))
			}
		case !info.inManifest:
			err := fmt.Errorf("file is not referenced in the root inventory manifest: %s", name)
			v.AddFatal(ec(err, code.E023(specStr)))
		}
	}
	if v.skipDigests || v.Err() != nil {
		return
	}
	toCheck := func(yield func(*digest.FileRef) bool) {
		for name, info := range v.files {
			if info.existsIn.IsZero() || len(info.expected) == 0 {
				continue
			}
			ref := &digest.FileRef{
				FileRef: ocflfs.FileRef{FS: v.fs, BaseDir: v.path, Path: name},
				Digests: digest.Set{},
				Fixity:  digest.Set{},
			}
			for algID, dig := range info.expected {
				if algID == primaryAlg {
					ref.Digests[algID] = dig
					continue
				}
				ref.Fixity[algID] = dig
			}
			if !yield(ref) {
				return
			}
		}
	}
	reg := digest.DefaultRegistry()
	for err := range digest.ValidateFilesBatch(ctx, iter.Seq[*digest.FileRef](toCheck), reg, v.concurrency) {
		var digestErr *digest.DigestError
		switch {
		case errors.As(err, &digestErr):
			if digestErr.IsFixity {
				v.AddFatal(ec(err, code.E093(specStr)))
				continue
			}
			v.AddFatal(ec(err, code.E092(specStr)))
		case errors.Is(err, fs.ErrNotExist):
			v.AddFatal(ec(err, code.E092(specStr)))
		default:
			v.AddFatal(err)
		}
	}
}
