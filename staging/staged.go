package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/srerickson/checksum"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/digest"
)

const inventoryFile = "inventory.json"

// StagedObject is an in-progress new version of an object. It holds the
// staged inventory, whose head is the version being built, and provides
// operations for changing the staged version state. A StagedObject holds the
// object's staging lock until it is closed.
type StagedObject struct {
	store *Store
	id    string
	dir   string          // staged object dir, relative to the store
	inv   *ocfl.Inventory // staged inventory; Head is the uncommitted version
	base  *ocfl.Inventory // committed inventory, nil for new objects
	lock  *objectLock
	alg   digest.Algorithm
	saved bool // the staged inventory exists on disk
}

// Stage returns a StagedObject for modifying the object with the given id.
// If the object has no staged version, one is created from its current head
// version. The object must exist in the storage root unless it was
// previously staged with [Store.StageNew]. The caller must Close the
// returned StagedObject to release its lock.
func (s *Store) Stage(ctx context.Context, id string) (*StagedObject, error) {
	lock, err := s.lockObject(id)
	if err != nil {
		return nil, err
	}
	staged, err := s.openStaged(ctx, id, lock)
	if err != nil {
		lock.close()
		return nil, err
	}
	return staged, nil
}

func (s *Store) openStaged(ctx context.Context, id string, lock *objectLock) (*StagedObject, error) {
	dir := objectDir(id)
	var base *ocfl.Inventory
	obj, err := s.root.NewObject(ctx, id)
	switch {
	case err == nil && obj.Exists():
		base = obj.Inventory()
	case err != nil && !errors.Is(err, ocfl.ErrLayoutUndefined):
		return nil, err
	}
	staged := &StagedObject{store: s, id: id, dir: dir, base: base, lock: lock}
	inv, err := readStagedInventory(filepath.Join(s.base, dir))
	switch {
	case err == nil:
		if inv.ID != id {
			return nil, fmt.Errorf("staged inventory has unexpected id: %q", inv.ID)
		}
		if base != nil && inv.Head.Num() != base.Head.Num()+1 {
			return nil, fmt.Errorf("staged version %s is out of date: the object's head is now %s", inv.Head, base.Head)
		}
		staged.inv = inv
		staged.saved = true
	case errors.Is(err, fs.ErrNotExist):
		if base == nil {
			return nil, fmt.Errorf("%q: %w", id, ocfl.ErrObjectNamasteNotExist)
		}
		inv, err := nextStagedInventory(base)
		if err != nil {
			return nil, err
		}
		staged.inv = inv
	default:
		return nil, err
	}
	alg, err := digest.DefaultRegistry().Get(staged.inv.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	staged.alg = alg
	return staged, nil
}

// StageNew creates a staged first version for a new object with the given
// id. The id must not exist in the storage root or have staged changes.
// Padding sets the zero-padding width for the object's version numbers;
// contentDir sets the object's content directory name ("" for the default).
func (s *Store) StageNew(ctx context.Context, id string, algID string, contentDir string, padding int) (*StagedObject, error) {
	alg, err := digest.DefaultRegistry().Get(algID)
	if err != nil {
		return nil, err
	}
	switch algID {
	case digest.SHA512.ID(), digest.SHA256.ID():
	default:
		return nil, fmt.Errorf("%q can't be used as a primary digest algorithm", algID)
	}
	lock, err := s.lockObject(id)
	if err != nil {
		return nil, err
	}
	cleanup := lock
	defer func() { cleanup.close() }()
	obj, err := s.root.NewObject(ctx, id)
	switch {
	case err == nil && obj.Exists():
		return nil, fmt.Errorf("%q already exists in the storage root", id)
	case err != nil && !errors.Is(err, ocfl.ErrLayoutUndefined):
		return nil, err
	}
	if s.HasStaged(id) {
		return nil, fmt.Errorf("%q: %w", id, ErrIsStaged)
	}
	head := ocfl.V(1, padding)
	if err := head.Valid(); err != nil {
		return nil, err
	}
	inv := &ocfl.Inventory{
		ID:               id,
		Type:             s.root.Spec().InventoryType(),
		DigestAlgorithm:  algID,
		Head:             head,
		ContentDirectory: contentDir,
		Manifest:         ocfl.DigestMap{},
		Versions: map[ocfl.VNum]*ocfl.InventoryVersion{
			head: {Created: time.Now().Truncate(time.Second), State: ocfl.DigestMap{}},
		},
	}
	staged := &StagedObject{
		store: s,
		id:    id,
		dir:   objectDir(id),
		inv:   inv,
		lock:  lock,
		alg:   alg,
	}
	cleanup = nil // the lock now belongs to the StagedObject
	return staged, nil
}

// nextStagedInventory builds the staged inventory for the next version of an
// object: a copy of base with an incremented head and a new version block
// whose state matches the current head version.
func nextStagedInventory(base *ocfl.Inventory) (*ocfl.Inventory, error) {
	next, err := base.Head.Next()
	if err != nil {
		return nil, fmt.Errorf("the object's version numbering scheme doesn't support additional versions: %w", err)
	}
	manifest, err := base.Manifest.Normalize()
	if err != nil {
		return nil, fmt.Errorf("in the object's manifest: %w", err)
	}
	inv := &ocfl.Inventory{
		ID:               base.ID,
		Type:             base.Type,
		DigestAlgorithm:  base.DigestAlgorithm,
		Head:             next,
		ContentDirectory: base.ContentDirectory,
		Manifest:         manifest,
		Versions:         make(map[ocfl.VNum]*ocfl.InventoryVersion, base.Head.Num()+1),
	}
	for _, vnum := range base.Head.Lineage() {
		baseVer := base.Version(vnum.Num())
		if baseVer == nil {
			continue
		}
		newVer := &ocfl.InventoryVersion{Created: baseVer.Created, Message: baseVer.Message}
		if newVer.State, err = baseVer.State.Normalize(); err != nil {
			return nil, fmt.Errorf("in the object's %s state: %w", vnum, err)
		}
		if baseVer.User != nil {
			u := *baseVer.User
			newVer.User = &u
		}
		inv.Versions[vnum] = newVer
	}
	headState, err := base.Version(0).State.Normalize()
	if err != nil {
		return nil, err
	}
	inv.Versions[next] = &ocfl.InventoryVersion{
		Created: time.Now().Truncate(time.Second),
		State:   headState,
	}
	if len(base.Fixity) > 0 {
		inv.Fixity = make(map[string]ocfl.DigestMap, len(base.Fixity))
		for fixAlg, m := range base.Fixity {
			if inv.Fixity[fixAlg], err = m.Normalize(); err != nil {
				return nil, fmt.Errorf("in the object's %s fixity: %w", fixAlg, err)
			}
		}
	}
	return inv, nil
}

// ID returns the staged object's id.
func (s *StagedObject) ID() string { return s.id }

// Version returns the number of the version being staged.
func (s *StagedObject) Version() ocfl.VNum { return s.inv.Head }

// Inventory returns the staged inventory.
func (s *StagedObject) Inventory() *ocfl.Inventory { return s.inv }

// State returns the staged version's state.
func (s *StagedObject) State() ocfl.DigestMap {
	return s.inv.Versions[s.inv.Head].State
}

// BaseState returns the state of the object's committed head version, or an
// empty DigestMap for a new object.
func (s *StagedObject) BaseState() ocfl.DigestMap {
	if s.base == nil {
		return ocfl.DigestMap{}
	}
	return s.base.Version(0).State
}

// Exists returns true if the logical path is a file in the staged version
// state.
func (s *StagedObject) Exists(lpath string) bool {
	return s.State().GetDigest(lpath) != ""
}

// Close releases the staged object's lock. It does not save or discard
// staged changes.
func (s *StagedObject) Close() error {
	return s.lock.close()
}

// osPath returns the os path for a slash-separated path relative to the
// staged object's directory.
func (s *StagedObject) osPath(name string) string {
	return filepath.Join(s.store.base, filepath.FromSlash(s.dir), filepath.FromSlash(name))
}

// contentPath returns the staged content path for the logical path: the
// location under the staged version's content directory where new content
// is stored.
func (s *StagedObject) contentPath(lpath string) string {
	return path.Join(s.inv.Head.String(), s.inv.EffectiveContentDirectory(), lpath)
}

func validLogicalPath(p string) error {
	if p == "." || !fs.ValidPath(p) {
		return fmt.Errorf("invalid logical path: %q", p)
	}
	return nil
}

// WriteFile streams r into the staged version at the logical path dst,
// returning the content's digest. The content is digested while it is
// written. If the digest already exists in the staged inventory's manifest,
// the temporary file is discarded and the existing content is reused: only
// the version state changes.
func (s *StagedObject) WriteFile(ctx context.Context, dst string, r io.Reader) (string, error) {
	if err := validLogicalPath(dst); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmp := s.osPath("tmp." + uuid.NewString())
	if err := os.MkdirAll(filepath.Dir(tmp), 0777); err != nil {
		return "", err
	}
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	digester := digest.NewMultiDigester(s.alg)
	_, err = io.Copy(io.MultiWriter(f, digester), r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing %q to stage: %w", dst, err)
	}
	dig := digester.Sum(s.alg.ID())
	if len(s.inv.Manifest[dig]) > 0 {
		// content with this digest already exists; discard the new copy
		os.Remove(tmp)
	} else {
		cpath := s.contentPath(dst)
		dstOS := s.osPath(cpath)
		if err := os.MkdirAll(filepath.Dir(dstOS), 0777); err != nil {
			os.Remove(tmp)
			return "", err
		}
		if err := os.Rename(tmp, dstOS); err != nil {
			os.Remove(tmp)
			return "", err
		}
		s.inv.Manifest[dig] = []string{cpath}
	}
	s.setState(dst, dig)
	if err := s.gc(); err != nil {
		return "", err
	}
	return dig, s.Save()
}

// AddDir stages all files in the local directory dir under the logical path
// dstPrefix ("." to add at the staged version's root). Files are digested
// concurrently with numgos goroutines before any content is copied, so
// content that already exists in the object is never duplicated in the
// staging area.
func (s *StagedObject) AddDir(ctx context.Context, dir string, dstPrefix string, numgos int) error {
	if dstPrefix == "" {
		dstPrefix = "."
	}
	if dstPrefix != "." {
		if err := validLogicalPath(dstPrefix); err != nil {
			return err
		}
	}
	algOpt, err := checksumAlg(s.alg.ID())
	if err != nil {
		return err
	}
	fsys := os.DirFS(dir)
	pipe, err := checksum.NewPipe(fsys, checksum.WithCtx(ctx), checksum.WithGos(numgos))
	if err != nil {
		return err
	}
	walkErr := make(chan error, 1)
	go func() {
		defer pipe.Close()
		defer close(walkErr)
		walkErr <- fs.WalkDir(fsys, ".", func(name string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.Type().IsRegular() {
				return nil
			}
			return pipe.Add(name, algOpt)
		})
	}()
	for job := range pipe.Out() {
		if err := job.Err(); err != nil {
			return err
		}
		dig, err := job.SumString(s.alg.ID())
		if err != nil {
			return err
		}
		lpath := path.Join(dstPrefix, job.Path())
		if err := s.stageDigested(job.Path(), dir, lpath, dig); err != nil {
			return err
		}
	}
	if err := <-walkErr; err != nil {
		return err
	}
	if err := s.gc(); err != nil {
		return err
	}
	return s.Save()
}

// stageDigested adds a file with a known digest to the staged version: the
// file is copied into the staging area only if its digest is new to the
// staged inventory's manifest.
func (s *StagedObject) stageDigested(srcName string, srcDir string, lpath string, dig string) error {
	if err := validLogicalPath(lpath); err != nil {
		return err
	}
	if len(s.inv.Manifest[dig]) == 0 {
		cpath := s.contentPath(lpath)
		dstOS := s.osPath(cpath)
		if err := os.MkdirAll(filepath.Dir(dstOS), 0777); err != nil {
			return err
		}
		src, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(srcName)))
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := os.Create(dstOS)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			os.Remove(dstOS)
			return err
		}
		if err := dst.Close(); err != nil {
			return err
		}
		s.inv.Manifest[dig] = []string{cpath}
	}
	s.setState(lpath, dig)
	return nil
}

// setState points the logical path at dig in the staged version state,
// replacing any previous file at that path.
func (s *StagedObject) setState(lpath string, dig string) {
	state := s.State()
	state.Mutate(ocfl.RemovePath(lpath))
	state[dig] = append(state[dig], lpath)
}

// Rename moves the file or directory at src to dst within the staged
// version. No content is moved or rewritten.
func (s *StagedObject) Rename(src, dst string) error {
	if err := validLogicalPath(src); err != nil {
		return err
	}
	if dst != "." {
		if err := validLogicalPath(dst); err != nil {
			return err
		}
	}
	state := s.State()
	if state.GetDigest(src) == "" && !hasPathPrefix(state, src) {
		return fmt.Errorf("%q: %w", src, fs.ErrNotExist)
	}
	state.Mutate(ocfl.RenamePaths(src, dst))
	if err := state.Valid(); err != nil {
		return err
	}
	return s.Save()
}

// CopyPath copies the file or directory at src to dst within the staged
// version. The copy shares the source's content: no content is duplicated.
func (s *StagedObject) CopyPath(src, dst string) error {
	if err := validLogicalPath(src); err != nil {
		return err
	}
	if err := validLogicalPath(dst); err != nil {
		return err
	}
	state := s.State()
	pm := state.PathMap()
	copied := map[string]string{}
	if dig, ok := pm[src]; ok {
		copied[dst] = dig
	} else {
		for p, dig := range pm {
			if suffix, found := strings.CutPrefix(p, src+"/"); found {
				copied[path.Join(dst, suffix)] = dig
			}
		}
	}
	if len(copied) == 0 {
		return fmt.Errorf("%q: %w", src, fs.ErrNotExist)
	}
	for p, dig := range copied {
		s.setState(p, dig)
	}
	if err := state.Valid(); err != nil {
		return err
	}
	return s.Save()
}

// Remove removes the logical path from the staged version state. If the
// path is a directory, recursive must be true. Content added in the staged
// version is deleted from the staging area when no staged state references
// its digest; content from committed versions is never touched.
func (s *StagedObject) Remove(lpath string, recursive bool) error {
	if err := validLogicalPath(lpath); err != nil {
		return err
	}
	state := s.State()
	isFile := state.GetDigest(lpath) != ""
	isDir := hasPathPrefix(state, lpath)
	switch {
	case !isFile && !isDir:
		return fmt.Errorf("%q: %w", lpath, fs.ErrNotExist)
	case isDir && !recursive:
		return fmt.Errorf("%q is a directory", lpath)
	}
	state.Mutate(func(paths []string) []string {
		out := paths[:0]
		for _, p := range paths {
			if p == lpath || strings.HasPrefix(p, lpath+"/") {
				continue
			}
			out = append(out, p)
		}
		return out
	})
	if err := s.gc(); err != nil {
		return err
	}
	return s.Save()
}

// Reset undoes staged changes. With no arguments, all staged changes are
// discarded: the staged version state returns to the object's head version
// state and all staged content is removed. With arguments, only the named
// logical paths are restored to their values in the head version.
func (s *StagedObject) Reset(paths ...string) error {
	if len(paths) == 0 {
		if err := os.RemoveAll(filepath.Join(s.store.base, filepath.FromSlash(s.dir))); err != nil {
			return err
		}
		s.saved = false
		if s.base == nil {
			s.inv.Manifest = ocfl.DigestMap{}
			s.inv.Versions[s.inv.Head] = &ocfl.InventoryVersion{
				Created: time.Now().Truncate(time.Second),
				State:   ocfl.DigestMap{},
			}
			return nil
		}
		inv, err := nextStagedInventory(s.base)
		if err != nil {
			return err
		}
		s.inv = inv
		return nil
	}
	baseState := s.BaseState().PathMap()
	state := s.State()
	for _, p := range paths {
		if err := validLogicalPath(p); err != nil {
			return err
		}
		state.Mutate(ocfl.RemovePath(p))
		if dig, ok := baseState[p]; ok {
			state[dig] = append(state[dig], p)
		}
	}
	if err := s.gc(); err != nil {
		return err
	}
	return s.Save()
}

// gc deletes content files from the staging area whose digests are no
// longer referenced by the staged version state, and drops their manifest
// entries. Only content stored in the staged version's directory is
// considered.
func (s *StagedObject) gc() error {
	prefix := s.inv.Head.String() + "/"
	state := s.State()
	for dig, cpaths := range s.inv.Manifest {
		if len(cpaths) == 0 || !strings.HasPrefix(cpaths[0], prefix) {
			continue
		}
		if len(state[dig]) > 0 {
			continue
		}
		for _, cpath := range cpaths {
			if err := os.Remove(s.osPath(cpath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		delete(s.inv.Manifest, dig)
	}
	return nil
}

// Save writes the staged inventory and its sidecar to the staged object
// directory.
func (s *StagedObject) Save() error {
	if err := s.State().Valid(); err != nil {
		return fmt.Errorf("staged version state is invalid: %w", err)
	}
	if err := writeStagedInventory(filepath.Join(s.store.base, filepath.FromSlash(s.dir)), s.inv); err != nil {
		return err
	}
	s.saved = true
	return nil
}

// Commit finalizes the staged version and writes it to the storage root as
// the object's new head version. On success the staged version is removed
// from the staging area. The staged object remains locked until Close.
func (s *StagedObject) Commit(ctx context.Context, message string, user ocfl.User) error {
	obj, err := s.store.root.NewObject(ctx, s.id)
	if err != nil {
		return err
	}
	if obj.Exists() {
		if s.base == nil || obj.Inventory().Head != s.base.Head {
			return fmt.Errorf("%q has changed since it was staged; reset and re-stage the changes", s.id)
		}
	} else if s.base != nil {
		return fmt.Errorf("%q no longer exists in the storage root", s.id)
	}
	state, err := s.State().Normalize()
	if err != nil {
		return fmt.Errorf("staged version state is invalid: %w", err)
	}
	commit := &ocfl.Commit{
		ID:               s.id,
		Message:          message,
		User:             user,
		NewHEAD:          s.inv.Head.Num(),
		Padding:          s.inv.Head.Padding(),
		ContentDirectory: s.inv.ContentDirectory,
		Logger:           s.store.logger,
		Stage: &ocfl.Stage{
			State:           state,
			DigestAlgorithm: s.alg,
			ContentSource:   s,
			FixitySource:    s,
		},
	}
	if err := obj.Commit(ctx, commit); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.store.base, filepath.FromSlash(s.dir))); err != nil {
		return fmt.Errorf("cleaning up staged version: %w", err)
	}
	s.saved = false
	s.base = obj.Inventory()
	return nil
}

// GetContent implements ocfl.ContentSource for the staged object: it
// resolves digests of content added in the staged version to files in the
// staging area.
func (s *StagedObject) GetContent(dig string) (ocfl.FS, string) {
	cpaths := s.inv.Manifest[dig]
	if len(cpaths) == 0 {
		return nil, ""
	}
	if !strings.HasPrefix(cpaths[0], s.inv.Head.String()+"/") {
		return nil, ""
	}
	return s.store.fs, path.Join(s.dir, cpaths[0])
}

// GetFixity implements ocfl.FixitySource for the staged object.
func (s *StagedObject) GetFixity(dig string) digest.Set {
	return s.inv.GetFixity(dig)
}

func hasPathPrefix(state ocfl.DigestMap, dir string) bool {
	prefix := dir + "/"
	for _, paths := range state {
		for _, p := range paths {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
	}
	return false
}

func checksumAlg(algID string) (func(*checksum.Config), error) {
	switch algID {
	case digest.SHA512.ID():
		return checksum.WithSHA512(), nil
	case digest.SHA256.ID():
		return checksum.WithSHA256(), nil
	default:
		return nil, fmt.Errorf("%q can't be used as a primary digest algorithm", algID)
	}
}

// readStagedInventory reads and validates the staged inventory in the os
// directory dir.
func readStagedInventory(dir string) (*ocfl.Inventory, error) {
	raw, err := os.ReadFile(filepath.Join(dir, inventoryFile))
	if err != nil {
		return nil, err
	}
	return ocfl.NewInventory(raw)
}

// writeStagedInventory writes inv and its digest sidecar to the os
// directory dir.
func writeStagedInventory(dir string, inv *ocfl.Inventory) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encoding staged inventory: %w", err)
	}
	digester, err := digest.DefaultRegistry().NewDigester(inv.DigestAlgorithm)
	if err != nil {
		return err
	}
	if _, err := digester.Write(raw); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, inventoryFile), raw, 0666); err != nil {
		return err
	}
	sidecar := digester.String() + " " + inventoryFile + "\n"
	sidecarFile := filepath.Join(dir, inventoryFile+"."+inv.DigestAlgorithm)
	if err := os.WriteFile(sidecarFile, []byte(sidecar), 0666); err != nil {
		return err
	}
	return nil
}
