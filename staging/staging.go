// Package staging implements a local staging area for building new versions
// of OCFL objects before they are committed to a storage root. Staged
// versions are kept in an OCFL-shaped directory: each staged object has an
// inventory whose head refers to the version being built, and new content is
// stored under the head's content directory. Content from previously
// committed versions is never copied into the staging area; it remains
// referenced by digest in the staged inventory.
//
// For storage roots on the local filesystem, the staging area lives inside
// the root at extensions/rocfl-staging. For remote storage roots (S3 and
// other blob stores), it lives in a per-root directory under the user's
// cache directory, keyed by a hash of the root's location.
package staging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/fs/local"
	"github.com/ocflkit/ocfl/logging"
)

const (
	stagingDirName = "rocfl-staging"
	locksDirName   = "rocfl-locks"
)

// ErrNotStaged is returned when an operation requires a staged version of an
// object and none exists.
var ErrNotStaged = errors.New("the object has no staged changes")

// ErrIsStaged is returned when creating a new staged object that already has
// staged changes.
var ErrIsStaged = errors.New("the object already has staged changes")

// Store manages staged object versions for a storage root.
type Store struct {
	root   *ocfl.Root
	base   string // absolute path of the directory holding staged objects
	locks  string // absolute path of the directory holding lock files
	fs     *local.FS
	logger *slog.Logger
}

// Option configures a staging store.
type Option func(*Store)

// WithLogger sets the logger used by the staging store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBaseDir overrides the staging store's directory.
func WithBaseDir(dir string) Option {
	return func(s *Store) { s.base = dir }
}

// NewStore returns the staging store for root. For storage roots backed by
// the local filesystem, the store is located inside the root's extensions
// directory. For remote roots, location identifies the root (e.g.,
// "s3://bucket/prefix") and the store is located in the user's cache
// directory; location is ignored for local roots.
func NewStore(root *ocfl.Root, location string, opts ...Option) (*Store, error) {
	store := &Store{root: root, logger: logging.DisabledLogger()}
	for _, opt := range opts {
		opt(store)
	}
	if store.base == "" {
		switch fsys := root.FS().(type) {
		case *local.FS:
			extDir := filepath.Join(fsys.Root(), filepath.FromSlash(root.Path()), "extensions")
			store.base = filepath.Join(extDir, stagingDirName)
			store.locks = filepath.Join(extDir, locksDirName)
		default:
			if location == "" {
				return nil, errors.New("a location is required to stage changes for a remote storage root")
			}
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("resolving staging directory: %w", err)
			}
			key := sha256.Sum256([]byte(location))
			store.base = filepath.Join(cacheDir, "ocfl", "staging", hex.EncodeToString(key[:16]))
			store.locks = filepath.Join(store.base, locksDirName)
		}
	}
	if store.locks == "" {
		store.locks = filepath.Join(store.base, locksDirName)
	}
	if err := os.MkdirAll(store.base, 0777); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	if err := os.MkdirAll(store.locks, 0777); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fsys, err := local.NewFS(store.base)
	if err != nil {
		return nil, err
	}
	store.fs = fsys
	return store, nil
}

// Root returns the storage root the staging store belongs to.
func (s *Store) Root() *ocfl.Root { return s.root }

// Path returns the absolute path of the staging store's directory.
func (s *Store) Path() string { return s.base }

// objectDir returns the staged object directory for id, relative to the
// store's base directory.
func objectDir(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// HasStaged returns true if id has a staged version in the store.
func (s *Store) HasStaged(id string) bool {
	_, err := os.Stat(filepath.Join(s.base, objectDir(id), "inventory.json"))
	return err == nil
}

// StagedIDs returns an iterator over the ids of objects with staged versions
// in the store.
func (s *Store) StagedIDs(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		entries, err := os.ReadDir(s.base)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			yield("", err)
			return
		}
		for _, e := range entries {
			if !e.IsDir() || e.Name() == locksDirName {
				continue
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			inv, err := readStagedInventory(filepath.Join(s.base, e.Name()))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				yield("", fmt.Errorf("in staged object %s: %w", e.Name(), err))
				continue
			}
			if !yield(inv.ID, nil) {
				return
			}
		}
	}
}

// Purge removes the object with the given id from the storage root, along
// with any staged version of it. The confirm function is called with the
// object's storage path before anything is removed; if it returns false,
// Purge returns without changing anything.
func (s *Store) Purge(ctx context.Context, id string, confirm func(objPath string) bool) error {
	obj, err := s.root.NewObject(ctx, id, ocfl.ObjectMustExist())
	if err != nil {
		return err
	}
	if confirm != nil && !confirm(obj.Path()) {
		return nil
	}
	writeFS, ok := s.root.FS().(ocfl.WriteFS)
	if !ok {
		return errors.New("storage root backend is not writable")
	}
	lock, err := s.lockObject(id)
	if err != nil {
		return err
	}
	defer lock.close()
	if err := writeFS.RemoveAll(ctx, obj.Path()); err != nil {
		return fmt.Errorf("removing object %q: %w", id, err)
	}
	if err := os.RemoveAll(filepath.Join(s.base, objectDir(id))); err != nil {
		return fmt.Errorf("removing staged version of %q: %w", id, err)
	}
	return nil
}
