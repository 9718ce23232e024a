package ocfl

import (
	"context"
	"io/fs"

	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/fs/local"
)

// FS is the storage backend abstraction used throughout the package. It is an
// alias for [ocflfs.FS] so that callers don't need to import the fs package
// directly for common operations.
type FS = ocflfs.FS

// WriteFS is an [FS] that also supports writing and removing files.
type WriteFS = ocflfs.WriteFS

var (
	// ErrNotFile is returned when a directory is used where a file is
	// expected.
	ErrNotFile = ocflfs.ErrNotFile
	// ErrFileType indicates a file's mode isn't valid for an OCFL object
	// (e.g., a symlink).
	ErrFileType = ocflfs.ErrFileType
)

// StatFile returns file information for the file named name in fsys.
func StatFile(ctx context.Context, fsys FS, name string) (fs.FileInfo, error) {
	return ocflfs.StatFile(ctx, fsys, name)
}

// NewFS wraps an [io/fs.FS] as an [FS].
func NewFS(fsys fs.FS) FS {
	return ocflfs.NewFS(fsys)
}

// DirFS returns an [FS] backed by the local directory dir.
func DirFS(dir string) FS {
	fsys, err := local.NewFS(dir)
	if err != nil {
		panic(err)
	}
	return fsys
}
