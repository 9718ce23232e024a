package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ocflkit/ocfl/internal/pathtree"
)

const (
	OBJECTSTATE_DEFAULT_FILEMODE fs.FileMode = 0440
	OBJECTSTATE_DEFAULT_DIRMODE              = 0550 | fs.ModeDir
)

// ObjectState encapsulates a set of logical content (i.e., an object version
// state) and its mapping to specific content paths in Manifest.
type ObjectState struct {
	DigestMap           // digests / logical paths
	Manifest  DigestMap // digests / content paths
	Alg       string    // algorith used for digests
	User      *User     // user who created object state
	Created   time.Time // object state created at
	Message   string    // message associated with object state
	VNum      VNum      // version represented by the object state
	Head      VNum      // object's head version
	Spec      Spec      // OCFL spec for the object version for the state
}

// User is a generic user information struct
type User struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// ObjectStateFS implements FS for the logical contents of the ObjectState
type ObjectStateFS struct {
	ObjectState
	// OpenContentFile opens a content file using the path from the object state
	// manifest.
	OpenContentFile func(ctx context.Context, name string) (fs.File, error)

	buildLock sync.Mutex
	index     *pathtree.Node[string] // logical directory structure
}

// OpenFile is used to access files in the Objects State by their logical paths
func (state *ObjectStateFS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	if err := state.buildIndex(); err != nil {
		return nil, wrapFSPathError("openfile", name, err)
	}
	// node value is the content path corresponding to the logical path
	node, err := state.index.Get(name)
	if err != nil {
		return nil, wrapFSPathError("openfile", name, err)
	}
	if node.IsDir() {
		return nil, wrapFSPathError("openfile", name, ErrNotFile)
	}
	f, err := state.OpenContentFile(ctx, node.Val)
	if err != nil {
		return nil, wrapFSPathError("openfile", name, err)
	}
	return &objStateFile{
		File:    f,
		name:    path.Base(name),
		modtime: state.Created,
	}, nil
}

// ReadDir is used to access directories in the Objects State by their logical paths
func (state *ObjectStateFS) ReadDir(ctx context.Context, dirPath string) ([]fs.DirEntry, error) {
	if err := state.buildIndex(); err != nil {
		return nil, wrapFSPathError("opendir", dirPath, err)
	}
	dirNode, err := state.index.Get(dirPath)
	if err != nil {
		return nil, wrapFSPathError("opendir", dirPath, err)
	}
	if !dirNode.IsDir() {
		// FIXME: need ErrNotDir?
		return nil, wrapFSPathError("opendir", dirPath, errors.New("not a directory"))
	}
	children := dirNode.DirEntries()
	dirEntries := make([]fs.DirEntry, len(children))
	for i, child := range children {
		dirEntry := &objStateDirEntry{
			name:    child.Name(),
			isdir:   child.IsDir(),
			modtime: state.Created,
		}
		// set stat for file entries
		if !dirEntry.isdir {
			filePath := path.Join(dirPath, child.Name())
			dirEntry.stat = func() (fs.FileInfo, error) {
				f, err := state.OpenFile(ctx, filePath)
				if err != nil {
					return nil, err
				}
				defer f.Close()
				return f.Stat()
			}
		}
		dirEntries[i] = dirEntry
	}
	return dirEntries, nil
}

// objStateFile is use to provide the logical name
// used with OpenFile to the fs.FileInfo returned by Stat()
type objStateFile struct {
	fs.File           // file with content
	name    string    // logical name
	modtime time.Time // object state created
}

func (file objStateFile) Stat() (fs.FileInfo, error) {
	baseInfo, err := file.File.Stat()
	if err != nil {
		return nil, err
	}
	return objStateFileInfo{
		name:     file.name,
		baseInfo: baseInfo,
		modtime:  file.modtime,
		mode:     OBJECTSTATE_DEFAULT_FILEMODE,
	}, nil
}

// result from ReadDir()
type objStateDirEntry struct {
	name    string // logical name
	isdir   bool
	modtime time.Time // from objec state created
	stat    func() (fs.FileInfo, error)
}

func (entry objStateDirEntry) Name() string { return entry.name }
func (entry objStateDirEntry) IsDir() bool  { return entry.isdir }
func (entry objStateDirEntry) Type() fs.FileMode {
	if entry.isdir {
		return fs.ModeDir
	}
	return 0
}
func (entry *objStateDirEntry) Info() (fs.FileInfo, error) {
	// stat must be set for all files
	if !entry.isdir {
		return entry.stat()
	}
	// otherwise, return generic directory info
	return objStateFileInfo{
		name:    entry.name,
		modtime: entry.modtime,
		mode:    OBJECTSTATE_DEFAULT_DIRMODE,
	}, nil
}

// objStateFileInfo implements fs.FileInfo
type objStateFileInfo struct {
	name     string // logical name from OpenFile/OpenDir
	modtime  time.Time
	mode     fs.FileMode
	baseInfo fs.FileInfo // FileInfo from underlying FS
}

func (info objStateFileInfo) Name() string       { return info.name }
func (info objStateFileInfo) IsDir() bool        { return info.mode.IsDir() }
func (info objStateFileInfo) ModTime() time.Time { return info.modtime }
func (info objStateFileInfo) Mode() fs.FileMode  { return info.mode }

func (info objStateFileInfo) Size() int64 {
	if info.baseInfo != nil {
		return info.baseInfo.Size()
	}
	return 0
}

func (info objStateFileInfo) Sys() any {
	if info.baseInfo != nil {
		return info.baseInfo.Sys()
	}
	return nil
}

func (state *ObjectStateFS) buildIndex() (err error) {
	state.buildLock.Lock()
	defer state.buildLock.Unlock()
	if state.index == nil {
		state.index = pathtree.NewDir[string]()

		state.DigestMap.EachPath(func(name, dig string) bool {
			realPaths := state.Manifest.DigestPaths(dig)
			if len(realPaths) == 0 {
				err = fmt.Errorf("missing content paths for digest '%s'", dig)
				return false
			}
			err = state.index.SetFile(name, realPaths[0])
			return err == nil
		})
	}
	return
}

func wrapFSPathError(op string, name string, err error) error {
	if errors.Is(err, pathtree.ErrInvalidPath) {
		return &fs.PathError{
			Op:   op,
			Path: name,
			Err:  fs.ErrInvalid,
		}
	}
	if errors.Is(err, pathtree.ErrNotFound) {
		return &fs.PathError{
			Op:   op,
			Path: name,
			Err:  fs.ErrNotExist,
		}
	}
	return &fs.PathError{
		Op:   op,
		Path: name,
		Err:  err,
	}
}

// ObjectState returns an *ObjectStateFS for reading the logical content of
// object version i (0 refers to the head version).
func (o *Object) ObjectState(i int) (*ObjectStateFS, error) {
	if o.inventory == nil {
		return nil, fmt.Errorf("%s: %w", o.path, ErrObjectNamasteNotExist)
	}
	ver := o.inventory.Version(i)
	if ver == nil {
		return nil, fmt.Errorf("%s: version %d: %w", o.path, i, fs.ErrNotExist)
	}
	vnum := o.inventory.Head
	if i != 0 {
		vnum = V(i, o.inventory.Head.Padding())
	}
	state := ObjectState{
		DigestMap: ver.State,
		Manifest:  o.inventory.Manifest,
		Alg:       o.inventory.DigestAlgorithm,
		User:      ver.User,
		Created:   ver.Created,
		Message:   ver.Message,
		VNum:      vnum,
		Head:      o.inventory.Head,
		Spec:      o.inventory.Spec(),
	}
	return &ObjectStateFS{
		ObjectState: state,
		OpenContentFile: func(ctx context.Context, name string) (fs.File, error) {
			return o.fs.OpenFile(ctx, path.Join(o.path, name))
		},
	}, nil
}

// PathInfo describes a logical path in an object version state.
type PathInfo struct {
	LogicalPath        string
	IsDir              bool
	Digest             string    // empty for directories
	ContentPath        string    // empty for directories
	LastUpdatedVersion VNum      // version that last added or changed the path
	LastUpdatedTime    time.Time // created time of LastUpdatedVersion
}

// ListLogicalPaths returns an iterator over the logical paths in object
// version i (0 for head). If dir is not empty or ".", only paths under dir
// are listed. With asDirs, logical paths sharing a directory prefix are
// collapsed: the listing includes the direct children of dir, with
// directories represented by a single synthetic entry. Results are yielded
// in no particular order.
func (o *Object) ListLogicalPaths(i int, dir string, asDirs bool) iter.Seq2[PathInfo, error] {
	return func(yield func(PathInfo, error) bool) {
		if o.inventory == nil {
			yield(PathInfo{}, fmt.Errorf("%s: %w", o.path, ErrObjectNamasteNotExist))
			return
		}
		ver := o.inventory.Version(i)
		if ver == nil {
			yield(PathInfo{}, fmt.Errorf("%s: version %d: %w", o.path, i, fs.ErrNotExist))
			return
		}
		if dir == "" {
			dir = "."
		}
		if !asDirs {
			for lpath, dig := range ver.State.Paths() {
				if dir != "." && lpath != dir && !strings.HasPrefix(lpath, dir+"/") {
					continue
				}
				if !yield(o.pathInfo(i, lpath, dig), nil) {
					return
				}
			}
			return
		}
		index := pathtree.NewDir[string]()
		var buildErr error
		ver.State.EachPath(func(name, dig string) bool {
			buildErr = index.SetFile(name, dig)
			return buildErr == nil
		})
		if buildErr != nil {
			yield(PathInfo{}, buildErr)
			return
		}
		node, err := index.Get(dir)
		if err != nil {
			yield(PathInfo{}, wrapFSPathError("list", dir, err))
			return
		}
		if !node.IsDir() {
			if !yield(o.pathInfo(i, dir, node.Val), nil) {
				return
			}
			return
		}
		for _, entry := range node.DirEntries() {
			lpath := path.Join(dir, entry.Name())
			if entry.IsDir() {
				if !yield(PathInfo{LogicalPath: lpath, IsDir: true}, nil) {
					return
				}
				continue
			}
			child := node.Child(entry.Name())
			if !yield(o.pathInfo(i, lpath, child.Val), nil) {
				return
			}
		}
	}
}

// pathInfo builds the PathInfo for a logical path with digest dig in version
// i's state.
func (o *Object) pathInfo(i int, lpath string, dig string) PathInfo {
	info := PathInfo{
		LogicalPath: lpath,
		Digest:      dig,
	}
	if contentPaths := o.inventory.Manifest.DigestPaths(dig); len(contentPaths) > 0 {
		info.ContentPath = contentPaths[0]
	}
	// find the earliest contiguous version (up to i) with the same digest at
	// the logical path
	vnum := o.inventory.Head
	if i != 0 {
		vnum = V(i, o.inventory.Head.Padding())
	}
	info.LastUpdatedVersion = vnum
	for {
		prev, err := vnum.Prev()
		if err != nil {
			break
		}
		prevVer := o.inventory.Versions[prev]
		if prevVer == nil || prevVer.State.GetDigest(lpath) != dig {
			break
		}
		vnum = prev
		info.LastUpdatedVersion = prev
	}
	if ver := o.inventory.Versions[info.LastUpdatedVersion]; ver != nil {
		info.LastUpdatedTime = ver.Created
	}
	return info
}
