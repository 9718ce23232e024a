package ocfl

import (
	"bytes"
	"context"
	"path"

	"github.com/ocflkit/ocfl/backend/memfs"
	"github.com/ocflkit/ocfl/digest"
)

// Stage represents a logical version state together with the means for
// retrieving the content associated with it. Stages are used to build new
// object versions with [Object.Commit].
type Stage struct {
	// State maps digests to logical paths for the version being staged.
	State DigestMap
	// DigestAlgorithm is the primary digest algorithm used for State's digests.
	DigestAlgorithm digest.Algorithm
	// ContentSource resolves digests in State to readable content.
	ContentSource ContentSource
	// FixitySource optionally provides additional fixity digests for content
	// in State.
	FixitySource FixitySource
}

// ContentSource resolves a digest to the FS and path where its content can be
// read.
type ContentSource interface {
	// GetContent returns an FS and path that can be used to read the content
	// with the given digest, or a nil FS if the source doesn't have it.
	GetContent(dig string) (FS, string)
}

// FixitySource provides supplementary digest values (beyond the primary
// digest algorithm) for content.
type FixitySource interface {
	// GetFixity returns the fixity values recorded for the content with the
	// given primary digest. The result may be empty.
	GetFixity(dig string) digest.Set
}

// StageDir builds a [Stage] from the contents of dir in fsys, using algID as
// the primary digest algorithm. Hidden files (names beginning with '.') are
// ignored.
func StageDir(ctx context.Context, fsys FS, dir string, algID string) (*Stage, error) {
	alg, err := digest.DefaultRegistry().Get(algID)
	if err != nil {
		return nil, err
	}
	files, errFn := WalkFiles(ctx, fsys, dir)
	stage, err := files.IgnoreHidden().Digest(ctx, alg).Stage()
	if err != nil {
		return nil, err
	}
	if err := errFn(); err != nil {
		return nil, err
	}
	return stage, nil
}

// StageBytes builds a [Stage] from a map of logical paths to file contents,
// using alg as the primary digest algorithm. Content is held in memory.
func StageBytes(content map[string][]byte, alg digest.Algorithm, fixityAlgs ...digest.Algorithm) (*Stage, error) {
	ctx := context.Background()
	fsys := memfs.New()
	for name, b := range content {
		if _, err := fsys.Write(ctx, name, bytes.NewReader(b)); err != nil {
			return nil, err
		}
	}
	files, errFn := WalkFiles(ctx, fsys, ".")
	stage, err := files.Digest(ctx, alg, fixityAlgs...).Stage()
	if err != nil {
		return nil, err
	}
	if err := errFn(); err != nil {
		return nil, err
	}
	return stage, nil
}

// dirManifestEntry tracks the logical paths and fixity values associated
// with a single digest while building a [Stage] from a [FileDigestsSeq].
type dirManifestEntry struct {
	paths  []string
	fixity digest.Set
}

func (e *dirManifestEntry) addPaths(paths ...string) {
	for _, p := range paths {
		if !contains(e.paths, p) {
			e.paths = append(e.paths, p)
		}
	}
}

func (e *dirManifestEntry) addFixity(set digest.Set) {
	if len(set) == 0 {
		return
	}
	if e.fixity == nil {
		e.fixity = digest.Set{}
	}
	for alg, val := range set {
		e.fixity[alg] = val
	}
}

// dirManifest implements [ContentSource] and [FixitySource] for content
// discovered while building a [Stage] from files in a single base directory.
type dirManifest struct {
	fs       FS
	baseDir  string
	manifest map[string]dirManifestEntry
}

func (d *dirManifest) GetContent(dig string) (FS, string) {
	entry, ok := d.manifest[dig]
	if !ok || len(entry.paths) == 0 {
		return nil, ""
	}
	return d.fs, path.Join(d.baseDir, entry.paths[0])
}

func (d *dirManifest) GetFixity(dig string) digest.Set {
	return d.manifest[dig].fixity
}
