package ocfl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ocflkit/ocfl/digest"
	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/validation"
	"github.com/ocflkit/ocfl/validation/code"
)

// Inventory is the content of an OCFL object's inventory.json file: the
// manifest of all version content and the version states that reference it.
type Inventory struct {
	ID               string               `json:"id"`
	Type             InventoryType        `json:"type"`
	DigestAlgorithm  string               `json:"digestAlgorithm"`
	Head             VNum                 `json:"head"`
	ContentDirectory string               `json:"contentDirectory,omitempty"`
	Manifest         DigestMap            `json:"manifest"`
	Versions         InventoryVersions    `json:"versions"`
	Fixity           map[string]DigestMap `json:"fixity,omitempty"`

	// Digest is the inventory.json file's own digest, computed using
	// DigestAlgorithm. It is set when the inventory is decoded or written;
	// it is not part of the inventory's JSON encoding.
	Digest string `json:"-"`
}

// InventoryVersions maps version numbers to version blocks. Its JSON
// encoding lists versions in ascending numeric order, which map-key
// marshaling alone wouldn't guarantee for unpadded version numbers past v9.
type InventoryVersions map[VNum]*InventoryVersion

// MarshalJSON implements json.Marshaler for InventoryVersions.
func (vs InventoryVersions) MarshalJSON() ([]byte, error) {
	nums := make(VNums, 0, len(vs))
	for vn := range vs {
		nums = append(nums, vn)
	}
	sort.Sort(nums)
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, vn := range nums {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(vn)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(vs[vn])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// InventoryVersion is a single entry in an inventory's "versions" block.
type InventoryVersion struct {
	Created time.Time `json:"created"`
	State   DigestMap `json:"state"`
	Message string    `json:"message,omitempty"`
	User    *User     `json:"user,omitempty"`
}

// NewInventory decodes and validates raw as an inventory.json document.
func NewInventory(raw []byte) (*Inventory, error) {
	inv := &Inventory{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(inv); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	if err := inv.setDigest(raw); err != nil {
		return nil, err
	}
	if err := inv.Validate().Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

// EffectiveContentDirectory returns the inventory's content directory name,
// defaulting to "content" if one isn't set.
func (inv *Inventory) EffectiveContentDirectory() string {
	if inv.ContentDirectory != "" {
		return inv.ContentDirectory
	}
	return contentDir
}

// Spec returns the OCFL specification version declared in the inventory's
// "type" field.
func (inv *Inventory) Spec() Spec {
	return inv.Type.Spec
}

// Algorithm returns the [digest.Algorithm] for the inventory's
// digestAlgorithm, or nil if it isn't sha512 or sha256.
func (inv *Inventory) Algorithm() digest.Algorithm {
	switch inv.DigestAlgorithm {
	case digest.SHA512.ID():
		return digest.SHA512
	case digest.SHA256.ID():
		return digest.SHA256
	default:
		return nil
	}
}

// GetFixity returns the fixity values recorded for the content associated
// with digest dig, or nil if dig isn't in the manifest or has no recorded
// fixity.
func (inv *Inventory) GetFixity(dig string) digest.Set {
	paths := inv.Manifest[dig]
	if len(paths) == 0 {
		return nil
	}
	var set digest.Set
	for alg, m := range inv.Fixity {
		if d := m.DigestFor(paths[0]); d != "" {
			if set == nil {
				set = digest.Set{}
			}
			set[alg] = d
		}
	}
	return set
}

// Version returns the [InventoryVersion] for version number i, or the head
// version if i is 0. It returns nil if the version doesn't exist.
func (inv *Inventory) Version(i int) *InventoryVersion {
	key := inv.Head
	if i != 0 {
		key = V(i, inv.Head.Padding())
	}
	return inv.Versions[key]
}

// HasContent returns true if the manifest includes an entry for dig.
func (inv *Inventory) HasContent(dig string) bool {
	return len(inv.Manifest[dig]) > 0
}

func (inv *Inventory) setDigest(raw []byte) error {
	digester, err := digest.DefaultRegistry().NewDigester(inv.DigestAlgorithm)
	if err != nil {
		return fmt.Errorf("inventory has invalid digestAlgorithm: %w", err)
	}
	if _, err := io.Copy(digester, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("digesting inventory: %w", err)
	}
	inv.Digest = digester.String()
	return nil
}

// Validate checks inv against the invariants of the OCFL specification,
// returning the accumulated fatal and warning errors.
func (inv *Inventory) Validate() *Validation {
	v := &Validation{Result: &validation.Result{}}
	if inv.Type.Spec.Empty() {
		v.AddFatal(errors.New("inventory missing required field: 'type'"))
		return v
	}
	spec := inv.Type.Spec
	if _, err := getOCFL(spec); err != nil {
		v.AddFatal(err)
		return v
	}
	specStr := string(spec)
	if inv.ID == "" {
		v.AddFatal(ec(errors.New("missing required field: 'id'"), code.E036(specStr)))
	} else if u, err := url.ParseRequestURI(inv.ID); err != nil || u.Scheme == "" {
		v.AddWarn(ec(fmt.Errorf("object ID is not a URI: %q", inv.ID), code.W005(specStr)))
	}
	if inv.Head.IsZero() {
		v.AddFatal(ec(errors.New("missing required field: 'head'"), code.E036(specStr)))
	} else if err := inv.Head.Valid(); err != nil {
		v.AddFatal(ec(fmt.Errorf("head is invalid: %w", err), code.E011(specStr)))
	}
	if inv.Manifest == nil {
		v.AddFatal(ec(errors.New("missing required field: 'manifest'"), code.E041(specStr)))
	}
	if inv.Versions == nil {
		v.AddFatal(ec(errors.New("missing required field: 'versions'"), code.E041(specStr)))
	}
	switch inv.DigestAlgorithm {
	case digest.SHA512.ID():
	case digest.SHA256.ID():
		v.AddWarn(ec(fmt.Errorf("'digestAlgorithm' is %q", digest.SHA256.ID()), code.W004(specStr)))
	default:
		v.AddFatal(ec(fmt.Errorf("'digestAlgorithm' is not %q or %q", digest.SHA512.ID(), digest.SHA256.ID()), code.E025(specStr)))
	}
	if strings.Contains(inv.ContentDirectory, "/") {
		v.AddFatal(ec(errors.New("contentDirectory contains '/'"), code.E017(specStr)))
	}
	if inv.ContentDirectory == "." || inv.ContentDirectory == ".." {
		v.AddFatal(ec(errors.New("contentDirectory is '.' or '..'"), code.E017(specStr)))
	}
	if inv.Manifest != nil {
		if err := inv.Manifest.Valid(); err != nil {
			v.AddFatal(wrapDigestMapErr(err, specStr, code.E096, code.E101, code.E099))
		}
		for _, dig := range inv.Manifest.Digests() {
			var used bool
			for _, version := range inv.Versions {
				if version != nil && len(version.State[dig]) > 0 {
					used = true
					break
				}
			}
			if !used {
				v.AddFatal(ec(fmt.Errorf("digest in manifest not used in any version state: %s", dig), code.E107(specStr)))
			}
		}
	}
	var versionNums VNums
	for vn := range inv.Versions {
		versionNums = append(versionNums, vn)
	}
	if err := versionNums.Valid(); err != nil {
		switch {
		case errors.Is(err, ErrVerEmpty):
			v.AddFatal(ec(err, code.E008(specStr)))
		case errors.Is(err, ErrVNumMissing):
			v.AddFatal(ec(err, code.E010(specStr)))
		case errors.Is(err, ErrVNumPadding):
			v.AddFatal(ec(err, code.E012(specStr)))
		default:
			v.AddFatal(err)
		}
	} else if versionNums.Head() != inv.Head {
		v.AddFatal(ec(fmt.Errorf("'head' does not match the most recent version: %s", inv.Head), code.E040(specStr)))
	}
	for vname, ver := range inv.Versions {
		if ver == nil {
			v.AddFatal(ec(fmt.Errorf("missing required version block for %q", vname), code.E048(specStr)))
			continue
		}
		if ver.Created.IsZero() {
			v.AddFatal(ec(fmt.Errorf("version %s missing required field: 'created'", vname), code.E048(specStr)))
		}
		if ver.Message == "" {
			v.AddWarn(ec(fmt.Errorf("version %s missing recommended field: 'message'", vname), code.W007(specStr)))
		}
		if ver.User == nil {
			v.AddWarn(ec(fmt.Errorf("version %s missing recommended field: 'user'", vname), code.W007(specStr)))
		} else {
			if ver.User.Name == "" {
				v.AddFatal(ec(fmt.Errorf("version %s user missing required field: 'name'", vname), code.E054(specStr)))
			}
			if ver.User.Address == "" {
				v.AddWarn(ec(fmt.Errorf("version %s user missing recommended field: 'address'", vname), code.W008(specStr)))
			} else if u, err := url.ParseRequestURI(ver.User.Address); err != nil || u.Scheme == "" {
				v.AddWarn(ec(fmt.Errorf("version %s user address is not a URI", vname), code.W009(specStr)))
			}
		}
		if ver.State == nil {
			v.AddFatal(ec(fmt.Errorf("version %s missing required field: 'state'", vname), code.E048(specStr)))
			continue
		}
		if err := ver.State.Valid(); err != nil {
			v.AddFatal(wrapDigestMapErr(err, specStr, code.E050, code.E095, code.E052))
		}
		for _, dig := range ver.State.Digests() {
			if len(inv.Manifest[dig]) == 0 {
				v.AddFatal(ec(fmt.Errorf("digest in %s state not in manifest: %s", vname, dig), code.E050(specStr)))
			}
		}
	}
	for _, fixity := range inv.Fixity {
		if err := fixity.Valid(); err != nil {
			v.AddFatal(wrapDigestMapErr(err, specStr, code.E097, code.E099, code.E101))
		}
	}
	return v
}

// wrapDigestMapErr wraps a DigestMap validity error in the appropriate OCFL
// validation code, depending on the concrete error type.
func wrapDigestMapErr(err error, specStr string, conflict, invalid, pathConflict func(string) *validation.Ref) error {
	var dcErr *MapDigestConflictErr
	var piErr *MapPathInvalidErr
	var pcErr *MapPathConflictErr
	switch {
	case errors.As(err, &dcErr):
		return ec(err, conflict(specStr))
	case errors.As(err, &piErr):
		return ec(err, invalid(specStr))
	case errors.As(err, &pcErr):
		return ec(err, pathConflict(specStr))
	default:
		return err
	}
}

// ec wraps err with an OCFL validation code reference. If ref is nil, err is
// returned unchanged.
func ec(err error, ref *validation.Ref) error {
	if ref == nil || err == nil {
		return err
	}
	return &ValidationError{ValidationCode: *ref, Err: err}
}

// ValidateInventorySidecar confirms the inventory sidecar file
// ("inventory.json.<alg>") in dir matches inv's digest.
func ValidateInventorySidecar(ctx context.Context, inv *Inventory, fsys ocflfs.FS, dir string) error {
	name := inventoryFile + "." + inv.DigestAlgorithm
	content, err := ocflfs.ReadAll(ctx, fsys, path.Join(dir, name))
	if err != nil {
		return err
	}
	fields := strings.Fields(string(content))
	if len(fields) != 2 || fields[1] != inventoryFile || !strings.EqualFold(fields[0], inv.Digest) {
		return fmt.Errorf("%s: %w", name, ErrInventorySidecarContents)
	}
	return nil
}

// writeInventory marshals inv and writes inventory.json plus its digest
// sidecar to every directory in dirs.
func writeInventory(ctx context.Context, fsys ocflfs.FS, inv *Inventory, dirs ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	byts, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encoding inventory: %w", err)
	}
	if err := inv.setDigest(byts); err != nil {
		return fmt.Errorf("generating inventory.json checksum: %w", err)
	}
	sidecarName := inventoryFile + "." + inv.DigestAlgorithm
	sidecarContent := inv.Digest + " " + inventoryFile + "\n"
	for _, dir := range dirs {
		if _, err := ocflfs.Write(ctx, fsys, path.Join(dir, inventoryFile), bytes.NewReader(byts)); err != nil {
			return fmt.Errorf("writing inventory: %w", err)
		}
		if _, err := ocflfs.Write(ctx, fsys, path.Join(dir, sidecarName), strings.NewReader(sidecarContent)); err != nil {
			return fmt.Errorf("writing inventory sidecar: %w", err)
		}
	}
	return nil
}

// nextInventory builds the inventory for the next version of an object,
// given its previous inventory (nil for a new object) and a [Commit]
// describing the update.
func nextInventory(prev *Inventory, commit *Commit) (*Inventory, error) {
	if commit.Stage == nil {
		return nil, errors.New("commit is missing a stage")
	}
	if commit.Stage.DigestAlgorithm == nil {
		return nil, errors.New("commit's stage has no digest algorithm")
	}
	if commit.Stage.State == nil {
		commit.Stage.State = DigestMap{}
	}
	inv := &Inventory{
		ID:              commit.ID,
		DigestAlgorithm: commit.Stage.DigestAlgorithm.ID(),
	}
	switch {
	case prev != nil:
		if inv.DigestAlgorithm != prev.DigestAlgorithm {
			return nil, fmt.Errorf("commit must use the same digest algorithm as the existing inventory (%s)", prev.DigestAlgorithm)
		}
		inv.ID = prev.ID
		inv.ContentDirectory = prev.ContentDirectory
		inv.Type = prev.Type
		next, err := prev.Head.Next()
		if err != nil {
			return nil, fmt.Errorf("existing inventory's version numbering scheme doesn't support additional versions: %w", err)
		}
		inv.Head = next
		if !commit.Spec.Empty() {
			if commit.Spec.Cmp(prev.Spec()) < 0 {
				return nil, fmt.Errorf("new version's OCFL spec can't be lower than the existing object's (%s)", prev.Spec())
			}
			inv.Type = commit.Spec.AsInvType()
		}
		if !commit.AllowUnchanged {
			if last := prev.Version(0); last != nil && last.State.Eq(commit.Stage.State) {
				return nil, errors.New("version state is unchanged")
			}
		}
		if inv.Manifest, err = prev.Manifest.Normalize(); err != nil {
			return nil, fmt.Errorf("in existing inventory manifest: %w", err)
		}
		lineage := prev.Head.Lineage()
		inv.Versions = make(map[VNum]*InventoryVersion, len(lineage)+1)
		for _, vnum := range lineage {
			prevVer := prev.Version(vnum.Num())
			if prevVer == nil {
				continue
			}
			newVer := &InventoryVersion{Created: prevVer.Created, Message: prevVer.Message}
			if newVer.State, err = prevVer.State.Normalize(); err != nil {
				return nil, fmt.Errorf("in existing inventory %s state: %w", vnum, err)
			}
			if prevVer.User != nil {
				u := *prevVer.User
				newVer.User = &u
			}
			inv.Versions[vnum] = newVer
		}
		inv.Fixity = make(map[string]DigestMap, len(prev.Fixity))
		for alg, m := range prev.Fixity {
			if inv.Fixity[alg], err = m.Normalize(); err != nil {
				return nil, fmt.Errorf("in existing inventory %s fixity: %w", alg, err)
			}
		}
	default:
		inv.Head = V(1, commit.Padding)
		inv.ContentDirectory = commit.ContentDirectory
		inv.Manifest = DigestMap{}
		inv.Fixity = map[string]DigestMap{}
		inv.Versions = map[VNum]*InventoryVersion{}
		inv.Type = commit.Spec.AsInvType()
		if inv.Type.Spec.Empty() {
			inv.Type = supportedSpecs[len(supportedSpecs)-1].AsInvType()
		}
	}

	newState, err := commit.Stage.State.Normalize()
	if err != nil {
		return nil, fmt.Errorf("in new version state: %w", err)
	}
	newVersion := &InventoryVersion{
		State:   newState,
		Created: commit.Created,
		Message: commit.Message,
		User:    &commit.User,
	}
	if newVersion.Created.IsZero() {
		newVersion.Created = time.Now()
	}
	newVersion.Created = newVersion.Created.Truncate(time.Second)
	inv.Versions[inv.Head] = newVersion

	newContentPaths := func(paths []string) []string {
		if commit.ContentPathFunc != nil {
			paths = commit.ContentPathFunc(paths)
		}
		contDir := inv.ContentDirectory
		if contDir == "" {
			contDir = contentDir
		}
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = path.Join(inv.Head.String(), contDir, p)
		}
		return out
	}
	for dig, logicalPaths := range newVersion.State {
		if len(inv.Manifest[dig]) > 0 {
			continue
		}
		inv.Manifest[dig] = newContentPaths(append([]string(nil), logicalPaths...))
	}
	if commit.Stage.FixitySource != nil {
		for dig, contentPaths := range inv.Manifest {
			fixSet := commit.Stage.FixitySource.GetFixity(dig)
			for fixAlg, fixDigest := range fixSet {
				if inv.Fixity[fixAlg] == nil {
					inv.Fixity[fixAlg] = DigestMap{}
				}
				for _, cp := range contentPaths {
					if !contains(inv.Fixity[fixAlg][fixDigest], cp) {
						inv.Fixity[fixAlg][fixDigest] = append(inv.Fixity[fixAlg][fixDigest], cp)
					}
				}
			}
		}
	}
	if err := inv.Validate().Err(); err != nil {
		return nil, fmt.Errorf("generated inventory is not valid: %w", err)
	}
	return inv, nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
