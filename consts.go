package ocfl

import "errors"

// Spec1_0 and Spec1_1 are the OCFL specification versions implemented by
// this package.
const (
	Spec1_0 = Spec("1.0")
	Spec1_1 = Spec("1.1")
)

const (
	// inventoryFile is the name of the OCFL inventory file.
	inventoryFile = "inventory.json"
	// contentDir is the default name of an object version's content
	// directory.
	contentDir = "content"
	// extensionsDir is the name of the extensions directory used by both
	// storage roots and objects.
	extensionsDir = "extensions"
)

// supportedSpecs lists the OCFL specification versions this package can
// read, validate, and write.
var supportedSpecs = []Spec{Spec1_0, Spec1_1}

var (
	// ErrObjectNamasteNotExist indicates an object is missing its NAMASTE
	// declaration file.
	ErrObjectNamasteNotExist = errors.New("object declaration does not exist")
	// ErrObjRootStructure indicates unexpected files or directories in an
	// object root.
	ErrObjRootStructure = errors.New("unexpected content in object root")
	// ErrInventorySidecarContents indicates an inventory sidecar file's
	// contents don't match the expected "digest filename" format.
	ErrInventorySidecarContents = errors.New("invalid inventory sidecar contents")
	// ErrOCFLNotSupported indicates an OCFL specification version that this
	// package doesn't implement.
	ErrOCFLNotSupported = errors.New("unsupported OCFL specification version")
)

// AsInvType returns s as an [InventoryType]. It's equivalent to
// [Spec.InventoryType].
func (s Spec) AsInvType() InventoryType {
	return s.InventoryType()
}

// ocflImpl represents support for reading, validating, and writing OCFL
// objects conforming to a particular specification version. Only the 1.x
// family of specifications is supported; the differences between 1.0 and 1.1
// are limited to which validation codes apply, so a single implementation
// serves both.
type ocflImpl struct {
	spec Spec
}

// getOCFL returns the implementation for the given OCFL specification
// version, or an error if the version isn't supported.
func getOCFL(spec Spec) (ocflImpl, error) {
	for _, s := range supportedSpecs {
		if s == spec {
			return ocflImpl{spec: spec}, nil
		}
	}
	return ocflImpl{}, errors.New(string(spec) + ": " + ErrOCFLNotSupported.Error())
}
