package ocfl

import (
	"errors"
	"log/slog"

	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/logging"
	"github.com/ocflkit/ocfl/validation"
)

// Validation accumulates fatal errors and warnings, for example during
// object validation.
type Validation struct {
	*validation.Result
}

// NewValidation returns a new, empty *Validation.
func NewValidation() *Validation {
	return &Validation{Result: &validation.Result{}}
}

// Add adds all of v2's fatal errors and warnings to v.
func (v *Validation) Add(v2 *Validation) {
	if v2 == nil || v2.Result == nil {
		return
	}
	if v.Result == nil {
		v.Result = &validation.Result{}
	}
	v.Result.Merge(v2.Result)
}

// WarnErr returns the last warning in v, or nil if there are none.
func (v *Validation) WarnErr() error {
	warns := v.Warn()
	if len(warns) == 0 {
		return nil
	}
	return warns[len(warns)-1]
}

// ValidationError is an error tied to an OCFL validation code.
type ValidationError struct {
	validation.ValidationCode
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error() + " [" + e.Code + "]"
}

func (e *ValidationError) Unwrap() error { return e.Err }

// OCFLRef implements [validation.ErrorCode].
func (e *ValidationError) OCFLRef() *validation.Ref {
	ref := e.ValidationCode
	return &ref
}

// ValidationCode returns the OCFL validation code for err, or an empty string
// if err doesn't reference one.
func ValidationCode(err error) string {
	var coded validation.ErrorCode
	if errors.As(err, &coded) {
		if ref := coded.OCFLRef(); ref != nil {
			return ref.Code
		}
	}
	return ""
}

// HasValidationCode returns true if any error in errs references the OCFL
// validation code.
func HasValidationCode(code string, errs ...error) bool {
	for _, err := range errs {
		if ValidationCode(err) == code {
			return true
		}
	}
	return false
}

// ObjectValidationOption is used to configure the behavior of
// [ValidateObject].
type ObjectValidationOption func(*ObjectValidation)

// ValidationSkipDigest is an option to skip digest verification of object
// content during validation.
func ValidationSkipDigest() ObjectValidationOption {
	return func(v *ObjectValidation) { v.skipDigests = true }
}

// ValidationLogger sets the *slog.Logger that validation errors and warnings
// are logged to as they occur.
func ValidationLogger(logger *slog.Logger) ObjectValidationOption {
	return func(v *ObjectValidation) { v.logger = logger }
}

// ValidationDigestConcurrency sets the number of goroutines used for digesting
// object content during validation.
func ValidationDigestConcurrency(num int) ObjectValidationOption {
	return func(v *ObjectValidation) { v.concurrency = num }
}

// ValidationIgnoreCodes is an option to suppress errors and warnings with any
// of the given OCFL validation codes (e.g., "W004"). Suppressed issues are not
// logged and are not included in the validation's results.
func ValidationIgnoreCodes(codes ...string) ObjectValidationOption {
	return func(v *ObjectValidation) {
		if v.ignore == nil {
			v.ignore = map[string]bool{}
		}
		for _, c := range codes {
			v.ignore[c] = true
		}
	}
}

// ValidationCallback sets a function that is called for each validation error
// or warning as it is found. If the function returns false, no further issues
// are reported to it.
func ValidationCallback(fn func(isWarn bool, err error) bool) ObjectValidationOption {
	return func(v *ObjectValidation) { v.callback = fn }
}

// ObjectValidation accumulates the results of validating an OCFL object. Use
// [ValidateObject] to validate an object and get an *ObjectValidation.
type ObjectValidation struct {
	Validation

	fs          FS
	path        string
	obj         *Object
	logger      *slog.Logger
	skipDigests bool
	concurrency int
	ignore      map[string]bool
	callback    func(isWarn bool, err error) bool
	callbackOff bool

	// files tracks all content files in the object: files that exist in
	// version content directories and files referenced by inventory manifests
	// and fixity blocks.
	files map[string]*validationFileInfo
}

// newObjectValidation constructs an ObjectValidation for an object at dir in
// fsys, applying the given options.
func newObjectValidation(fsys FS, dir string, opts ...ObjectValidationOption) *ObjectValidation {
	v := &ObjectValidation{
		Validation: Validation{Result: &validation.Result{}},
		fs:         fsys,
		path:       dir,
		logger:     logging.DisabledLogger(),
		files:      map[string]*validationFileInfo{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// FS returns the FS for the object being validated.
func (v *ObjectValidation) FS() FS { return v.fs }

// Path returns the path of the object being validated, relative to its FS.
func (v *ObjectValidation) Path() string { return v.path }

// Object returns the validated object, or nil if validation found fatal
// errors before the object could be read.
func (v *ObjectValidation) Object() *Object { return v.obj }

// AddFatal adds fatal errors to the validation. Errors with suppressed OCFL
// codes are ignored.
func (v *ObjectValidation) AddFatal(errs ...error) {
	for _, err := range errs {
		if err == nil || v.suppressed(err) {
			continue
		}
		v.Result.AddFatal(err)
		v.log(false, err)
	}
}

// AddWarn adds warning errors to the validation. Errors with suppressed OCFL
// codes are ignored.
func (v *ObjectValidation) AddWarn(errs ...error) {
	for _, err := range errs {
		if err == nil || v.suppressed(err) {
			continue
		}
		v.Result.AddWarn(err)
		v.log(true, err)
	}
}

func (v *ObjectValidation) suppressed(err error) bool {
	if len(v.ignore) == 0 {
		return false
	}
	return v.ignore[ValidationCode(err)]
}

func (v *ObjectValidation) log(isWarn bool, err error) {
	if v.callback != nil && !v.callbackOff {
		if !v.callback(isWarn, err) {
			v.callbackOff = true
		}
	}
	attrs := make([]any, 0, 4)
	attrs = append(attrs, "object_path", v.path)
	if code := ValidationCode(err); code != "" {
		attrs = append(attrs, "ocfl_code", code)
	}
	if isWarn {
		v.logger.Warn(err.Error(), attrs...)
		return
	}
	v.logger.Error(err.Error(), attrs...)
}

// validationFileInfo tracks a content file's presence in the object and the
// digests recorded for it by inventories.
type validationFileInfo struct {
	// existsIn is the version directory where the file was found, or the
	// zero value if the file doesn't exist.
	existsIn VNum
	// expected maps digest algorithm ids to the digest value recorded for
	// the file in an inventory manifest or fixity block.
	expected digest.Set
	// inManifest is true if the file appears in the root inventory's
	// manifest.
	inManifest bool
	// inFixity is true if the file appears in an inventory's fixity block.
	inFixity bool
}

// addExistingContent records that a content file exists in the object at
// name (an object-relative path under a version directory).
func (v *ObjectValidation) addExistingContent(name string, dirNum VNum) {
	info := v.files[name]
	if info == nil {
		info = &validationFileInfo{}
		v.files[name] = info
	}
	info.existsIn = dirNum
}

// addManifestDigest records that an inventory manifest associates name with
// a digest. If a previous inventory recorded a different digest for the same
// algorithm, true is returned.
func (v *ObjectValidation) addManifestDigest(name string, algID string, dig string, isRoot bool) (conflict bool) {
	info := v.files[name]
	if info == nil {
		info = &validationFileInfo{}
		v.files[name] = info
	}
	if isRoot {
		info.inManifest = true
	}
	return addExpectedDigest(info, algID, dig)
}

// addFixityDigest records that an inventory fixity block associates name with
// a digest.
func (v *ObjectValidation) addFixityDigest(name string, algID string, dig string) (conflict bool) {
	info := v.files[name]
	if info == nil {
		info = &validationFileInfo{}
		v.files[name] = info
	}
	info.inFixity = true
	return addExpectedDigest(info, algID, dig)
}

func addExpectedDigest(info *validationFileInfo, algID string, dig string) (conflict bool) {
	if info.expected == nil {
		info.expected = digest.Set{}
	}
	if existing, ok := info.expected[algID]; ok {
		return !digest.Equal(existing, dig)
	}
	info.expected[algID] = dig
	return false
}
