package models

import "errors"

// Error kinds returned by the core. Concrete errors wrap one of these with
// fmt.Errorf("%w: ...", kind) so callers classify them with errors.Is.
var (
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrMalformedScan      = errors.New("malformed scan")
	ErrDependency         = errors.New("dependency failure")
	ErrTransient          = errors.New("transient failure")
	ErrInvalidInput       = errors.New("invalid input")
)

// Kind returns the error kind err wraps, or nil if it wraps none of them.
func Kind(err error) error {
	for _, k := range []error{
		ErrConflict,
		ErrInvalidCredentials,
		ErrForbidden,
		ErrNotFound,
		ErrMalformedScan,
		ErrTransient,
		ErrDependency,
		ErrInvalidInput,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
