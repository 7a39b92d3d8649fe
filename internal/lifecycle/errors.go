package lifecycle

import "errors"

// Error kinds shared by every layer. Callers wrap them with fmt.Errorf("%w: ...")
// and the transport boundary maps them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
)

// Kind returns the sentinel err wraps, or nil for internal failures.
func Kind(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrForbidden, ErrInvalidState, ErrValidation, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
