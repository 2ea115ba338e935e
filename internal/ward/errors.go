package ward

import "errors"

// Error kinds shared by the repository and the workflows. Concrete errors
// wrap one of these so callers can branch with errors.Is.
var (
	// ErrValidation marks intake data rejected either locally before
	// submission or by the bed service.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork marks transport or server failures.
	ErrNetwork = errors.New("bed service unavailable")
	// ErrAuth marks a missing, invalid or expired bearer credential.
	ErrAuth = errors.New("not authorized")
)
