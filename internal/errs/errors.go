package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
	// ErrImmutable indicates an attempt to change immutable fields
	ErrImmutable = errors.New("immutable")
	// ErrUnauthorized means the supplied credentials match no known user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientFunds is returned when a mutation would leave an account below zero.
	ErrInsufficientFunds = errors.New("insufficient_funds")
	// ErrInvalidCategory means the category is not allowed for the amount's sign.
	ErrInvalidCategory = errors.New("invalid_category")
	// ErrDuplicateLogin is returned when the login is already taken.
	ErrDuplicateLogin = errors.New("duplicate_login")
	// ErrProtectedAdmin marks the seeded administrator as an illegal target.
	ErrProtectedAdmin = errors.New("protected_admin")
)
