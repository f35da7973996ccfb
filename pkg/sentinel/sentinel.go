package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, directory clients, and the
// ledger layer return these (optionally wrapped) so workflows can translate
// them into user-facing outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist (store key, directory account)
// - ErrConflict: uniqueness violated (username already registered)
// - ErrInvalidState: entity in wrong state for the requested step
// - ErrUnavailable: backing service temporarily unreachable
//
// For bad user input, use ValidationError below.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

// ValidationError marks input the user can correct locally. No retry policy
// applies; the caller shows the message inline.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidation builds a ValidationError with the given user-facing message.
func NewValidation(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
