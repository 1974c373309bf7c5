package leaderboard

import (
	"errors"
	"fmt"
)

// Error kinds callers branch on.
var (
	ErrValidation       = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// ValidationError names the argument that was rejected. It matches ErrValidation.
type ValidationError struct {
	Argument string
	Value    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Argument, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError reports a failed store read. It matches ErrStoreUnavailable and
// the underlying error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsStoreUnavailable reports whether err is a store failure.
func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }

func invalid(arg, value, reason string) error {
	return &ValidationError{Argument: arg, Value: value, Reason: reason}
}
