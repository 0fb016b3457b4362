package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures so callers can choose messaging
// ("try again", "permission required") without string-matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// KindCancelled means the user abandoned the external interaction.
	// Retrying without new user action is meaningless.
	KindCancelled

	// KindPermissionDeclined means the user refused a permission the
	// provider needs (e.g. email scope).
	KindPermissionDeclined

	// KindTokenMissing means the external flow completed without producing
	// the token the provider expected.
	KindTokenMissing

	// KindUnavailable means the provider's own service could not be reached.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindPermissionDeclined:
		return "permission declined"
	case KindTokenMissing:
		return "token missing"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a typed provider failure. The sign-in flow surfaces it verbatim
// and never retries it.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed provider error.
func NewError(providerID string, kind ErrorKind, err error) *Error {
	return &Error{Provider: providerID, Kind: kind, Err: err}
}

// IsKind reports whether err is a provider Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

func IsCancelled(err error) bool { return IsKind(err, KindCancelled) }
