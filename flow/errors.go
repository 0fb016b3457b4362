package flow

import (
	"errors"
	"fmt"
)

// ErrPresentationContextMissing reports that a provider requires a
// presentation context but neither the provider nor the authenticator has one
// configured. This is a caller defect, not a transient condition.
var ErrPresentationContextMissing = errors.New("flow: presentation context missing")

// ResultUnknownError reports that the flow was cancelled after a backend call
// was already issued. The backend mutation has taken or may still take effect;
// the outcome cannot be determined from here.
type ResultUnknownError struct {
	Err error
}

func (e *ResultUnknownError) Error() string {
	return fmt.Sprintf("flow: result unknown, cancelled after backend call was issued: %v", e.Err)
}

func (e *ResultUnknownError) Unwrap() error { return e.Err }
