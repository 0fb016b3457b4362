package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound reports that no account exists for the identifier.
	// Backends running with enumeration protection may never return it and
	// yield ErrInvalidCredential for every password failure instead.
	ErrUserNotFound = errors.New("backend: user not found")

	// ErrInvalidCredential reports a failed credential check without
	// disclosing whether the account exists.
	ErrInvalidCredential = errors.New("backend: invalid credential")

	// ErrEmailInUse reports a sign-up against an already registered address.
	ErrEmailInUse = errors.New("backend: email already in use")

	// ErrUserDisabled reports a sign-in against a disabled account.
	ErrUserDisabled = errors.New("backend: user disabled")

	// ErrNotSignedIn reports an operation that requires an authenticated
	// session when none is established.
	ErrNotSignedIn = errors.New("backend: no authenticated session")

	// ErrUnreachable reports a transport-level failure before the backend
	// produced a response.
	ErrUnreachable = errors.New("backend: unreachable")
)

// CredentialInUseError reports that the credential is already bound to a
// different existing account. The backend may attach a corrected credential
// produced by its own conflict resolution; when present, a retry should use
// it instead of the original.
type CredentialInUseError struct {
	Updated *Credential
	Err     error
}

func (e *CredentialInUseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: credential already in use: %v", e.Err)
	}
	return "backend: credential already in use"
}

func (e *CredentialInUseError) Unwrap() error { return e.Err }

// APIError carries an unrecognized backend error code verbatim.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" && e.Message != e.Code {
		return fmt.Sprintf("backend: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend: %s", e.Code)
}
