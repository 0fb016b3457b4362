// Package flow implements the backend-agnostic sign-in/link/sign-up decision
// flow over a CredentialProvider and an identity backend.
package flow

import (
	"context"
	"errors"

	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/provider"
	"github.com/cleevio/authflow/session"
)

// Hook runs before credential acquisition (result is nil) or after a
// successful sign-in. A hook error aborts the flow.
type Hook func(ctx context.Context, result *Result) error

// Authenticator executes the sign-in resolution algorithm against an identity
// backend. It performs at most one successful backend mutation per SignIn
// call; the conflict path issues a second backend call only after the first
// failed with a recoverable signal, never speculatively.
type Authenticator struct {
	backend      backend.Backend
	session      *session.Handle
	presentation provider.PresentationContextProvider
	preHooks     []Hook
	postHooks    []Hook
}

func NewAuthenticator(b backend.Backend, s *session.Handle) *Authenticator {
	return &Authenticator{backend: b, session: s}
}

// SetPresentationContextProvider configures the default presentation context
// injected into providers that require one but have no context of their own.
func (a *Authenticator) SetPresentationContextProvider(p provider.PresentationContextProvider) {
	a.presentation = p
}

func (a *Authenticator) AddPreHook(h Hook)  { a.preHooks = append(a.preHooks, h) }
func (a *Authenticator) AddPostHook(h Hook) { a.postHooks = append(a.postHooks, h) }

// Session returns the injected session handle.
func (a *Authenticator) Session() *session.Handle { return a.session }

// SignIn runs the full resolution algorithm for the given provider:
//
//  1. Inject the default presentation context if the provider requires one
//     and has none.
//  2. Request the credential. Failures here surface verbatim, no retry.
//  3. Convert to the backend credential handle.
//  4. Sign in, linking to the current session unless the credential is
//     password-based without TryLinkOnSignIn.
//  5. On a credential conflict, retry exactly once with the backend-corrected
//     credential (if attached) and link disabled. For password credentials,
//     fall through to sign-up per the provider's options instead.
//  6. Normalize the response, attaching provider-collected user data.
func (a *Authenticator) SignIn(ctx context.Context, p provider.CredentialProvider) (*Result, error) {
	if holder, ok := p.(provider.PresentationContextHolder); ok {
		if holder.PresentationContextProvider() == nil {
			if a.presentation == nil {
				return nil, ErrPresentationContextMissing
			}
			holder.SetPresentationContextProvider(a.presentation)
		}
	}

	for _, h := range a.preHooks {
		if err := h(ctx, nil); err != nil {
			return nil, err
		}
	}

	cred, err := p.Credential(ctx)
	if err != nil {
		return nil, err
	}
	// A cancellation during credential acquisition must never reach the
	// backend.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handle := cred.BackendCredential()

	var opts provider.SignInOptions
	pw, isPassword := cred.(*provider.PasswordCredential)
	if isPassword {
		opts = pw.Options
	}

	link := true
	if isPassword && !opts.TryLinkOnSignIn {
		link = false
	}

	resp, err := a.backend.SignIn(ctx, handle, link)
	if err != nil {
		var conflict *backend.CredentialInUseError
		switch {
		case isPassword && (opts.SignUpOnAnyError ||
			(opts.SignUpOnUserNotFound && errors.Is(err, backend.ErrUserNotFound))):
			// Blind fallback to account creation. Taken at most once; a
			// creation failure propagates unmodified.
			resp, err = a.backend.SignUp(ctx, pw.Email, pw.Password)

		case errors.As(err, &conflict):
			// The credential already belongs to a different existing account.
			// Forced fallback to direct sign-in with the corrected credential
			// when the backend supplied one, never a second link attempt.
			retry := handle
			if conflict.Updated != nil {
				retry = *conflict.Updated
			}
			resp, err = a.backend.SignIn(ctx, retry, false)
		}
		if err != nil {
			return nil, a.backendErr(ctx, err)
		}
	}

	result := newResult(resp, cred.UserData())

	for _, h := range a.postHooks {
		if err := h(ctx, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// SignInAnonymously establishes an anonymous session.
func (a *Authenticator) SignInAnonymously(ctx context.Context) (*Result, error) {
	resp, err := a.backend.SignInAnonymously(ctx)
	if err != nil {
		return nil, a.backendErr(ctx, err)
	}
	return newResult(resp, nil), nil
}

// SignOut tears down the current session.
func (a *Authenticator) SignOut(ctx context.Context) error {
	return a.backend.SignOut(ctx)
}

// Token returns a valid ID token for the current session.
func (a *Authenticator) Token(ctx context.Context, forceRefresh bool) (string, error) {
	return a.backend.Token(ctx, forceRefresh)
}

// RequestPasswordReset starts the password-reset flow.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, email string) error {
	return a.backend.RequestPasswordReset(ctx, email)
}

// VerifyPasswordResetCode checks a reset code and returns its address.
func (a *Authenticator) VerifyPasswordResetCode(ctx context.Context, code string) (string, error) {
	return a.backend.VerifyPasswordResetCode(ctx, code)
}

// ChangePassword consumes a reset code and sets a new password.
func (a *Authenticator) ChangePassword(ctx context.Context, code, newPassword string) error {
	return a.backend.ChangePassword(ctx, code, newPassword)
}

// ApplyActionCode applies an out-of-band action code and reloads the account.
func (a *Authenticator) ApplyActionCode(ctx context.Context, code string) error {
	return a.backend.ApplyActionCode(ctx, code)
}

// RegisterPushToken registers a platform push token for the current account.
func (a *Authenticator) RegisterPushToken(ctx context.Context, token, platform string) error {
	return a.backend.RegisterPushToken(ctx, token, platform)
}

// backendErr distinguishes cancellation that struck after a backend call was
// issued: the mutation is not retractable, so the caller gets a "result
// unknown" condition instead of a plain context error.
func (a *Authenticator) backendErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return &ResultUnknownError{Err: err}
	}
	return err
}
