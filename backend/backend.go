// Package backend defines the call surface over a remote identity backend.
//
// The interface is consumed by the flow package, which only special-cases two
// failure identities: CredentialInUseError and ErrUserNotFound. Everything else
// is opaque to the sign-in flow and propagates to the caller unchanged.
package backend

import (
	"context"
	"time"
)

// Credential is the backend-native representation of a provider credential.
// It is an immutable value; converting the same provider credential twice
// yields equal Credential values. A Credential is consumed by exactly one
// sign-in or link call.
type Credential struct {
	ProviderID  string
	Email       string
	Password    string
	IDToken     string
	AccessToken string
	RawNonce    string
}

// SignInResponse is the raw backend result of a sign-in, link, or sign-up.
type SignInResponse struct {
	AccountID     string
	Email         string
	DisplayName   string
	EmailVerified bool
	Anonymous     bool
	NewUser       bool

	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Backend is the identity backend facade. All operations are asynchronous in
// the sense that they may block on network or storage; they honor ctx.
//
// Implementations mutate the injected session handle as a side effect of
// sign-in, sign-up, and sign-out.
type Backend interface {
	// SignInAnonymously establishes a session for a throwaway anonymous account.
	SignInAnonymously(ctx context.Context) (*SignInResponse, error)

	// SignUp creates a new email+password account and signs it in.
	SignUp(ctx context.Context, email, password string) (*SignInResponse, error)

	// SignIn authenticates with the given credential. When link is true and a
	// session is currently authenticated, the credential is attached to that
	// account instead of establishing a new one; without an authenticated
	// session, link has no effect.
	SignIn(ctx context.Context, cred Credential, link bool) (*SignInResponse, error)

	// SignOut tears down the current session.
	SignOut(ctx context.Context) error

	// Token returns a valid ID token for the current session, refreshing it
	// when expired or when forceRefresh is set.
	Token(ctx context.Context, forceRefresh bool) (string, error)

	// RequestPasswordReset starts the password-reset flow for the address.
	RequestPasswordReset(ctx context.Context, email string) error

	// VerifyPasswordResetCode checks a reset code and returns the address it
	// was issued for.
	VerifyPasswordResetCode(ctx context.Context, code string) (string, error)

	// ChangePassword consumes a reset code and sets a new password.
	ChangePassword(ctx context.Context, code, newPassword string) error

	// ApplyActionCode applies an out-of-band action code (e.g. email
	// verification) and reloads the current account state.
	ApplyActionCode(ctx context.Context, code string) error

	// RegisterPushToken registers a platform push token for the current account.
	RegisterPushToken(ctx context.Context, token, platform string) error
}
