// Package provider defines the credential-producing capability consumed by
// the sign-in flow, along with the concrete password and OAuth-style
// implementations.
//
// A CredentialProvider produces a provider-specific Credential with no backend
// state involved. Credentials are converted to a backend.Credential handle by
// a pure, total conversion and discarded within a single sign-in attempt;
// nothing in this package persists them.
package provider

import (
	"context"

	"github.com/cleevio/authflow/backend"
)

// Provider identifiers, matching the backend's providerId vocabulary.
const (
	IDPassword = "password"
	IDGoogle   = "google.com"
	IDApple    = "apple.com"
	IDFacebook = "facebook.com"
)

// UserData carries profile fields the provider collected during credential
// acquisition, independent of what the backend returns. Apple, for instance,
// only discloses the full name on the first authorization.
type UserData struct {
	DisplayName string
	Email       string
}

// CredentialProvider asynchronously produces a credential. Implementations may
// drive external interaction (a form, a native sign-in flow); that interaction
// is entirely the provider's responsibility and the flow treats it as an
// opaque suspension point.
type CredentialProvider interface {
	ID() string
	Credential(ctx context.Context) (Credential, error)
}

// Credential is a provider-specific proof of identity prior to backend
// conversion.
type Credential interface {
	ProviderID() string

	// BackendCredential converts the credential to its backend-native handle.
	// The conversion is pure and representation-only; it cannot fail.
	BackendCredential() backend.Credential

	// UserData returns profile data collected alongside the credential, or nil.
	UserData() *UserData
}

// PresentationContext is an opaque handle to the surface an interactive
// provider presents its flow on (a window, a view controller, a terminal).
type PresentationContext any

// PresentationContextProvider defers resolution of the presentation context
// to the moment the provider actually needs it.
type PresentationContextProvider func() PresentationContext

// PresentationContextHolder is implemented by providers whose credential
// acquisition drives a user-facing flow. The sign-in flow checks for this
// capability and injects its default context provider into an empty slot
// before requesting credentials.
type PresentationContextHolder interface {
	PresentationContextProvider() PresentationContextProvider
	SetPresentationContextProvider(PresentationContextProvider)
}

// PresentationSlot is an embeddable PresentationContextHolder implementation.
type PresentationSlot struct {
	presentation PresentationContextProvider
}

func (s *PresentationSlot) PresentationContextProvider() PresentationContextProvider {
	return s.presentation
}

func (s *PresentationSlot) SetPresentationContextProvider(p PresentationContextProvider) {
	s.presentation = p
}

// OAuthCredential is the credential variant produced by token-based social
// providers.
type OAuthCredential struct {
	Provider    string
	IDToken     string
	AccessToken string
	RawNonce    string
	User        *UserData
}

func (c *OAuthCredential) ProviderID() string { return c.Provider }

func (c *OAuthCredential) BackendCredential() backend.Credential {
	return backend.Credential{
		ProviderID:  c.Provider,
		IDToken:     c.IDToken,
		AccessToken: c.AccessToken,
		RawNonce:    c.RawNonce,
	}
}

func (c *OAuthCredential) UserData() *UserData { return c.User }
