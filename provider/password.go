package provider

import (
	"context"
	"errors"

	"github.com/cleevio/authflow/backend"
)

// SignInOptions tune the sign-in flow for password credentials. The flags are
// independent and may combine; SignUpOnAnyError supersedes SignUpOnUserNotFound.
type SignInOptions struct {
	// SignUpOnUserNotFound falls through to account creation when the backend
	// reports the address is unknown.
	SignUpOnUserNotFound bool

	// SignUpOnAnyError falls through to account creation on any sign-in
	// failure regardless of the code. Required against backends that
	// randomize error codes for user-enumeration protection: inspecting the
	// code cannot distinguish "no such user" there, so blind sign-up is the
	// only reliable fallback.
	SignUpOnAnyError bool

	// TryLinkOnSignIn links the credential to the currently authenticated
	// session instead of signing in plainly. Unset, password sign-in never
	// links.
	TryLinkOnSignIn bool
}

// PasswordFunc collects an email and password, typically from a form. It is
// the external-interaction collaborator of PasswordProvider.
type PasswordFunc func(ctx context.Context) (email, password string, err error)

// StaticPassword returns a PasswordFunc yielding fixed values. Useful for
// server-side flows where the credentials arrived with the request.
func StaticPassword(email, password string) PasswordFunc {
	return func(context.Context) (string, string, error) {
		return email, password, nil
	}
}

// PasswordProvider produces password credentials from a PasswordFunc source.
type PasswordProvider struct {
	source  PasswordFunc
	options SignInOptions
}

func NewPasswordProvider(source PasswordFunc, options SignInOptions) *PasswordProvider {
	return &PasswordProvider{source: source, options: options}
}

func (p *PasswordProvider) ID() string { return IDPassword }

func (p *PasswordProvider) Options() SignInOptions { return p.options }

func (p *PasswordProvider) Credential(ctx context.Context) (Credential, error) {
	if p.source == nil {
		return nil, NewError(IDPassword, KindTokenMissing, errors.New("no credential source"))
	}

	email, password, err := p.source(ctx)
	if err != nil {
		return nil, err
	}

	return &PasswordCredential{Email: email, Password: password, Options: p.options}, nil
}

// PasswordCredential is the email+secret credential variant. It carries the
// provider's sign-in options so the flow can honor them after conversion.
type PasswordCredential struct {
	Email    string
	Password string
	Options  SignInOptions
}

func (c *PasswordCredential) ProviderID() string { return IDPassword }

func (c *PasswordCredential) BackendCredential() backend.Credential {
	return backend.Credential{
		ProviderID: IDPassword,
		Email:      c.Email,
		Password:   c.Password,
	}
}

func (c *PasswordCredential) UserData() *UserData { return nil }
