package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

const appleIssuer = "https://appleid.apple.com"

// AppleTokens is the output of the native Sign in with Apple flow. FullName
// and Email are only populated on the first authorization for an Apple ID;
// they are carried into the credential's UserData because the backend never
// sees them again.
type AppleTokens struct {
	IdentityToken     string
	AuthorizationCode string
	RawNonce          string
	FullName          string
	Email             string
}

// AppleTokenFunc drives the external Apple sign-in interaction.
type AppleTokenFunc func(ctx context.Context) (AppleTokens, error)

// StaticAppleTokens returns an AppleTokenFunc yielding fixed tokens.
func StaticAppleTokens(t AppleTokens) AppleTokenFunc {
	return func(context.Context) (AppleTokens, error) { return t, nil }
}

// AppleProvider verifies Apple identity tokens, including the nonce binding,
// and produces OAuth credentials. Apple's flow is user-facing, so the provider
// requires a presentation context.
type AppleProvider struct {
	PresentationSlot

	verifier *oidc.IDTokenVerifier
	source   AppleTokenFunc
}

// NewAppleProvider discovers Apple's OIDC configuration and builds a provider
// verifying identity tokens for the given client ID (the app's bundle ID or
// services ID).
func NewAppleProvider(ctx context.Context, clientID string, source AppleTokenFunc) (*AppleProvider, error) {
	p, err := oidc.NewProvider(ctx, appleIssuer)
	if err != nil {
		return nil, fmt.Errorf("apple: discovery failed: %w", err)
	}

	return &AppleProvider{
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
		source:   source,
	}, nil
}

// WithSource returns a copy of the provider reading tokens from the given
// source.
func (p *AppleProvider) WithSource(source AppleTokenFunc) *AppleProvider {
	clone := *p
	clone.source = source
	return &clone
}

func (p *AppleProvider) ID() string { return IDApple }

func (p *AppleProvider) Credential(ctx context.Context) (Credential, error) {
	if p.source == nil {
		return nil, NewError(IDApple, KindTokenMissing, errors.New("no token source"))
	}

	tokens, err := p.source(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.IdentityToken == "" {
		return nil, NewError(IDApple, KindTokenMissing, errors.New("sign-in flow returned no identity token"))
	}

	idToken, err := p.verifier.Verify(ctx, tokens.IdentityToken)
	if err != nil {
		return nil, NewError(IDApple, KindUnknown, fmt.Errorf("identity token verification: %w", err))
	}

	var claims struct {
		Email string `json:"email"`
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, NewError(IDApple, KindUnknown, fmt.Errorf("claims: %w", err))
	}

	// The token carries the SHA-256 digest of the raw nonce handed to the
	// native flow. A mismatch means the token was not minted for this request.
	if tokens.RawNonce != "" && claims.Nonce != SHA256Nonce(tokens.RawNonce) {
		return nil, NewError(IDApple, KindUnknown, errors.New("nonce mismatch"))
	}

	email := tokens.Email
	if email == "" {
		email = claims.Email
	}

	var user *UserData
	if tokens.FullName != "" || email != "" {
		user = &UserData{DisplayName: tokens.FullName, Email: email}
	}

	return &OAuthCredential{
		Provider: IDApple,
		IDToken:  tokens.IdentityToken,
		RawNonce: tokens.RawNonce,
		User:     user,
	}, nil
}
