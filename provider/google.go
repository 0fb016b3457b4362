package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

const googleIssuer = "https://accounts.google.com"

// GoogleTokens is the output of the native Google sign-in flow.
type GoogleTokens struct {
	IDToken     string
	AccessToken string
}

// GoogleTokenFunc drives the external Google sign-in interaction and returns
// its tokens.
type GoogleTokenFunc func(ctx context.Context) (GoogleTokens, error)

// StaticGoogleTokens returns a GoogleTokenFunc yielding fixed tokens, for
// server-side flows where the native sign-in already happened on the client.
func StaticGoogleTokens(idToken, accessToken string) GoogleTokenFunc {
	return func(context.Context) (GoogleTokens, error) {
		return GoogleTokens{IDToken: idToken, AccessToken: accessToken}, nil
	}
}

// GoogleProvider verifies Google ID tokens and produces OAuth credentials.
type GoogleProvider struct {
	PresentationSlot

	verifier *oidc.IDTokenVerifier
	source   GoogleTokenFunc
}

// NewGoogleProvider discovers Google's OIDC configuration and builds a
// provider verifying tokens for the given client ID.
func NewGoogleProvider(ctx context.Context, clientID string, source GoogleTokenFunc) (*GoogleProvider, error) {
	p, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google: discovery failed: %w", err)
	}

	return &GoogleProvider{
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
		source:   source,
	}, nil
}

// WithSource returns a copy of the provider reading tokens from the given
// source. The verifier is shared; per-request copies are cheap.
func (p *GoogleProvider) WithSource(source GoogleTokenFunc) *GoogleProvider {
	clone := *p
	clone.source = source
	return &clone
}

func (p *GoogleProvider) ID() string { return IDGoogle }

func (p *GoogleProvider) Credential(ctx context.Context) (Credential, error) {
	if p.source == nil {
		return nil, NewError(IDGoogle, KindTokenMissing, errors.New("no token source"))
	}

	tokens, err := p.source(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == "" {
		return nil, NewError(IDGoogle, KindTokenMissing, errors.New("sign-in flow returned no ID token"))
	}

	idToken, err := p.verifier.Verify(ctx, tokens.IDToken)
	if err != nil {
		return nil, NewError(IDGoogle, KindUnknown, fmt.Errorf("ID token verification: %w", err))
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, NewError(IDGoogle, KindUnknown, fmt.Errorf("claims: %w", err))
	}

	var user *UserData
	if claims.Email != "" || claims.Name != "" {
		user = &UserData{DisplayName: claims.Name, Email: claims.Email}
	}

	return &OAuthCredential{
		Provider:    IDGoogle,
		IDToken:     tokens.IDToken,
		AccessToken: tokens.AccessToken,
		User:        user,
	}, nil
}
