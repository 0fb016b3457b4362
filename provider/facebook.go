package provider

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// FacebookTokens is the output of the native Facebook login flow.
type FacebookTokens struct {
	AccessToken string
}

// FacebookTokenFunc drives the external Facebook login interaction.
type FacebookTokenFunc func(ctx context.Context) (FacebookTokens, error)

// StaticFacebookTokens returns a FacebookTokenFunc yielding a fixed token.
func StaticFacebookTokens(accessToken string) FacebookTokenFunc {
	return func(context.Context) (FacebookTokens, error) {
		return FacebookTokens{AccessToken: accessToken}, nil
	}
}

// FacebookProvider produces access-token credentials from the Facebook login
// flow. Its flow is user-facing, so the provider requires a presentation
// context.
type FacebookProvider struct {
	PresentationSlot

	oauth  *oauth2.Config
	source FacebookTokenFunc
}

// NewFacebookProvider builds a Facebook provider. ClientID and clientSecret
// are only needed for the server-side code exchange path; token-based flows
// may pass empty strings.
func NewFacebookProvider(clientID, clientSecret, redirectURL string, source FacebookTokenFunc) *FacebookProvider {
	return &FacebookProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email", "public_profile"},
		},
		source: source,
	}
}

// WithSource returns a copy of the provider reading tokens from the given
// source.
func (p *FacebookProvider) WithSource(source FacebookTokenFunc) *FacebookProvider {
	clone := *p
	clone.source = source
	return &clone
}

// AuthCodeURL returns the authorization URL for the server-side exchange path.
func (p *FacebookProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ExchangeCode swaps an authorization code for an access token, for callers
// running the code flow instead of the native token flow.
func (p *FacebookProvider) ExchangeCode(ctx context.Context, code string) (FacebookTokens, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return FacebookTokens{}, NewError(IDFacebook, KindUnavailable, fmt.Errorf("code exchange: %w", err))
	}
	return FacebookTokens{AccessToken: token.AccessToken}, nil
}

func (p *FacebookProvider) ID() string { return IDFacebook }

func (p *FacebookProvider) Credential(ctx context.Context) (Credential, error) {
	if p.source == nil {
		return nil, NewError(IDFacebook, KindTokenMissing, errors.New("no token source"))
	}

	tokens, err := p.source(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, NewError(IDFacebook, KindTokenMissing, errors.New("login flow returned no access token"))
	}

	return &OAuthCredential{
		Provider:    IDFacebook,
		AccessToken: tokens.AccessToken,
	}, nil
}
