package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/session"
)

// signInPayload is the shared shape of signUp / signInWithPassword /
// signInWithIdp / update responses.
type signInPayload struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"`
	Registered    bool   `json:"registered"`
	IsNewUser     bool   `json:"isNewUser"`
	EmailVerified bool   `json:"emailVerified"`
}

func (c *Client) SignInAnonymously(ctx context.Context) (*backend.SignInResponse, error) {
	var payload signInPayload
	body := map[string]any{"returnSecureToken": true}
	if err := c.postOnce(ctx, "signUp", body, &payload); err != nil {
		return nil, err
	}
	return c.establish(&payload, true)
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*backend.SignInResponse, error) {
	body := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	// An authenticated anonymous session upgrades via accounts:update so the
	// account ID is preserved.
	api := "signUp"
	if current := c.session.Current(); current != nil && current.Anonymous {
		if idToken, _, _ := c.session.Tokens(); idToken != "" {
			api = "update"
			body["idToken"] = idToken
		}
	}

	var payload signInPayload
	if err := c.postOnce(ctx, api, body, &payload); err != nil {
		return nil, err
	}
	return c.establish(&payload, true)
}

func (c *Client) SignIn(ctx context.Context, cred backend.Credential, link bool) (*backend.SignInResponse, error) {
	if cred.ProviderID == "password" {
		return c.signInPassword(ctx, cred, link)
	}
	return c.signInIDP(ctx, cred, link)
}

func (c *Client) signInPassword(ctx context.Context, cred backend.Credential, link bool) (*backend.SignInResponse, error) {
	// Linking email+password to the current account goes through
	// accounts:update with the session's ID token.
	if link {
		if idToken, _, _ := c.session.Tokens(); idToken != "" {
			body := map[string]any{
				"idToken":           idToken,
				"email":             cred.Email,
				"password":          cred.Password,
				"returnSecureToken": true,
			}
			var payload signInPayload
			if err := c.postOnce(ctx, "update", body, &payload); err != nil {
				return nil, err
			}
			return c.establish(&payload, false)
		}
	}

	body := map[string]any{
		"email":             cred.Email,
		"password":          cred.Password,
		"returnSecureToken": true,
	}
	var payload signInPayload
	if err := c.postOnce(ctx, "signInWithPassword", body, &payload); err != nil {
		return nil, err
	}
	return c.establish(&payload, false)
}

func (c *Client) signInIDP(ctx context.Context, cred backend.Credential, link bool) (*backend.SignInResponse, error) {
	post := url.Values{}
	post.Set("providerId", cred.ProviderID)
	if cred.IDToken != "" {
		post.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		post.Set("access_token", cred.AccessToken)
	}
	if cred.RawNonce != "" {
		post.Set("nonce", cred.RawNonce)
	}

	body := map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	if link {
		if idToken, _, _ := c.session.Tokens(); idToken != "" {
			body["idToken"] = idToken
		}
	}

	var payload signInPayload
	if err := c.postOnce(ctx, "signInWithIdp", body, &payload); err != nil {
		return nil, err
	}
	return c.establish(&payload, payload.IsNewUser)
}

func (c *Client) SignOut(ctx context.Context) error {
	// The API has no server-side sign-out for API-key clients; dropping the
	// token pair ends the session.
	c.session.Clear()
	return nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body := map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}
	return c.post(ctx, "sendOobCode", body, nil)
}

func (c *Client) VerifyPasswordResetCode(ctx context.Context, code string) (string, error) {
	var payload struct {
		Email       string `json:"email"`
		RequestType string `json:"requestType"`
	}
	if err := c.post(ctx, "resetPassword", map[string]any{"oobCode": code}, &payload); err != nil {
		return "", err
	}
	return payload.Email, nil
}

func (c *Client) ChangePassword(ctx context.Context, code, newPassword string) error {
	body := map[string]any{
		"oobCode":     code,
		"newPassword": newPassword,
	}
	return c.postOnce(ctx, "resetPassword", body, nil)
}

func (c *Client) ApplyActionCode(ctx context.Context, code string) error {
	if err := c.postOnce(ctx, "update", map[string]any{"oobCode": code}, nil); err != nil {
		return err
	}
	return c.reload(ctx)
}

// reload refreshes the session's account snapshot from accounts:lookup.
func (c *Client) reload(ctx context.Context) error {
	idToken, _, _ := c.session.Tokens()
	if idToken == "" {
		return nil
	}

	var payload struct {
		Users []struct {
			LocalID       string `json:"localId"`
			Email         string `json:"email"`
			DisplayName   string `json:"displayName"`
			EmailVerified bool   `json:"emailVerified"`
		} `json:"users"`
	}
	if err := c.post(ctx, "lookup", map[string]any{"idToken": idToken}, &payload); err != nil {
		return err
	}
	if len(payload.Users) == 0 {
		return nil
	}

	u := payload.Users[0]
	current := c.session.Current()
	anonymous := current != nil && current.Anonymous && u.Email == ""
	c.session.UpdateAccount(&session.Account{
		ID:            u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		Anonymous:     anonymous,
	})
	return nil
}

func (c *Client) RegisterPushToken(ctx context.Context, token, platform string) error {
	if c.cfg.PushEndpoint == "" {
		c.log.Debug("push token registration skipped, no endpoint configured",
			zap.String("platform", platform))
		return nil
	}

	body := map[string]any{"token": token, "platform": platform}
	if idToken, _, _ := c.session.Tokens(); idToken != "" {
		body["idToken"] = idToken
	}

	return c.postTo(ctx, c.cfg.PushEndpoint, body)
}

// establish normalizes a sign-in payload, derives the claims the payload does
// not carry from the ID token, and mutates the session handle.
func (c *Client) establish(payload *signInPayload, newUser bool) (*backend.SignInResponse, error) {
	claims, err := claimsFromIDToken(payload.IDToken)
	if err != nil {
		return nil, fmt.Errorf("rest: %w", err)
	}

	expiresAt := time.Now().Add(time.Hour)
	if secs, err := strconv.Atoi(payload.ExpiresIn); err == nil && secs > 0 {
		expiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}

	email := payload.Email
	if email == "" {
		email = claims.Email
	}
	anonymous := claims.SignInProvider == "anonymous" || (email == "" && claims.SignInProvider == "")

	acct := &session.Account{
		ID:            payload.LocalID,
		Email:         email,
		DisplayName:   payload.DisplayName,
		EmailVerified: payload.EmailVerified || claims.EmailVerified,
		Anonymous:     anonymous,
	}
	c.session.Establish(acct, payload.IDToken, payload.RefreshToken, expiresAt)

	return &backend.SignInResponse{
		AccountID:     acct.ID,
		Email:         acct.Email,
		DisplayName:   acct.DisplayName,
		EmailVerified: acct.EmailVerified,
		Anonymous:     acct.Anonymous,
		NewUser:       newUser,
		IDToken:       payload.IDToken,
		RefreshToken:  payload.RefreshToken,
		ExpiresAt:     expiresAt,
	}, nil
}
