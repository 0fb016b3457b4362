package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cleevio/authflow/backend"
)

// idTokenClaims are the claims read out of the backend's ID tokens. The
// sign-in payloads do not carry the verification or provider bits, so they
// are derived here.
type idTokenClaims struct {
	Email          string `json:"email"`
	EmailVerified  bool   `json:"email_verified"`
	SignInProvider string `json:"-"`

	Firebase struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`

	jwt.RegisteredClaims
}

// claimsFromIDToken parses the claims without signature verification: the
// token just arrived from the backend over TLS and is only inspected, never
// trusted as third-party input.
func claimsFromIDToken(idToken string) (*idTokenClaims, error) {
	if idToken == "" {
		return &idTokenClaims{}, nil
	}

	var claims idTokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, &claims); err != nil {
		return nil, fmt.Errorf("parse ID token: %w", err)
	}
	claims.SignInProvider = claims.Firebase.SignInProvider
	return &claims, nil
}

func (c *Client) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if !c.session.SignedIn() {
		return "", backend.ErrNotSignedIn
	}

	idToken, refreshToken, expiresAt := c.session.Tokens()
	if !forceRefresh && time.Now().Add(time.Minute).Before(expiresAt) {
		return idToken, nil
	}
	if refreshToken == "" {
		return "", backend.ErrNotSignedIn
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.cfg.TokenEndpoint, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrUnreachable, err)
	}

	var payload struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := c.decode(resp, &payload); err != nil {
		return "", err
	}

	newExpiry := time.Now().Add(time.Hour)
	if secs, err := strconv.Atoi(payload.ExpiresIn); err == nil && secs > 0 {
		newExpiry = time.Now().Add(time.Duration(secs) * time.Second)
	}
	c.session.UpdateTokens(payload.IDToken, payload.RefreshToken, newExpiry)

	return payload.IDToken, nil
}

// postTo sends a JSON payload to an absolute URL, used for auxiliary
// endpoints outside the accounts API.
func (c *Client) postTo(ctx context.Context, endpoint string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnreachable, err)
	}
	return c.decode(resp, nil)
}
