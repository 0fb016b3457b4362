// Package rest implements the identity backend facade over the Google
// Identity Toolkit v1 REST API and the securetoken token exchange.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/session"
)

const (
	defaultEndpoint      = "https://identitytoolkit.googleapis.com"
	defaultTokenEndpoint = "https://securetoken.googleapis.com"
)

// Config holds REST backend settings.
type Config struct {
	// APIKey is the Identity Toolkit API key. Required.
	APIKey string

	// Endpoint overrides the Identity Toolkit base URL, e.g. for the
	// emulator ("http://localhost:9099/identitytoolkit.googleapis.com").
	Endpoint string

	// TokenEndpoint overrides the securetoken base URL.
	TokenEndpoint string

	// PushEndpoint, when set, receives push-token registrations. Without it
	// RegisterPushToken is a logged no-op; device registration is normally
	// handled out of band.
	PushEndpoint string

	// RetryMax bounds transport retries for idempotent calls. Mutating
	// sign-in calls are never retried at the transport level.
	RetryMax int

	Timeout time.Duration
}

// Client implements backend.Backend against the hosted API. It mutates the
// injected session handle as a side effect of sign-in and sign-out.
type Client struct {
	cfg     Config
	http    *retryablehttp.Client
	session *session.Handle
	log     *zap.Logger
}

// ErrMissingAPIKey reports a client constructed without credentials.
var ErrMissingAPIKey = errors.New("rest: missing API key")

func New(cfg Config, sess *session.Handle) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		cfg:     cfg,
		http:    rc,
		session: sess,
		log:     zap.NewNop(),
	}, nil
}

func (c *Client) SetLogger(log *zap.Logger) { c.log = log }

// apiError is the Identity Toolkit error envelope.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) accountsURL(api string) string {
	return fmt.Sprintf("%s/v1/accounts:%s?key=%s", c.cfg.Endpoint, api, url.QueryEscape(c.cfg.APIKey))
}

// post calls an accounts API with transport retries. Only safe for calls that
// do not mutate account state.
func (c *Client) post(ctx context.Context, api string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL(api), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnreachable, err)
	}
	return c.decode(resp, out)
}

// postOnce calls an accounts API with no transport retries. Sign-in, link,
// and sign-up mutate backend state; replaying them could mutate twice.
func (c *Client) postOnce(ctx context.Context, api string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL(api), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnreachable, err)
	}
	return c.decode(resp, out)
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope apiError
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Message == "" {
			return &backend.APIError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode)}
		}
		// The conflict mapper needs the response body: the API attaches the
		// corrected credential next to the error message.
		return c.mapError(envelope.Error.Message, data)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// mapError translates Identity Toolkit error codes into the typed errors the
// sign-in flow dispatches on. Unrecognized codes pass through as APIError.
func (c *Client) mapError(message string, body []byte) error {
	// Messages may carry a detail suffix, e.g. "INVALID_PASSWORD : ...".
	code := message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}

	switch code {
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return backend.ErrUserNotFound

	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_IDP_RESPONSE":
		// INVALID_LOGIN_CREDENTIALS is the enumeration-protected variant: the
		// API deliberately hides whether the account exists.
		return backend.ErrInvalidCredential

	case "USER_DISABLED":
		return backend.ErrUserDisabled

	case "EMAIL_EXISTS":
		return backend.ErrEmailInUse

	case "FEDERATED_USER_ID_ALREADY_LINKED", "CREDENTIAL_ALREADY_IN_USE":
		return &backend.CredentialInUseError{
			Updated: updatedCredentialFromBody(body),
			Err:     &backend.APIError{Code: code},
		}

	case "TOKEN_EXPIRED", "INVALID_ID_TOKEN", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return backend.ErrNotSignedIn

	default:
		return &backend.APIError{Code: code, Message: message}
	}
}

// updatedCredentialFromBody lifts the corrected credential the API attaches
// to a federated conflict response, when one is present.
func updatedCredentialFromBody(body []byte) *backend.Credential {
	var payload struct {
		ProviderID       string `json:"providerId"`
		OauthIDToken     string `json:"oauthIdToken"`
		OauthAccessToken string `json:"oauthAccessToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if payload.OauthIDToken == "" && payload.OauthAccessToken == "" {
		return nil
	}
	return &backend.Credential{
		ProviderID:  payload.ProviderID,
		IDToken:     payload.OauthIDToken,
		AccessToken: payload.OauthAccessToken,
	}
}
