package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Handle) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess := session.NewHandle()
	c, err := New(Config{
		APIKey:        "test-key",
		Endpoint:      srv.URL,
		TokenEndpoint: srv.URL,
	}, sess)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return c, sess
}

// restIDToken mints a token shaped like the backend's ID tokens. The client
// only inspects claims, so any signing key works.
func restIDToken(t *testing.T, subject, email, signInProvider string, verified bool) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":            subject,
		"email_verified": verified,
		"firebase":       map[string]any{"sign_in_provider": signInProvider},
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func apiErrorBody(message string, extra map[string]any) []byte {
	body := map[string]any{
		"error": map[string]any{"code": 400, "message": message},
	}
	for k, v := range extra {
		body[k] = v
	}
	data, _ := json.Marshal(body)
	return data
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}, session.NewHandle()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got: %v", err)
	}
}

func TestSignInWithPassword(t *testing.T) {
	idToken := restIDToken(t, "acct-1", "user@example.com", "password", true)

	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithPassword" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("API key missing from query")
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "user@example.com" {
			t.Errorf("unexpected email in request: %v", body["email"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"localId":      "acct-1",
			"email":        "user@example.com",
			"idToken":      idToken,
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
			"registered":   true,
		})
	}))

	cred := backend.Credential{ProviderID: "password", Email: "user@example.com", Password: "secret123"}
	resp, err := c.SignIn(context.Background(), cred, false)
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	if resp.AccountID != "acct-1" || resp.NewUser || resp.Anonymous {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !resp.EmailVerified {
		t.Error("verification flag should be derived from the ID token claims")
	}
	if current := sess.Current(); current == nil || current.ID != "acct-1" {
		t.Error("sign in must establish the session")
	}
	if got, refresh, _ := sess.Tokens(); got != idToken || refresh != "refresh-1" {
		t.Error("session tokens not stored")
	}
}

func TestSignInAnonymously(t *testing.T) {
	idToken := restIDToken(t, "anon-1", "", "anonymous", false)

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signUp" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"localId":      "anon-1",
			"idToken":      idToken,
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
		})
	}))

	resp, err := c.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("anonymous sign in failed: %v", err)
	}
	if !resp.Anonymous || !resp.NewUser {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSignUpUpgradesAnonymousSession(t *testing.T) {
	var gotAPI string
	var gotIDToken any
	newToken := restIDToken(t, "anon-1", "user@example.com", "password", false)

	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPI = r.URL.Path

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotIDToken = body["idToken"]

		json.NewEncoder(w).Encode(map[string]any{
			"localId":      "anon-1",
			"email":        "user@example.com",
			"idToken":      newToken,
			"refreshToken": "refresh-2",
			"expiresIn":    "3600",
		})
	}))

	anonToken := restIDToken(t, "anon-1", "", "anonymous", false)
	sess.Establish(&session.Account{ID: "anon-1", Anonymous: true}, anonToken, "refresh-1", time.Now().Add(time.Hour))

	resp, err := c.SignUp(context.Background(), "user@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign up failed: %v", err)
	}

	if gotAPI != "/v1/accounts:update" {
		t.Errorf("anonymous upgrade should go through accounts:update, got %s", gotAPI)
	}
	if gotIDToken != anonToken {
		t.Error("upgrade must carry the anonymous session's ID token")
	}
	if resp.AccountID != "anon-1" || resp.Anonymous {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSignInWithIDPLinking(t *testing.T) {
	idToken := restIDToken(t, "acct-1", "user@example.com", "google.com", true)

	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithIdp" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["returnIdpCredential"] != true {
			t.Error("IdP sign-in must request the corrected credential on conflicts")
		}
		if body["idToken"] == nil {
			t.Error("linking must carry the session's ID token")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"localId":      "acct-1",
			"email":        "user@example.com",
			"idToken":      idToken,
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
			"isNewUser":    false,
		})
	}))

	sess.Establish(&session.Account{ID: "acct-1"}, restIDToken(t, "acct-1", "", "password", false), "r", time.Now().Add(time.Hour))

	cred := backend.Credential{ProviderID: "google.com", IDToken: "google-token"}
	if _, err := c.SignIn(context.Background(), cred, true); err != nil {
		t.Fatalf("IdP sign in failed: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		message string
		want    error
	}{
		{"EMAIL_NOT_FOUND", backend.ErrUserNotFound},
		{"INVALID_PASSWORD", backend.ErrInvalidCredential},
		{"INVALID_LOGIN_CREDENTIALS", backend.ErrInvalidCredential},
		{"INVALID_PASSWORD : The password is invalid.", backend.ErrInvalidCredential},
		{"USER_DISABLED", backend.ErrUserDisabled},
		{"EMAIL_EXISTS", backend.ErrEmailInUse},
		{"TOKEN_EXPIRED", backend.ErrNotSignedIn},
	}

	for _, tc := range cases {
		var message = tc.message
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write(apiErrorBody(message, nil))
		}))

		cred := backend.Credential{ProviderID: "password", Email: "user@example.com", Password: "x"}
		_, err := c.SignIn(context.Background(), cred, false)
		if !errors.Is(err, tc.want) {
			t.Errorf("message %q: expected %v, got %v", tc.message, tc.want, err)
		}
	}
}

func TestUnknownErrorCodePassesThrough(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write(apiErrorBody("QUOTA_EXCEEDED : too many requests", nil))
	}))

	_, err := c.SignInAnonymously(context.Background())
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if apiErr.Code != "QUOTA_EXCEEDED" {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestConflictCarriesCorrectedCredential(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write(apiErrorBody("FEDERATED_USER_ID_ALREADY_LINKED", map[string]any{
			"providerId":   "google.com",
			"oauthIdToken": "corrected-token",
		}))
	}))

	cred := backend.Credential{ProviderID: "google.com", IDToken: "original-token"}
	_, err := c.SignIn(context.Background(), cred, true)

	var conflict *backend.CredentialInUseError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected CredentialInUseError, got: %v", err)
	}
	if conflict.Updated == nil {
		t.Fatal("conflict must carry the corrected credential")
	}
	if conflict.Updated.IDToken != "corrected-token" || conflict.Updated.ProviderID != "google.com" {
		t.Errorf("unexpected corrected credential: %+v", conflict.Updated)
	}
}

func TestConflictWithoutCredentialBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write(apiErrorBody("CREDENTIAL_ALREADY_IN_USE", nil))
	}))

	cred := backend.Credential{ProviderID: "google.com", IDToken: "t"}
	_, err := c.SignIn(context.Background(), cred, true)

	var conflict *backend.CredentialInUseError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected CredentialInUseError, got: %v", err)
	}
	if conflict.Updated != nil {
		t.Errorf("no corrected credential was attached, got: %+v", conflict.Updated)
	}
}

func TestMutatingCallsAreNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(apiErrorBody("INTERNAL", nil))
	}))
	defer srv.Close()

	sess := session.NewHandle()
	c, err := New(Config{APIKey: "test-key", Endpoint: srv.URL, RetryMax: 1}, sess)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	cred := backend.Credential{ProviderID: "password", Email: "user@example.com", Password: "x"}
	if _, err := c.SignIn(context.Background(), cred, false); err == nil {
		t.Fatal("expected an error")
	}
	if hits != 1 {
		t.Errorf("sign-in must hit the API exactly once, got %d", hits)
	}

	// The read-only reset request goes through the retrying transport.
	hits = 0
	if err := c.RequestPasswordReset(context.Background(), "user@example.com"); err == nil {
		t.Fatal("expected an error")
	}
	if hits != 2 {
		t.Errorf("expected 1 attempt + 1 retry for idempotent calls, got %d", hits)
	}
}

func TestTokenRefresh(t *testing.T) {
	newToken := restIDToken(t, "acct-1", "user@example.com", "password", true)

	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id_token":      newToken,
			"refresh_token": "refresh-2",
			"expires_in":    "3600",
		})
	}))

	if _, err := c.Token(context.Background(), false); !errors.Is(err, backend.ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn without a session, got: %v", err)
	}

	// An expired session token forces the refresh call.
	oldToken := restIDToken(t, "acct-1", "user@example.com", "password", true)
	sess.Establish(&session.Account{ID: "acct-1"}, oldToken, "refresh-1", time.Now().Add(-time.Minute))

	got, err := c.Token(context.Background(), false)
	if err != nil {
		t.Fatalf("token refresh failed: %v", err)
	}
	if got != newToken {
		t.Error("refresh should return the new token")
	}
	if _, refresh, _ := sess.Tokens(); refresh != "refresh-2" {
		t.Error("rotated refresh token must be stored")
	}

	// A fresh token short-circuits without a network call.
	sess.UpdateTokens(newToken, "refresh-2", time.Now().Add(time.Hour))
	got, err = c.Token(context.Background(), false)
	if err != nil || got != newToken {
		t.Errorf("fresh token should be served from the session: %v", err)
	}
}

func TestNetworkFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	sess := session.NewHandle()
	c, err := New(Config{APIKey: "test-key", Endpoint: srv.URL}, sess)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	cred := backend.Credential{ProviderID: "password", Email: "user@example.com", Password: "x"}
	if _, err := c.SignIn(context.Background(), cred, false); !errors.Is(err, backend.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got: %v", err)
	}
}
