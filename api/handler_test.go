package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/cleevio/authflow/backend/local"
	"github.com/cleevio/authflow/flow"
	"github.com/cleevio/authflow/session"
)

func newTestServer(t *testing.T) (*echo.Echo, *flow.Authenticator) {
	t.Helper()

	store, err := local.OpenStore("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to setup store: %v", err)
	}
	sess := session.NewHandle()
	auth := flow.NewAuthenticator(local.New(store, sess, local.Config{BcryptCost: bcrypt.MinCost}), sess)

	h := NewHandler(auth)

	e := echo.New()
	g := e.Group("/api/v1")
	h.RegisterRoutes(g)
	return e, auth
}

func postJSON(e *echo.Echo, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIIntegration(t *testing.T) {
	e, auth := newTestServer(t)

	// 1. Sign up
	rec := postJSON(e, "/api/v1/signup", map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signup failed with code %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		IsNewUser bool `json:"isNewUser"`
	}
	json.Unmarshal(rec.Body.Bytes(), &result)
	if !result.IsNewUser {
		t.Error("signup should report a new user")
	}

	// 2. Sign in
	rec = postJSON(e, "/api/v1/signin", map[string]any{
		"email":    "test@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin failed with code %d: %s", rec.Code, rec.Body.String())
	}

	// 3. WhoAmI
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("whoami failed with code %d: %s", rec.Code, rec.Body.String())
	}
	var whoami struct {
		Email string `json:"Email"`
	}
	json.Unmarshal(rec.Body.Bytes(), &whoami)
	if whoami.Email != "test@example.com" {
		t.Errorf("unexpected whoami email: %s", whoami.Email)
	}

	// 4. Sign out
	rec = postJSON(e, "/api/v1/signout", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("signout failed with code %d", rec.Code)
	}
	if auth.Session().SignedIn() {
		t.Error("session should be cleared after signout")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("whoami should be unauthorized after signout, got %d", rec.Code)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	e, _ := newTestServer(t)

	postJSON(e, "/api/v1/signup", map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	})
	postJSON(e, "/api/v1/signout", nil)

	rec := postJSON(e, "/api/v1/signin", map[string]any{
		"email":    "test@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a wrong password, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSignInUnknownUser(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/api/v1/signin", map[string]any{
		"email":    "nobody@example.com",
		"password": "x",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown user, got %d", rec.Code)
	}

	// With the fallback flag the same request provisions the account.
	rec = postJSON(e, "/api/v1/signin", map[string]any{
		"email":           "nobody@example.com",
		"password":        "password123",
		"signUpIfMissing": true,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected fallback sign-up to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnonymousSignIn(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/api/v1/signin/anonymous", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous signin failed with code %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		IsAnonymous bool `json:"isAnonymous"`
	}
	json.Unmarshal(rec.Body.Bytes(), &result)
	if !result.IsAnonymous {
		t.Error("expected an anonymous result")
	}
}

func TestUnknownIDPReturns404(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/api/v1/signin/myspace", map[string]string{"idToken": "t"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unregistered provider, got %d", rec.Code)
	}
}

func TestPasswordResetEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	postJSON(e, "/api/v1/signup", map[string]string{
		"email":    "test@example.com",
		"password": "oldpass1",
	})
	postJSON(e, "/api/v1/signout", nil)

	// The handler hides account existence; both return 202.
	rec := postJSON(e, "/api/v1/password-reset", map[string]string{"email": "test@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Errorf("reset request failed with code %d", rec.Code)
	}
	rec = postJSON(e, "/api/v1/password-reset", map[string]string{"email": "nobody@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Errorf("reset for an unknown address must not disclose it, got %d", rec.Code)
	}

	rec = postJSON(e, "/api/v1/password-reset/verify", map[string]string{"code": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an invalid code, got %d", rec.Code)
	}
}
