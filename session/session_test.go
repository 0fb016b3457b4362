package session

import (
	"sync"
	"testing"
	"time"
)

func TestHandleLifecycle(t *testing.T) {
	h := NewHandle()

	if h.SignedIn() {
		t.Error("fresh handle should not be signed in")
	}
	if h.Current() != nil {
		t.Error("fresh handle should have no account")
	}

	exp := time.Now().Add(time.Hour)
	h.Establish(&Account{ID: "acct-1", Email: "user@example.com"}, "id-token", "refresh-token", exp)

	if !h.SignedIn() {
		t.Error("handle should be signed in after Establish")
	}
	current := h.Current()
	if current == nil || current.ID != "acct-1" {
		t.Fatalf("unexpected current account: %+v", current)
	}

	idToken, refreshToken, expiresAt := h.Tokens()
	if idToken != "id-token" || refreshToken != "refresh-token" || !expiresAt.Equal(exp) {
		t.Errorf("unexpected tokens: %s %s %v", idToken, refreshToken, expiresAt)
	}

	h.Clear()
	if h.SignedIn() {
		t.Error("handle should not be signed in after Clear")
	}
	if idToken, _, _ := h.Tokens(); idToken != "" {
		t.Error("tokens should be cleared")
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	h := NewHandle()
	h.Establish(&Account{ID: "acct-1"}, "t", "r", time.Now())

	h.Current().ID = "mutated"
	if h.Current().ID != "acct-1" {
		t.Error("mutating the returned account must not affect the handle")
	}
}

func TestUpdateTokensKeepsRefreshToken(t *testing.T) {
	h := NewHandle()
	h.Establish(&Account{ID: "acct-1"}, "t1", "r1", time.Now())

	// Refresh responses may omit the rotation of the refresh token.
	h.UpdateTokens("t2", "", time.Now().Add(time.Hour))

	idToken, refreshToken, _ := h.Tokens()
	if idToken != "t2" {
		t.Errorf("id token not updated: %s", idToken)
	}
	if refreshToken != "r1" {
		t.Errorf("empty refresh token must not overwrite the stored one: %q", refreshToken)
	}
}

func TestUpdateAccountKeepsTokens(t *testing.T) {
	h := NewHandle()
	h.Establish(&Account{ID: "acct-1"}, "t1", "r1", time.Now())

	h.UpdateAccount(&Account{ID: "acct-1", EmailVerified: true})

	if !h.Current().EmailVerified {
		t.Error("account snapshot not updated")
	}
	if idToken, _, _ := h.Tokens(); idToken != "t1" {
		t.Error("tokens must survive an account update")
	}
}

func TestHandleConcurrentAccess(t *testing.T) {
	h := NewHandle()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Establish(&Account{ID: "acct"}, "t", "r", time.Now())
		}()
		go func() {
			defer wg.Done()
			_ = h.Current()
			_ = h.SignedIn()
		}()
	}
	wg.Wait()
}
