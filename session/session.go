// Package session holds the process-wide authenticated-session state.
//
// The backend's "currently authenticated session" is shared mutable state.
// It is modeled as an explicit Handle injected into both the backend
// implementation and the flow.Authenticator; lifecycle is owned by the host
// application. The flow reads it at most once per sign-in, backends mutate it
// as a side effect of sign-in, sign-up, and sign-out.
package session

import (
	"sync"
	"time"
)

// Account is the signed-in account snapshot carried by a Handle.
type Account struct {
	ID            string
	Email         string
	DisplayName   string
	EmailVerified bool
	Anonymous     bool
}

// Handle is a synchronized container for the current session. The zero value
// is not usable; construct with NewHandle.
type Handle struct {
	mu           sync.RWMutex
	account      *Account
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

func NewHandle() *Handle {
	return &Handle{}
}

// SignedIn reports whether a session is currently established.
func (h *Handle) SignedIn() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.account != nil
}

// Current returns a copy of the signed-in account, or nil.
func (h *Handle) Current() *Account {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.account == nil {
		return nil
	}
	acct := *h.account
	return &acct
}

// Establish replaces the session with the given account and tokens.
func (h *Handle) Establish(acct *Account, idToken, refreshToken string, expiresAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	copied := *acct
	h.account = &copied
	h.idToken = idToken
	h.refreshToken = refreshToken
	h.expiresAt = expiresAt
}

// UpdateAccount refreshes the account snapshot without touching tokens.
func (h *Handle) UpdateAccount(acct *Account) {
	h.mu.Lock()
	defer h.mu.Unlock()
	copied := *acct
	h.account = &copied
}

// UpdateTokens replaces the token pair after a refresh.
func (h *Handle) UpdateTokens(idToken, refreshToken string, expiresAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.idToken = idToken
	if refreshToken != "" {
		h.refreshToken = refreshToken
	}
	h.expiresAt = expiresAt
}

// Tokens returns the current token pair and its expiry.
func (h *Handle) Tokens() (idToken, refreshToken string, expiresAt time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToken, h.refreshToken, h.expiresAt
}

// Clear tears the session down.
func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.account = nil
	h.idToken = ""
	h.refreshToken = ""
	h.expiresAt = time.Time{}
}
