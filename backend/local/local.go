// Package local is an emulator-grade identity backend for development and
// tests. It implements the same facade as the hosted backend, including the
// conflict and user-not-found signals the sign-in flow special-cases, on top
// of a GORM store with bcrypt password hashing and HS256 ID tokens.
package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/session"
)

// CodeSender delivers an out-of-band action code to the user (mail delivery
// is not owned here). The default sender only logs the code.
type CodeSender func(ctx context.Context, email, code, codeType string) error

// Config holds local backend settings. Zero values get development defaults.
type Config struct {
	// Secret signs ID tokens. Required outside tests.
	Secret string

	TokenTTL      time.Duration
	RefreshTTL    time.Duration
	ActionCodeTTL time.Duration
	BcryptCost    int

	Lockout LockoutConfig
}

func (c *Config) defaults() {
	if c.Secret == "" {
		c.Secret = "dev-secret-change-me"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.ActionCodeTTL == 0 {
		c.ActionCodeTTL = time.Hour
	}
	if c.Lockout.MaxFailures == 0 {
		c.Lockout.MaxFailures = 5
	}
	if c.Lockout.LockoutDuration == 0 {
		c.Lockout.LockoutDuration = 15 * time.Minute
	}
	if c.Lockout.FailureWindow == 0 {
		c.Lockout.FailureWindow = 15 * time.Minute
	}
}

// Backend implements backend.Backend against the local store.
type Backend struct {
	store   *Store
	session *session.Handle
	hasher  Hasher
	lockout LockoutStore
	sender  CodeSender
	cfg     Config
	log     *zap.Logger
}

func New(store *Store, sess *session.Handle, cfg Config) *Backend {
	cfg.defaults()
	return &Backend{
		store:   store,
		session: sess,
		hasher:  NewBcryptHasher(cfg.BcryptCost),
		lockout: NewMemoryLockoutStore(),
		cfg:     cfg,
		log:     zap.NewNop(),
	}
}

// SetLockoutStore swaps the brute-force store, e.g. for the Redis
// implementation in distributed deployments.
func (b *Backend) SetLockoutStore(s LockoutStore) { b.lockout = s }

// SetCodeSender installs the action-code delivery hook.
func (b *Backend) SetCodeSender(s CodeSender) { b.sender = s }

func (b *Backend) SetLogger(log *zap.Logger) { b.log = log }

func (b *Backend) SignInAnonymously(ctx context.Context) (*backend.SignInResponse, error) {
	acct := &Account{
		ID:        uuid.New().String(),
		Anonymous: true,
	}
	if err := b.store.CreateAccount(acct); err != nil {
		return nil, err
	}

	return b.establish(ctx, acct, "anonymous", true)
}

func (b *Backend) SignUp(ctx context.Context, email, password string) (*backend.SignInResponse, error) {
	email = normalizeEmail(email)

	existing, err := b.store.AccountByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, backend.ErrEmailInUse
	}

	hash, err := b.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	// An anonymous session upgrades in place instead of minting a new account.
	if current := b.session.Current(); current != nil && current.Anonymous {
		acct, err := b.store.AccountByID(current.ID)
		if err != nil {
			return nil, err
		}
		if acct != nil {
			acct.Email = email
			acct.PasswordHash = hash
			acct.Anonymous = false
			if err := b.store.UpdateAccount(acct); err != nil {
				return nil, err
			}
			return b.establish(ctx, acct, "password", true)
		}
	}

	acct := &Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := b.store.CreateAccount(acct); err != nil {
		return nil, err
	}

	b.log.Info("account created", zap.String("account_id", acct.ID))
	return b.establish(ctx, acct, "password", true)
}

func (b *Backend) SignIn(ctx context.Context, cred backend.Credential, link bool) (*backend.SignInResponse, error) {
	if cred.ProviderID == "password" {
		return b.signInPassword(ctx, cred, link)
	}
	return b.signInIDP(ctx, cred, link)
}

func (b *Backend) signInPassword(ctx context.Context, cred backend.Credential, link bool) (*backend.SignInResponse, error) {
	email := normalizeEmail(cred.Email)

	locked, until, err := b.lockout.IsLocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, fmt.Errorf("local: account locked until %s: %w", until.Format(time.RFC3339), backend.ErrInvalidCredential)
	}

	acct, err := b.store.AccountByEmail(email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, backend.ErrUserNotFound
	}
	if acct.Disabled {
		return nil, backend.ErrUserDisabled
	}

	if !b.hasher.Compare(cred.Password, acct.PasswordHash) {
		count, rErr := b.lockout.RecordFailure(ctx, email, b.cfg.Lockout.FailureWindow)
		if rErr == nil && count >= b.cfg.Lockout.MaxFailures {
			_ = b.lockout.Lock(ctx, email, b.cfg.Lockout.LockoutDuration)
			b.log.Warn("account locked after repeated failures", zap.String("email", email))
		}
		return nil, backend.ErrInvalidCredential
	}

	_ = b.lockout.ClearFailures(ctx, email)

	// Linking a password credential attaches the address to the current
	// account; an address owned by a different account is a conflict.
	if link {
		if current := b.session.Current(); current != nil && current.ID != acct.ID {
			return nil, &backend.CredentialInUseError{}
		}
	}

	return b.establish(ctx, acct, "password", false)
}

func (b *Backend) signInIDP(ctx context.Context, cred backend.Credential, link bool) (*backend.SignInResponse, error) {
	subject, email, name, err := idpSubject(cred)
	if err != nil {
		return nil, err
	}

	linkRow, err := b.store.LinkBySubject(cred.ProviderID, subject)
	if err != nil {
		return nil, err
	}
	current := b.session.Current()

	switch {
	case linkRow != nil:
		// Subject already bound. Binding it to a different signed-in account
		// is the conflict the flow recovers from with a plain retry; the
		// credential itself still signs into its owning account, so it is
		// returned as the corrected credential.
		if link && current != nil && linkRow.AccountID != current.ID {
			updated := cred
			return nil, &backend.CredentialInUseError{Updated: &updated}
		}
		acct, err := b.store.AccountByID(linkRow.AccountID)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, backend.ErrUserNotFound
		}
		if acct.Disabled {
			return nil, backend.ErrUserDisabled
		}
		return b.establish(ctx, acct, cred.ProviderID, false)

	case link && current != nil:
		// Attach the new subject to the signed-in account.
		acct, err := b.store.AccountByID(current.ID)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, backend.ErrNotSignedIn
		}
		if err := b.createLink(acct.ID, cred.ProviderID, subject, email); err != nil {
			return nil, err
		}
		if acct.Anonymous {
			acct.Anonymous = false
			acct.Email = firstNonEmpty(acct.Email, email)
			acct.DisplayName = firstNonEmpty(acct.DisplayName, name)
			if err := b.store.UpdateAccount(acct); err != nil {
				return nil, err
			}
		}
		return b.establish(ctx, acct, cred.ProviderID, false)

	default:
		// Fresh subject, no session to link to: new account.
		acct := &Account{
			ID:            uuid.New().String(),
			Email:         email,
			DisplayName:   name,
			EmailVerified: email != "",
		}
		if err := b.store.CreateAccount(acct); err != nil {
			return nil, err
		}
		if err := b.createLink(acct.ID, cred.ProviderID, subject, email); err != nil {
			return nil, err
		}
		return b.establish(ctx, acct, cred.ProviderID, true)
	}
}

func (b *Backend) createLink(accountID, providerID, subject, email string) error {
	return b.store.CreateLink(&ProviderLink{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		ProviderID: providerID,
		Subject:    subject,
		Email:      email,
	})
}

func (b *Backend) SignOut(ctx context.Context) error {
	_, refresh, _ := b.session.Tokens()
	if refresh != "" {
		if err := b.store.DeleteRefreshSession(refresh); err != nil {
			return err
		}
	}
	b.session.Clear()
	return nil
}

func (b *Backend) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if !b.session.SignedIn() {
		return "", backend.ErrNotSignedIn
	}

	idToken, refresh, expiresAt := b.session.Tokens()
	if !forceRefresh && time.Now().Add(time.Minute).Before(expiresAt) {
		return idToken, nil
	}

	rs, err := b.store.RefreshSessionByToken(refresh)
	if err != nil {
		return "", err
	}
	if rs == nil || !rs.Active || rs.ExpiresAt.Before(time.Now()) {
		return "", backend.ErrNotSignedIn
	}

	acct, err := b.store.AccountByID(rs.AccountID)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", backend.ErrNotSignedIn
	}

	token, expiry, err := b.mintIDToken(acct, "", time.Now())
	if err != nil {
		return "", err
	}
	b.session.UpdateTokens(token, "", expiry)
	return token, nil
}

func (b *Backend) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	acct, err := b.store.AccountByEmail(email)
	if err != nil {
		return err
	}
	if acct == nil {
		return backend.ErrUserNotFound
	}

	code := uuid.New().String()
	if err := b.store.SaveActionCode(&ActionCode{
		Code:      code,
		AccountID: acct.ID,
		Type:      actionPasswordReset,
		Email:     email,
		ExpiresAt: time.Now().Add(b.cfg.ActionCodeTTL),
	}); err != nil {
		return err
	}

	if b.sender != nil {
		return b.sender(ctx, email, code, actionPasswordReset)
	}
	b.log.Info("password reset code issued", zap.String("email", email), zap.String("code", code))
	return nil
}

func (b *Backend) VerifyPasswordResetCode(ctx context.Context, code string) (string, error) {
	ac, err := b.actionCode(code, actionPasswordReset)
	if err != nil {
		return "", err
	}
	return ac.Email, nil
}

func (b *Backend) ChangePassword(ctx context.Context, code, newPassword string) error {
	ac, err := b.actionCode(code, actionPasswordReset)
	if err != nil {
		return err
	}

	acct, err := b.store.AccountByID(ac.AccountID)
	if err != nil {
		return err
	}
	if acct == nil {
		return backend.ErrUserNotFound
	}

	hash, err := b.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	if err := b.store.UpdateAccount(acct); err != nil {
		return err
	}

	// Consume the code and revoke outstanding refresh sessions.
	_ = b.store.DeleteActionCode(code)
	return b.store.DeleteRefreshSessionsForAccount(acct.ID)
}

func (b *Backend) ApplyActionCode(ctx context.Context, code string) error {
	ac, err := b.actionCode(code, actionVerifyEmail)
	if err != nil {
		return err
	}

	acct, err := b.store.AccountByID(ac.AccountID)
	if err != nil {
		return err
	}
	if acct == nil {
		return backend.ErrUserNotFound
	}

	acct.EmailVerified = true
	if err := b.store.UpdateAccount(acct); err != nil {
		return err
	}
	_ = b.store.DeleteActionCode(code)

	// Reload the session snapshot when the code applied to the signed-in
	// account.
	if current := b.session.Current(); current != nil && current.ID == acct.ID {
		b.session.UpdateAccount(accountSnapshot(acct))
	}
	return nil
}

// RequestEmailVerification issues a verify-email action code for the current
// account.
func (b *Backend) RequestEmailVerification(ctx context.Context) (string, error) {
	current := b.session.Current()
	if current == nil {
		return "", backend.ErrNotSignedIn
	}

	code := uuid.New().String()
	if err := b.store.SaveActionCode(&ActionCode{
		Code:      code,
		AccountID: current.ID,
		Type:      actionVerifyEmail,
		Email:     current.Email,
		ExpiresAt: time.Now().Add(b.cfg.ActionCodeTTL),
	}); err != nil {
		return "", err
	}

	if b.sender != nil {
		if err := b.sender(ctx, current.Email, code, actionVerifyEmail); err != nil {
			return "", err
		}
	}
	return code, nil
}

func (b *Backend) RegisterPushToken(ctx context.Context, token, platform string) error {
	current := b.session.Current()
	if current == nil {
		return backend.ErrNotSignedIn
	}

	return b.store.SavePushToken(&PushToken{
		Token:     token,
		AccountID: current.ID,
		Platform:  platform,
		CreatedAt: time.Now(),
	})
}

func (b *Backend) actionCode(code, wantType string) (*ActionCode, error) {
	ac, err := b.store.ActionCodeByCode(code)
	if err != nil {
		return nil, err
	}
	if ac == nil || ac.Type != wantType {
		return nil, fmt.Errorf("local: invalid action code")
	}
	if ac.ExpiresAt.Before(time.Now()) {
		_ = b.store.DeleteActionCode(code)
		return nil, fmt.Errorf("local: action code expired")
	}
	return ac, nil
}

// establish mints tokens, records the refresh session, and mutates the
// session handle.
func (b *Backend) establish(ctx context.Context, acct *Account, providerID string, newUser bool) (*backend.SignInResponse, error) {
	now := time.Now()
	idToken, expiresAt, err := b.mintIDToken(acct, providerID, now)
	if err != nil {
		return nil, err
	}

	refresh := uuid.New().String()
	if err := b.store.CreateRefreshSession(&RefreshSession{
		Token:     refresh,
		AccountID: acct.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(b.cfg.RefreshTTL),
		Active:    true,
	}); err != nil {
		return nil, err
	}

	b.session.Establish(accountSnapshot(acct), idToken, refresh, expiresAt)

	return &backend.SignInResponse{
		AccountID:     acct.ID,
		Email:         acct.Email,
		DisplayName:   acct.DisplayName,
		EmailVerified: acct.EmailVerified,
		Anonymous:     acct.Anonymous,
		NewUser:       newUser,
		IDToken:       idToken,
		RefreshToken:  refresh,
		ExpiresAt:     expiresAt,
	}, nil
}

func accountSnapshot(acct *Account) *session.Account {
	return &session.Account{
		ID:            acct.ID,
		Email:         acct.Email,
		DisplayName:   acct.DisplayName,
		EmailVerified: acct.EmailVerified,
		Anonymous:     acct.Anonymous,
	}
}

// idpSubject extracts the stable subject from an IdP credential. ID tokens
// were verified by the provider layer; the emulator only reads the claims.
// Token-only providers (Facebook) get the opaque access token as subject.
func idpSubject(cred backend.Credential) (subject, email, name string, err error) {
	if cred.IDToken == "" {
		if cred.AccessToken == "" {
			return "", "", "", backend.ErrInvalidCredential
		}
		return cred.AccessToken, "", "", nil
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		jwt.RegisteredClaims
	}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(cred.IDToken, &claims); err != nil {
		return "", "", "", fmt.Errorf("local: parse ID token: %w", err)
	}
	if claims.Subject == "" {
		return "", "", "", backend.ErrInvalidCredential
	}
	return claims.Subject, normalizeEmail(claims.Email), claims.Name, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
