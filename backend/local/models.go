package local

import (
	"time"
)

// Account is a stored identity.
type Account struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"index"`
	PasswordHash  string
	DisplayName   string
	EmailVerified bool
	Anonymous     bool
	Disabled      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Account) TableName() string { return "accounts" }

// ProviderLink binds an external provider subject to an account. A subject is
// linked to at most one account per provider.
type ProviderLink struct {
	ID         string `gorm:"primaryKey"`
	AccountID  string `gorm:"index"`
	ProviderID string `gorm:"uniqueIndex:idx_provider_subject"`
	Subject    string `gorm:"uniqueIndex:idx_provider_subject"`
	Email      string
	CreatedAt  time.Time
}

func (ProviderLink) TableName() string { return "provider_links" }

// RefreshSession is a stored refresh token.
type RefreshSession struct {
	Token     string `gorm:"primaryKey"`
	AccountID string `gorm:"index"`
	IssuedAt  time.Time
	ExpiresAt time.Time `gorm:"index"`
	Active    bool
}

func (RefreshSession) TableName() string { return "refresh_sessions" }

// ActionCode is a transient out-of-band code for password reset and email
// verification.
type ActionCode struct {
	Code      string `gorm:"primaryKey"`
	AccountID string `gorm:"index"`
	Type      string `gorm:"index"` // "password_reset", "verify_email"
	Email     string
	ExpiresAt time.Time `gorm:"index"`
}

func (ActionCode) TableName() string { return "action_codes" }

// PushToken is a registered platform push token.
type PushToken struct {
	Token     string `gorm:"primaryKey"`
	AccountID string `gorm:"index"`
	Platform  string
	CreatedAt time.Time
}

func (PushToken) TableName() string { return "push_tokens" }

const (
	actionPasswordReset = "password_reset"
	actionVerifyEmail   = "verify_email"
)
