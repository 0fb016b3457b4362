package local

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	openers    = make(map[string]DialectorOpener)
)

// RegisterDialect adds a database dialect to the registry.
func RegisterDialect(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	openers[name] = opener
}

func init() {
	RegisterDialect("sqlite", sqlite.Open)
	RegisterDialect("postgres", postgres.Open)
	RegisterDialect("mysql", mysql.Open)
}

// Store is the GORM-backed persistence layer of the local backend.
type Store struct {
	db *gorm.DB
}

// OpenStore opens a database by registered dialect name and migrates the
// schema.
func OpenStore(dbType, dsn string) (*Store, error) {
	registryMu.RLock()
	opener, ok := openers[dbType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("local: unknown database type %q", dbType)
	}

	db, err := gorm.Open(opener(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return NewStore(db)
}

// NewStore wraps an existing gorm.DB and migrates the schema.
func NewStore(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&Account{},
		&ProviderLink{},
		&RefreshSession{},
		&ActionCode{},
		&PushToken{},
	)
}

func (s *Store) DB() *gorm.DB { return s.db }

// notFound normalizes gorm's record-not-found to a nil result.
func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (s *Store) CreateAccount(a *Account) error {
	return s.db.Create(a).Error
}

func (s *Store) UpdateAccount(a *Account) error {
	return s.db.Save(a).Error
}

func (s *Store) AccountByID(id string) (*Account, error) {
	var a Account
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) AccountByEmail(email string) (*Account, error) {
	var a Account
	if err := s.db.First(&a, "email = ? AND anonymous = ?", email, false).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateLink(l *ProviderLink) error {
	return s.db.Create(l).Error
}

func (s *Store) LinkBySubject(providerID, subject string) (*ProviderLink, error) {
	var l ProviderLink
	if err := s.db.First(&l, "provider_id = ? AND subject = ?", providerID, subject).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (s *Store) CreateRefreshSession(rs *RefreshSession) error {
	return s.db.Create(rs).Error
}

func (s *Store) RefreshSessionByToken(token string) (*RefreshSession, error) {
	var rs RefreshSession
	if err := s.db.First(&rs, "token = ?", token).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rs, nil
}

func (s *Store) DeleteRefreshSession(token string) error {
	return s.db.Delete(&RefreshSession{}, "token = ?", token).Error
}

func (s *Store) DeleteRefreshSessionsForAccount(accountID string) error {
	return s.db.Delete(&RefreshSession{}, "account_id = ?", accountID).Error
}

func (s *Store) SaveActionCode(c *ActionCode) error {
	return s.db.Create(c).Error
}

func (s *Store) ActionCodeByCode(code string) (*ActionCode, error) {
	var c ActionCode
	if err := s.db.First(&c, "code = ?", code).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) DeleteActionCode(code string) error {
	return s.db.Delete(&ActionCode{}, "code = ?", code).Error
}

func (s *Store) DeleteExpiredActionCodes() error {
	return s.db.Delete(&ActionCode{}, "expires_at < ?", time.Now()).Error
}

func (s *Store) SavePushToken(t *PushToken) error {
	return s.db.Save(t).Error
}
