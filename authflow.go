package authflow

import (
	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/backend/local"
	"github.com/cleevio/authflow/backend/rest"
	"github.com/cleevio/authflow/flow"
	"github.com/cleevio/authflow/session"
)

// Default types for convenience
type Authenticator = flow.Authenticator
type Result = flow.Result
type Backend = backend.Backend
type Session = session.Handle

// New creates an Authenticator around an already-constructed backend.
func New(b backend.Backend, sess *session.Handle) *flow.Authenticator {
	return flow.NewAuthenticator(b, sess)
}

// NewLocal creates an Authenticator backed by the embedded identity store.
// The session handle it returns alongside is the one the backend mutates.
func NewLocal(dbType, dsn string, cfg local.Config) (*flow.Authenticator, *session.Handle, error) {
	store, err := local.OpenStore(dbType, dsn)
	if err != nil {
		return nil, nil, err
	}
	sess := session.NewHandle()
	return flow.NewAuthenticator(local.New(store, sess, cfg), sess), sess, nil
}

// NewREST creates an Authenticator backed by the hosted Identity Toolkit API.
func NewREST(cfg rest.Config) (*flow.Authenticator, *session.Handle, error) {
	sess := session.NewHandle()
	b, err := rest.New(cfg, sess)
	if err != nil {
		return nil, nil, err
	}
	return flow.NewAuthenticator(b, sess), sess, nil
}
