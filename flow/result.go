package flow

import (
	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/provider"
)

// Result is the normalized outcome of a successful sign-in. It is derived
// read-only from the backend's raw response and never mutated afterwards.
type Result struct {
	IsAnonymous     bool
	IsEmailVerified bool
	IsNewUser       bool
	User            *provider.UserData
}

func newResult(resp *backend.SignInResponse, user *provider.UserData) *Result {
	// Provider-collected user data wins over backend fields; Apple only
	// discloses the name on the first authorization, so the backend copy may
	// be permanently empty.
	if user == nil && (resp.Email != "" || resp.DisplayName != "") {
		user = &provider.UserData{DisplayName: resp.DisplayName, Email: resp.Email}
	}

	return &Result{
		IsAnonymous:     resp.Anonymous,
		IsEmailVerified: resp.EmailVerified,
		IsNewUser:       resp.NewUser,
		User:            user,
	}
}
