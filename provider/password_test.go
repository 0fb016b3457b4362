package provider

import (
	"context"
	"errors"
	"testing"
)

func TestPasswordCredentialConversion(t *testing.T) {
	p := NewPasswordProvider(StaticPassword("user@example.com", "secret123"), SignInOptions{
		SignUpOnUserNotFound: true,
	})

	cred, err := p.Credential(context.Background())
	if err != nil {
		t.Fatalf("credential acquisition failed: %v", err)
	}

	pw, ok := cred.(*PasswordCredential)
	if !ok {
		t.Fatalf("expected a PasswordCredential, got %T", cred)
	}
	if !pw.Options.SignUpOnUserNotFound {
		t.Error("sign-in options were not carried into the credential")
	}
	if pw.UserData() != nil {
		t.Error("password credentials carry no user data")
	}

	// The conversion is pure: converting twice yields equal handles.
	first := cred.BackendCredential()
	second := cred.BackendCredential()
	if first != second {
		t.Errorf("conversion is not stable: %+v vs %+v", first, second)
	}
	if first.ProviderID != IDPassword || first.Email != "user@example.com" || first.Password != "secret123" {
		t.Errorf("unexpected backend credential: %+v", first)
	}
	if first.IDToken != "" || first.AccessToken != "" {
		t.Error("password credentials must not carry OAuth tokens")
	}
}

func TestPasswordSourceErrorSurfacesVerbatim(t *testing.T) {
	want := errors.New("form dismissed")
	p := NewPasswordProvider(func(context.Context) (string, string, error) {
		return "", "", want
	}, SignInOptions{})

	_, err := p.Credential(context.Background())
	if !errors.Is(err, want) {
		t.Fatalf("expected the source error unmodified, got: %v", err)
	}
}

func TestPasswordProviderWithoutSource(t *testing.T) {
	p := NewPasswordProvider(nil, SignInOptions{})

	_, err := p.Credential(context.Background())
	if !IsKind(err, KindTokenMissing) {
		t.Fatalf("expected a token-missing provider error, got: %v", err)
	}
}

func TestOAuthCredentialConversion(t *testing.T) {
	cred := &OAuthCredential{
		Provider:    IDGoogle,
		IDToken:     "idtok",
		AccessToken: "access",
		RawNonce:    "nonce",
		User:        &UserData{Email: "user@example.com"},
	}

	bc := cred.BackendCredential()
	if bc.ProviderID != IDGoogle || bc.IDToken != "idtok" || bc.AccessToken != "access" || bc.RawNonce != "nonce" {
		t.Errorf("unexpected backend credential: %+v", bc)
	}
	if bc.Email != "" || bc.Password != "" {
		t.Error("OAuth credentials must not carry password fields")
	}
	if cred.UserData().Email != "user@example.com" {
		t.Error("user data lost in conversion")
	}
}
