package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cleevio/authflow/backend"
	"github.com/cleevio/authflow/flow"
	"github.com/cleevio/authflow/provider"
)

// IDPTokens are the provider tokens a client obtained from its native
// sign-in flow and forwarded with the request.
type IDPTokens struct {
	IDToken     string `json:"idToken"`
	AccessToken string `json:"accessToken"`
	RawNonce    string `json:"rawNonce"`
}

// IDPFactory builds a credential provider around request-scoped tokens.
type IDPFactory func(t IDPTokens) provider.CredentialProvider

type Handler struct {
	auth *flow.Authenticator
	idp  map[string]IDPFactory
	log  *zap.Logger
}

func NewHandler(auth *flow.Authenticator) *Handler {
	return &Handler{
		auth: auth,
		idp:  make(map[string]IDPFactory),
		log:  zap.NewNop(),
	}
}

func (h *Handler) SetLogger(log *zap.Logger) { h.log = log }

// RegisterIDP mounts a social provider under the given name (e.g. "google").
func (h *Handler) RegisterIDP(name string, factory IDPFactory) {
	h.idp[name] = factory
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/signup", h.HandleSignUp)
	g.POST("/signin", h.HandleSignIn)
	g.POST("/signin/anonymous", h.HandleSignInAnonymous)
	g.POST("/signin/:provider", h.HandleSignInIDP)
	g.POST("/signout", h.HandleSignOut)
	g.GET("/whoami", h.HandleWhoAmI)

	g.POST("/password-reset", h.HandlePasswordReset)
	g.POST("/password-reset/verify", h.HandleVerifyResetCode)
	g.POST("/password-reset/confirm", h.HandleChangePassword)
	g.POST("/action-code", h.HandleActionCode)
	g.POST("/push-token", h.HandlePushToken)
}

func (h *Handler) HandleSignUp(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	p := provider.NewPasswordProvider(
		provider.StaticPassword(body.Email, body.Password),
		provider.SignInOptions{SignUpOnAnyError: true},
	)
	result, err := h.auth.SignIn(c.Request().Context(), p)
	if err != nil {
		return h.authError(c, err)
	}
	return h.result(c, result)
}

func (h *Handler) HandleSignIn(c echo.Context) error {
	var body struct {
		Email            string `json:"email"`
		Password         string `json:"password"`
		SignUpIfMissing  bool   `json:"signUpIfMissing"`
		SignUpOnAnyError bool   `json:"signUpOnAnyError"`
		Link             bool   `json:"link"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	p := provider.NewPasswordProvider(
		provider.StaticPassword(body.Email, body.Password),
		provider.SignInOptions{
			SignUpOnUserNotFound: body.SignUpIfMissing,
			SignUpOnAnyError:     body.SignUpOnAnyError,
			TryLinkOnSignIn:      body.Link,
		},
	)
	result, err := h.auth.SignIn(c.Request().Context(), p)
	if err != nil {
		return h.authError(c, err)
	}
	return h.result(c, result)
}

func (h *Handler) HandleSignInAnonymous(c echo.Context) error {
	result, err := h.auth.SignInAnonymously(c.Request().Context())
	if err != nil {
		return h.authError(c, err)
	}
	return h.result(c, result)
}

func (h *Handler) HandleSignInIDP(c echo.Context) error {
	name := c.Param("provider")
	factory, ok := h.idp[name]
	if !ok {
		return h.Error(c, http.StatusNotFound, "Unknown provider", nil)
	}

	var tokens IDPTokens
	if err := c.Bind(&tokens); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	result, err := h.auth.SignIn(c.Request().Context(), factory(tokens))
	if err != nil {
		return h.authError(c, err)
	}
	return h.result(c, result)
}

func (h *Handler) HandleSignOut(c echo.Context) error {
	if err := h.auth.SignOut(c.Request().Context()); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleWhoAmI(c echo.Context) error {
	current := h.auth.Session().Current()
	if current == nil {
		return h.Error(c, http.StatusUnauthorized, "Not signed in", nil)
	}
	return c.JSON(http.StatusOK, current)
}

func (h *Handler) HandlePasswordReset(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	err := h.auth.RequestPasswordReset(c.Request().Context(), body.Email)
	// Do not disclose account existence through the reset endpoint.
	if err != nil && !errors.Is(err, backend.ErrUserNotFound) {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) HandleVerifyResetCode(c echo.Context) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	email, err := h.auth.VerifyPasswordResetCode(c.Request().Context(), body.Code)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid or expired code", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"email": email})
}

func (h *Handler) HandleChangePassword(c echo.Context) error {
	var body struct {
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	if err := h.auth.ChangePassword(c.Request().Context(), body.Code, body.NewPassword); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid or expired code", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleActionCode(c echo.Context) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	if err := h.auth.ApplyActionCode(c.Request().Context(), body.Code); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid or expired code", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandlePushToken(c echo.Context) error {
	var body struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	if err := h.auth.RegisterPushToken(c.Request().Context(), body.Token, body.Platform); err != nil {
		return h.authError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) result(c echo.Context, result *flow.Result) error {
	out := map[string]any{
		"isAnonymous":     result.IsAnonymous,
		"isEmailVerified": result.IsEmailVerified,
		"isNewUser":       result.IsNewUser,
	}
	if result.User != nil {
		out["user"] = map[string]string{
			"displayName": result.User.DisplayName,
			"email":       result.User.Email,
		}
	}
	return c.JSON(http.StatusOK, out)
}

// authError maps the flow's error taxonomy onto HTTP statuses so clients can
// distinguish "try again" from "credential rejected" without parsing text.
func (h *Handler) authError(c echo.Context, err error) error {
	var pe *provider.Error
	switch {
	case errors.As(err, &pe):
		return h.Error(c, http.StatusBadRequest, pe.Kind.String(), err)
	case errors.Is(err, backend.ErrUserNotFound):
		return h.Error(c, http.StatusNotFound, "Account not found", err)
	case errors.Is(err, backend.ErrInvalidCredential), errors.Is(err, backend.ErrUserDisabled):
		return h.Error(c, http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, backend.ErrEmailInUse):
		return h.Error(c, http.StatusConflict, "Account exists", err)
	case errors.Is(err, backend.ErrNotSignedIn):
		return h.Error(c, http.StatusUnauthorized, "Not signed in", err)
	default:
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *Handler) Error(c echo.Context, status int, msg string, err error) error {
	if err != nil {
		h.log.Warn("request failed",
			zap.Int("status", status),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(status, map[string]string{"error": msg})
}
