package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/config"
	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

const (
	stateCookieName = "oauth_state"
	stateTTL        = 10 * time.Minute
)

// GoogleAuthenticator is the credential exchange used by the login routes.
type GoogleAuthenticator interface {
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*services.Assertion, error)
	VerifyIDToken(ctx context.Context, idToken string) (*services.Assertion, error)
}

// SessionRevoker invalidates a session before it expires.
type SessionRevoker interface {
	Revoke(ctx context.Context, claims *utils.SessionClaims) error
}

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	google   GoogleAuthenticator
	identity *services.IdentityService
	sessions *utils.SessionSigner
	revoker  SessionRevoker
	stateKey []byte
	cfg      *config.Config
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(
	google GoogleAuthenticator,
	identity *services.IdentityService,
	sessions *utils.SessionSigner,
	revoker SessionRevoker,
	stateKey []byte,
	cfg *config.Config,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		google:   google,
		identity: identity,
		sessions: sessions,
		revoker:  revoker,
		stateKey: stateKey,
		cfg:      cfg,
		logger:   logger,
	}
}

// GoogleRedirect sends the browser to the Google consent screen.
func (h *AuthHandler) GoogleRedirect(c *fiber.Ctx) error {
	state, err := utils.SignState(h.stateKey, stateTTL)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.google.AuthURL(state), fiber.StatusFound)
}

// GoogleCallback completes the redirect flow.
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		h.logger.Info("google consent denied", "reason", reason)
		return apperrors.ErrCredentialInvalid
	}

	state := c.Query("state")
	if err := utils.VerifyState(h.stateKey, state); err != nil || c.Cookies(stateCookieName) != state {
		return apperrors.Validation("state", "invalid or expired")
	}
	c.ClearCookie(stateCookieName)

	assertion, err := h.google.ExchangeCode(c.UserContext(), c.Query("code"))
	if err != nil {
		return err
	}
	return h.signIn(c, assertion, true)
}

type googleLoginRequest struct {
	Code    string `json:"code" validate:"required_without=IDToken"`
	IDToken string `json:"id_token" validate:"required_without=Code"`
}

// GoogleLogin accepts either an authorization code or a pre-issued ID token.
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var (
		assertion *services.Assertion
		err       error
	)
	if req.IDToken != "" {
		assertion, err = h.google.VerifyIDToken(c.UserContext(), req.IDToken)
	} else {
		assertion, err = h.google.ExchangeCode(c.UserContext(), req.Code)
	}
	if err != nil {
		return err
	}
	return h.signIn(c, assertion, false)
}

func (h *AuthHandler) signIn(c *fiber.Ctx, assertion *services.Assertion, redirect bool) error {
	user, err := h.identity.FindOrCreate(c.UserContext(), assertion)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.sessions.Issue(user)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, token, expiresAt)
	h.logger.Info("signed in", "user_id", user.ID, "role", user.Role)

	if redirect && h.cfg.FrontendURL != "" {
		return c.Redirect(h.cfg.FrontendURL, fiber.StatusFound)
	}
	return respond(c, fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
		"user":       user,
	})
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	sameSite := fiber.CookieSameSiteLaxMode
	if h.cfg.IsProduction() {
		sameSite = fiber.CookieSameSiteStrictMode
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: sameSite,
	})
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	user, err := h.identity.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, user)
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

// UpdateTheme stores the caller's colour scheme.
func (h *AuthHandler) UpdateTheme(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	var req themeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.identity.UpdateTheme(c.UserContext(), userID, models.Theme(req.Theme))
	if err != nil {
		return err
	}
	return respond(c, user)
}

// Logout revokes the presented credential and clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if claims, ok := middleware.GetClaims(c); ok && h.revoker != nil {
		if err := h.revoker.Revoke(c.UserContext(), claims); err != nil {
			return err
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
	})
	return respond(c, fiber.Map{"message": "logged out"})
}
