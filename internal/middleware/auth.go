package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	userContextKey   = "currentUserID"
	claimsContextKey = "sessionClaims"
	adminContextKey  = "currentAdmin"
)

// Gate is the part of the admin gate the middleware needs.
type Gate interface {
	Authenticate(ctx context.Context, token string) (*utils.SessionClaims, error)
	AuthorizeAdmin(ctx context.Context, token string) (*models.User, error)
}

// ExtractToken returns the session credential from the cookie, falling back
// to a Bearer Authorization header.
func ExtractToken(c *fiber.Ctx, cookieName string) string {
	if token := strings.TrimSpace(c.Cookies(cookieName)); token != "" {
		return token
	}

	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// AuthMiddleware validates the session credential and loads the
// authenticated user ID into context.
func AuthMiddleware(gate Gate, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := gate.Authenticate(c.UserContext(), ExtractToken(c, cookieName))
		if err != nil {
			return err
		}
		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuth loads the user when a valid credential is presented and
// otherwise lets the request through anonymously.
func OptionalAuth(gate Gate, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractToken(c, cookieName)
		if token == "" {
			return c.Next()
		}
		if claims, err := gate.Authenticate(c.UserContext(), token); err == nil {
			setClaims(c, claims)
		}
		return c.Next()
	}
}

// AdminMiddleware lets a request through only when the caller is an admin
// according to the live identity and the current allow-list.
func AdminMiddleware(gate Gate, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := gate.AuthorizeAdmin(c.UserContext(), ExtractToken(c, cookieName))
		if err != nil {
			return err
		}
		c.Locals(adminContextKey, user)
		c.Locals(userContextKey, user.ID)
		return c.Next()
	}
}

func setClaims(c *fiber.Ctx, claims *utils.SessionClaims) {
	c.Locals(claimsContextKey, claims)
	if id, err := claims.UserID(); err == nil {
		c.Locals(userContextKey, id)
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// GetClaims returns the verified session claims, if any.
func GetClaims(c *fiber.Ctx) (*utils.SessionClaims, bool) {
	claims, ok := c.Locals(claimsContextKey).(*utils.SessionClaims)
	return claims, ok && claims != nil
}

// GetAdmin returns the admin loaded by AdminMiddleware.
func GetAdmin(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(adminContextKey).(*models.User)
	return user, ok && user != nil
}
