package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

type stubGate struct {
	tokens map[string]uuid.UUID
	admins map[string]*models.User
}

func (g *stubGate) Authenticate(_ context.Context, token string) (*utils.SessionClaims, error) {
	id, ok := g.tokens[token]
	if !ok {
		return nil, apperrors.ErrSessionInvalid
	}
	return &utils.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()}}, nil
}

func (g *stubGate) AuthorizeAdmin(ctx context.Context, token string) (*models.User, error) {
	if _, err := g.Authenticate(ctx, token); err != nil {
		return nil, err
	}
	user, ok := g.admins[token]
	if !ok {
		return nil, apperrors.ErrForbidden
	}
	return user, nil
}

func newTestApp(gate Gate) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperrors.FiberErrorHandler(logging.Discard(), false)})
	whoami := func(c *fiber.Ctx) error {
		id, ok := GetCurrentUserID(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(id.String())
	}
	app.Get("/me", AuthMiddleware(gate, "token"), whoami)
	app.Get("/maybe", OptionalAuth(gate, "token"), whoami)
	app.Get("/admin", AdminMiddleware(gate, "token"), func(c *fiber.Ctx) error {
		admin, ok := GetAdmin(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(admin.Email)
	})
	return app
}

func TestExtractTokenPrefersCookie(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(ExtractToken(c, "token"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", readBody(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer header-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "header-token", readBody(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "", readBody(t, resp))
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	app := newTestApp(&stubGate{tokens: map[string]uuid.UUID{"good": userID}})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, userID.String(), readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()
	app := newTestApp(&stubGate{tokens: map[string]uuid.UUID{"good": userID}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/maybe", nil))
	require.NoError(t, err)
	assert.Equal(t, "anonymous", readBody(t, resp))

	req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("Authorization", "Bearer stale")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", readBody(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "good"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), readBody(t, resp))
}

func TestAdminMiddleware(t *testing.T) {
	adminID := uuid.New()
	gate := &stubGate{
		tokens: map[string]uuid.UUID{"admin": adminID, "customer": uuid.New()},
		admins: map[string]*models.User{"admin": {BaseModel: models.BaseModel{ID: adminID}, Email: "owner@shop.com", Role: models.RoleAdmin}},
	}
	app := newTestApp(gate)

	tests := []struct {
		token  string
		status int
	}{
		{token: "admin", status: http.StatusOK},
		{token: "customer", status: http.StatusForbidden},
		{token: "", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, "token %q", tt.token)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
