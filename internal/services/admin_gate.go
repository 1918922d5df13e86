package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// SessionVerifier checks a session credential and returns its claims.
type SessionVerifier interface {
	Verify(token string) (*utils.SessionClaims, error)
}

// IdentityLookup loads the live identity behind a session.
type IdentityLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AdminGate decides whether a caller is authenticated and, for privileged
// routes, whether they are still an admin right now.
type AdminGate struct {
	sessions SessionVerifier
	users    IdentityLookup
	admins   AllowList
	denylist TokenDenylist
	logger   *slog.Logger
}

// NewAdminGate wires an AdminGate. denylist may be nil.
func NewAdminGate(sessions SessionVerifier, users IdentityLookup, admins AllowList, denylist TokenDenylist, logger *slog.Logger) *AdminGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminGate{
		sessions: sessions,
		users:    users,
		admins:   admins,
		denylist: denylist,
		logger:   logger,
	}
}

// Authenticate verifies the credential and returns its claims.
func (g *AdminGate) Authenticate(ctx context.Context, token string) (*utils.SessionClaims, error) {
	return g.verifyCredential(ctx, token)
}

// AuthorizeAdmin runs the full privileged check and returns the live
// identity. A credential failure is Unauthorized; everything after that is
// Forbidden, including storage errors.
func (g *AdminGate) AuthorizeAdmin(ctx context.Context, token string) (*models.User, error) {
	claims, err := g.verifyCredential(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := g.loadLiveIdentity(ctx, claims)
	if err != nil {
		return nil, err
	}

	if err := g.checkAllowList(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Revoke adds the credential to the denylist, when one is configured.
func (g *AdminGate) Revoke(ctx context.Context, claims *utils.SessionClaims) error {
	if g.denylist == nil || claims == nil {
		return nil
	}
	return g.denylist.Revoke(ctx, claims)
}

func (g *AdminGate) verifyCredential(ctx context.Context, token string) (*utils.SessionClaims, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	claims, err := g.sessions.Verify(token)
	if err != nil {
		return nil, err
	}
	if g.denylist == nil {
		return claims, nil
	}

	revoked, err := g.denylist.IsRevoked(ctx, claims)
	if err != nil {
		g.logger.Error("session denylist lookup failed", "error", err)
		return nil, apperrors.ErrUnauthorized.Wrap(err)
	}
	if revoked {
		return nil, apperrors.ErrSessionRevoked
	}
	return claims, nil
}

func (g *AdminGate) loadLiveIdentity(ctx context.Context, claims *utils.SessionClaims) (*models.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, apperrors.ErrForbidden.Wrap(err)
	}

	user, err := g.users.FindByID(ctx, id)
	if err != nil {
		g.logger.Warn("admin check could not load identity", "user_id", id, "error", err)
		return nil, apperrors.ErrForbidden.Wrap(err)
	}
	if !user.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return user, nil
}

func (g *AdminGate) checkAllowList(user *models.User) error {
	if !g.admins.Contains(user.Email) {
		g.logger.Warn("admin role without allow-list entry", "user_id", user.ID)
		return apperrors.ErrForbidden
	}
	return nil
}
