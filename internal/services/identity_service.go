package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/utils"
)

// IdentityService provisions and reads identities.
type IdentityService struct {
	users  repository.UserRepository
	admins AllowList
	logger *slog.Logger
}

// NewIdentityService wires an IdentityService.
func NewIdentityService(users repository.UserRepository, admins AllowList, logger *slog.Logger) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{users: users, admins: admins, logger: logger}
}

// FindOrCreate returns the identity for a verified assertion, creating it on
// first sign-in. Allow-listed emails are promoted to admin; nobody is ever
// demoted here.
func (s *IdentityService) FindOrCreate(ctx context.Context, a *Assertion) (*models.User, error) {
	email := models.NormalizeEmail(a.Email)
	if email == "" {
		return nil, apperrors.Validation("email", "is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrIdentityNotFound) {
		user, err = s.create(ctx, email, a)
		if err == nil || !errors.Is(err, apperrors.ErrDuplicateEmail) {
			return user, err
		}
		// Lost the insert race to a concurrent sign-in.
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	if err := s.sync(ctx, user, a); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *IdentityService) create(ctx context.Context, email string, a *Assertion) (*models.User, error) {
	user := &models.User{
		Email:  email,
		Name:   a.Name,
		Avatar: a.Avatar,
		Role:   models.RoleCustomer,
		Theme:  models.ThemeLight,
	}
	if s.admins.Contains(email) {
		user.Role = models.RoleAdmin
	}
	if a.Subject != "" {
		subject := a.Subject
		user.GoogleID = &subject
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("identity created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// sync promotes allow-listed users and refreshes provider-owned profile
// fields. It performs at most two writes.
func (s *IdentityService) sync(ctx context.Context, user *models.User, a *Assertion) error {
	if s.admins.Contains(user.Email) && user.Role != models.RoleAdmin {
		if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"role": models.RoleAdmin}); err != nil {
			return err
		}
		user.Role = models.RoleAdmin
		s.logger.Info("identity promoted to admin", "user_id", user.ID)
	}

	fields := map[string]interface{}{}
	if a.Avatar != "" && a.Avatar != user.Avatar {
		fields["avatar"] = a.Avatar
	}
	if user.GoogleID == nil && a.Subject != "" {
		fields["google_id"] = a.Subject
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		return err
	}
	if avatar, ok := fields["avatar"].(string); ok {
		user.Avatar = avatar
	}
	if _, ok := fields["google_id"]; ok {
		subject := a.Subject
		user.GoogleID = &subject
	}
	return nil
}

// Get returns the identity by id.
func (s *IdentityService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// UpdateTheme stores the UI theme preference.
func (s *IdentityService) UpdateTheme(ctx context.Context, id uuid.UUID, theme models.Theme) (*models.User, error) {
	if !theme.Valid() {
		return nil, apperrors.Validation("theme", "must be light or dark")
	}
	if err := s.users.UpdateFields(ctx, id, map[string]interface{}{"theme": theme}); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, id)
}

// List pages through all identities.
func (s *IdentityService) List(ctx context.Context, pg utils.Pagination) ([]models.User, int64, error) {
	return s.users.List(ctx, pg)
}
