// Package users serves profile reads and updates and the admin user listing.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Service manages user profiles.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, svcerrors.NotFound("User")
	}
	if err != nil {
		return user.User{}, svcerrors.Internal("", err)
	}
	return u, nil
}

// UpdateProfile applies patch to the caller's own record.
func (s *Service) UpdateProfile(ctx context.Context, caller user.Identity, patch user.Patch) (user.User, error) {
	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		if trimmed == "" {
			return user.User{}, svcerrors.InvalidInput("username must not be empty")
		}
		patch.Username = &trimmed
	}
	if patch.Email != nil {
		trimmed := strings.TrimSpace(*patch.Email)
		if trimmed == "" {
			return user.User{}, svcerrors.InvalidInput("email must not be empty")
		}
		patch.Email = &trimmed
	}

	updated, err := s.store.UpdateUser(ctx, caller.UserID, patch)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return user.User{}, svcerrors.Conflict("Username taken")
	case errors.Is(err, storage.ErrNotFound):
		return user.User{}, svcerrors.NotFound("User")
	case err != nil:
		return user.User{}, svcerrors.Internal("", err)
	}
	return updated, nil
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	list, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, svcerrors.Internal("", err)
	}
	return list, nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, id int64, role string) (user.User, error) {
	r, ok := user.ParseRole(role)
	if !ok {
		return user.User{}, svcerrors.InvalidInput("role must be user or admin")
	}
	updated, err := s.store.SetUserRole(ctx, id, r)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, svcerrors.NotFound("User")
	}
	if err != nil {
		return user.User{}, svcerrors.Internal("", err)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{"user_id": id, "role": r}).Info("role changed")
	return updated, nil
}
