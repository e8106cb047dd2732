package categories

import (
	"context"
	"errors"
	"strings"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Service manages the category catalogue.
type Service struct {
	store storage.CategoryStore
	log   *logger.Logger
}

// New constructs a category service.
func New(store storage.CategoryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("categories")
	}
	return &Service{store: store, log: log}
}

// Seed inserts the default categories when none exist yet.
func (s *Service) Seed(ctx context.Context) error {
	n, err := s.store.CountCategories(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, name := range category.Defaults {
		if _, err := s.store.CreateCategory(ctx, category.Category{Name: name}); err != nil && !errors.Is(err, storage.ErrConflict) {
			return err
		}
	}
	s.log.Infof("seeded %d default categories", len(category.Defaults))
	return nil
}

// List returns every category.
func (s *Service) List(ctx context.Context) ([]category.Category, error) {
	list, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, svcerrors.Internal("", err)
	}
	return list, nil
}

// Create adds a category. Names are unique.
func (s *Service) Create(ctx context.Context, name, imageURI string) (category.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return category.Category{}, svcerrors.InvalidInput("name is required")
	}
	created, err := s.store.CreateCategory(ctx, category.Category{Name: name, ImageURI: imageURI})
	if errors.Is(err, storage.ErrConflict) {
		return category.Category{}, svcerrors.Conflict("Category already exists")
	}
	if err != nil {
		return category.Category{}, svcerrors.Internal("", err)
	}
	return created, nil
}
