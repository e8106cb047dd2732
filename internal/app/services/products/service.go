// Package products manages the catalogue: validation, ownership checks and
// listing filters.
package products

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Service manages products.
type Service struct {
	store storage.ProductStore
	log   *logger.Logger
}

// New constructs a product service.
func New(store storage.ProductStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("products")
	}
	return &Service{store: store, log: log}
}

func validate(p product.Product) error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return svcerrors.InvalidInput("title is required")
	case strings.TrimSpace(p.Description) == "":
		return svcerrors.InvalidInput("description is required")
	case strings.TrimSpace(p.Category) == "":
		return svcerrors.InvalidInput("category is required")
	case !p.Price.IsPositive():
		return svcerrors.InvalidInput("price must be greater than zero")
	case p.Stock < 0:
		return svcerrors.InvalidInput("stock must not be negative")
	}
	return nil
}

// Create lists a new product owned by seller.
func (s *Service) Create(ctx context.Context, seller user.Identity, p product.Product) (product.Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Category = strings.TrimSpace(p.Category)
	if err := validate(p); err != nil {
		return product.Product{}, err
	}
	p.SellerID = seller.UserID

	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return product.Product{}, svcerrors.Internal("", err)
	}
	s.log.WithContext(ctx).WithField("product_id", created.ID).Info("product created")
	return created, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return product.Product{}, svcerrors.NotFound("Product")
	}
	if err != nil {
		return product.Product{}, svcerrors.Internal("", err)
	}
	return p, nil
}

// Update applies patch when the caller owns the product or is an admin.
func (s *Service) Update(ctx context.Context, id int64, caller user.Identity, patch product.Patch) (product.Product, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	if !caller.CanActOn(current.SellerID) {
		return product.Product{}, svcerrors.Forbidden("Not allowed to modify this product")
	}
	if patch.IsEmpty() {
		return current, nil
	}

	// Validate the merged view, but write only the patched columns so stock
	// sold since the read is not restored.
	merged := current
	patch.Apply(&merged)
	if err := validate(merged); err != nil {
		return product.Product{}, err
	}
	updated, err := s.store.UpdateProduct(ctx, id, patch)
	if errors.Is(err, storage.ErrNotFound) {
		return product.Product{}, svcerrors.NotFound("Product")
	}
	if err != nil {
		return product.Product{}, svcerrors.Internal("", err)
	}
	return updated, nil
}

// Delete removes the product when the caller owns it or is an admin.
func (s *Service) Delete(ctx context.Context, id int64, caller user.Identity) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !caller.CanActOn(current.SellerID) {
		return svcerrors.Forbidden("Not allowed to delete this product")
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("Product")
		}
		return svcerrors.Internal("", err)
	}
	s.log.WithContext(ctx).WithField("product_id", id).Info("product deleted")
	return nil
}

// List returns products matching filter.
func (s *Service) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	list, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, svcerrors.Internal("", err)
	}
	return list, nil
}

// ParseFilter reads listing filters from query parameters. Out-of-stock items
// are hidden unless hideOutOfStock is false.
func ParseFilter(values url.Values) (product.Filter, error) {
	f := product.Filter{
		Search:         strings.TrimSpace(values.Get("search")),
		Category:       strings.TrimSpace(values.Get("category")),
		HideOutOfStock: true,
	}
	if f.Category == "all" {
		f.Category = ""
	}

	for _, bound := range []struct {
		key string
		dst **decimal.Decimal
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		raw := strings.TrimSpace(values.Get(bound.key))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return product.Filter{}, svcerrors.InvalidInput(bound.key + " must be a number")
		}
		*bound.dst = &d
	}

	if raw := strings.TrimSpace(values.Get("hideOutOfStock")); raw != "" {
		hide, err := strconv.ParseBool(raw)
		if err != nil {
			return product.Filter{}, svcerrors.InvalidInput("hideOutOfStock must be true or false")
		}
		f.HideOutOfStock = hide
	}
	return f, nil
}
