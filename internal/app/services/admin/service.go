// Package admin computes the dashboard figures shown to administrators.
package admin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
)

// Stats summarises the store. Revenue excludes cancelled orders.
type Stats struct {
	TotalUsers         int             `json:"totalUsers"`
	TotalOrders        int             `json:"totalOrders"`
	TotalProducts      int             `json:"totalProducts"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
	PendingOrders      int             `json:"pendingOrders"`
	AdminUsers         int             `json:"adminUsers"`
	OutOfStockProducts int             `json:"outOfStockProducts"`
}

// Service reads the stores to build Stats.
type Service struct {
	users    storage.UserStore
	products storage.ProductStore
	orders   storage.OrderStore
}

// New constructs the admin service.
func New(users storage.UserStore, products storage.ProductStore, orders storage.OrderStore) *Service {
	return &Service{users: users, products: products, orders: orders}
}

// Stats computes the dashboard figures.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return Stats{}, svcerrors.Internal("", err)
	}
	products, err := s.products.ListProducts(ctx, product.Filter{})
	if err != nil {
		return Stats{}, svcerrors.Internal("", err)
	}
	orders, err := s.orders.ListAllOrders(ctx)
	if err != nil {
		return Stats{}, svcerrors.Internal("", err)
	}

	st := Stats{
		TotalUsers:    len(users),
		TotalOrders:   len(orders),
		TotalProducts: len(products),
		TotalRevenue:  decimal.Zero,
	}
	for _, u := range users {
		if u.Role == user.RoleAdmin {
			st.AdminUsers++
		}
	}
	for _, p := range products {
		if !p.InStock() {
			st.OutOfStockProducts++
		}
	}
	for _, o := range orders {
		switch o.Status {
		case order.StatusCancelled:
			continue
		case order.StatusPending:
			st.PendingOrders++
		}
		st.TotalRevenue = st.TotalRevenue.Add(o.TotalPrice)
	}
	return st, nil
}
