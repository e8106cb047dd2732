// Package storage defines the persistence contracts used by the storefront
// services. Implementations live in the memory and sqlstore subpackages.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("storage: conflict")
	// ErrInsufficientStock is matched by *StockError.
	ErrInsufficientStock = errors.New("storage: insufficient stock")
)

// StockError reports a rejected stock decrement.
type StockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("storage: insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// UserStore persists accounts. Usernames are unique.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	// UpdateUser writes only the fields set in patch.
	UpdateUser(ctx context.Context, id int64, patch user.Patch) (user.User, error)
	SetUserRole(ctx context.Context, id int64, role user.Role) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// ProductStore persists catalogue items.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	// UpdateProduct writes only the fields set in patch. Stock is touched
	// only when patch.Stock is set, so concurrent order placement is never
	// overwritten by an unrelated edit.
	UpdateProduct(ctx context.Context, id int64, patch product.Patch) (product.Product, error)
	GetProduct(ctx context.Context, id int64) (product.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, filter product.Filter) ([]product.Product, error)
}

// CategoryStore persists categories. Names are unique.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c category.Category) (category.Category, error)
	ListCategories(ctx context.Context) ([]category.Category, error)
	CountCategories(ctx context.Context) (int, error)
}

// OrderStore persists orders and owns the stock decrement that goes with them.
type OrderStore interface {
	// PlaceOrder prices the order from the current product price, decrements
	// stock and persists the order as a single atomic unit. It returns
	// ErrNotFound for an unknown product and a *StockError when stock is short.
	PlaceOrder(ctx context.Context, p order.Placement) (order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	// UpdateOrderStatus sets the status. With restock set, moving a
	// non-cancelled order into cancelled returns its quantity to stock in the
	// same unit.
	UpdateOrderStatus(ctx context.Context, id int64, status order.Status, restock bool) (order.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]order.View, error)
	ListAllOrders(ctx context.Context) ([]order.View, error)
}

// PaymentStore records mock payment outcomes.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
	ListPayments(ctx context.Context, userID int64) ([]payment.Payment, error)
}

// Store bundles every store a storefront needs.
type Store interface {
	UserStore
	ProductStore
	CategoryStore
	OrderStore
	PaymentStore
}
