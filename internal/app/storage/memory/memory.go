package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu         sync.RWMutex
	seq        map[string]int64
	users      map[int64]user.User
	usernames  map[string]int64
	products   map[int64]product.Product
	categories map[int64]category.Category
	orders     map[int64]order.Order
	payments   map[string]payment.Payment
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		seq:        make(map[string]int64),
		users:      make(map[int64]user.User),
		usernames:  make(map[string]int64),
		products:   make(map[int64]product.Product),
		categories: make(map[int64]category.Category),
		orders:     make(map[int64]order.Order),
		payments:   make(map[string]payment.Payment),
	}
}

func (s *Store) nextIDLocked(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func now() time.Time { return time.Now().UTC() }

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[u.Username]; taken {
		return user.User{}, fmt.Errorf("username %q: %w", u.Username, storage.ErrConflict)
	}
	u.ID = s.nextIDLocked("users")
	if u.Role == "" {
		u.Role = user.RoleUser
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	s.users[u.ID] = u
	s.usernames[u.Username] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, patch user.Patch) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if patch.Username != nil && *patch.Username != u.Username {
		if _, taken := s.usernames[*patch.Username]; taken {
			return user.User{}, fmt.Errorf("username %q: %w", *patch.Username, storage.ErrConflict)
		}
		delete(s.usernames, u.Username)
		s.usernames[*patch.Username] = id
	}
	patch.Apply(&u)
	u.UpdatedAt = now()

	s.users[id] = u
	return u, nil
}

func (s *Store) SetUserRole(_ context.Context, id int64, role user.Role) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	u.Role = role
	u.UpdatedAt = now()
	s.users[id] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return user.User{}, fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ProductStore implementation -------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextIDLocked("products")
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, id int64, patch product.Patch) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, fmt.Errorf("product %d: %w", id, storage.ErrNotFound)
	}
	patch.Apply(&p)
	p.UpdatedAt = now()
	s.products[id] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, fmt.Errorf("product %d: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, storage.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListProducts(_ context.Context, filter product.Filter) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Matches(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CategoryStore implementation ------------------------------------------------

func (s *Store) CreateCategory(_ context.Context, c category.Category) (category.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.Name == c.Name {
			return category.Category{}, fmt.Errorf("category %q: %w", c.Name, storage.ErrConflict)
		}
	}
	c.ID = s.nextIDLocked("categories")
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) ListCategories(_ context.Context) ([]category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]category.Category, 0, len(s.categories))
	for _, c := range s.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CountCategories(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories), nil
}

// OrderStore implementation ---------------------------------------------------

// PlaceOrder checks stock, decrements it and records the order under one
// write lock.
func (s *Store) PlaceOrder(_ context.Context, pl order.Placement) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[pl.ProductID]
	if !ok {
		return order.Order{}, fmt.Errorf("product %d: %w", pl.ProductID, storage.ErrNotFound)
	}
	if p.Stock < pl.Quantity {
		return order.Order{}, &storage.StockError{ProductID: p.ID, Available: p.Stock, Requested: pl.Quantity}
	}

	ts := now()
	p.Stock -= pl.Quantity
	p.UpdatedAt = ts
	s.products[p.ID] = p

	o := order.Order{
		ID:              s.nextIDLocked("orders"),
		UserID:          pl.UserID,
		ProductID:       pl.ProductID,
		Quantity:        pl.Quantity,
		TotalPrice:      p.Price.Mul(decimal.NewFromInt(int64(pl.Quantity))),
		ShippingAddress: pl.ShippingAddress,
		PaymentMethod:   pl.PaymentMethod,
		Status:          order.StatusPending,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return o, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, status order.Status, restock bool) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	ts := now()
	if restock && status == order.StatusCancelled && o.Status != order.StatusCancelled {
		if p, exists := s.products[o.ProductID]; exists {
			p.Stock += o.Quantity
			p.UpdatedAt = ts
			s.products[p.ID] = p
		}
	}
	o.Status = status
	o.UpdatedAt = ts
	s.orders[id] = o
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, userID int64) ([]order.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewsLocked(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) ListAllOrders(_ context.Context) ([]order.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewsLocked(func(order.Order) bool { return true }), nil
}

func (s *Store) viewsLocked(keep func(order.Order) bool) []order.View {
	result := make([]order.View, 0)
	for _, o := range s.orders {
		if !keep(o) {
			continue
		}
		v := order.View{Order: o, BuyerUsername: s.users[o.UserID].Username}
		if p, ok := s.products[o.ProductID]; ok {
			v.ProductTitle = p.Title
			v.ProductImage = p.ImageURI
			v.SellerID = p.SellerID
			v.SellerUsername = s.users[p.SellerID].Username
		}
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result
}

// PaymentStore implementation -------------------------------------------------

func (s *Store) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return payment.Payment{}, fmt.Errorf("payment %s: %w", p.ID, storage.ErrConflict)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, userID int64) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]payment.Payment, 0)
	for _, p := range s.payments {
		if userID == 0 || p.UserID == userID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}
