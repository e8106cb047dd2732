package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Apply(context.Background(), db.DB, migrations.DialectSQLite))
	return New(db)
}

func TestSQLiteUserLifecycle(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice", PasswordHash: "hash", Email: "a@x.test"})
	require.NoError(t, err)
	assert.NotZero(t, alice.ID)

	_, err = s.CreateUser(ctx, user.User{Username: "alice", PasswordHash: "hash", Email: "b@x.test"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	promoted, err := s.SetUserRole(ctx, alice.ID, user.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, promoted.Role)

	phone := "0812345678"
	updated, err := s.UpdateUser(ctx, alice.ID, user.Patch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "0812345678", updated.Phone)
	assert.Equal(t, user.RoleAdmin, updated.Role)
	assert.Equal(t, "a@x.test", updated.Email)

	bob, err := s.CreateUser(ctx, user.User{Username: "bob", PasswordHash: "hash", Email: "bob@x.test"})
	require.NoError(t, err)
	taken := "alice"
	_, err = s.UpdateUser(ctx, bob.ID, user.Patch{Username: &taken})
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.UpdateUser(ctx, 999, user.Patch{Phone: &phone})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", byName.PasswordHash)

	_, err = s.GetUser(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteOrderWorkflow(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	seller, err := s.CreateUser(ctx, user.User{Username: "seller", PasswordHash: "h", Email: "s@x.test"})
	require.NoError(t, err)
	buyer, err := s.CreateUser(ctx, user.User{Username: "buyer", PasswordHash: "h", Email: "b@x.test"})
	require.NoError(t, err)

	p, err := s.CreateProduct(ctx, product.Product{
		Title: "Running Shoes", Description: "Light trainers", Price: decimal.RequireFromString("1290.50"),
		Category: "shoes", Stock: 3, SellerID: seller.ID,
	})
	require.NoError(t, err)

	_, err = s.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: p.ID, Quantity: 4})
	require.ErrorIs(t, err, storage.ErrInsufficientStock)

	o, err := s.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: p.ID, Quantity: 2, ShippingAddress: "Chiang Mai"})
	require.NoError(t, err)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("2581")), o.TotalPrice.String())

	after, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Stock)

	views, err := s.ListOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Running Shoes", views[0].ProductTitle)
	assert.Equal(t, "seller", views[0].SellerUsername)
	assert.Equal(t, "Chiang Mai", views[0].ShippingAddress)

	cancelled, err := s.UpdateOrderStatus(ctx, o.ID, order.StatusCancelled, true)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	after, _ = s.GetProduct(ctx, p.ID)
	assert.Equal(t, 3, after.Stock)

	_, err = s.UpdateOrderStatus(ctx, o.ID, order.StatusCancelled, true)
	require.NoError(t, err)
	after, _ = s.GetProduct(ctx, p.ID)
	assert.Equal(t, 3, after.Stock)

	_, err = s.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: 999, Quantity: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteUpdateProductKeepsSoldStock(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	seller, err := s.CreateUser(ctx, user.User{Username: "seller", PasswordHash: "h", Email: "s@x.test"})
	require.NoError(t, err)
	p, err := s.CreateProduct(ctx, product.Product{
		Title: "Rain Jacket", Price: decimal.NewFromInt(900), Category: "jackets", Stock: 1, SellerID: seller.ID,
	})
	require.NoError(t, err)

	_, err = s.PlaceOrder(ctx, order.Placement{UserID: seller.ID, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	title, price := "Rain Jacket (navy)", decimal.RequireFromString("950.25")
	updated, err := s.UpdateProduct(ctx, p.ID, product.Patch{Title: &title, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.True(t, updated.Price.Equal(price), updated.Price.String())
	assert.Equal(t, 0, updated.Stock)

	_, err = s.UpdateProduct(ctx, 999, product.Patch{Title: &title})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteConcurrentLastUnit(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	buyer, err := s.CreateUser(ctx, user.User{Username: "buyer", PasswordHash: "h", Email: "b@x.test"})
	require.NoError(t, err)
	p, err := s.CreateProduct(ctx, product.Product{
		Title: "Scarf", Description: "Wool", Price: decimal.NewFromInt(300), Category: "accessories", Stock: 1,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: p.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, storage.ErrInsufficientStock):
				short++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, short)
	after, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, after.Stock)
}

func TestSQLiteProductFilters(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	for _, p := range []product.Product{
		{Title: "Blue Shirt", Description: "Cotton", Price: decimal.NewFromInt(400), Category: "shirts", Stock: 2},
		{Title: "Red Shirt", Description: "Silk", Price: decimal.NewFromInt(900), Category: "shirts", Stock: 0},
		{Title: "Boots", Description: "Leather shirt-proof", Price: decimal.NewFromInt(2000), Category: "shoes", Stock: 1},
	} {
		_, err := s.CreateProduct(ctx, p)
		require.NoError(t, err)
	}

	visible, err := s.ListProducts(ctx, product.Filter{HideOutOfStock: true})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	all, err := s.ListProducts(ctx, product.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	search, err := s.ListProducts(ctx, product.Filter{Search: "SHIRT"})
	require.NoError(t, err)
	assert.Len(t, search, 3)

	max := decimal.NewFromInt(1000)
	shirts, err := s.ListProducts(ctx, product.Filter{Category: "shirts", MaxPrice: &max})
	require.NoError(t, err)
	assert.Len(t, shirts, 2)

	require.NoError(t, s.DeleteProduct(ctx, all[0].ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, all[0].ID), storage.ErrNotFound)
}

func TestSQLiteCategoriesAndPayments(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	n, err := s.CountCategories(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.CreateCategory(ctx, category.Category{Name: "shirts"})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, category.Category{Name: "shirts"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	_, err = s.CreatePayment(ctx, payment.Payment{
		ID: "PAY-1", UserID: 4, Amount: decimal.RequireFromString("99.50"), Currency: "THB", Status: payment.StatusCompleted,
	})
	require.NoError(t, err)
	list, err := s.ListPayments(ctx, 4)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Amount.Equal(decimal.RequireFromString("99.5")))
}
