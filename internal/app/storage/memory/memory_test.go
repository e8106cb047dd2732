package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/storefront/internal/app/domain/category"
	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/payment"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
)

func seedProduct(t *testing.T, s *Store, stock int) product.Product {
	t.Helper()
	seller, err := s.CreateUser(context.Background(), user.User{Username: "seller", Role: user.RoleUser})
	if err != nil && !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("create seller: %v", err)
	}
	if seller.ID == 0 {
		seller, _ = s.GetUserByUsername(context.Background(), "seller")
	}
	p, err := s.CreateProduct(context.Background(), product.Product{
		Title:    "Canvas Tote",
		Price:    decimal.RequireFromString("250.50"),
		Category: "accessories",
		Stock:    stock,
		SellerID: seller.ID,
	})
	require.NoError(t, err)
	return p
}

func TestUserUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)
	assert.Equal(t, user.RoleUser, alice.Role)

	_, err = s.CreateUser(ctx, user.User{Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	bob, err := s.CreateUser(ctx, user.User{Username: "bob"})
	require.NoError(t, err)

	taken, renamed := "alice", "robert"
	_, err = s.UpdateUser(ctx, bob.ID, user.Patch{Username: &taken})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.UpdateUser(ctx, bob.ID, user.Patch{Username: &renamed})
	require.NoError(t, err)
	got, err := s.GetUserByUsername(ctx, "robert")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)
	_, err = s.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPlaceOrderDecrementsStock(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 5)

	o, err := s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("501.00")))

	after, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Stock)
}

func TestPlaceOrderRejectsOverQuantity(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 1)

	_, err := s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: p.ID, Quantity: 2})
	require.ErrorIs(t, err, storage.ErrInsufficientStock)
	var stockErr *storage.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)

	after, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 1, after.Stock)

	all, _ := s.ListAllOrders(ctx)
	assert.Empty(t, all)

	_, err = s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: 999, Quantity: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentOrdersForLastUnit(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 1)

	const buyers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := s.PlaceOrder(ctx, order.Placement{UserID: uid, ProductID: p.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, storage.ErrInsufficientStock) {
				rejected++
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, rejected)
	after, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, after.Stock)
}

func TestTotalPriceFixedAfterPriceChange(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 4)

	o, err := s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	price := decimal.NewFromInt(1)
	_, err = s.UpdateProduct(ctx, p.ID, product.Patch{Price: &price})
	require.NoError(t, err)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(o.TotalPrice))
}

func TestUpdateProductKeepsStockSoldSinceRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 1)

	stale, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	title := stale.Title + " (v2)"
	updated, err := s.UpdateProduct(ctx, p.ID, product.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 0, updated.Stock)

	_, err = s.PlaceOrder(ctx, order.Placement{UserID: 10, ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)
}

func TestUpdateUserLeavesRoleAndPassword(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, user.User{Username: "carol", PasswordHash: "hash"})
	require.NoError(t, err)

	_, err = s.SetUserRole(ctx, u.ID, user.RoleAdmin)
	require.NoError(t, err)

	phone := "0800000000"
	updated, err := s.UpdateUser(ctx, u.ID, user.Patch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, user.RoleAdmin, updated.Role)
	assert.Equal(t, "hash", updated.PasswordHash)

	_, err = s.SetUserRole(ctx, 404, user.RoleAdmin)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateOrderStatusRestock(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 5)

	o, err := s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	_, err = s.UpdateOrderStatus(ctx, o.ID, order.StatusCancelled, true)
	require.NoError(t, err)
	after, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, after.Stock)

	// Cancelling again must not restock twice.
	_, err = s.UpdateOrderStatus(ctx, o.ID, order.StatusCancelled, true)
	require.NoError(t, err)
	after, _ = s.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, after.Stock)

	o2, err := s.PlaceOrder(ctx, order.Placement{UserID: 9, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = s.UpdateOrderStatus(ctx, o2.ID, order.StatusCancelled, false)
	require.NoError(t, err)
	after, _ = s.GetProduct(ctx, p.ID)
	assert.Equal(t, 4, after.Stock)

	_, err = s.UpdateOrderStatus(ctx, 404, order.StatusShipped, false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrderViewsJoinProductAndSeller(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, 5)
	buyer, err := s.CreateUser(ctx, user.User{Username: "buyer"})
	require.NoError(t, err)

	_, err = s.PlaceOrder(ctx, order.Placement{UserID: buyer.ID, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = s.PlaceOrder(ctx, order.Placement{UserID: 77, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	mine, err := s.ListOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Canvas Tote", mine[0].ProductTitle)
	assert.Equal(t, "seller", mine[0].SellerUsername)
	assert.Equal(t, "buyer", mine[0].BuyerUsername)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	mine, err = s.ListOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Empty(t, mine[0].ProductTitle)

	all, err := s.ListAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListProductsAppliesFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedProduct(t, s, 0)
	inStock := seedProduct(t, s, 2)

	visible, err := s.ListProducts(ctx, product.Filter{HideOutOfStock: true})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, inStock.ID, visible[0].ID)

	all, err := s.ListProducts(ctx, product.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCategoriesAndPayments(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateCategory(ctx, category.Category{Name: "shoes"})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, category.Category{Name: "shoes"})
	assert.ErrorIs(t, err, storage.ErrConflict)
	n, _ := s.CountCategories(ctx)
	assert.Equal(t, 1, n)

	_, err = s.CreatePayment(ctx, payment.Payment{ID: "PAY-1", UserID: 3, Amount: decimal.NewFromInt(10), Currency: "THB", Status: payment.StatusCompleted})
	require.NoError(t, err)
	_, err = s.CreatePayment(ctx, payment.Payment{ID: "PAY-1", UserID: 3})
	assert.ErrorIs(t, err, storage.ErrConflict)

	list, err := s.ListPayments(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
