package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/storefront/internal/app"
)

func TestCheckoutEmptyCart(t *testing.T) {
	k := NewKit(Config{})
	_, err := k.Checkout(context.Background(), CheckoutInput{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutValidatesStockLocally(t *testing.T) {
	k := NewKit(Config{BaseURL: "http://127.0.0.1:0"})
	a := Product{ID: 1, Title: "Socks", Price: decimal.NewFromInt(2), Stock: 1}
	b := Product{ID: 2, Title: "Hat", Price: decimal.NewFromInt(9), Stock: 5}
	c := Product{ID: 3, Title: "Scarf", Price: decimal.NewFromInt(4), Stock: 0}
	require.NoError(t, k.Cart.Add(a))
	require.NoError(t, k.Cart.UpdateQuantity(1, 3))
	require.NoError(t, k.Cart.Add(b))
	require.NoError(t, k.Cart.Add(c))

	_, err := k.Checkout(context.Background(), CheckoutInput{})
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, []Shortage{
		{ProductID: 1, Title: "Socks", Requested: 3, Available: 1},
		{ProductID: 3, Title: "Scarf", Requested: 1, Available: 0},
	}, stockErr.Lines)
	assert.Contains(t, err.Error(), "Socks (1 left, 3 requested)")
	assert.Equal(t, 5, k.Cart.TotalItems(), "cart is kept on failure")
}

func TestCheckoutAgainstServer(t *testing.T) {
	env := newServerEnv(t, app.Options{})
	ctx := context.Background()
	seller := env.kit("maker")
	shirtID, err := seller.API.CreateProduct(ctx, listing("Shirt", "12.50", 5), nil)
	require.NoError(t, err)
	capID, err := seller.API.CreateProduct(ctx, listing("Cap", "7", 2), nil)
	require.NoError(t, err)

	buyer := env.kit("buyer")
	for _, id := range []int64{shirtID, capID} {
		p, err := buyer.API.Product(ctx, id)
		require.NoError(t, err)
		require.NoError(t, buyer.Cart.Add(p))
	}
	require.NoError(t, buyer.Cart.UpdateQuantity(shirtID, 2))

	receipt, err := buyer.Checkout(ctx, CheckoutInput{ShippingAddress: "1 Main St", PaymentMethod: "card"})
	require.NoError(t, err)
	require.Len(t, receipt.Orders, 2)
	assert.True(t, receipt.Payment.Success)
	assert.True(t, decimal.RequireFromString("32").Equal(receipt.Payment.Amount))
	assert.Equal(t, "USD", receipt.Payment.Currency)
	assert.Zero(t, buyer.Cart.TotalItems())

	orders, err := buyer.API.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, "1 Main St", o.ShippingAddress)
		assert.Equal(t, StatusPending, o.Status)
	}

	shirt, err := buyer.API.Product(ctx, shirtID)
	require.NoError(t, err)
	assert.Equal(t, 3, shirt.Stock)
}

func TestCheckoutServerStockRejectionCancelsEarlierOrders(t *testing.T) {
	env := newServerEnv(t, app.Options{RestockOnCancel: true})
	ctx := context.Background()
	seller := env.kit("vendor")
	firstID, err := seller.API.CreateProduct(ctx, listing("First", "1", 3), nil)
	require.NoError(t, err)
	lastID, err := seller.API.CreateProduct(ctx, listing("Last", "1", 1), nil)
	require.NoError(t, err)

	buyer := env.kit("late")
	first, err := buyer.API.Product(ctx, firstID)
	require.NoError(t, err)
	last, err := buyer.API.Product(ctx, lastID)
	require.NoError(t, err)
	require.NoError(t, buyer.Cart.Add(first))
	require.NoError(t, buyer.Cart.Add(last))

	// Someone else takes the last unit after the snapshot was taken.
	rival := env.kit("rival")
	_, err = rival.API.CreateOrder(ctx, OrderInput{ProductID: lastID, Quantity: 1})
	require.NoError(t, err)

	_, err = buyer.Checkout(ctx, CheckoutInput{})
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, []Shortage{{ProductID: lastID, Title: "Last", Requested: 1, Available: 0}}, stockErr.Lines)

	orders, err := buyer.API.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, StatusCancelled, orders[0].Status)

	restocked, err := buyer.API.Product(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, 3, restocked.Stock)
	assert.Equal(t, 2, buyer.Cart.TotalItems())
}

func TestCheckoutRollbackKeepsUnitsWithoutRestockPolicy(t *testing.T) {
	env := newServerEnv(t, app.Options{})
	ctx := context.Background()
	seller := env.kit("merchant")
	firstID, err := seller.API.CreateProduct(ctx, listing("Mug", "1", 3), nil)
	require.NoError(t, err)
	lastID, err := seller.API.CreateProduct(ctx, listing("Saucer", "1", 1), nil)
	require.NoError(t, err)

	buyer := env.kit("slow")
	first, err := buyer.API.Product(ctx, firstID)
	require.NoError(t, err)
	last, err := buyer.API.Product(ctx, lastID)
	require.NoError(t, err)
	require.NoError(t, buyer.Cart.Add(first))
	require.NoError(t, buyer.Cart.Add(last))

	rival := env.kit("quick")
	_, err = rival.API.CreateOrder(ctx, OrderInput{ProductID: lastID, Quantity: 1})
	require.NoError(t, err)

	_, err = buyer.Checkout(ctx, CheckoutInput{})
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)

	orders, err := buyer.API.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, StatusCancelled, orders[0].Status)

	// Cancelling does not return units unless the server restocks on cancel.
	mug, err := buyer.API.Product(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, 2, mug.Stock)
	assert.Equal(t, 2, buyer.Cart.TotalItems())
}

// failingPayments fakes the API with a payment endpoint that always fails and
// records which orders were cancelled.
type failingPayments struct {
	mu        sync.Mutex
	nextID    int64
	cancelled []int64
}

func (f *failingPayments) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		var in OrderInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.nextID++
		o := Order{ID: f.nextID, ProductID: in.ProductID, Quantity: in.Quantity, TotalPrice: decimal.NewFromInt(int64(in.Quantity)), Status: StatusPending}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(o)
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var id int64
		_ = json.Unmarshal([]byte(mux.Vars(r)["id"]), &id)
		if body.Status == StatusCancelled {
			f.mu.Lock()
			f.cancelled = append(f.cancelled, id)
			f.mu.Unlock()
		}
		_ = json.NewEncoder(w).Encode(Order{ID: id, Status: body.Status})
	}).Methods(http.MethodPut)
	r.HandleFunc("/api/payments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error","code":"INTERNAL"}`))
	}).Methods(http.MethodPost)
	return r
}

func TestCheckoutPaymentFailureCancelsOrders(t *testing.T) {
	fake := &failingPayments{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	k := NewKit(Config{BaseURL: srv.URL})
	require.NoError(t, k.Session.Login(User{ID: 1, Username: "x"}, "tok"))
	require.NoError(t, k.Cart.Add(Product{ID: 10, Title: "A", Price: decimal.NewFromInt(1), Stock: 9}))
	require.NoError(t, k.Cart.Add(Product{ID: 11, Title: "B", Price: decimal.NewFromInt(1), Stock: 9}))

	_, err := k.Checkout(context.Background(), CheckoutInput{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "payment:"), err.Error())
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "INTERNAL", apiErr.Code)

	assert.ElementsMatch(t, []int64{1, 2}, fake.cancelled)
	assert.Equal(t, 2, k.Cart.TotalItems())
	assert.False(t, errors.Is(err, ErrEmptyCart))
}
