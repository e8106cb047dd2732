package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is charged when a checkout names none.
const DefaultCurrency = "USD"

// Kit bundles an API client with the session and cart stores that share its
// storage.
type Kit struct {
	API     *Client
	Session *Session
	Cart    *Cart
}

// NewKit builds a client, a session and a cart over cfg.Storage.
func NewKit(cfg Config) *Kit {
	api := New(cfg)
	return &Kit{
		API:     api,
		Session: NewSession(api),
		Cart:    NewCart(api.Storage()),
	}
}

// Load restores the persisted cart and session.
func (k *Kit) Load(ctx context.Context) error {
	if err := k.Cart.Load(); err != nil {
		return err
	}
	return k.Session.Load(ctx)
}

// Login signs in and persists the session.
func (k *Kit) Login(ctx context.Context, username, password string) (User, error) {
	res, err := k.API.Login(ctx, username, password)
	if err != nil {
		return User{}, err
	}
	if err := k.Session.Login(res.User, res.Token); err != nil {
		return User{}, err
	}
	return res.User, nil
}

// Logout ends the session. The cart is kept.
func (k *Kit) Logout() error {
	return k.Session.Logout()
}

// CheckoutInput carries the order details shared by every cart line.
type CheckoutInput struct {
	ShippingAddress string
	PaymentMethod   string
	Currency        string
}

// Receipt is the result of a successful checkout.
type Receipt struct {
	Orders  []Order
	Payment Payment
}

// Checkout buys everything in the cart. Lines asking for more than their
// snapshot's stock fail with a *StockError before anything is sent. One order
// is placed per line, reserving stock, then the total is paid; if any step
// fails the orders already placed are cancelled. The cart is cleared only
// after payment succeeds.
func (k *Kit) Checkout(ctx context.Context, in CheckoutInput) (Receipt, error) {
	lines := k.Cart.Lines()
	if len(lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	if err := checkStock(lines); err != nil {
		return Receipt{}, err
	}
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	orders := make([]Order, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		o, err := k.API.CreateOrder(ctx, OrderInput{
			ProductID:       line.Product.ID,
			Quantity:        line.Quantity,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
		})
		if err != nil {
			err = asStockError(err, line)
			return Receipt{}, errors.Join(fmt.Errorf("place order for %q: %w", line.Product.Title, err), k.cancel(ctx, orders))
		}
		orders = append(orders, o)
		total = total.Add(o.TotalPrice)
	}

	payment, err := k.API.Pay(ctx, total, currency)
	if err != nil {
		return Receipt{}, errors.Join(fmt.Errorf("payment: %w", err), k.cancel(ctx, orders))
	}
	if err := k.Cart.Clear(); err != nil {
		return Receipt{Orders: orders, Payment: payment}, err
	}
	return Receipt{Orders: orders, Payment: payment}, nil
}

func (k *Kit) cancel(ctx context.Context, orders []Order) error {
	var errs []error
	for _, o := range orders {
		if _, err := k.API.UpdateOrderStatus(context.WithoutCancel(ctx), o.ID, StatusCancelled); err != nil {
			errs = append(errs, fmt.Errorf("cancel order %d: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}

func checkStock(lines []CartLine) error {
	var short []Shortage
	for _, l := range lines {
		if l.Quantity > l.Product.Stock {
			short = append(short, Shortage{
				ProductID: l.Product.ID,
				Title:     l.Product.Title,
				Requested: l.Quantity,
				Available: l.Product.Stock,
			})
		}
	}
	if len(short) > 0 {
		return &StockError{Lines: short}
	}
	return nil
}

// asStockError turns a server side INSUFFICIENT_STOCK rejection into a
// StockError for the line.
func asStockError(err error, line CartLine) error {
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Code != "INSUFFICIENT_STOCK" {
		return err
	}
	available, _ := apiErr.Details["available"].(float64)
	return &StockError{Lines: []Shortage{{
		ProductID: line.Product.ID,
		Title:     line.Product.Title,
		Requested: line.Quantity,
		Available: int(available),
	}}}
}
