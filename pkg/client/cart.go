package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in the cart. Product is a snapshot taken when the
// line was added.
type CartLine struct {
	Product  Product   `json:"product"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt"`
}

// Subtotal is the line's price times its quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartState is a snapshot handed to cart subscribers.
type CartState struct {
	Lines      []CartLine
	TotalItems int
	TotalPrice decimal.Decimal
}

// Cart is a client-side shopping cart persisted under KeyCart. Lines keep
// their insertion order.
type Cart struct {
	storage Storage
	now     func() time.Time

	mu    sync.RWMutex
	lines []CartLine

	subs subscribers[CartState]
}

// NewCart returns an empty cart backed by storage. Call Load to restore a
// persisted cart.
func NewCart(storage Storage) *Cart {
	return &Cart{storage: storage, now: time.Now}
}

// Load replaces the in-memory cart with the persisted one.
func (c *Cart) Load() error {
	raw, ok, err := c.storage.Get(KeyCart)
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}
	var lines []CartLine
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &lines); err != nil {
			return fmt.Errorf("decode cart: %w", err)
		}
	}
	c.mu.Lock()
	c.lines = lines
	c.mu.Unlock()
	c.notify()
	return nil
}

// Add puts one more of p in the cart.
func (c *Cart) Add(p Product) error {
	return c.mutate(func(lines []CartLine) []CartLine {
		if i := indexOf(lines, p.ID); i >= 0 {
			lines[i].Quantity++
			return lines
		}
		return append(lines, CartLine{Product: p, Quantity: 1, AddedAt: c.now().UTC()})
	})
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (c *Cart) UpdateQuantity(productID int64, quantity int) error {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	return c.mutate(func(lines []CartLine) []CartLine {
		if i := indexOf(lines, productID); i >= 0 {
			lines[i].Quantity = quantity
		}
		return lines
	})
}

// Remove drops a product from the cart.
func (c *Cart) Remove(productID int64) error {
	return c.mutate(func(lines []CartLine) []CartLine {
		if i := indexOf(lines, productID); i >= 0 {
			return append(lines[:i], lines[i+1:]...)
		}
		return lines
	})
}

// Clear empties the cart and its persisted copy.
func (c *Cart) Clear() error {
	if err := c.storage.Remove(KeyCart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Cart) mutate(fn func([]CartLine) []CartLine) error {
	c.mu.Lock()
	next := fn(append([]CartLine(nil), c.lines...))
	data, err := json.Marshal(next)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.storage.Set(KeyCart, string(data)); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("store cart: %w", err)
	}
	c.lines = next
	c.mu.Unlock()
	c.notify()
	return nil
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CartLine(nil), c.lines...)
}

// TotalPrice sums every line's subtotal.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return totalPrice(c.lines)
}

// TotalItems sums every line's quantity.
func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return totalItems(c.lines)
}

func (c *Cart) IsInCart(productID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return indexOf(c.lines, productID) >= 0
}

// Quantity returns how many of a product are in the cart.
func (c *Cart) Quantity(productID int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.lines, productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// State returns a snapshot of the cart.
func (c *Cart) State() CartState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CartState{
		Lines:      append([]CartLine(nil), c.lines...),
		TotalItems: totalItems(c.lines),
		TotalPrice: totalPrice(c.lines),
	}
}

// Subscribe calls fn after every change until the returned func is called.
func (c *Cart) Subscribe(fn func(CartState)) (unsubscribe func()) {
	return c.subs.add(fn)
}

func (c *Cart) notify() {
	c.subs.publish(c.State())
}

func indexOf(lines []CartLine, productID int64) int {
	for i, l := range lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func totalPrice(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func totalItems(lines []CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
