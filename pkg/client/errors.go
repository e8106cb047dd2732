package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyCart is returned by Checkout when there is nothing to buy.
var ErrEmptyCart = errors.New("cart is empty")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether the server rejected the credentials.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Shortage is one cart line asking for more than is in stock.
type Shortage struct {
	ProductID int64
	Title     string
	Requested int
	Available int
}

// StockError lists every cart line that cannot be fulfilled.
type StockError struct {
	Lines []Shortage
}

func (e *StockError) Error() string {
	parts := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		parts[i] = fmt.Sprintf("%s (%d left, %d requested)", l.Title, l.Available, l.Requested)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// AsAPIError extracts an APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
