// Package order holds purchase records and their lifecycle states.
package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus accepts the known statuses, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Statuses {
		if st == candidate {
			return st, true
		}
	}
	return "", false
}

// Order is a single-product purchase. TotalPrice is fixed when the order is
// placed and never recomputed.
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	ProductID       int64           `json:"product_id" db:"product_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	TotalPrice      decimal.Decimal `json:"total_price" db:"total_price"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	Status          Status          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Placement is a request to buy Quantity units of ProductID.
type Placement struct {
	UserID          int64
	ProductID       int64
	Quantity        int
	ShippingAddress string
	PaymentMethod   string
}

// View is an order joined with its product and the parties involved. Product
// fields are empty when the product has since been deleted.
type View struct {
	Order
	ProductTitle   string `json:"product_title" db:"product_title"`
	ProductImage   string `json:"product_image" db:"product_image"`
	SellerID       int64  `json:"seller_id" db:"seller_id"`
	SellerUsername string `json:"seller_username" db:"seller_username"`
	BuyerUsername  string `json:"buyer_username" db:"buyer_username"`
}
