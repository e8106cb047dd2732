package client

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Request bodies carry prices as JSON numbers, the same as API responses.
	decimal.MarshalJSONWithoutQuotes = true
}

// User is the public projection of an account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	ImageURI  string    `json:"image_uri"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a catalogue item.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Stock       int             `json:"stock"`
	ImageURI    string          `json:"image_uri"`
	SellerID    int64           `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Category groups products.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURI string `json:"image_uri"`
}

// Order statuses accepted by UpdateOrderStatus.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Order is a single-product purchase.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderView is an order joined with product and party details.
type OrderView struct {
	Order
	ProductTitle   string `json:"product_title"`
	ProductImage   string `json:"product_image"`
	SellerID       int64  `json:"seller_id"`
	SellerUsername string `json:"seller_username"`
	BuyerUsername  string `json:"buyer_username"`
}

// Payment is the outcome of the payment endpoint.
type Payment struct {
	Success   bool            `json:"success"`
	PaymentID string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// Stats are the admin dashboard figures.
type Stats struct {
	TotalUsers         int             `json:"totalUsers"`
	TotalOrders        int             `json:"totalOrders"`
	TotalProducts      int             `json:"totalProducts"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
	PendingOrders      int             `json:"pendingOrders"`
	AdminUsers         int             `json:"adminUsers"`
	OutOfStockProducts int             `json:"outOfStockProducts"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}
