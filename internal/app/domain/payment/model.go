package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusCompleted is the only outcome of the mock gateway.
const StatusCompleted = "completed"

// DefaultCurrency applies when a request names none.
const DefaultCurrency = "THB"

// Payment records a mock payment outcome.
type Payment struct {
	ID        string          `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
