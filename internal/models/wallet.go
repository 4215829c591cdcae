package models

import (
	"time"
)

// Wallet holds a user's earned gift balance. PendingBalance must always
// equal TotalEarned - TotalWithdrawn and never go negative; both totals
// only ever increase.
type Wallet struct {
	UserID         string    `json:"user_id" db:"user_id"`
	PendingBalance int64     `json:"pending_balance" db:"pending_balance"`
	TotalEarned    int64     `json:"total_earned" db:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn" db:"total_withdrawn"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Balance is the read model returned to the application layer. A user
// without a wallet row has the zero balance by definition.
type Balance struct {
	UserID         string `json:"user_id"`
	PendingBalance int64  `json:"pending_balance"`
	TotalEarned    int64  `json:"total_earned"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
}
