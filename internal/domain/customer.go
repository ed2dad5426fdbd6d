package domain

import "time"

// Customer is the purchasing projection of an authenticated account.
// It is created the first time the account checks out.
type Customer struct {
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}
