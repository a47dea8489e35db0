package account

import "time"

// Balance is the current holding of a single account. Accounts come into
// existence on their first credit.
type Balance struct {
	AccountID string    `json:"account_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
