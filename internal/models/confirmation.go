package models

import "time"

// ConfirmationCode is the stored form of a delivery code. Only the bcrypt
// hash is persisted; the plaintext leaves the service exactly once, at issue.
type ConfirmationCode struct {
	ID             int64     `json:"id"`
	BuyerID        int64     `json:"buyer_id"`
	ListingID      int64     `json:"listing_id"`
	CodeHash       string    `json:"-"`
	FailedAttempts int32     `json:"failed_attempts"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActiveCode is the display metadata a buyer may list for their own codes.
type ActiveCode struct {
	ListingID    int64     `json:"listing_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	AttemptsLeft int32     `json:"attempts_left"`
}
