package models

import "github.com/shopspring/decimal"

// CartLine is what the cart collaborator hands to checkout. Only lines with
// Selected=true take part in settlement.
type CartLine struct {
	ListingID int64           `json:"listing_id"`
	SellerID  int64           `json:"seller_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	Selected  bool            `json:"selected"`
}

type FailureReason string

const (
	// FailureInsufficientFunds: the buyer should top up and retry.
	FailureInsufficientFunds FailureReason = "insufficient_funds"
	// FailureInfrastructure: nothing was charged for the group; retry later.
	FailureInfrastructure FailureReason = "infrastructure"
	// FailureInvalidLine: the line itself is unsellable (own listing, bad price).
	FailureInvalidLine FailureReason = "invalid_line"
	// FailureCodePending: the buyer was charged and the listing is sold, but no
	// confirmation code exists yet; issuing must be retried before handoff.
	FailureCodePending FailureReason = "code_pending"
)

type SettledListing struct {
	ListingID        int64           `json:"listing_id"`
	SellerID         int64           `json:"seller_id"`
	Price            decimal.Decimal `json:"price"`
	ConfirmationCode string          `json:"confirmation_code,omitempty"`
}

type FailedListing struct {
	ListingID int64         `json:"listing_id"`
	SellerID  int64         `json:"seller_id"`
	Reason    FailureReason `json:"reason"`
}

// CheckoutReport is deliberately partial-success shaped: each seller group is
// its own atomic unit, so some groups may land while others fail.
type CheckoutReport struct {
	Succeeded    []SettledListing `json:"succeeded"`
	Failed       []FailedListing  `json:"failed"`
	TotalCharged decimal.Decimal  `json:"total_charged"`
	NewBalance   decimal.Decimal  `json:"new_balance"`
}
