package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingState string

const (
	ListingAvailable ListingState = "available"
	ListingSold      ListingState = "sold"
	ListingDelivered ListingState = "delivered"
)

type Listing struct {
	ID        int64           `json:"id"`
	SellerID  int64           `json:"seller_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	State     ListingState    `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}
