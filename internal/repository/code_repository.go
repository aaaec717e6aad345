package repository

import (
	"context"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
)

type CodeRepository interface {
	// Replace removes any existing code for the (buyer, listing) pair and
	// stores the new one in the same transaction.
	Replace(ctx context.Context, code *models.ConfirmationCode) error
	// GetByListing returns the newest code for a listing. A listing is sold to
	// one buyer, so at most one live code exists per listing.
	GetByListing(ctx context.Context, listingID int64) (*models.ConfirmationCode, error)
	IncrementAttempts(ctx context.Context, id int64) (int32, error)
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	ListActiveByBuyer(ctx context.Context, buyerID int64, issuedAfter time.Time, maxAttempts int32) ([]models.ConfirmationCode, error)
}
