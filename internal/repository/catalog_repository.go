package repository

import (
	"context"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
)

// CatalogRepository is the adapter to the listing catalog. The settlement
// engine only ever reads listings and advances their state.
type CatalogRepository interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	MarkSold(ctx context.Context, id int64) error
	MarkDelivered(ctx context.Context, id int64) error
}
