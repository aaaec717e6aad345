package repository

import (
	"context"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	"github.com/shopspring/decimal"
)

// SettlementRepository runs the atomic units: everything inside one call
// either commits in full or leaves no trace.
type SettlementRepository interface {
	// Execute moves amount from one user to another: both balance changes and
	// both ledger rows commit together or not at all.
	Execute(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string) (*models.TransferResult, error)
	// TopUp credits a user's account and appends the matching ledger row.
	TopUp(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error)
}
