package repository

import (
	"context"
	"database/sql"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerRepository appends to and reads the append-only movement log.
// There is deliberately no update or delete; corrections are new rows.
type LedgerRepository interface {
	Append(ctx context.Context, tx *sql.Tx, accountID int64, amount decimal.Decimal, kind models.MovementKind, description string) (int64, error)
	History(ctx context.Context, userID int64, limit, offset int32) ([]models.Movement, error)
}
