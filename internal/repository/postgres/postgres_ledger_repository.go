package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/observability"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func validKind(kind models.MovementKind) bool {
	switch kind {
	case models.KindTopUp, models.KindPurchase, models.KindCreditFromSale, models.KindDebitAdjustment:
		return true
	}
	return false
}

// Append writes one immutable row. It must be called inside the same
// transaction as the balance change it records.
func (r *PostgresLedgerRepository) Append(ctx context.Context, tx *sql.Tx, accountID int64, amount decimal.Decimal, kind models.MovementKind, description string) (int64, error) {
	if !validKind(kind) {
		return 0, fmt.Errorf("invalid movement kind %q", kind)
	}
	if amount.IsZero() {
		return 0, fmt.Errorf("movement amount must be non-zero")
	}

	var movementID int64
	query := `INSERT INTO movements (account_id, amount, kind, description) VALUES ($1, $2, $3, $4) RETURNING id`
	err := tx.QueryRowContext(ctx, query, accountID, amount, kind, description).Scan(&movementID)
	if err != nil {
		slog.Error("failed to append movement", "method", "Append", "account_id", accountID, "kind", kind, "error", err)
		return 0, fmt.Errorf("failed to append movement: %w", err)
	}
	return movementID, nil
}

func (r *PostgresLedgerRepository) History(ctx context.Context, userID int64, limit, offset int32) ([]models.Movement, error) {
	var err error
	tracer := otel.Tracer("ledger-repository")
	ctx, span := tracer.Start(ctx, "History")
	span.SetAttributes(attribute.Int64("user_id", userID))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("History", status).Inc()
		observability.RepositoryDuration.WithLabelValues("History").Observe(time.Since(start).Seconds())
	}()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT m.id, m.account_id, m.amount, m.kind, m.description, m.created_at
		FROM movements m
		JOIN accounts a ON a.id = m.account_id
		WHERE a.user_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		slog.Error("failed to query history", "method", "History", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var movements []models.Movement
	for rows.Next() {
		var m models.Movement
		if err = rows.Scan(&m.ID, &m.AccountID, &m.Amount, &m.Kind, &m.Description, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return movements, nil
}
