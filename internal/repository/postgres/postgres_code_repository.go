package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
)

type PostgresCodeRepository struct {
	db *sql.DB
}

func NewPostgresCodeRepository(db *sql.DB) *PostgresCodeRepository {
	return &PostgresCodeRepository{db: db}
}

// Replace enforces the one-live-code-per-pair invariant: the delete and the
// insert run in the same transaction.
func (r *PostgresCodeRepository) Replace(ctx context.Context, code *models.ConfirmationCode) error {
	if code == nil {
		return fmt.Errorf("code is nil")
	}
	if code.CodeHash == "" {
		return fmt.Errorf("code hash is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM confirmation_codes WHERE buyer_id = $1 AND listing_id = $2`,
		code.BuyerID, code.ListingID,
	); err != nil {
		return fmt.Errorf("failed to invalidate previous code: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO confirmation_codes (buyer_id, listing_id, code_hash) VALUES ($1, $2, $3) RETURNING id, created_at`,
		code.BuyerID, code.ListingID, code.CodeHash,
	).Scan(&code.ID, &code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit code: %w", err)
	}
	return nil
}

func (r *PostgresCodeRepository) GetByListing(ctx context.Context, listingID int64) (*models.ConfirmationCode, error) {
	var code models.ConfirmationCode
	query := `
		SELECT id, buyer_id, listing_id, code_hash, failed_attempts, created_at
		FROM confirmation_codes
		WHERE listing_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.QueryRowContext(ctx, query, listingID).Scan(
		&code.ID, &code.BuyerID, &code.ListingID, &code.CodeHash, &code.FailedAttempts, &code.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return &code, nil
}

func (r *PostgresCodeRepository) IncrementAttempts(ctx context.Context, id int64) (int32, error) {
	var attempts int32
	err := r.db.QueryRowContext(ctx,
		`UPDATE confirmation_codes SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`,
		id,
	).Scan(&attempts)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, pkgerrors.ErrCodeNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *PostgresCodeRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM confirmation_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete code: %w", err)
	}
	return nil
}

func (r *PostgresCodeRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM confirmation_codes WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired codes: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged codes: %w", err)
	}
	return count, nil
}

func (r *PostgresCodeRepository) ListActiveByBuyer(ctx context.Context, buyerID int64, issuedAfter time.Time, maxAttempts int32) ([]models.ConfirmationCode, error) {
	query := `
		SELECT id, buyer_id, listing_id, code_hash, failed_attempts, created_at
		FROM confirmation_codes
		WHERE buyer_id = $1 AND created_at >= $2 AND failed_attempts < $3
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, buyerID, issuedAfter, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active codes: %w", err)
	}
	defer rows.Close()

	var codes []models.ConfirmationCode
	for rows.Next() {
		var code models.ConfirmationCode
		if err := rows.Scan(&code.ID, &code.BuyerID, &code.ListingID, &code.CodeHash, &code.FailedAttempts, &code.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read code rows: %w", err)
	}
	return codes, nil
}
