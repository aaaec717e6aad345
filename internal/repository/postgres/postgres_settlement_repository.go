package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/observability"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresSettlementRepository runs every balance mutation as one database
// transaction: account deltas and their ledger rows commit together or not
// at all. Row locks are taken in ascending account-id order so two transfers
// moving funds in opposite directions between the same pair cannot deadlock.
type PostgresSettlementRepository struct {
	db       *sql.DB
	accounts *PostgresAccountRepository
	ledger   *PostgresLedgerRepository
}

func NewPostgresSettlementRepository(db *sql.DB, accounts *PostgresAccountRepository, ledger *PostgresLedgerRepository) *PostgresSettlementRepository {
	return &PostgresSettlementRepository{db: db, accounts: accounts, ledger: ledger}
}

func (r *PostgresSettlementRepository) Execute(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string) (*models.TransferResult, error) {
	var err error
	tracer := otel.Tracer("settlement-repository")
	ctx, span := tracer.Start(ctx, "ExecuteTransfer")
	span.SetAttributes(
		attribute.Int64("from_user_id", fromUserID),
		attribute.Int64("to_user_id", toUserID),
		attribute.String("amount", amount.String()),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("ExecuteTransfer", status).Inc()
		observability.RepositoryDuration.WithLabelValues("ExecuteTransfer").Observe(time.Since(start).Seconds())
	}()

	if !amount.IsPositive() {
		err = pkgerrors.ErrInvalidAmount
		return nil, err
	}
	if fromUserID == toUserID {
		err = pkgerrors.ErrSameAccount
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Execute", "error", err)
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", pkgerrors.ErrInternal, err)
	}
	defer tx.Rollback()

	fromAccountID, err := r.accounts.Provision(ctx, tx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	toAccountID, err := r.accounts.Provision(ctx, tx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	// Deterministic lock order by account id.
	first, second := fromAccountID, toAccountID
	if first > second {
		first, second = second, first
	}
	firstBalance, err := r.accounts.LockForUpdate(ctx, tx, first)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	secondBalance, err := r.accounts.LockForUpdate(ctx, tx, second)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	fromBalance := firstBalance
	if fromAccountID != first {
		fromBalance = secondBalance
	}
	if fromBalance.LessThan(amount) {
		err = pkgerrors.ErrInsufficientFunds
		slog.Info("transfer rejected",
			"from_user_id", fromUserID,
			"balance", fromBalance.String(),
			"amount", amount.String())
		return nil, err
	}

	senderBalance, err := r.accounts.ApplyDelta(ctx, tx, fromAccountID, amount.Neg())
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	debitID, err := r.ledger.Append(ctx, tx, fromAccountID, amount.Neg(), models.KindPurchase, description)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	if _, err = r.accounts.ApplyDelta(ctx, tx, toAccountID, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	creditID, err := r.ledger.Append(ctx, tx, toAccountID, amount, models.KindCreditFromSale, description)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit transfer", "method", "Execute", "error", err)
		return nil, fmt.Errorf("%w: failed to commit transfer: %v", pkgerrors.ErrInternal, err)
	}

	slog.Info("transfer committed",
		"from_user_id", fromUserID,
		"to_user_id", toUserID,
		"amount", amount.String(),
		"debit_movement_id", debitID,
		"credit_movement_id", creditID)

	return &models.TransferResult{
		FromUserID:       fromUserID,
		ToUserID:         toUserID,
		Amount:           amount,
		SenderBalance:    senderBalance,
		DebitMovementID:  debitID,
		CreditMovementID: creditID,
	}, nil
}

func (r *PostgresSettlementRepository) TopUp(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	var err error
	tracer := otel.Tracer("settlement-repository")
	ctx, span := tracer.Start(ctx, "TopUp")
	span.SetAttributes(attribute.Int64("user_id", userID), attribute.String("amount", amount.String()))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("TopUp", status).Inc()
		observability.RepositoryDuration.WithLabelValues("TopUp").Observe(time.Since(start).Seconds())
	}()

	if !amount.IsPositive() {
		err = pkgerrors.ErrInvalidAmount
		return decimal.Zero, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to begin transaction: %v", pkgerrors.ErrInternal, err)
	}
	defer tx.Rollback()

	accountID, err := r.accounts.Provision(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	if _, err = r.accounts.LockForUpdate(ctx, tx, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	newBalance, err := r.accounts.ApplyDelta(ctx, tx, accountID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	if _, err = r.ledger.Append(ctx, tx, accountID, amount, models.KindTopUp, description); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to commit top-up: %v", pkgerrors.ErrInternal, err)
	}

	slog.Info("top-up committed", "user_id", userID, "amount", amount.String(), "balance", newBalance.String())
	return newBalance, nil
}
