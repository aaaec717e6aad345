package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/kafka"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/redis"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/repository"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type WalletService interface {
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string) (*models.TransferResult, error)
	GetHistory(ctx context.Context, userID int64, limit, offset int32) ([]models.Movement, error)
}

type walletService struct {
	accountRepo    repository.AccountRepository
	ledgerRepo     repository.LedgerRepository
	settlementRepo repository.SettlementRepository
	redisClient    redis.RedisClient
	kafkaProducer  kafka.KafkaProducer
}

func NewWalletService(
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
	settlementRepo repository.SettlementRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
) *walletService {
	return &walletService{
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		settlementRepo: settlementRepo,
		redisClient:    redisClient,
		kafkaProducer:  kafkaProducer,
	}
}

// validAmount accepts positive amounts with at most two fraction digits.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func (s *walletService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	balanceKey := fmt.Sprintf("user:%d:balance", userID)
	if cached, err := s.redisClient.Get(ctx, balanceKey); err == nil {
		if balance, err := decimal.NewFromString(cached); err == nil {
			return balance, nil
		}
		slog.Error("invalid cached balance, falling through", "user_id", userID, "value", cached)
	}

	balance, err := s.accountRepo.GetBalance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get balance")
		slog.Error("failed to get balance from Postgres", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("%w: failed to get balance: %v", pkgerrors.ErrInternal, err)
	}

	if err := s.redisClient.Set(ctx, balanceKey, balance.String(), 5*time.Minute); err != nil {
		slog.Error("failed to cache balance", "user_id", userID, "error", err)
	}
	return balance, nil
}

func (s *walletService) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "TopUp")
	defer span.End()

	if !validAmount(amount) {
		span.SetStatus(codes.Error, "invalid amount")
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}

	newBalance, err := s.settlementRepo.TopUp(ctx, userID, amount, "wallet top-up")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "top-up failed")
		return decimal.Zero, err
	}

	s.invalidateBalance(ctx, userID)
	s.emitEvent(ctx, map[string]interface{}{
		"event_type": "top_up_completed",
		"user_id":    userID,
		"amount":     amount.String(),
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"request_id": uuid.NewString(),
	})

	slog.Info("top-up completed", "user_id", userID, "amount", amount.String(), "balance", newBalance.String())
	return newBalance, nil
}

func (s *walletService) Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string) (*models.TransferResult, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Transfer")
	defer span.End()

	if !validAmount(amount) {
		span.SetStatus(codes.Error, "invalid amount")
		slog.Error("invalid transfer amount", "amount", amount.String())
		return nil, pkgerrors.ErrInvalidAmount
	}
	if fromUserID == toUserID {
		span.SetStatus(codes.Error, "same account")
		return nil, pkgerrors.ErrSameAccount
	}

	result, err := s.settlementRepo.Execute(ctx, fromUserID, toUserID, amount, description)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer failed")
		return nil, err
	}

	// The transfer is already durable; event delivery and cache hygiene are
	// best-effort from here on.
	s.invalidateBalance(ctx, fromUserID)
	s.invalidateBalance(ctx, toUserID)
	s.emitEvent(ctx, map[string]interface{}{
		"event_type":   "settlement_completed",
		"from_user_id": fromUserID,
		"to_user_id":   toUserID,
		"amount":       amount.String(),
		"description":  description,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
		"request_id":   uuid.NewString(),
	})

	slog.Info("transfer completed",
		"from_user_id", fromUserID,
		"to_user_id", toUserID,
		"amount", amount.String())
	return result, nil
}

func (s *walletService) GetHistory(ctx context.Context, userID int64, limit, offset int32) ([]models.Movement, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "GetHistory")
	defer span.End()

	movements, err := s.ledgerRepo.History(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history read failed")
		slog.Error("failed to get movement history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: failed to get history: %v", pkgerrors.ErrInternal, err)
	}
	return movements, nil
}

func (s *walletService) invalidateBalance(ctx context.Context, userID int64) {
	key := fmt.Sprintf("user:%d:balance", userID)
	if err := s.redisClient.Del(ctx, key); err != nil {
		slog.Error("failed to invalidate cached balance", "user_id", userID, "error", err)
	}
}

func (s *walletService) emitEvent(ctx context.Context, event map[string]interface{}) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal settlement event", "error", err)
		return
	}
	key, _ := event["request_id"].(string)
	if err := s.kafkaProducer.Send(ctx, "settlements", key, eventBytes); err != nil {
		slog.Error("failed to send settlement event", "request_id", key, "error", err)
	}
}
