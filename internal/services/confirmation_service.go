package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/kafka"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/observability"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/redis"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/repository"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

// Codes are 6 characters over digits and uppercase A-Z. The plaintext is
// handed out exactly once at issue; only a bcrypt hash is stored.
const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
)

type ConfirmationService interface {
	Issue(ctx context.Context, buyerID, listingID int64) (string, error)
	Verify(ctx context.Context, callerID, listingID int64, candidate string) (bool, error)
	ListActive(ctx context.Context, buyerID int64) ([]models.ActiveCode, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type confirmationService struct {
	codeRepo      repository.CodeRepository
	catalogRepo   repository.CatalogRepository
	redisClient   redis.RedisClient
	kafkaProducer kafka.KafkaProducer
	ttl           time.Duration
	maxAttempts   int32
}

func NewConfirmationService(
	codeRepo repository.CodeRepository,
	catalogRepo repository.CatalogRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	ttl time.Duration,
	maxAttempts int32,
) *confirmationService {
	return &confirmationService{
		codeRepo:      codeRepo,
		catalogRepo:   catalogRepo,
		redisClient:   redisClient,
		kafkaProducer: kafkaProducer,
		ttl:           ttl,
		maxAttempts:   maxAttempts,
	}
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func (s *confirmationService) Issue(ctx context.Context, buyerID, listingID int64) (string, error) {
	tracer := otel.Tracer("confirmation-service")
	ctx, span := tracer.Start(ctx, "IssueCode")
	span.SetAttributes(attribute.Int64("buyer_id", buyerID), attribute.Int64("listing_id", listingID))
	defer span.End()

	plaintext, err := generateCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code generation failed")
		return "", fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code hashing failed")
		return "", fmt.Errorf("%w: failed to hash code: %v", pkgerrors.ErrInternal, err)
	}

	code := &models.ConfirmationCode{
		BuyerID:   buyerID,
		ListingID: listingID,
		CodeHash:  string(hash),
	}
	if err := s.codeRepo.Replace(ctx, code); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code store failed")
		slog.Error("failed to store confirmation code", "buyer_id", buyerID, "listing_id", listingID, "error", err)
		return "", fmt.Errorf("%w: failed to store code: %v", pkgerrors.ErrInternal, err)
	}

	s.emitEvent(ctx, map[string]interface{}{
		"event_type": "code_issued",
		"user_id":    buyerID,
		"listing_id": listingID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})

	slog.Info("confirmation code issued", "buyer_id", buyerID, "listing_id", listingID, "code_id", code.ID)
	return plaintext, nil
}

// Verify fails closed: any state that is not a live, unexpired, unexhausted
// code presented by the listing's seller yields false. A matching code is
// consumed on the spot.
func (s *confirmationService) Verify(ctx context.Context, callerID, listingID int64, candidate string) (bool, error) {
	tracer := otel.Tracer("confirmation-service")
	ctx, span := tracer.Start(ctx, "VerifyCode")
	span.SetAttributes(attribute.Int64("caller_id", callerID), attribute.Int64("listing_id", listingID))
	defer span.End()

	listing, err := s.catalogRepo.GetListing(ctx, listingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing lookup failed")
		return false, err
	}
	if listing.SellerID != callerID {
		observability.ConfirmationVerifications.WithLabelValues("unauthorized").Inc()
		span.SetStatus(codes.Error, "caller is not the seller")
		slog.Error("verification by non-seller rejected", "caller_id", callerID, "listing_id", listingID)
		return false, pkgerrors.ErrUnauthorized
	}

	// Serialize concurrent verification attempts on the same listing so the
	// attempt counter cannot be raced past the lockout bound.
	lockKey := fmt.Sprintf("code:%d:lock", listingID)
	ok, err := s.redisClient.SetNX(ctx, lockKey, "locked", 3*time.Second)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification lock failed")
		slog.Error("failed to acquire verification lock", "listing_id", listingID, "error", err)
		return false, fmt.Errorf("%w: failed to acquire verification lock: %v", pkgerrors.ErrInternal, err)
	}
	if !ok {
		span.SetStatus(codes.Error, "verification locked")
		return false, pkgerrors.ErrVerifyLocked
	}
	defer s.redisClient.Del(ctx, lockKey)

	code, err := s.codeRepo.GetByListing(ctx, listingID)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrCodeNotFound) {
			observability.ConfirmationVerifications.WithLabelValues("not_found").Inc()
			return false, pkgerrors.ErrCodeNotFound
		}
		span.RecordError(err)
		return false, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	if time.Since(code.CreatedAt) > s.ttl {
		if err := s.codeRepo.Delete(ctx, code.ID); err != nil {
			slog.Error("failed to delete expired code", "code_id", code.ID, "error", err)
		}
		observability.ConfirmationVerifications.WithLabelValues("expired").Inc()
		slog.Info("expired code rejected", "listing_id", listingID, "code_id", code.ID)
		return false, pkgerrors.ErrCodeExpired
	}

	if code.FailedAttempts >= s.maxAttempts {
		if err := s.codeRepo.Delete(ctx, code.ID); err != nil {
			slog.Error("failed to delete locked code", "code_id", code.ID, "error", err)
		}
		observability.ConfirmationVerifications.WithLabelValues("locked").Inc()
		slog.Info("locked code rejected", "listing_id", listingID, "code_id", code.ID)
		return false, pkgerrors.ErrCodeLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(code.CodeHash), []byte(candidate)); err != nil {
		attempts, incErr := s.codeRepo.IncrementAttempts(ctx, code.ID)
		if incErr != nil {
			slog.Error("failed to record failed attempt", "code_id", code.ID, "error", incErr)
		}
		observability.ConfirmationVerifications.WithLabelValues("mismatch").Inc()
		slog.Info("code mismatch", "listing_id", listingID, "failed_attempts", attempts)
		return false, nil
	}

	// Single use: the code is gone before the caller sees true.
	if err := s.codeRepo.Delete(ctx, code.ID); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: failed to consume code: %v", pkgerrors.ErrInternal, err)
	}
	if err := s.catalogRepo.MarkDelivered(ctx, listingID); err != nil {
		slog.Error("failed to mark listing delivered", "listing_id", listingID, "error", err)
	}

	observability.ConfirmationVerifications.WithLabelValues("success").Inc()
	slog.Info("delivery confirmed", "listing_id", listingID, "buyer_id", code.BuyerID, "seller_id", callerID)
	return true, nil
}

func (s *confirmationService) ListActive(ctx context.Context, buyerID int64) ([]models.ActiveCode, error) {
	issuedAfter := time.Now().Add(-s.ttl)
	stored, err := s.codeRepo.ListActiveByBuyer(ctx, buyerID, issuedAfter, s.maxAttempts)
	if err != nil {
		slog.Error("failed to list active codes", "buyer_id", buyerID, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}

	active := make([]models.ActiveCode, 0, len(stored))
	for _, code := range stored {
		active = append(active, models.ActiveCode{
			ListingID:    code.ListingID,
			CreatedAt:    code.CreatedAt,
			ExpiresAt:    code.CreatedAt.Add(s.ttl),
			AttemptsLeft: s.maxAttempts - code.FailedAttempts,
		})
	}
	return active, nil
}

func (s *confirmationService) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.codeRepo.DeleteExpired(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		slog.Error("failed to purge expired codes", "error", err)
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrInternal, err)
	}
	if count > 0 {
		slog.Info("expired codes purged", "count", count)
	}
	return count, nil
}

func (s *confirmationService) emitEvent(ctx context.Context, event map[string]interface{}) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal code event", "error", err)
		return
	}
	if err := s.kafkaProducer.Send(ctx, "settlements", fmt.Sprintf("%v", event["listing_id"]), eventBytes); err != nil {
		slog.Error("failed to send code event", "error", err)
	}
}
