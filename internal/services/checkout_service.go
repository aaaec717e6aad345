package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/observability"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/repository"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type CheckoutService interface {
	Checkout(ctx context.Context, buyerID int64, lines []models.CartLine) (*models.CheckoutReport, error)
}

// TransferExecutor is the slice of the wallet service checkout needs.
type TransferExecutor interface {
	Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string) (*models.TransferResult, error)
}

// CodeIssuer is the slice of the confirmation service checkout needs.
type CodeIssuer interface {
	Issue(ctx context.Context, buyerID, listingID int64) (string, error)
}

type checkoutService struct {
	transfers   TransferExecutor
	accountRepo repository.AccountRepository
	catalogRepo repository.CatalogRepository
	codes       CodeIssuer
}

func NewCheckoutService(
	transfers TransferExecutor,
	accountRepo repository.AccountRepository,
	catalogRepo repository.CatalogRepository,
	codes CodeIssuer,
) *checkoutService {
	return &checkoutService{
		transfers:   transfers,
		accountRepo: accountRepo,
		catalogRepo: catalogRepo,
		codes:       codes,
	}
}

// Checkout settles the selected cart lines seller by seller. Each seller
// group is one atomic transfer; a group that fails leaves its lines alone and
// never rolls back groups that already committed. Groups run in ascending
// seller-id order so running out of funds mid-checkout is deterministic.
func (s *checkoutService) Checkout(ctx context.Context, buyerID int64, lines []models.CartLine) (*models.CheckoutReport, error) {
	tracer := otel.Tracer("checkout-service")
	ctx, span := tracer.Start(ctx, "Checkout")
	span.SetAttributes(attribute.Int64("buyer_id", buyerID))
	defer span.End()

	var selected []models.CartLine
	for _, line := range lines {
		if line.Selected {
			selected = append(selected, line)
		}
	}
	if len(selected) == 0 {
		span.SetStatus(codes.Error, "no selected lines")
		return nil, fmt.Errorf("%w: no selected cart lines", pkgerrors.ErrInvalidParameters)
	}

	// Slices start non-nil so empty outcomes serialize as [] rather than null.
	report := &models.CheckoutReport{
		Succeeded:    []models.SettledListing{},
		Failed:       []models.FailedListing{},
		TotalCharged: decimal.Zero,
	}

	groups := make(map[int64][]models.CartLine)
	for _, line := range selected {
		groups[line.SellerID] = append(groups[line.SellerID], line)
	}
	sellerIDs := make([]int64, 0, len(groups))
	for sellerID := range groups {
		sellerIDs = append(sellerIDs, sellerID)
	}
	sort.Slice(sellerIDs, func(i, j int) bool { return sellerIDs[i] < sellerIDs[j] })

	requestID := uuid.NewString()
	for _, sellerID := range sellerIDs {
		s.settleGroup(ctx, buyerID, sellerID, groups[sellerID], requestID, report)
	}

	if len(report.Succeeded) > 0 {
		// SenderBalance of the last committed group is already current.
		slog.Info("checkout finished",
			"buyer_id", buyerID,
			"request_id", requestID,
			"succeeded", len(report.Succeeded),
			"failed", len(report.Failed),
			"total_charged", report.TotalCharged.String())
	} else {
		balance, err := s.accountRepo.GetBalance(ctx, buyerID)
		if err != nil {
			slog.Error("failed to read balance for report", "buyer_id", buyerID, "error", err)
		} else {
			report.NewBalance = balance
		}
		slog.Info("checkout finished with no settled groups",
			"buyer_id", buyerID,
			"request_id", requestID,
			"failed", len(report.Failed))
	}
	return report, nil
}

func (s *checkoutService) settleGroup(ctx context.Context, buyerID, sellerID int64, lines []models.CartLine, requestID string, report *models.CheckoutReport) {
	subtotal := decimal.Zero
	var settleable []models.CartLine
	for _, line := range lines {
		reason, price := s.validateLine(ctx, buyerID, sellerID, line)
		if reason != "" {
			report.Failed = append(report.Failed, models.FailedListing{
				ListingID: line.ListingID,
				SellerID:  sellerID,
				Reason:    reason,
			})
			continue
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt32(line.Quantity)))
		settleable = append(settleable, line)
	}
	if len(settleable) == 0 {
		return
	}

	description := fmt.Sprintf("checkout %s: %d listing(s)", requestID, len(settleable))
	result, err := s.transfers.Transfer(ctx, buyerID, sellerID, subtotal, description)
	if err != nil {
		reason := models.FailureInfrastructure
		outcome := "failed"
		if stderrors.Is(err, pkgerrors.ErrInsufficientFunds) {
			reason = models.FailureInsufficientFunds
			outcome = "insufficient_funds"
		}
		observability.SettlementsTotal.WithLabelValues(outcome).Inc()
		slog.Error("seller group settlement failed",
			"buyer_id", buyerID,
			"seller_id", sellerID,
			"subtotal", subtotal.String(),
			"error", err)
		for _, line := range settleable {
			report.Failed = append(report.Failed, models.FailedListing{
				ListingID: line.ListingID,
				SellerID:  sellerID,
				Reason:    reason,
			})
		}
		return
	}

	report.TotalCharged = report.TotalCharged.Add(subtotal)
	report.NewBalance = result.SenderBalance

	for _, line := range settleable {
		if err := s.catalogRepo.MarkSold(ctx, line.ListingID); err != nil {
			// Funds already moved; the listing state is reconciled out of band.
			slog.Error("failed to mark listing sold", "listing_id", line.ListingID, "error", err)
		}
		plaintext, err := s.codes.Issue(ctx, buyerID, line.ListingID)
		if err != nil {
			// The handoff cannot be confirmed without a code, so the listing
			// must not look settled. The charge stands; only issuing is retried.
			slog.Error("failed to issue confirmation code", "listing_id", line.ListingID, "error", err)
			report.Failed = append(report.Failed, models.FailedListing{
				ListingID: line.ListingID,
				SellerID:  sellerID,
				Reason:    models.FailureCodePending,
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, models.SettledListing{
			ListingID:        line.ListingID,
			SellerID:         sellerID,
			Price:            line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)),
			ConfirmationCode: plaintext,
		})
	}
}

// validateLine re-checks the line against the catalog: cart contents can go
// stale between selection and settlement.
func (s *checkoutService) validateLine(ctx context.Context, buyerID, sellerID int64, line models.CartLine) (models.FailureReason, decimal.Decimal) {
	if sellerID == buyerID || line.Quantity <= 0 || !line.UnitPrice.IsPositive() {
		return models.FailureInvalidLine, decimal.Zero
	}
	listing, err := s.catalogRepo.GetListing(ctx, line.ListingID)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrListingNotFound) {
			return models.FailureInvalidLine, decimal.Zero
		}
		return models.FailureInfrastructure, decimal.Zero
	}
	if listing.SellerID != sellerID || listing.State != models.ListingAvailable {
		return models.FailureInvalidLine, decimal.Zero
	}
	if !listing.Price.Equal(line.UnitPrice) {
		// Price changed since the line entered the cart.
		return models.FailureInvalidLine, decimal.Zero
	}
	return "", listing.Price
}
