package credits

import (
	"context"

	"github.com/joaorjoaquim/video-insight-api/models"
)

// Service owns the prepaid credit ledger: balance queries, spends with a
// hard overdraft guard, refunds, the estimate-then-finalize flow the video
// pipeline uses, and administrative adjustments.
type Service interface {
	GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error)
	GetHistory(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)

	// Spend deducts amount (positive) from the user's balance. Returns a
	// payment-required error when the balance cannot cover it.
	Spend(ctx context.Context, userID string, amount int, description, referenceID, referenceType string) (*models.CreditTransaction, error)

	// Refund credits amount (positive) back to the user.
	Refund(ctx context.Context, userID string, amount int, description, referenceID, referenceType string) (*models.CreditTransaction, error)

	// ReserveEstimate spends the flat submission estimate against a video
	// job. The reservation is later amended by FinalizeEstimate or undone
	// by RefundEstimate.
	ReserveEstimate(ctx context.Context, userID, videoID string) (*models.CreditTransaction, error)

	// FinalizeEstimate rewrites the job's estimate transaction with the
	// actual token-based cost and settles the balance difference. Returns
	// the final charge in credits.
	FinalizeEstimate(ctx context.Context, userID, videoID string, tokensUsed int) (int, error)

	// RefundEstimate returns the reserved estimate after a pipeline
	// failure. A job whose estimate was already amended or refunded is a
	// no-op, so retried failure paths cannot double-refund.
	RefundEstimate(ctx context.Context, userID, videoID, referenceType string) error

	// CostForTokens is the token-to-credit pricing formula.
	CostForTokens(tokensUsed int) int

	// Grant and Deduct are admin operations. DeductAll applies only to
	// users whose balance covers the amount and reports how many it hit.
	Grant(ctx context.Context, userID string, amount int, description string) (*models.CreditTransaction, error)
	Deduct(ctx context.Context, userID string, amount int, description string) (*models.CreditTransaction, error)
	DeductAll(ctx context.Context, amount int, description string) (int, error)
}
