package repository

import (
	"context"

	"github.com/joaorjoaquim/video-insight-api/models"
)

type VideoRepository interface {
	Save(ctx context.Context, video *models.Video) error
	Find(ctx context.Context, id string) (*models.Video, error)
	FindByUser(ctx context.Context, userID string, status models.Status, limit, offset int) ([]*models.Video, error)
}

// CreditRepository owns the ledger rows and the denormalized user balance.
// Spend and Append adjust the balance atomically with the row insert;
// callers never mutate the balance directly.
type CreditRepository interface {
	// Spend appends tx (amount must already be negative) and deducts the
	// balance in one transaction. Returns false with no effect when the
	// user's balance cannot cover it.
	Spend(ctx context.Context, tx *models.CreditTransaction) (bool, error)

	// Append inserts tx and applies its signed amount to the balance.
	// Used for refunds, purchases and admin grants.
	Append(ctx context.Context, tx *models.CreditTransaction) error

	// Amend rewrites a prior transaction in place (the estimate-to-final
	// exception) and applies the amount difference to the balance.
	// Returns false with no effect when the difference would overdraw.
	Amend(ctx context.Context, id string, amount int, txType models.TransactionType, description, referenceType string, tokensUsed int) (bool, error)

	Find(ctx context.Context, id string) (*models.CreditTransaction, error)
	FindLatestByReference(ctx context.Context, referenceID, referenceType string) (*models.CreditTransaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
}

type UserRepository interface {
	Save(ctx context.Context, user *models.User) error
	Find(ctx context.Context, id string) (*models.User, error)
	ListIDsWithMinCredits(ctx context.Context, minCredits int) ([]string, error)
}
