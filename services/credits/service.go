package credits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/joaorjoaquim/video-insight-api/config"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
	"github.com/joaorjoaquim/video-insight-api/repository"
	"github.com/sirupsen/logrus"
)

type service struct {
	credits repository.CreditRepository
	users   repository.UserRepository
	config  config.CreditsConfig
	logger  *logrus.Logger
}

func NewService(creditRepo repository.CreditRepository, userRepo repository.UserRepository, cfg config.CreditsConfig) Service {
	return &service{
		credits: creditRepo,
		users:   userRepo,
		config:  cfg,
		logger:  logrus.StandardLogger(),
	}
}

func (s *service) GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	const op = "CreditService.GetBalance"

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{UserID: user.ID, Credits: user.Credits}, nil
}

func (s *service) GetHistory(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.credits.ListByUser(ctx, userID, limit, offset)
}

func (s *service) Spend(ctx context.Context, userID string, amount int, description, referenceID, referenceType string) (*models.CreditTransaction, error) {
	const op = "CreditService.Spend"

	if amount <= 0 {
		return nil, errors.InvalidInput(op, nil, "Spend amount must be positive")
	}

	tx := s.newTransaction(userID, -amount, models.TransactionSpend, description, referenceID, referenceType)
	ok, err := s.credits.Spend(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.PaymentRequired(op, nil, "Insufficient credits")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
	}).Info("Credits spent")
	return tx, nil
}

func (s *service) Refund(ctx context.Context, userID string, amount int, description, referenceID, referenceType string) (*models.CreditTransaction, error) {
	const op = "CreditService.Refund"

	if amount <= 0 {
		return nil, errors.InvalidInput(op, nil, "Refund amount must be positive")
	}

	tx := s.newTransaction(userID, amount, models.TransactionRefund, description, referenceID, referenceType)
	if err := s.credits.Append(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"amount":         amount,
		"reference_type": referenceType,
	}).Info("Credits refunded")
	return tx, nil
}

func (s *service) ReserveEstimate(ctx context.Context, userID, videoID string) (*models.CreditTransaction, error) {
	const op = "CreditService.ReserveEstimate"

	description := fmt.Sprintf("Processing estimate for video %s", videoID)
	tx := s.newTransaction(userID, -s.config.SubmissionEstimate, models.TransactionSpend,
		description, videoID, models.RefSubmissionEstimate)
	tx.VideoID = videoID

	ok, err := s.credits.Spend(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.PaymentRequired(op, nil, "Insufficient credits")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"video_id": videoID,
		"amount":   s.config.SubmissionEstimate,
	}).Info("Estimate reserved")
	return tx, nil
}

// FinalizeEstimate settles a job's reservation against the actual cost.
// The estimate row is amended in place so the ledger shows one charge per
// job, not an estimate plus a correction pair. When the estimate row is
// gone (admin cleanup, legacy data) it falls back to a fresh spend.
func (s *service) FinalizeEstimate(ctx context.Context, userID, videoID string, tokensUsed int) (int, error) {
	const op = "CreditService.FinalizeEstimate"

	cost := s.CostForTokens(tokensUsed)
	description := fmt.Sprintf("Video processing: %d tokens", tokensUsed)

	estimate, err := s.credits.FindLatestByReference(ctx, videoID, models.RefSubmissionEstimate)
	if err != nil {
		if !errors.IsNotFound(err) {
			return 0, err
		}
		if _, err := s.Spend(ctx, userID, cost, description, videoID, models.RefProcessingFinal); err != nil {
			return 0, err
		}
		return cost, nil
	}

	ok, err := s.credits.Amend(ctx, estimate.ID, -cost, models.TransactionSpend, description, models.RefProcessingFinal, tokensUsed)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.PaymentRequired(op, nil, "Insufficient credits to settle final cost")
	}

	s.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"estimate": -estimate.Amount,
		"final":    cost,
		"tokens":   tokensUsed,
	}).Info("Estimate finalized")
	return cost, nil
}

func (s *service) RefundEstimate(ctx context.Context, userID, videoID, referenceType string) error {
	const op = "CreditService.RefundEstimate"

	estimate, err := s.credits.FindLatestByReference(ctx, videoID, models.RefSubmissionEstimate)
	if err != nil {
		if errors.IsNotFound(err) {
			// Already finalized or refunded; nothing reserved to return.
			s.logger.WithField("video_id", videoID).Debug("No estimate to refund")
			return nil
		}
		return err
	}

	description := fmt.Sprintf("Refund for video %s (%s)", videoID, referenceType)
	refund := s.newTransaction(userID, -estimate.Amount, models.TransactionRefund, description, videoID, referenceType)
	refund.VideoID = videoID
	if err := s.credits.Append(ctx, refund); err != nil {
		return err
	}

	// Retire the estimate marker, amount unchanged, so a second failure
	// path finds nothing left to refund.
	if _, err := s.credits.Amend(ctx, estimate.ID, estimate.Amount, estimate.Type,
		estimate.Description, referenceType, estimate.TokensUsed); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"video_id":       videoID,
		"amount":         -estimate.Amount,
		"reference_type": referenceType,
	}).Info("Estimate refunded")
	return nil
}

// CostForTokens prices a completed job: a base service cost plus one
// credit per started token block, clamped to the configured band.
func (s *service) CostForTokens(tokensUsed int) int {
	blocks := (tokensUsed + s.config.TokensPerCredit - 1) / s.config.TokensPerCredit
	cost := s.config.BaseServiceCost + blocks
	if cost < s.config.MinCredits {
		cost = s.config.MinCredits
	}
	if cost > s.config.MaxCredits {
		cost = s.config.MaxCredits
	}
	return cost
}

func (s *service) Grant(ctx context.Context, userID string, amount int, description string) (*models.CreditTransaction, error) {
	const op = "CreditService.Grant"

	if amount <= 0 {
		return nil, errors.InvalidInput(op, nil, "Grant amount must be positive")
	}
	if description == "" {
		description = "Administrative credit grant"
	}

	// Grants may target users the ledger has never seen.
	if _, err := s.users.Find(ctx, userID); err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		if err := s.users.Save(ctx, &models.User{ID: userID}); err != nil {
			return nil, err
		}
	}

	tx := s.newTransaction(userID, amount, models.TransactionAdminGrant, description, "", models.RefAdmin)
	if err := s.credits.Append(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
	}).Info("Admin grant applied")
	return tx, nil
}

func (s *service) Deduct(ctx context.Context, userID string, amount int, description string) (*models.CreditTransaction, error) {
	const op = "CreditService.Deduct"

	if amount <= 0 {
		return nil, errors.InvalidInput(op, nil, "Deduct amount must be positive")
	}
	if description == "" {
		description = "Administrative credit deduction"
	}

	tx := s.newTransaction(userID, -amount, models.TransactionAdminDeduct, description, "", models.RefAdmin)
	ok, err := s.credits.Spend(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.InvalidInput(op, nil, "User balance cannot cover the deduction")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
	}).Info("Admin deduction applied")
	return tx, nil
}

// DeductAll deducts amount from every user whose balance covers it and
// reports how many were affected. Users below the amount are skipped, not
// clamped; a partial deduction would make the ledger lie about the charge.
func (s *service) DeductAll(ctx context.Context, amount int, description string) (int, error) {
	const op = "CreditService.DeductAll"

	if amount <= 0 {
		return 0, errors.InvalidInput(op, nil, "Deduct amount must be positive")
	}

	ids, err := s.users.ListIDsWithMinCredits(ctx, amount)
	if err != nil {
		return 0, err
	}

	affected := 0
	for _, id := range ids {
		if _, err := s.Deduct(ctx, id, amount, description); err != nil {
			// A concurrent spend can drop a user below the threshold
			// between listing and deducting; skip and keep going.
			s.logger.WithError(err).WithField("user_id", id).Warn("Bulk deduction skipped user")
			continue
		}
		affected++
	}

	s.logger.WithFields(logrus.Fields{
		"amount":   amount,
		"affected": affected,
	}).Info("Bulk deduction applied")
	return affected, nil
}

func (s *service) newTransaction(userID string, amount int, txType models.TransactionType, description, referenceID, referenceType string) *models.CreditTransaction {
	return &models.CreditTransaction{
		ID:            uuid.New().String(),
		UserID:        userID,
		Amount:        amount,
		Type:          txType,
		Status:        models.TransactionConfirmed,
		Description:   description,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
	}
}
