package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
)

const (
	insertTransactionQuery = `
        INSERT INTO credit_transactions (
            id, user_id, amount, type, status, description,
            reference_id, reference_type, tokens_used, video_id, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	transactionColumns = `
        id, user_id, amount, type, status, description,
        reference_id, reference_type, tokens_used, video_id, created_at
    `

	// The balance guard lives in the WHERE clause so check-and-deduct is a
	// single statement. Two concurrent spends cannot both pass the guard.
	deductBalanceQuery = `
        UPDATE users SET credits = credits - ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND credits >= ?
    `

	adjustBalanceQuery = `
        UPDATE users SET credits = credits + ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `
)

type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// Spend appends a negative-amount transaction and deducts the balance in a
// single database transaction. Returns false, untouched, when the balance
// cannot cover the amount.
func (r *CreditRepository) Spend(ctx context.Context, tx *models.CreditTransaction) (bool, error) {
	const op = "CreditRepository.Spend"

	charge := -tx.Amount
	ok := false

	err := withLockRetry(op, func() error {
		ok = false
		return WithTransaction(ctx, r.db, func(dbTx Executor) error {
			res, err := dbTx.ExecContext(ctx, deductBalanceQuery, charge, tx.UserID, charge)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				// Insufficient balance or unknown user; either way no row.
				return nil
			}
			if err := insertTransaction(ctx, dbTx, tx); err != nil {
				return err
			}
			ok = true
			return nil
		})
	})
	if err != nil {
		return false, errors.Internal(op, err, "Failed to record spend")
	}
	return ok, nil
}

// Append inserts a transaction and applies its signed amount to the balance.
func (r *CreditRepository) Append(ctx context.Context, tx *models.CreditTransaction) error {
	const op = "CreditRepository.Append"

	missing := false
	err := withLockRetry(op, func() error {
		missing = false
		return WithTransaction(ctx, r.db, func(dbTx Executor) error {
			res, err := dbTx.ExecContext(ctx, adjustBalanceQuery, tx.Amount, tx.UserID)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				missing = true
				return nil
			}
			return insertTransaction(ctx, dbTx, tx)
		})
	})
	if err != nil {
		return errors.Internal(op, err, "Failed to record transaction")
	}
	if missing {
		return errors.NotFound(op, nil, "User not found")
	}
	return nil
}

// Amend rewrites a prior transaction row in place and applies the amount
// difference to the user's balance. This is the single documented exception
// to ledger immutability, used to finalize the submission estimate.
func (r *CreditRepository) Amend(
	ctx context.Context,
	id string,
	amount int,
	txType models.TransactionType,
	description, referenceType string,
	tokensUsed int,
) (bool, error) {
	const op = "CreditRepository.Amend"

	ok := false
	missing := false
	err := withLockRetry(op, func() error {
		ok = false
		missing = false
		return WithTransaction(ctx, r.db, func(dbTx Executor) error {
			prev := &models.CreditTransaction{}
			err := dbTx.QueryRowContext(ctx,
				"SELECT user_id, amount FROM credit_transactions WHERE id = ?", id).
				Scan(&prev.UserID, &prev.Amount)
			if err == sql.ErrNoRows {
				missing = true
				return nil
			}
			if err != nil {
				return err
			}

			// Both amounts are negative; a more expensive final cost
			// yields a negative delta, i.e. an extra charge.
			delta := amount - prev.Amount
			if delta < 0 {
				res, err := dbTx.ExecContext(ctx, deductBalanceQuery, -delta, prev.UserID, -delta)
				if err != nil {
					return err
				}
				affected, err := res.RowsAffected()
				if err != nil {
					return err
				}
				if affected == 0 {
					return nil
				}
			} else if delta > 0 {
				if _, err := dbTx.ExecContext(ctx, adjustBalanceQuery, delta, prev.UserID); err != nil {
					return err
				}
			}

			_, err = dbTx.ExecContext(ctx, `
                UPDATE credit_transactions
                SET amount = ?, type = ?, description = ?, tokens_used = ?,
                    reference_type = ?
                WHERE id = ?`,
				amount, string(txType), description, tokensUsed,
				referenceType, id,
			)
			if err != nil {
				return err
			}
			ok = true
			return nil
		})
	})
	if err != nil {
		return false, errors.Internal(op, err, "Failed to amend transaction")
	}
	if missing {
		return false, errors.NotFound(op, nil, "Transaction not found")
	}
	return ok, nil
}

func (r *CreditRepository) Find(ctx context.Context, id string) (*models.CreditTransaction, error) {
	const op = "CreditRepository.Find"

	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM credit_transactions WHERE id = ?", id)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Transaction not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transaction")
	}
	return tx, nil
}

func (r *CreditRepository) FindLatestByReference(
	ctx context.Context,
	referenceID, referenceType string,
) (*models.CreditTransaction, error) {
	const op = "CreditRepository.FindLatestByReference"

	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+` FROM credit_transactions
         WHERE reference_id = ? AND reference_type = ?
         ORDER BY created_at DESC LIMIT 1`,
		referenceID, referenceType)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Transaction not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transaction")
	}
	return tx, nil
}

func (r *CreditRepository) ListByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]*models.CreditTransaction, error) {
	const op = "CreditRepository.ListByUser"

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+` FROM credit_transactions
         WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transactions")
	}
	defer rows.Close()

	var transactions []*models.CreditTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan transaction")
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate transactions")
	}
	return transactions, nil
}

func insertTransaction(ctx context.Context, dbTx Executor, tx *models.CreditTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := dbTx.ExecContext(ctx, insertTransactionQuery,
		tx.ID,
		tx.UserID,
		tx.Amount,
		string(tx.Type),
		string(tx.Status),
		tx.Description,
		nullable(tx.ReferenceID),
		nullable(tx.ReferenceType),
		tx.TokensUsed,
		nullable(tx.VideoID),
		tx.CreatedAt,
	)
	return err
}

func scanTransaction(row scannable) (*models.CreditTransaction, error) {
	tx := &models.CreditTransaction{}
	var (
		txType        string
		status        string
		referenceID   sql.NullString
		referenceType sql.NullString
		videoID       sql.NullString
	)

	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&txType,
		&status,
		&tx.Description,
		&referenceID,
		&referenceType,
		&tx.TokensUsed,
		&videoID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = models.TransactionType(txType)
	tx.Status = models.TransactionStatus(status)
	tx.ReferenceID = referenceID.String
	tx.ReferenceType = referenceType.String
	tx.VideoID = videoID.String
	return tx, nil
}
