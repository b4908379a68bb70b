package models

import (
	"time"
)

type TransactionType string

const (
	TransactionPurchase    TransactionType = "purchase"
	TransactionSpend       TransactionType = "spend"
	TransactionRefund      TransactionType = "refund"
	TransactionAdminGrant  TransactionType = "admin_grant"
	TransactionAdminDeduct TransactionType = "admin_deduct"
)

type TransactionStatus string

const (
	TransactionConfirmed TransactionStatus = "confirmed"
)

// Reference types correlate a transaction with a video job and the
// pipeline stage that produced it.
const (
	RefSubmissionEstimate  = "submission_estimate"
	RefProcessingFinal     = "processing_final"
	RefDownloadRefund      = "download_failed"
	RefTranscriptionRefund = "transcription_failed"
	RefInsightRefund       = "insight_failed"
	RefAdmin               = "admin"
)

// CreditTransaction is an append-only ledger entry. Amount is signed:
// negative for spend/admin_deduct, positive for purchase/refund/admin_grant.
// The one mutation permitted after creation is the amendment of a
// submission-estimate row once the actual token cost is known.
type CreditTransaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Amount        int               `json:"amount"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	ReferenceType string            `json:"reference_type,omitempty"`
	TokensUsed    int               `json:"tokens_used,omitempty"`
	VideoID       string            `json:"video_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
