package errors

import (
	"fmt"
	"net/http"
	"strings"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func InvalidInput(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func NotFound(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Unauthorized(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func PaymentRequired(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusPaymentRequired,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func IsNotFound(err error) bool {
	if e, ok := err.(*AppError); ok {
		return e.Code == http.StatusNotFound
	}
	return false
}

// FailureKind buckets terminal pipeline failures for operator-facing
// aggregate reporting. Diagnostic only; the state machine never branches
// on it.
type FailureKind string

const (
	FailureDownload      FailureKind = "download"
	FailureTranscription FailureKind = "transcription"
	FailureAI            FailureKind = "ai"
	FailureCredit        FailureKind = "credit"
	FailureUnknown       FailureKind = "unknown"
)

var failureKeywords = []struct {
	kind     FailureKind
	keywords []string
}{
	{FailureDownload, []string{"download", "fetch", "metadata"}},
	{FailureTranscription, []string{"transcription", "transcribe", "transcript"}},
	{FailureAI, []string{"insight", "completion", "llm", "openai", "model", "json"}},
	{FailureCredit, []string{"credit", "balance", "insufficient", "ledger"}},
}

// ClassifyFailure maps a terminal error message onto a failure bucket by
// keyword match, first bucket wins.
func ClassifyFailure(message string) FailureKind {
	lower := strings.ToLower(message)
	for _, bucket := range failureKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.kind
			}
		}
	}
	return FailureUnknown
}
