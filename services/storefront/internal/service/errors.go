package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
)

var (
	// ErrViewerRequired is returned for mutations by anonymous viewers.
	ErrViewerRequired = errors.New("a signed-in viewer is required")
	// ErrDeleteNotConfirmed is returned when the viewer declined, or never
	// answered, the delete confirmation.
	ErrDeleteNotConfirmed = errors.New("review deletion was not confirmed")
)

// DeleteConfirmPrompt is shown to the viewer before a review is deleted.
const DeleteConfirmPrompt = "Are you sure you want to delete your review? This cannot be undone."

// SubmitErrorKind classifies a failed mutation.
type SubmitErrorKind string

const (
	KindTransactionRequired SubmitErrorKind = "transaction_required"
	KindUnauthorized        SubmitErrorKind = "unauthorized"
	KindTimeout             SubmitErrorKind = "timeout"
	KindAPI                 SubmitErrorKind = "api"
	KindTransport           SubmitErrorKind = "transport"
)

// User-facing fallbacks.
const (
	msgUnauthorized = "Your session has expired. Please log in again."
	msgTimeout      = "The ratings service took too long to respond. Please try again."
	msgUnavailable  = "Ratings are temporarily unavailable. Please try again shortly."
	msgTransport    = "We couldn't reach the ratings service. Please check your connection and try again."
	msgGeneric      = "Something went wrong while saving your review. Please try again."
	msgLoginNeeded  = "Please log in to leave a review."
)

// transactionPhrases identify the backend's "rent before you review" refusal.
var transactionPhrases = []string{
	"completed a transaction",
	"complete a transaction",
	"completed rental",
}

// SubmitError is a failed create, update or delete. Message is safe to show
// to the viewer.
type SubmitError struct {
	Kind    SubmitErrorKind
	Message string
	Status  int
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// ReloadError means the mutation went through but the fresh summary could
// not be fetched afterwards.
type ReloadError struct {
	Err error
}

func (e *ReloadError) Error() string {
	return "reload ratings after mutation: " + e.Err.Error()
}

func (e *ReloadError) Unwrap() error {
	return e.Err
}

// classifySubmitError maps any mutation failure to a SubmitError.
func classifySubmitError(err error) *SubmitError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, apperrors.ErrTimeout) {
		return &SubmitError{Kind: KindTimeout, Message: msgTimeout, Status: http.StatusGatewayTimeout, Err: err}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &SubmitError{Kind: KindTransport, Message: msgUnavailable, Status: http.StatusServiceUnavailable, Err: err}
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return &SubmitError{Kind: KindTransport, Message: msgTransport, Status: http.StatusBadGateway, Err: err}
	}

	msg := strings.TrimSpace(appErr.Message)
	if isTransactionRequired(msg) {
		return &SubmitError{Kind: KindTransactionRequired, Message: msg, Status: http.StatusForbidden, Err: err}
	}
	if appErr.Status == http.StatusUnauthorized {
		if msg == "" {
			msg = msgUnauthorized
		}
		return &SubmitError{Kind: KindUnauthorized, Message: msg, Status: http.StatusUnauthorized, Err: err}
	}

	status := appErr.Status
	if status == 0 || status >= http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	if msg == "" {
		msg = msgGeneric
	}
	return &SubmitError{Kind: KindAPI, Message: msg, Status: status, Err: err}
}

func isTransactionRequired(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range transactionPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// userMessage is the text sent to the message sink for err.
func userMessage(err error) string {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Message
	}
	if errors.Is(err, ErrViewerRequired) {
		return msgLoginNeeded
	}
	return msgGeneric
}
