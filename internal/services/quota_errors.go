package services

import "fmt"

// QuotaErrorKind discriminates quota failures so callers never have to
// pattern-match message text.
type QuotaErrorKind string

const (
	// QuotaExceeded is the expected business outcome: not enough tokens left.
	QuotaExceeded QuotaErrorKind = "quota_exceeded"
	// QuotaStoreUnavailable is an infrastructure fault; the dependent action
	// must be aborted and the user told to retry.
	QuotaStoreUnavailable QuotaErrorKind = "store_unavailable"
	// QuotaOutcomeUnknown means the operation timed out or was cancelled and
	// it is ambiguous whether the debit landed. Callers must not blindly
	// retry a consume with this kind.
	QuotaOutcomeUnknown QuotaErrorKind = "outcome_unknown"
)

type QuotaError struct {
	Kind    QuotaErrorKind
	Message string
	cause   error
}

func (e *QuotaError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *QuotaError) Unwrap() error {
	return e.cause
}

func newQuotaError(kind QuotaErrorKind, message string, cause error) *QuotaError {
	return &QuotaError{Kind: kind, Message: message, cause: cause}
}

// QuotaErrKind returns the kind of err if it is a *QuotaError, or
// QuotaOutcomeUnknown otherwise.
func QuotaErrKind(err error) QuotaErrorKind {
	if qe, ok := err.(*QuotaError); ok {
		return qe.Kind
	}
	return QuotaOutcomeUnknown
}
