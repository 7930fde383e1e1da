package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel not-found errors. Terminal; surfaced as-is.
var (
	ErrFlowNotFound         = errors.New("flow not found")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrRevisionNotFound     = errors.New("flow revision not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// ErrVersionConflict marks a lost read-modify-write race on a version
// counter or active pointer. Callers retry the whole operation with
// fresh state.
var ErrVersionConflict = errors.New("version conflict")

// ValidationError carries the full list of integrity errors. It is never
// retried automatically; the author sees every entry.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed with %d errors: %s",
		len(e.Errors), strings.Join(e.Errors, "; "))
}

// NewValidationError builds a ValidationError from messages.
func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Errors: msgs}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidStateError marks an illegal conversation transition. Terminal.
type InvalidStateError struct {
	ConversationID string
	Current        ConversationStatus
	Expected       ConversationStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("conversation %s is %s, expected %s",
		e.ConversationID, e.Current, e.Expected)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// ExternalServiceError wraps a failure in a collaborator (persistence,
// AI provider). Retried with bounded backoff at the call site, except in
// the guardrail engine where it maps to the fail-safe outcome.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a version-bump race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrRevisionNotFound) ||
		errors.Is(err, ErrConversationNotFound)
}
