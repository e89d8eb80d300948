package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id does not resolve to an
	// open session (it may have expired, been confirmed, or been discarded).
	ErrSessionNotFound = errors.New("receiving session not found")

	// ErrOpenSessionExists is returned when an operator tries to open a second
	// session while one is still open. The operator must confirm or discard
	// the existing session first.
	ErrOpenSessionExists = errors.New("operator already has an open receiving session")

	// ErrLockNotObtained is returned when the commit serialization lock for a
	// business could not be acquired. The caller may retry.
	ErrLockNotObtained = errors.New("commit lock not obtained")
)

// InputError marks OCR output that is too malformed or empty for a session to
// open. It blocks the caller; everything recoverable degrades instead.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid scan input: " + e.Reason
}

// ConfirmValidationError blocks session confirmation: a line is neither
// mapped to an inventory item nor flagged as a new item, or the session has
// no lines at all.
type ConfirmValidationError struct {
	Reason  string
	LineIDs []int
}

func (e *ConfirmValidationError) Error() string {
	if len(e.LineIDs) == 0 {
		return "cannot confirm session: " + e.Reason
	}
	return fmt.Sprintf("cannot confirm session: %s (lines %v)", e.Reason, e.LineIDs)
}

// CommitPartialFailure is a storage failure mid-commit. AppliedLineIDs lists
// the lines whose stock increments had been issued inside the failed
// transaction, so the error log carries enough to investigate a retry.
// It must never be retried silently without an idempotency key.
type CommitPartialFailure struct {
	SessionID      string
	AppliedLineIDs []int
	Err            error
}

func (e *CommitPartialFailure) Error() string {
	return fmt.Sprintf("commit failed for session %s (applied lines %v): %v",
		e.SessionID, e.AppliedLineIDs, e.Err)
}

func (e *CommitPartialFailure) Unwrap() error { return e.Err }
