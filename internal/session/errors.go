package session

import (
	"errors"
	"fmt"
)

// SessionError represents an error applying a message to an aggregation
// session.
//
// Session errors are absorbed into session state by the caller: a source
// that cannot be merged still counts as having replied.
type SessionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Conversation identifies the affected session.
	Conversation string

	// Source identifies the replying source, if any.
	Source string
}

// ErrorCode categorizes session errors.
type ErrorCode string

const (
	// ErrCodeUnknownSource means a message came from a source that was not
	// asked to participate.
	ErrCodeUnknownSource ErrorCode = "UNKNOWN_SOURCE"

	// ErrCodeMergeFailure means a partial graph could not be folded into
	// the session. The batch contributes zero items.
	ErrCodeMergeFailure ErrorCode = "MERGE_FAILURE"

	// ErrCodeUnknownSession means no open session has the conversation id.
	ErrCodeUnknownSession ErrorCode = "UNKNOWN_SESSION"

	// ErrCodeClosed means the session no longer accepts participants.
	ErrCodeClosed ErrorCode = "SESSION_CLOSED"
)

// Error implements the error interface.
func (e *SessionError) Error() string {
	switch {
	case e.Conversation != "" && e.Source != "":
		return fmt.Sprintf("%s: %s (conversation=%s, source=%s)", e.Code, e.Message, e.Conversation, e.Source)
	case e.Conversation != "":
		return fmt.Sprintf("%s: %s (conversation=%s)", e.Code, e.Message, e.Conversation)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsUnknownSource reports whether err is an UNKNOWN_SOURCE error.
func IsUnknownSource(err error) bool { return hasCode(err, ErrCodeUnknownSource) }

// IsMergeFailure reports whether err is a MERGE_FAILURE error.
func IsMergeFailure(err error) bool { return hasCode(err, ErrCodeMergeFailure) }

// IsUnknownSession reports whether err is an UNKNOWN_SESSION error.
func IsUnknownSession(err error) bool { return hasCode(err, ErrCodeUnknownSession) }

// IsClosed reports whether err is a SESSION_CLOSED error.
func IsClosed(err error) bool { return hasCode(err, ErrCodeClosed) }

func hasCode(err error, code ErrorCode) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
