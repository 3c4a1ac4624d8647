package aql

import (
	"errors"
	"fmt"
)

// TreeError reports an inconsistent tree edit or an invalid operation on a
// query.
type TreeError struct {
	// Code identifies the error category.
	Code TreeErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the node the operation was applied to, if any.
	Node ID
}

// TreeErrorCode categorizes tree errors.
type TreeErrorCode string

const (
	// ErrCodeInvalidTree means parent/child data is inconsistent, for example
	// replacing a node that is not a direct child.
	ErrCodeInvalidTree TreeErrorCode = "INVALID_TREE_STRUCTURE"

	// ErrCodeInvalidFocus means a focus identity does not resolve in the tree.
	ErrCodeInvalidFocus TreeErrorCode = "INVALID_FOCUS"

	// ErrCodeInvalidOperation means an edit is not allowed for its input,
	// such as intersecting with a complex tree.
	ErrCodeInvalidOperation TreeErrorCode = "INVALID_OPERATION"
)

// Error implements the error interface.
func (e *TreeError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidTree reports whether err is an INVALID_TREE_STRUCTURE error.
func IsInvalidTree(err error) bool {
	return hasCode(err, ErrCodeInvalidTree)
}

// IsInvalidFocus reports whether err is an INVALID_FOCUS error.
func IsInvalidFocus(err error) bool {
	return hasCode(err, ErrCodeInvalidFocus)
}

// IsInvalidOperation reports whether err is an INVALID_OPERATION error.
func IsInvalidOperation(err error) bool {
	return hasCode(err, ErrCodeInvalidOperation)
}

func hasCode(err error, code TreeErrorCode) bool {
	var te *TreeError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

func invalidTree(node ID, format string, args ...any) *TreeError {
	return &TreeError{Code: ErrCodeInvalidTree, Message: fmt.Sprintf(format, args...), Node: node}
}
