package decompose

import (
	"errors"
	"fmt"
	"strings"
)

// DecompositionError reports why a query could not be split over sources.
type DecompositionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Triples lists the offending triple patterns, if any.
	Triples []string
}

// ErrorCode categorizes decomposition errors.
type ErrorCode string

const (
	// ErrCodeMissingExpert means some triple pattern could not be served by
	// any source under the chosen strategy.
	ErrCodeMissingExpert ErrorCode = "MISSING_EXPERT"

	// ErrCodeBadQuery means the query is structurally unusable, for example
	// a triple pattern that mentions no concept of the ontology.
	ErrCodeBadQuery ErrorCode = "BAD_QUERY"
)

// Error implements the error interface.
func (e *DecompositionError) Error() string {
	if len(e.Triples) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, strings.Join(e.Triples, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMissingExpert reports whether err is a MISSING_EXPERT error.
func IsMissingExpert(err error) bool {
	return hasCode(err, ErrCodeMissingExpert)
}

// IsBadQuery reports whether err is a BAD_QUERY error.
func IsBadQuery(err error) bool {
	return hasCode(err, ErrCodeBadQuery)
}

// CodeOf returns the code of a decomposition error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var de *DecompositionError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func badQuery(format string, args ...any) *DecompositionError {
	return &DecompositionError{Code: ErrCodeBadQuery, Message: fmt.Sprintf(format, args...)}
}

func missingExpert(message string, triples []*TripleInfo) *DecompositionError {
	return &DecompositionError{Code: ErrCodeMissingExpert, Message: message, Triples: tripleStrings(triples)}
}

func tripleStrings(triples []*TripleInfo) []string {
	out := make([]string, len(triples))
	for i, t := range triples {
		out[i] = t.String()
	}
	return out
}
