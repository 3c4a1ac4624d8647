package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Type)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages. An empty slice means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertProgressOrder:
		return assertProgressOrder(result.Trace, a)
	case AssertProgressCount:
		return assertProgressCount(result.Trace, a)
	case AssertResult:
		return assertResult(result, a)
	case AssertRow:
		return assertRow(result, a)
	case AssertDispatched:
		return assertDispatched(result, a)
	case AssertRejected:
		return assertRejected(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertProgressOrder checks that the listed types occur as a subsequence
// of the trace. Other events may come in between; a type listed twice must
// occur twice.
func assertProgressOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Progress) && event.Type == a.Progress[next] {
			next++
		}
	}
	if next == len(a.Progress) {
		return nil
	}
	return &AssertionError{
		Type:     AssertProgressOrder,
		Expected: fmt.Sprintf("progress in order: %v", a.Progress),
		Actual:   fmt.Sprintf("%s (position %d) not found after %v", a.Progress[next], next+1, a.Progress[:next]),
		Trace:    trace,
	}
}

func assertProgressCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Event {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertProgressCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertResult(result *Result, a Assertion) error {
	res := result.Outcome
	if res == nil {
		return &AssertionError{
			Type:     AssertResult,
			Expected: "a delivered result",
			Actual:   "session never finalized",
			Trace:    result.Trace,
		}
	}
	if a.Complete != nil && res.Complete != *a.Complete {
		return &AssertionError{
			Type:     AssertResult,
			Expected: fmt.Sprintf("complete = %t", *a.Complete),
			Actual:   fmt.Sprintf("complete = %t (failed %v)", res.Complete, res.Failed),
		}
	}
	if a.Rows != nil && res.Len() != *a.Rows {
		return &AssertionError{
			Type:     AssertResult,
			Expected: fmt.Sprintf("%d rows", *a.Rows),
			Actual:   fmt.Sprintf("%d rows", res.Len()),
		}
	}
	if a.Failed != nil && !slices.Equal(res.Failed, a.Failed) {
		return &AssertionError{
			Type:     AssertResult,
			Expected: fmt.Sprintf("failed sources %v", a.Failed),
			Actual:   fmt.Sprintf("failed sources %v", res.Failed),
		}
	}
	return nil
}

// assertRow checks that some row binds every listed variable to the
// listed value. Values compare against the IRI or the literal text.
func assertRow(result *Result, a Assertion) error {
	if result.Outcome == nil {
		return &AssertionError{Type: AssertRow, Expected: "a delivered result", Actual: "session never finalized"}
	}
	for _, row := range result.Outcome.Rows {
		matched := true
		for v, want := range a.Row {
			t, ok := row[strings.TrimPrefix(v, "?")]
			if !ok || t.Value != want {
				matched = false
				break
			}
		}
		if matched {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertRow,
		Expected: fmt.Sprintf("row matching %v", a.Row),
		Actual:   fmt.Sprintf("none of %d rows matched", result.Outcome.Len()),
	}
}

func assertDispatched(result *Result, a Assertion) error {
	got := result.DispatchedSources()
	if slices.Equal(got, a.Sources) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDispatched,
		Expected: fmt.Sprintf("sub-queries for %v", a.Sources),
		Actual:   fmt.Sprintf("sub-queries for %v", got),
	}
}

func assertRejected(result *Result, a Assertion) error {
	if len(result.Rejected) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRejected,
		Expected: fmt.Sprintf("%d rejected replies", *a.Count),
		Actual:   fmt.Sprintf("%d rejected replies: %v", len(result.Rejected), result.Rejected),
	}
}
