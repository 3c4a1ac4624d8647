package harness

import (
	"encoding/json"

	"github.com/goldenagents/gafed/internal/session"
)

// TraceEvent is one recorded progress event.
type TraceEvent struct {
	Seq        int64               `json:"seq"`
	Type       string              `json:"type"`
	Value      json.RawMessage     `json:"value,omitempty"`
	Finished   bool                `json:"finished"`
	Subresults []session.SubResult `json:"subresults,omitempty"`
}

// Dispatch records the sub-query one source was sent.
type Dispatch struct {
	Source    string `json:"source"`
	Triples   int    `json:"triples"`
	Construct string `json:"construct"`
	// Failed is true when the source was unreachable.
	Failed bool `json:"failed,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Conversation string `json:"conversation"`

	// Dispatched lists the sub-queries in dispatch order.
	Dispatched []Dispatch `json:"dispatched"`

	// Trace holds the progress events as read back from the store.
	Trace []TraceEvent `json:"trace"`

	// Outcome is the delivered result; nil when the session never
	// finalized.
	Outcome *session.Result `json:"outcome,omitempty"`

	// Suggestions is the delivered suggestions round, if any.
	Suggestions *session.SuggestionResult `json:"suggestions,omitempty"`

	// Requested maps the sources asked for suggestions to the entities
	// each was asked about.
	Requested map[string][]string `json:"requested,omitempty"`

	// Rejected lists the replies the manager refused, as "kind: error".
	Rejected []string `json:"rejected,omitempty"`

	// DecompositionError is set when the query could not be decomposed.
	// The flow is skipped in that case.
	DecompositionError error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Errors:     []string{},
		Dispatched: []Dispatch{},
		Trace:      []TraceEvent{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// DispatchedSources returns the sources in dispatch order.
func (r *Result) DispatchedSources() []string {
	out := make([]string, len(r.Dispatched))
	for i, d := range r.Dispatched {
		out[i] = d.Source
	}
	return out
}
