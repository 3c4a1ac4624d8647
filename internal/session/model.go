package session

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goldenagents/gafed/internal/algebra"
	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/rdf"
)

// ReplyStatus tracks the reply of one participating source.
type ReplyStatus int

const (
	StatusWaiting ReplyStatus = iota
	StatusSuccess
	StatusFailed
)

// String returns the status name.
func (s ReplyStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return "WAITING"
	}
}

// Finished reports whether no more results are expected from the source.
func (s ReplyStatus) Finished() bool { return s != StatusWaiting }

// State is the lifecycle state of a session.
type State int

const (
	// StateOpen means sub-queries were dispatched and nothing came back yet.
	StateOpen State = iota
	// StateReceiving means at least one source replied.
	StateReceiving
	// StateFinished means every participating source replied.
	StateFinished
	// StateFinalized means the aggregation query ran and the result was
	// produced. A finalized session accepts no messages.
	StateFinalized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReceiving:
		return "RECEIVING"
	case StateFinished:
		return "FINISHED"
	case StateFinalized:
		return "FINALIZED"
	default:
		return "OPEN"
	}
}

// Model is the aggregation state of one federated query: which sources were
// asked, how they replied, and the triples they sent.
//
// Partial graphs are kept per source and merged only at finalization, so
// the merged graph does not depend on the order replies arrive in.
//
// A Model is not safe for concurrent use; the Manager serializes access.
type Model struct {
	conversation string
	query        *decompose.QueryInfo

	status   map[string]ReplyStatus
	reasons  map[string]string
	partials map[string]*rdf.Graph
	linkset  *rdf.Graph

	doneContacting bool
	totalSize      int
	state          State
	suggestions    bool
	focus          string
	unapplied      []string
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithSuggestions requests a suggestions round after finalization.
func WithSuggestions() ModelOption {
	return func(m *Model) { m.suggestions = true }
}

// WithFocus names the variable whose values seed the suggestions round.
func WithFocus(v string) ModelOption {
	return func(m *Model) { m.focus = strings.TrimPrefix(v, "?") }
}

// WithUnapplied records filters of the query that no source evaluated. They
// are reported on the Result.
func WithUnapplied(filters []string) ModelOption {
	return func(m *Model) { m.unapplied = slices.Clone(filters) }
}

// WithLinkset adds a graph of links between the entities of different
// sources, merged with the partial graphs at finalization.
func WithLinkset(g *rdf.Graph) ModelOption {
	return func(m *Model) {
		if g != nil {
			m.linkset = g.Clone()
		}
	}
}

// NewModel creates the session of conversation for the decomposed query qi.
// qi should be the annotated inventory of the decomposition plan so that
// provenance can be traced.
func NewModel(conversation string, qi *decompose.QueryInfo, opts ...ModelOption) *Model {
	m := &Model{
		conversation: conversation,
		query:        qi,
		status:       map[string]ReplyStatus{},
		reasons:      map[string]string{},
		partials:     map[string]*rdf.Graph{},
		linkset:      rdf.NewGraph(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Conversation returns the session id.
func (m *Model) Conversation() string { return m.conversation }

// Query returns the query inventory of the session.
func (m *Model) Query() *decompose.QueryInfo { return m.query }

// State returns the lifecycle state.
func (m *Model) State() State { return m.state }

// Focus returns the focus variable without its "?". It defaults to the
// first projected variable, then to the first variable of the query.
func (m *Model) Focus() string {
	switch {
	case m.focus != "":
		return m.focus
	case m.query.Select != nil && len(m.query.Select.Vars) > 0:
		return m.query.Select.Vars[0]
	}
	if vars := m.query.Variables(); len(vars) > 0 {
		return strings.TrimPrefix(vars[0], "?")
	}
	return ""
}

// SuggestionsExpected reports whether a suggestions round follows
// finalization.
func (m *Model) SuggestionsExpected() bool { return m.suggestions }

// AddParticipant registers a source that was sent a sub-query. Adding a
// known source again has no effect. Sources cannot be added after
// DoneContacting.
func (m *Model) AddParticipant(source string) error {
	if m.doneContacting {
		return &SessionError{
			Code:         ErrCodeClosed,
			Message:      "participants are fixed once contacting is done",
			Conversation: m.conversation,
			Source:       source,
		}
	}
	if _, ok := m.status[source]; ok {
		return nil
	}
	m.status[source] = StatusWaiting
	m.partials[source] = rdf.NewGraph()
	return nil
}

// DoneContacting records that every participant has been registered.
// Until then the session cannot finish, even when all registered sources
// have replied.
func (m *Model) DoneContacting() {
	m.doneContacting = true
	m.advance()
}

// AddPartial folds a partial graph of source into the session and returns
// the number of new triples. A graph holding any invalid triple is rejected
// as a whole with a MERGE_FAILURE error and contributes nothing.
func (m *Model) AddPartial(source string, g *rdf.Graph) (int, error) {
	partial, err := m.participant(source)
	if err != nil {
		return 0, err
	}
	m.received()
	if g == nil {
		return 0, nil
	}
	for _, t := range g.Triples() {
		if err := t.Validate(); err != nil {
			return 0, &SessionError{
				Code:         ErrCodeMergeFailure,
				Message:      err.Error(),
				Conversation: m.conversation,
				Source:       source,
			}
		}
	}
	added := partial.Merge(g)
	m.totalSize += added
	return added, nil
}

// SetFinished marks that source sent all of its results. A failed source
// stays failed.
func (m *Model) SetFinished(source string) error {
	if _, err := m.participant(source); err != nil {
		return err
	}
	m.received()
	if m.status[source] != StatusFailed {
		m.status[source] = StatusSuccess
	}
	m.advance()
	return nil
}

// SetError marks that source failed. Results it sent before failing are
// kept.
func (m *Model) SetError(source, reason string) error {
	if _, err := m.participant(source); err != nil {
		return err
	}
	m.received()
	m.status[source] = StatusFailed
	m.reasons[source] = reason
	m.advance()
	return nil
}

// Cancel marks every source that has not replied as failed and closes the
// participant list, which finishes the session.
func (m *Model) Cancel(reason string) {
	if m.state == StateFinalized {
		return
	}
	for s, st := range m.status {
		if !st.Finished() {
			m.status[s] = StatusFailed
			m.reasons[s] = reason
		}
	}
	m.doneContacting = true
	m.advance()
}

func (m *Model) participant(source string) (*rdf.Graph, error) {
	if m.state == StateFinalized {
		return nil, &SessionError{
			Code:         ErrCodeClosed,
			Message:      "session is finalized",
			Conversation: m.conversation,
			Source:       source,
		}
	}
	partial, ok := m.partials[source]
	if !ok {
		return nil, &SessionError{
			Code:         ErrCodeUnknownSource,
			Message:      "source was not asked to participate",
			Conversation: m.conversation,
			Source:       source,
		}
	}
	return partial, nil
}

func (m *Model) received() {
	if m.state == StateOpen {
		m.state = StateReceiving
	}
}

func (m *Model) advance() {
	if m.state < StateFinished && m.IsFinished() {
		m.state = StateFinished
	}
}

// IsFinished reports whether contacting is done and every participant has
// replied, successfully or not. Once true it stays true.
func (m *Model) IsFinished() bool {
	if !m.doneContacting {
		return false
	}
	for _, st := range m.status {
		if !st.Finished() {
			return false
		}
	}
	return true
}

// IsComplete reports whether the session finished without failed sources.
func (m *Model) IsComplete() bool {
	return m.IsFinished() && m.FailedSize() == 0
}

// ExpectedSize returns the number of participants.
func (m *Model) ExpectedSize() int { return len(m.status) }

// CurrentSize returns the number of participants that replied.
func (m *Model) CurrentSize() int {
	n := 0
	for _, st := range m.status {
		if st.Finished() {
			n++
		}
	}
	return n
}

// FailedSize returns the number of failed participants.
func (m *Model) FailedSize() int { return len(m.Failed()) }

// TotalSize returns the number of distinct triples received per source,
// summed over sources.
func (m *Model) TotalSize() int { return m.totalSize }

// Participants returns the participating sources, sorted.
func (m *Model) Participants() []string {
	out := make([]string, 0, len(m.status))
	for s := range m.status {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Status returns the reply status of source.
func (m *Model) Status(source string) (ReplyStatus, bool) {
	st, ok := m.status[source]
	return st, ok
}

// Failed returns the failed sources, sorted.
func (m *Model) Failed() []string {
	var out []string
	for s, st := range m.status {
		if st == StatusFailed {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Reason returns the failure reason reported by source.
func (m *Model) Reason(source string) string { return m.reasons[source] }

// Partial returns a copy of the triples received from source.
func (m *Model) Partial(source string) *rdf.Graph {
	if g, ok := m.partials[source]; ok {
		return g.Clone()
	}
	return nil
}

// Merged returns the union of every partial graph and the linkset.
func (m *Model) Merged() *rdf.Graph {
	merged := m.linkset.Clone()
	for _, s := range m.Participants() {
		merged.Merge(m.partials[s])
	}
	return merged
}

// Result is the outcome of a finalized session.
type Result struct {
	Conversation string            `json:"conversation"`
	QueryID      string            `json:"queryID"`
	Vars         []string          `json:"vars"`
	Rows         []algebra.Binding `json:"rows"`
	// Complete is false when some source failed; Failed lists those.
	Complete   bool       `json:"complete"`
	Failed     []string   `json:"failed,omitempty"`
	Provenance Provenance `json:"provenance"`
	// Size is the number of triples in the merged graph.
	Size int `json:"size"`
	// Unapplied lists query filters that no source evaluated. Rows may
	// include bindings those filters would have removed.
	Unapplied []string `json:"unapplied,omitempty"`
	// Error is set when the aggregation query could not be evaluated. Such a
	// result has no rows and is never complete.
	Error string `json:"error,omitempty"`
}

// Len returns the number of result rows.
func (r *Result) Len() int { return len(r.Rows) }

// Finalize runs the aggregation query over the merged graph. It fails when
// the session has not finished. A session finalizes at most once.
//
// A query without an algebra form yields no rows; the merged graph is
// still reported through Size. A query that fails to evaluate yields an
// incomplete result carrying the failure in Error.
func (m *Model) Finalize() (*Result, error) {
	switch m.state {
	case StateFinalized:
		return nil, &SessionError{Code: ErrCodeClosed, Message: "session is finalized", Conversation: m.conversation}
	case StateFinished:
	default:
		return nil, fmt.Errorf("finalize session %s in state %s", m.conversation, m.state)
	}

	merged := m.Merged()
	res := &Result{
		Conversation: m.conversation,
		QueryID:      m.query.ID(),
		Complete:     m.IsComplete(),
		Failed:       m.Failed(),
		Provenance:   Trace(m.query),
		Size:         merged.Len(),
		Unapplied:    m.unapplied,
	}
	if sel := m.query.Select; sel != nil {
		out, err := algebra.Evaluate(merged, *sel)
		if err != nil {
			res.Complete = false
			res.Error = fmt.Sprintf("evaluate aggregation query: %v", err)
		} else {
			res.Vars, res.Rows = out.Vars, out.Rows
		}
	}
	m.state = StateFinalized
	return res, nil
}

// FocusEntities returns, per source that provides values of variable v,
// the values of v in rows that occur in that source's partial graph.
func (m *Model) FocusEntities(res *Result, v string) map[string][]string {
	out := map[string][]string{}
	for _, source := range res.Provenance.Sources("?" + v) {
		partial, ok := m.partials[source]
		if !ok {
			continue
		}
		var entities []string
		for _, row := range res.Rows {
			t, ok := row[v]
			if !ok || !mentions(partial, t) {
				continue
			}
			if !slices.Contains(entities, t.Value) {
				entities = append(entities, t.Value)
			}
		}
		if len(entities) > 0 {
			out[source] = entities
		}
	}
	return out
}

func mentions(g *rdf.Graph, t rdf.Term) bool {
	return len(g.Match(rdf.Triple{Subject: t})) > 0 || len(g.Match(rdf.Triple{Object: t})) > 0
}
