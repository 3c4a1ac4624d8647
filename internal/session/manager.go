package session

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/goldenagents/gafed/internal/decompose"
)

// Deliverer hands finalized results back to whoever asked the query.
type Deliverer interface {
	Deliver(ctx context.Context, res *Result) error
	DeliverSuggestions(ctx context.Context, res *SuggestionResult) error
}

// SuggestionRequester asks a source for suggestions about the entities it
// contributed to a finalized result.
type SuggestionRequester interface {
	RequestSuggestions(ctx context.Context, conversation, source string, entities []string) error
}

// Observer is notified of session activity, e.g. to export metrics.
type Observer interface {
	SessionOpened(conversation string)
	MessageHandled(kind string, err error)
	SessionFinalized(res *Result)
}

// Observers notifies several observers in order.
type Observers []Observer

// SessionOpened implements Observer.
func (o Observers) SessionOpened(conversation string) {
	for _, ob := range o {
		ob.SessionOpened(conversation)
	}
}

// MessageHandled implements Observer.
func (o Observers) MessageHandled(kind string, err error) {
	for _, ob := range o {
		ob.MessageHandled(kind, err)
	}
}

// SessionFinalized implements Observer.
func (o Observers) SessionFinalized(res *Result) {
	for _, ob := range o {
		ob.SessionFinalized(res)
	}
}

// SuggestionResult collects the suggestions of every source asked in a
// suggestions round.
type SuggestionResult struct {
	Conversation string              `json:"conversation"`
	Items        map[string][]string `json:"items"`
	Failed       []string            `json:"failed,omitempty"`
}

// Status is a snapshot of an open session.
type Status struct {
	Conversation string
	State        State
	Expected     int
	Current      int
	Failed       int
	Size         int
}

// Manager owns the open sessions, keyed by conversation id, and turns the
// messages of sources into session transitions.
//
// Sessions are removed as soon as their result is delivered, so every
// conversation produces at most one result. Collaborators are called
// without holding the manager lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Model
	rounds   map[string]*round

	sink      ProgressSink
	deliverer Deliverer
	requester SuggestionRequester
	observer  Observer
	logger    *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithProgressSink sets where progress events go.
func WithProgressSink(s ProgressSink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// WithDeliverer sets who receives results.
func WithDeliverer(d Deliverer) ManagerOption {
	return func(m *Manager) { m.deliverer = d }
}

// WithSuggestionRequester enables suggestions rounds.
func WithSuggestionRequester(r SuggestionRequester) ManagerOption {
	return func(m *Manager) { m.requester = r }
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager with no open sessions.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:  map[string]*Model{},
		rounds:    map[string]*round{},
		sink:      ProgressFunc(func(context.Context, string, Progress) error { return nil }),
		deliverer: nopDeliverer{},
		observer:  nopObserver{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates the session of conversation. It fails when the conversation
// already has an open session.
func (m *Manager) Open(conversation string, qi *decompose.QueryInfo, opts ...ModelOption) error {
	m.mu.Lock()
	if _, ok := m.sessions[conversation]; ok {
		m.mu.Unlock()
		return &SessionError{Code: ErrCodeClosed, Message: "session already open", Conversation: conversation}
	}
	m.sessions[conversation] = NewModel(conversation, qi, opts...)
	m.mu.Unlock()

	m.logger.Debug("session opened", "conversation", conversation, "query", qi.ID())
	m.observer.SessionOpened(conversation)
	return nil
}

// Dispatched registers source as a participant of conversation. It must be
// called before the sub-query is sent, so that a fast reply is not
// rejected.
func (m *Manager) Dispatched(conversation, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.session(conversation)
	if err != nil {
		return err
	}
	return s.AddParticipant(source)
}

// DoneContacting closes the participant list of conversation. When every
// participant already replied the session finalizes now.
func (m *Manager) DoneContacting(ctx context.Context, conversation string) error {
	m.mu.Lock()
	s, err := m.session(conversation)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	s.DoneContacting()
	var fx effects
	m.finishIfDone(s, &fx)
	m.mu.Unlock()

	m.run(ctx, conversation, &fx)
	return nil
}

// Cancel finishes conversation with every outstanding source marked failed
// and delivers the partial result. An outstanding suggestions round is
// closed the same way.
func (m *Manager) Cancel(ctx context.Context, conversation, reason string) error {
	m.mu.Lock()
	var fx effects
	if s, ok := m.sessions[conversation]; ok {
		s.Cancel(reason)
		m.finishIfDone(s, &fx)
	} else if r, ok := m.rounds[conversation]; ok {
		r.cancel()
		fx.suggestions = r.result()
		delete(m.rounds, conversation)
	} else {
		m.mu.Unlock()
		return unknownSession(conversation)
	}
	m.mu.Unlock()

	m.logger.Info("session cancelled", "conversation", conversation, "reason", reason)
	m.run(ctx, conversation, &fx)
	return nil
}

// Handle applies a source message. Messages for unknown conversations or
// from sources that were not asked are rejected. A partial graph that
// cannot be merged is reported as a MERGE_FAILURE error, but the session
// carries on as if the batch were empty.
func (m *Manager) Handle(ctx context.Context, msg Message) error {
	conversation := msg.Conversation()

	m.mu.Lock()
	var fx effects
	err := m.apply(msg, &fx)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("message not applied",
			"conversation", conversation,
			"source", msg.Source(),
			"kind", Kind(msg),
			"error", err)
	}
	m.observer.MessageHandled(Kind(msg), err)
	m.run(ctx, conversation, &fx)
	return err
}

// Status returns a snapshot of the open session of conversation.
func (m *Manager) Status(conversation string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conversation]
	if !ok {
		return Status{}, false
	}
	return Status{
		Conversation: conversation,
		State:        s.State(),
		Expected:     s.ExpectedSize(),
		Current:      s.CurrentSize(),
		Failed:       s.FailedSize(),
		Size:         s.TotalSize(),
	}, true
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Conversations returns the ids of the open sessions, sorted.
func (m *Manager) Conversations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for c := range m.sessions {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// effects are the collaborator calls resulting from one transition.
type effects struct {
	progress    []Progress
	result      *Result
	requests    map[string][]string
	suggestions *SuggestionResult
}

func (m *Manager) session(conversation string) (*Model, error) {
	s, ok := m.sessions[conversation]
	if !ok {
		return nil, unknownSession(conversation)
	}
	return s, nil
}

func unknownSession(conversation string) *SessionError {
	return &SessionError{Code: ErrCodeUnknownSession, Message: "no open session", Conversation: conversation}
}

func (m *Manager) apply(msg Message, fx *effects) error {
	conversation, source := msg.Conversation(), msg.Source()

	if v, ok := msg.(Suggestions); ok {
		r, ok := m.rounds[conversation]
		if !ok {
			return unknownSession(conversation)
		}
		if err := r.receive(source, v); err != nil {
			return err
		}
		if r.done() {
			fx.suggestions = r.result()
			delete(m.rounds, conversation)
		}
		return nil
	}

	s, err := m.session(conversation)
	if err != nil {
		return err
	}
	queryID := s.Query().ID()

	var applyErr error
	switch v := msg.(type) {
	case Partial:
		added, err := s.AddPartial(source, v.Graph)
		if IsUnknownSource(err) {
			return err
		}
		applyErr = err
		m.logger.Debug("partial graph merged",
			"conversation", conversation,
			"source", source,
			"items", added,
			"size", s.TotalSize())
		fx.progress = append(fx.progress, dataCollected(queryID, s.TotalSize(), source, added, false))

	case End:
		if err := s.SetFinished(source); err != nil {
			return err
		}
		m.logger.Debug("source finished",
			"conversation", conversation,
			"source", source,
			"expected", s.ExpectedSize()-s.CurrentSize())
		fx.progress = append(fx.progress, dataCollected(queryID, s.TotalSize(), source, 0, true))

	case DataError:
		if err := s.SetError(source, v.Reason); err != nil {
			return err
		}
		m.logger.Info("source failed",
			"conversation", conversation,
			"source", source,
			"reason", v.Reason)
		fx.progress = append(fx.progress, Progress{
			QueryID:    queryID,
			Type:       ProgressDatabaseError,
			Value:      v.Reason,
			Subresults: []SubResult{{Source: source, Finished: true}},
		})

	default:
		return &SessionError{Code: ErrCodeUnknownSource, Message: "unsupported message", Conversation: conversation, Source: source}
	}

	m.finishIfDone(s, fx)
	return applyErr
}

// finishIfDone finalizes s once it finished, removes it, and starts the
// suggestions round.
func (m *Manager) finishIfDone(s *Model, fx *effects) {
	if s.State() != StateFinished {
		return
	}
	conversation, queryID := s.Conversation(), s.Query().ID()
	fx.progress = append(fx.progress,
		Progress{QueryID: queryID, Type: ProgressDataCollected, Value: s.TotalSize(), Finished: true})

	if s.IsComplete() {
		m.logger.Info("received all expected results", "conversation", conversation)
	} else {
		m.logger.Info("session finished incomplete",
			"conversation", conversation,
			"replies", s.CurrentSize(),
			"failed", s.FailedSize())
	}

	fx.progress = append(fx.progress, Progress{QueryID: queryID, Type: ProgressQueryExecuted, Finished: true})
	res, err := s.Finalize()
	delete(m.sessions, conversation)
	if err != nil {
		m.logger.Error("session not finalized", "conversation", conversation, "error", err)
		return
	}
	fx.result = res
	if res.Error != "" {
		m.logger.Error("aggregation query failed", "conversation", conversation, "error", res.Error)
		return
	}

	if !s.SuggestionsExpected() || m.requester == nil {
		return
	}
	requests := s.FocusEntities(res, s.Focus())
	if len(requests) == 0 {
		m.logger.Debug("no entities to ask suggestions for", "conversation", conversation)
		return
	}
	r := newRound(conversation)
	for source := range requests {
		r.expect(source)
	}
	m.rounds[conversation] = r
	fx.requests = requests
}

// run calls the collaborators for fx in order.
func (m *Manager) run(ctx context.Context, conversation string, fx *effects) {
	for _, p := range fx.progress {
		m.publish(ctx, conversation, p)
	}

	if res := fx.result; res != nil {
		if err := m.deliverer.Deliver(ctx, res); err != nil {
			m.logger.Error("result delivery failed", "conversation", conversation, "error", err)
		} else {
			m.logger.Debug("result delivered", "conversation", conversation, "rows", res.Len())
		}
		m.publish(ctx, conversation, Progress{QueryID: res.QueryID, Type: ProgressResultsReturned, Finished: true})
		m.observer.SessionFinalized(res)
	}

	sources := make([]string, 0, len(fx.requests))
	for s := range fx.requests {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, source := range sources {
		entities := fx.requests[source]
		err := m.requester.RequestSuggestions(ctx, conversation, source, entities)
		if err == nil {
			m.logger.Info("requested suggestions",
				"conversation", conversation,
				"source", source,
				"entities", len(entities))
			continue
		}
		m.logger.Warn("suggestions request failed", "conversation", conversation, "source", source, "error", err)
		fail := Suggestions{Reply: Reply{ConversationID: conversation, SourceID: source}, Err: err.Error()}
		m.mu.Lock()
		var more effects
		_ = m.apply(fail, &more)
		m.mu.Unlock()
		if more.suggestions != nil {
			fx.suggestions = more.suggestions
		}
	}

	if sr := fx.suggestions; sr != nil {
		if err := m.deliverer.DeliverSuggestions(ctx, sr); err != nil {
			m.logger.Error("suggestions delivery failed", "conversation", conversation, "error", err)
		}
		m.publish(ctx, conversation, Progress{Type: ProgressResultsCollected, Value: len(sr.Items), Finished: true})
	}
}

func (m *Manager) publish(ctx context.Context, conversation string, p Progress) {
	if err := m.sink.Publish(ctx, conversation, p); err != nil {
		m.logger.Warn("progress event dropped",
			"conversation", conversation,
			"type", p.Type.String(),
			"error", err)
	}
}

// round tracks the sources asked for suggestions after finalization.
type round struct {
	conversation string
	status       map[string]ReplyStatus
	items        map[string][]string
}

func newRound(conversation string) *round {
	return &round{conversation: conversation, status: map[string]ReplyStatus{}, items: map[string][]string{}}
}

func (r *round) expect(source string) { r.status[source] = StatusWaiting }

func (r *round) receive(source string, s Suggestions) error {
	if _, ok := r.status[source]; !ok {
		return &SessionError{
			Code:         ErrCodeUnknownSource,
			Message:      "source was not asked for suggestions",
			Conversation: r.conversation,
			Source:       source,
		}
	}
	if s.Err != "" {
		r.status[source] = StatusFailed
		return nil
	}
	r.status[source] = StatusSuccess
	r.items[source] = append(r.items[source], s.Items...)
	return nil
}

func (r *round) done() bool {
	for _, st := range r.status {
		if !st.Finished() {
			return false
		}
	}
	return true
}

func (r *round) cancel() {
	for s, st := range r.status {
		if !st.Finished() {
			r.status[s] = StatusFailed
		}
	}
}

func (r *round) result() *SuggestionResult {
	res := &SuggestionResult{Conversation: r.conversation, Items: map[string][]string{}}
	for s, st := range r.status {
		switch st {
		case StatusSuccess:
			res.Items[s] = r.items[s]
		case StatusFailed:
			res.Failed = append(res.Failed, s)
		}
	}
	sort.Strings(res.Failed)
	return res
}

type nopDeliverer struct{}

func (nopDeliverer) Deliver(context.Context, *Result) error                     { return nil }
func (nopDeliverer) DeliverSuggestions(context.Context, *SuggestionResult) error { return nil }

type nopObserver struct{}

func (nopObserver) SessionOpened(string)         {}
func (nopObserver) MessageHandled(string, error) {}
func (nopObserver) SessionFinalized(*Result)     {}
