// Package broker runs federated queries: it decomposes a query over the
// sources of a federation, dispatches the sub-queries, and feeds the replies
// of the sources to the aggregation sessions.
//
// Replies enter through Deliver and are applied by a single Run loop in
// arrival order. Sessions of distinct conversations share no state, so the
// order only matters within a conversation.
package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/goldenagents/gafed/internal/aql"
	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/expertise"
	"github.com/goldenagents/gafed/internal/rdf"
	"github.com/goldenagents/gafed/internal/session"
)

// DefaultParallelism bounds the number of sub-queries dispatched at once.
const DefaultParallelism = 8

// Dispatcher sends a sub-query to its owner. Replies come back
// asynchronously through Broker.Deliver.
type Dispatcher interface {
	Dispatch(ctx context.Context, conversation string, q *decompose.AgentQuery) error
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, conversation string, q *decompose.AgentQuery) error

// Dispatch calls f.
func (f DispatchFunc) Dispatch(ctx context.Context, conversation string, q *decompose.AgentQuery) error {
	return f(ctx, conversation, q)
}

// IDGenerator produces conversation ids.
type IDGenerator interface {
	Generate() string
}

// DecompositionObserver is told about every decomposition attempt.
type DecompositionObserver interface {
	Decomposed(strategy decompose.Strategy, err error)
}

// Broker ties decomposition, dispatch and aggregation together.
//
// Thread-safety model:
//   - Federate, FederateTranslation and Deliver: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Broker struct {
	federation decompose.Federation
	strategy   decompose.Strategy
	decomposer *decompose.Decomposer
	sessions   *session.Manager
	dispatcher Dispatcher
	queue      *messageQueue
	ids        IDGenerator
	sink       session.ProgressSink
	observer   DecompositionObserver
	linkset    *rdf.Graph
	parallel   int
	logger     *slog.Logger
}

// Option configures a Broker.
type Option func(*Broker)

// WithStrategy sets the decomposition strategy. Default: capabilities.
func WithStrategy(s decompose.Strategy) Option {
	return func(b *Broker) { b.strategy = s }
}

// WithIDGenerator sets the conversation id generator. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Broker) { b.ids = g }
}

// WithProgressSink receives the progress events of the dispatch phase.
// The session manager publishes the events of the aggregation phase.
func WithProgressSink(s session.ProgressSink) Option {
	return func(b *Broker) { b.sink = s }
}

// WithDecompositionObserver registers an observer of decompositions.
func WithDecompositionObserver(o DecompositionObserver) Option {
	return func(b *Broker) { b.observer = o }
}

// WithLinksetGraph sets the owl:sameAs links merged into every session.
func WithLinksetGraph(g *rdf.Graph) Option {
	return func(b *Broker) { b.linkset = g }
}

// WithParallelism bounds concurrent dispatches. Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.parallel = n
		}
	}
}

// WithLogger sets the broker logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Broker over the federation fed.
func New(fed decompose.Federation, sessions *session.Manager, dispatcher Dispatcher, opts ...Option) *Broker {
	b := &Broker{
		federation: fed,
		strategy:   decompose.StrategyCapabilities,
		sessions:   sessions,
		dispatcher: dispatcher,
		queue:      newMessageQueue(),
		ids:        aql.UUIDv7Generator{},
		sink:       session.Sinks(nil),
		observer:   nopObserver{},
		parallel:   DefaultParallelism,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.decomposer = decompose.New(decompose.WithLogger(b.logger))
	return b
}

// Strategy returns the configured decomposition strategy.
func (b *Broker) Strategy() decompose.Strategy { return b.strategy }

// Sessions returns the session manager.
func (b *Broker) Sessions() *session.Manager { return b.sessions }

// NewConversation returns a fresh conversation id.
func (b *Broker) NewConversation() string { return b.ids.Generate() }

// Request carries the per-query choices of the user.
type Request struct {
	// Conversation identifies the session. Empty means a fresh id.
	Conversation string
	// Sources restricts the federation. Empty means every source.
	Sources []string
	// Suggestions asks for a suggestions round after the result.
	Suggestions bool
	// Focus names the variable whose values seed the suggestions.
	Focus string
}

// Ticket identifies a dispatched query.
type Ticket struct {
	Conversation string
	Plan         *decompose.Plan
}

// FederateTranslation runs a query built with the AQL editor.
func (b *Broker) FederateTranslation(ctx context.Context, tr *aql.Translation, req Request) (*Ticket, error) {
	qi, err := decompose.FromTranslation(tr)
	if err != nil {
		return nil, fmt.Errorf("inventory of translated query: %w", err)
	}
	if req.Focus == "" {
		req.Focus = tr.FocusVar
	}
	conv := b.conversation(req)
	b.publish(ctx, conv, session.Progress{QueryID: qi.ID(), Type: session.ProgressQuerySent})
	b.publish(ctx, conv, session.Progress{QueryID: qi.ID(), Type: session.ProgressQueryTranslated, Value: tr.SPARQL()})
	return b.federate(ctx, conv, qi, req)
}

// Federate decomposes qi, opens the session of the conversation and sends
// every sub-query. It returns once each source was contacted; the result
// is delivered when the last source replies.
//
// A source that cannot be reached is recorded as failed. When ctx ends
// before every source was contacted the session is cancelled.
func (b *Broker) Federate(ctx context.Context, qi *decompose.QueryInfo, req Request) (*Ticket, error) {
	conv := b.conversation(req)
	b.publish(ctx, conv, session.Progress{QueryID: qi.ID(), Type: session.ProgressQuerySent})
	return b.federate(ctx, conv, qi, req)
}

func (b *Broker) conversation(req Request) string {
	if req.Conversation != "" {
		return req.Conversation
	}
	return b.ids.Generate()
}

func (b *Broker) federate(ctx context.Context, conv string, qi *decompose.QueryInfo, req Request) (*Ticket, error) {
	plan, err := b.decomposer.Decompose(qi, b.strategy, b.federation.Restrict(req.Sources))
	b.observer.Decomposed(b.strategy, err)
	if err != nil {
		return nil, fmt.Errorf("decompose query %s: %w", qi.ID(), err)
	}
	b.consult(plan)

	opts := []session.ModelOption{
		session.WithLinkset(b.linkset),
		session.WithUnapplied(plan.Unapplied()),
	}
	if req.Suggestions {
		opts = append(opts, session.WithSuggestions())
	}
	if req.Focus != "" {
		opts = append(opts, session.WithFocus(req.Focus))
	}
	if err := b.sessions.Open(conv, plan.Inventory, opts...); err != nil {
		return nil, err
	}
	// Participants are registered before any dispatch so that a fast reply
	// never reaches an unknown source.
	for _, q := range plan.Queries {
		if err := b.sessions.Dispatched(conv, q.Owner); err != nil {
			return nil, err
		}
	}
	b.logger.Info("query federated",
		"conversation", conv,
		"query", plan.Inventory.ID(),
		"strategy", string(plan.Strategy),
		"sources", plan.Sources())

	if err := b.dispatch(ctx, conv, plan); err != nil {
		if cerr := b.sessions.Cancel(context.WithoutCancel(ctx), conv, err.Error()); cerr != nil {
			b.logger.Warn("cancel session", "conversation", conv, "error", cerr)
		}
		return nil, err
	}
	if err := b.sessions.DoneContacting(ctx, conv); err != nil {
		return nil, err
	}
	return &Ticket{Conversation: conv, Plan: plan}, nil
}

func (b *Broker) dispatch(ctx context.Context, conv string, plan *decompose.Plan) error {
	var g errgroup.Group
	g.SetLimit(b.parallel)
	for _, q := range plan.Queries {
		q := q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := b.dispatcher.Dispatch(ctx, conv, q)
			if err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					return err
				}
				b.logger.Warn("dispatch failed", "conversation", conv, "source", q.Owner, "error", err)
				herr := b.sessions.Handle(ctx, session.DataError{
					Reply:  session.Reply{ConversationID: conv, SourceID: q.Owner},
					Reason: err.Error(),
				})
				if herr != nil {
					b.logger.Warn("record dispatch failure", "conversation", conv, "source", q.Owner, "error", herr)
				}
				return nil
			}
			b.publish(ctx, conv, session.Progress{QueryID: q.QueryID, Type: session.ProgressSubquerySent, Value: q.Owner})
			return nil
		})
	}
	return g.Wait()
}

// consult credits the expertise graph with every assignment the plan made.
func (b *Broker) consult(plan *decompose.Plan) {
	g := b.federation.Graph
	if g == nil {
		return
	}
	for _, t := range plan.Inventory.Triples {
		for _, source := range t.ChosenSources() {
			for _, concept := range t.Concepts() {
				g.Consult(expertise.Assignment{Source: source, Concept: concept})
			}
		}
	}
}

func (b *Broker) publish(ctx context.Context, conv string, p session.Progress) {
	if err := b.sink.Publish(ctx, conv, p); err != nil {
		b.logger.Warn("publish progress", "conversation", conv, "type", p.Type.String(), "error", err)
	}
}

// Cancel stops waiting for the sources of a conversation.
func (b *Broker) Cancel(ctx context.Context, conversation, reason string) error {
	return b.sessions.Cancel(ctx, conversation, reason)
}

// Deliver submits a reply of a source for processing by the Run loop. It
// returns false once the broker is stopped.
func (b *Broker) Deliver(m session.Message) bool {
	return b.queue.Enqueue(m)
}

// Pending returns the number of replies waiting for the Run loop.
func (b *Broker) Pending() int { return b.queue.Len() }

// Run applies delivered replies until ctx ends or Stop is called. Replies
// still queued at Stop are applied before Run returns.
//
// A reply that cannot be applied is logged and dropped; the loop goes on
// with the next one.
func (b *Broker) Run(ctx context.Context) error {
	b.logger.Info("broker starting", "strategy", string(b.strategy))
	for {
		if m, ok := b.queue.TryDequeue(); ok {
			if err := b.sessions.Handle(ctx, m); err != nil {
				b.logger.Warn("reply dropped",
					"conversation", m.Conversation(),
					"source", m.Source(),
					"kind", session.Kind(m),
					"error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			b.logger.Info("broker stopping: context cancelled")
			b.queue.Close()
			return ctx.Err()
		case <-b.queue.Wait():
			// A stale signal only loops back; a closed queue fires until
			// it is drained.
			if b.queue.Drained() {
				b.logger.Info("broker stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns after draining it.
func (b *Broker) Stop() {
	b.queue.Close()
}

type nopObserver struct{}

func (nopObserver) Decomposed(decompose.Strategy, error) {}
