package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goldenagents/gafed/internal/broker"
	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/fedspec"
	"github.com/goldenagents/gafed/internal/metrics"
	"github.com/goldenagents/gafed/internal/rdf"
	"github.com/goldenagents/gafed/internal/session"
	"github.com/goldenagents/gafed/internal/store"
	"github.com/goldenagents/gafed/internal/testutil"
)

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   *store.Store
	ids     broker.IDGenerator
}

// WithLogger sets the logger of the broker and the session manager. Runs
// are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithMetrics records the run in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *runConfig) { c.metrics = m }
}

// WithStore records the run in st instead of a fresh in-memory store. The
// caller keeps ownership of st.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) { c.store = st }
}

// WithIDGenerator draws the conversation id from g when the scenario does
// not fix one.
func WithIDGenerator(g broker.IDGenerator) Option {
	return func(c *runConfig) { c.ids = g }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store unless WithStore is given.
// Sources are contacted one at a time and the conversation id is fixed, so
// the trace of a scenario is reproducible.
//
// Execution flow:
// 1. Load the federation and build its expertise graph
// 2. Decompose the query and dispatch the sub-queries
// 3. Deliver the flow replies and drain the broker
// 4. Read the trace back and evaluate the assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, err := fedspec.LoadFile(scenario.Federation)
	if err != nil {
		return nil, fmt.Errorf("failed to load federation: %w", err)
	}
	fed, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build federation: %w", err)
	}
	strategy := decompose.StrategyCapabilities
	if scenario.Strategy != "" {
		if strategy, err = decompose.ParseStrategy(scenario.Strategy); err != nil {
			return nil, err
		}
	}
	qi, err := scenario.Query.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	st := cfg.store
	if st == nil {
		if st, err = store.Open(":memory:"); err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}
	var ids broker.IDGenerator = testutil.NewFixedConversationGenerator(scenario.Conversation)
	if cfg.ids != nil && scenario.Conversation == "" {
		ids = cfg.ids
	}

	rec := testutil.NewRecorder()
	for _, s := range scenario.FailSuggestions {
		rec.FailRequests[s] = true
	}
	observers := session.Observers{rec}
	if cfg.metrics != nil {
		observers = append(observers, cfg.metrics)
	}
	sinks := session.Sinks{rec, st}
	sessions := session.NewManager(
		session.WithProgressSink(sinks),
		session.WithDeliverer(rec),
		session.WithSuggestionRequester(rec),
		session.WithObserver(observers),
		session.WithLogger(cfg.logger),
	)

	dispatcher := &recordingDispatcher{unreachable: scenario.Unreachable}
	brokerOpts := []broker.Option{
		broker.WithStrategy(strategy),
		broker.WithIDGenerator(ids),
		broker.WithProgressSink(sinks),
		broker.WithParallelism(1),
		broker.WithLogger(cfg.logger),
	}
	if cfg.metrics != nil {
		brokerOpts = append(brokerOpts, broker.WithDecompositionObserver(cfg.metrics))
	}
	if scenario.Linkset {
		brokerOpts = append(brokerOpts, broker.WithLinksetGraph(fed.SameAs))
	}
	b := broker.New(fed.Federation, sessions, dispatcher, brokerOpts...)

	ctx := context.Background()
	result := NewResult()
	conv := b.NewConversation()
	result.Conversation = conv

	ticket, err := b.Federate(ctx, qi, broker.Request{
		Conversation: conv,
		Sources:      scenario.Sources,
		Suggestions:  scenario.Suggestions,
		Focus:        scenario.Focus,
	})
	var de *decompose.DecompositionError
	switch {
	case errors.As(err, &de):
		result.DecompositionError = de
	case err != nil:
		return nil, fmt.Errorf("failed to federate query: %w", err)
	default:
		if err := st.RecordSession(ctx, store.SessionRecord{
			Conversation: conv,
			QueryID:      ticket.Plan.Inventory.ID(),
			Strategy:     string(ticket.Plan.Strategy),
			Sources:      ticket.Plan.Sources(),
			State:        session.StateOpen.String(),
		}); err != nil {
			return nil, fmt.Errorf("failed to record session: %w", err)
		}
		if err := deliverFlow(b, conv, qi.Prefixes, scenario.Flow); err != nil {
			return nil, err
		}
	}
	b.Stop()
	if err := b.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain broker: %w", err)
	}

	if err := collect(ctx, st, rec, dispatcher, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// deliverFlow queues every step as a message of conv.
func deliverFlow(b *broker.Broker, conv string, prefixes rdf.PrefixMap, flow []Step) error {
	for i, step := range flow {
		msg, err := stepMessage(conv, prefixes, step)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if !b.Deliver(msg) {
			return fmt.Errorf("flow[%d]: broker stopped", i)
		}
	}
	return nil
}

func stepMessage(conv string, prefixes rdf.PrefixMap, step Step) (session.Message, error) {
	reply := session.Reply{ConversationID: conv, SourceID: step.Source}
	switch {
	case len(step.Partial) > 0:
		g := rdf.NewGraph()
		for _, line := range step.Partial {
			t, err := parseTriple(prefixes, line)
			if err != nil {
				return nil, err
			}
			g.Add(t)
		}
		return session.Partial{Reply: reply, Graph: g}, nil
	case step.End:
		return session.End{Reply: reply}, nil
	case step.Error != "":
		return session.DataError{Reply: reply, Reason: step.Error}, nil
	default:
		return session.Suggestions{Reply: reply, Items: step.Suggestions}, nil
	}
}

// parseTriple reads "s p o" with the query prefixes. The triple is not
// validated so that scenarios can exercise rejected batches.
func parseTriple(prefixes rdf.PrefixMap, line string) (rdf.Triple, error) {
	parts := strings.SplitN(strings.TrimSuffix(strings.TrimSpace(line), " ."), " ", 3)
	if len(parts) != 3 {
		return rdf.Triple{}, fmt.Errorf("triple needs subject, predicate and object: %q", line)
	}
	var terms [3]rdf.Term
	for i, text := range parts {
		t, err := prefixes.ParseTerm(strings.TrimSpace(text))
		if err != nil {
			return rdf.Triple{}, fmt.Errorf("triple %q: %w", line, err)
		}
		terms[i] = t
	}
	return rdf.NewTriple(terms[0], terms[1], terms[2]), nil
}

// collect copies what the run produced into result.
func collect(ctx context.Context, st *store.Store, rec *testutil.Recorder, d *recordingDispatcher, result *Result) error {
	records, err := st.ProgressFor(ctx, result.Conversation)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	for _, r := range records {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:        r.Seq,
			Type:       r.Type.String(),
			Value:      r.Value,
			Finished:   r.Finished,
			Subresults: r.Subresults,
		})
	}

	result.Dispatched = append(result.Dispatched, d.dispatched()...)
	if res := rec.Results(); len(res) > 0 {
		result.Outcome = res[len(res)-1]
		if err := st.RecordResult(ctx, result.Outcome); err != nil {
			return fmt.Errorf("failed to record result: %w", err)
		}
	}
	if sr := rec.Suggestions(); len(sr) > 0 {
		result.Suggestions = sr[len(sr)-1]
	}
	if sources, requested := rec.Requested(); len(sources) > 0 {
		result.Requested = requested
	}
	result.Rejected = rec.Rejected()
	return nil
}
