package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/goldenagents/gafed/internal/session"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Recorder collects what a session manager hands to its collaborators. It
// is a session.ProgressSink, session.Deliverer, session.SuggestionRequester
// and session.Observer.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	progress    []session.Progress
	results     []*session.Result
	suggestions []*session.SuggestionResult
	requests    map[string][]string
	rejected    []string
	// FailRequests lists sources whose suggestion request fails.
	FailRequests map[string]bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{requests: map[string][]string{}, FailRequests: map[string]bool{}}
}

// Publish implements session.ProgressSink.
func (r *Recorder) Publish(_ context.Context, _ string, p session.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
	return nil
}

// Deliver implements session.Deliverer.
func (r *Recorder) Deliver(_ context.Context, res *session.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

// DeliverSuggestions implements session.Deliverer.
func (r *Recorder) DeliverSuggestions(_ context.Context, res *session.SuggestionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions = append(r.suggestions, res)
	return nil
}

// RequestSuggestions implements session.SuggestionRequester.
func (r *Recorder) RequestSuggestions(_ context.Context, _, source string, entities []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRequests[source] {
		return fmt.Errorf("source %s unreachable", source)
	}
	r.requests[source] = append([]string(nil), entities...)
	return nil
}

// SessionOpened implements session.Observer.
func (r *Recorder) SessionOpened(string) {}

// MessageHandled implements session.Observer.
func (r *Recorder) MessageHandled(kind string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, kind+": "+err.Error())
}

// SessionFinalized implements session.Observer.
func (r *Recorder) SessionFinalized(*session.Result) {}

// Progress returns the published events in order.
func (r *Recorder) Progress() []session.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Progress(nil), r.progress...)
}

// Results returns the delivered results in order.
func (r *Recorder) Results() []*session.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*session.Result(nil), r.results...)
}

// Suggestions returns the delivered suggestion results in order.
func (r *Recorder) Suggestions() []*session.SuggestionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*session.SuggestionResult(nil), r.suggestions...)
}

// Requested returns the sources asked for suggestions, sorted, and the
// entities each was asked about.
func (r *Recorder) Requested() ([]string, map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sources := make([]string, 0, len(r.requests))
	out := make(map[string][]string, len(r.requests))
	for s, e := range r.requests {
		sources = append(sources, s)
		out[s] = append([]string(nil), e...)
	}
	sort.Strings(sources)
	return sources, out
}

// Rejected returns the messages the manager refused, as "kind: error".
func (r *Recorder) Rejected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rejected...)
}
