package harness

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/goldenagents/gafed/internal/decompose"
)

// recordingDispatcher stands in for the network: it records every sub-query
// and fails the sources listed as unreachable.
type recordingDispatcher struct {
	mu          sync.Mutex
	unreachable []string
	sent        []Dispatch
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, q *decompose.AgentQuery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	failed := slices.Contains(d.unreachable, q.Owner)
	d.sent = append(d.sent, Dispatch{
		Source:    q.Owner,
		Triples:   len(q.Triples),
		Construct: q.Construct(),
		Failed:    failed,
	})
	if failed {
		return fmt.Errorf("source %s unreachable", q.Owner)
	}
	return nil
}

func (d *recordingDispatcher) dispatched() []Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.sent)
}
