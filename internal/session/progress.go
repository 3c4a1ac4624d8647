package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProgressType is the kind of a progress event. The numeric codes are part
// of the event payload consumed by user interfaces.
type ProgressType int

const (
	ProgressQuerySent        ProgressType = 1
	ProgressQueryTranslated  ProgressType = 2
	ProgressSubquerySent     ProgressType = 3
	ProgressDataCollected    ProgressType = 4
	ProgressQueryExecuted    ProgressType = 5
	ProgressResultsReturned  ProgressType = 6
	ProgressResultsCollected ProgressType = 7

	ProgressDatabaseError ProgressType = -100
)

var progressNames = map[ProgressType]string{
	ProgressQuerySent:        "QUERY_SENT",
	ProgressQueryTranslated:  "QUERY_TRANSLATED",
	ProgressSubquerySent:     "SUBQUERY_SENT",
	ProgressDataCollected:    "DATA_COLLECTED",
	ProgressQueryExecuted:    "QUERY_EXECUTED",
	ProgressResultsReturned:  "RESULTS_RETURNED",
	ProgressResultsCollected: "RESULTS_COLLECTED",
	ProgressDatabaseError:    "DATABASE_ERROR",
}

// String returns the event name, e.g. DATA_COLLECTED.
func (t ProgressType) String() string {
	if name, ok := progressNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PROGRESS(%d)", int(t))
}

// ParseProgressType is the inverse of String.
func ParseProgressType(s string) (ProgressType, error) {
	for t, name := range progressNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown progress type %q", s)
}

// SubResult reports the contribution of one source in a progress event.
type SubResult struct {
	Source   string `json:"source"`
	Items    int    `json:"items"`
	Finished bool   `json:"finished"`
}

// Progress is an observability event about one federated query.
type Progress struct {
	QueryID    string       `json:"queryID"`
	Type       ProgressType `json:"-"`
	Value      any          `json:"value,omitempty"`
	Finished   bool         `json:"finished"`
	Subresults []SubResult  `json:"subresults,omitempty"`
}

// MarshalJSON writes the type both as its numeric index and its name.
func (p Progress) MarshalJSON() ([]byte, error) {
	type plain Progress
	return json.Marshal(struct {
		plain
		Index int    `json:"index"`
		Name  string `json:"type"`
	}{plain(p), int(p.Type), p.Type.String()})
}

// ProgressSink receives progress events. Implementations must not call back
// into the Manager.
type ProgressSink interface {
	Publish(ctx context.Context, conversation string, p Progress) error
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(ctx context.Context, conversation string, p Progress) error

// Publish calls f.
func (f ProgressFunc) Publish(ctx context.Context, conversation string, p Progress) error {
	return f(ctx, conversation, p)
}

// Sinks fans a progress event out to several sinks, returning the first
// error after all have been called.
type Sinks []ProgressSink

// Publish calls every sink in order.
func (s Sinks) Publish(ctx context.Context, conversation string, p Progress) error {
	var first error
	for _, sink := range s {
		if err := sink.Publish(ctx, conversation, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func dataCollected(queryID string, size int, source string, items int, finished bool) Progress {
	return Progress{
		QueryID:    queryID,
		Type:       ProgressDataCollected,
		Value:      size,
		Subresults: []SubResult{{Source: source, Items: items, Finished: finished}},
	}
}
