package session

import "github.com/goldenagents/gafed/internal/rdf"

// Message is a reply from a source to a dispatched sub-query. The set of
// messages is closed: Partial, End, DataError and Suggestions.
type Message interface {
	// Conversation returns the id of the session the message belongs to.
	Conversation() string
	// Source returns the id of the replying source.
	Source() string

	message()
}

// Reply carries the routing fields shared by every message.
type Reply struct {
	ConversationID string `json:"conversation" yaml:"conversation"`
	SourceID       string `json:"source" yaml:"source"`
}

// Conversation implements Message.
func (r Reply) Conversation() string { return r.ConversationID }

// Source implements Message.
func (r Reply) Source() string { return r.SourceID }

// Partial is a batch of result triples. More batches may follow.
type Partial struct {
	Reply
	Graph *rdf.Graph
}

// End signals that the source sent all of its results.
type End struct {
	Reply
}

// DataError signals that the source failed to answer.
type DataError struct {
	Reply
	Reason string
}

// Suggestions is a source's answer to a suggestions request. A non-empty
// Err marks the request as failed.
type Suggestions struct {
	Reply
	Items []string
	Err   string
}

func (Partial) message()     {}
func (End) message()         {}
func (DataError) message()   {}
func (Suggestions) message() {}

// Kind names the message variant, as used in logs and metrics.
func Kind(m Message) string {
	switch m.(type) {
	case Partial:
		return "partial"
	case End:
		return "end"
	case DataError:
		return "error"
	case Suggestions:
		return "suggestions"
	default:
		return "unknown"
	}
}
