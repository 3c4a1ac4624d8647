package testutil

// FixedConversationGenerator returns the same conversation id every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same generator produces byte-identical traces.
//
// Thread-safety: FixedConversationGenerator is stateless and safe for
// concurrent use.
type FixedConversationGenerator struct {
	id string
}

// NewFixedConversationGenerator creates a generator for id. An empty id
// becomes "test-conversation-default".
func NewFixedConversationGenerator(id string) *FixedConversationGenerator {
	if id == "" {
		id = "test-conversation-default"
	}
	return &FixedConversationGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedConversationGenerator) Generate() string {
	return g.id
}
