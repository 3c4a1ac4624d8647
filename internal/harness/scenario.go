package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/session"
)

// Scenario describes one federated query and the replies of its sources.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Federation is the path of the CUE federation description. Relative
	// paths are resolved against the scenario file.
	Federation string `yaml:"federation"`

	// Strategy is the decomposition strategy. Defaults to capabilities.
	Strategy string `yaml:"strategy,omitempty"`

	// Sources restricts the federation. Empty means every source.
	Sources []string `yaml:"sources,omitempty"`

	// Suggestions asks for a suggestions round after the result.
	Suggestions bool `yaml:"suggestions,omitempty"`

	// Focus names the variable whose values seed the suggestions round.
	Focus string `yaml:"focus,omitempty"`

	// Linkset merges the owl:sameAs statements of the federation into the
	// session.
	Linkset bool `yaml:"linkset,omitempty"`

	// Conversation is the fixed conversation id. If empty, defaults to
	// "test-conversation-default" so golden files stay stable.
	Conversation string `yaml:"conversation,omitempty"`

	// Query is the query to federate.
	Query decompose.InventorySpec `yaml:"query"`

	// Unreachable lists sources whose dispatch fails.
	Unreachable []string `yaml:"unreachable,omitempty"`

	// FailSuggestions lists sources whose suggestions request fails.
	FailSuggestions []string `yaml:"fail_suggestions,omitempty"`

	// Flow is the sequence of replies, in delivery order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the result.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one reply of a source.
type Step struct {
	Source string `yaml:"source"`

	// Partial holds result triples, one "s p o" per line.
	Partial []string `yaml:"partial,omitempty"`

	// End signals that the source sent everything.
	End bool `yaml:"end,omitempty"`

	// Error is the failure reason of the source.
	Error string `yaml:"error,omitempty"`

	// Suggestions answers a suggestions request.
	Suggestions []string `yaml:"suggestions,omitempty"`
}

// kinds returns the message kinds the step sets.
func (s Step) kinds() []string {
	var out []string
	if len(s.Partial) > 0 {
		out = append(out, "partial")
	}
	if s.End {
		out = append(out, "end")
	}
	if s.Error != "" {
		out = append(out, "error")
	}
	if len(s.Suggestions) > 0 {
		out = append(out, "suggestions")
	}
	return out
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "progress_order": Progress types appear in order
	// - "progress_count": Event appears exactly Count times
	// - "result": Complete, Rows and Failed match the result
	// - "row": Some result row matches Row
	// - "dispatched": Sources were sent sub-queries, in order
	// - "rejected": Count replies were refused
	Type string `yaml:"type"`

	// Progress is the expected event order (used by progress_order).
	Progress []string `yaml:"progress,omitempty"`

	// Event is the progress type name (used by progress_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number (used by progress_count and rejected).
	Count *int `yaml:"count,omitempty"`

	// Complete is the expected completeness (used by result).
	Complete *bool `yaml:"complete,omitempty"`

	// Rows is the expected row count (used by result).
	Rows *int `yaml:"rows,omitempty"`

	// Failed lists the expected failed sources (used by result).
	Failed []string `yaml:"failed,omitempty"`

	// Row maps variables, without "?", to expected values (used by row).
	Row map[string]string `yaml:"row,omitempty"`

	// Sources is the expected dispatch order (used by dispatched).
	Sources []string `yaml:"sources,omitempty"`
}

// Assertion type constants.
const (
	AssertProgressOrder = "progress_order"
	AssertProgressCount = "progress_count"
	AssertResult        = "result"
	AssertRow           = "row"
	AssertDispatched    = "dispatched"
	AssertRejected      = "rejected"
)

// LoadScenario reads and parses a scenario YAML file. The federation path
// is resolved against the directory of the scenario file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Federation != "" && !filepath.IsAbs(scenario.Federation) {
		scenario.Federation = filepath.Join(filepath.Dir(path), scenario.Federation)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Federation == "" {
		return fmt.Errorf("federation is required")
	}
	if _, err := os.Stat(s.Federation); os.IsNotExist(err) {
		return fmt.Errorf("federation file not found: %s", s.Federation)
	}
	if s.Strategy != "" {
		if _, err := decompose.ParseStrategy(s.Strategy); err != nil {
			return err
		}
	}
	if len(s.Query.Triples) == 0 {
		return fmt.Errorf("query.triples is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Source == "" {
			return fmt.Errorf("flow[%d]: source is required", i)
		}
		if kinds := step.kinds(); len(kinds) != 1 {
			return fmt.Errorf("flow[%d]: exactly one of partial, end, error or suggestions is required, got %v", i, kinds)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertProgressOrder:
		if len(a.Progress) == 0 {
			return fmt.Errorf("assertions[%d]: progress list is required for progress_order", index)
		}
		for _, name := range a.Progress {
			if _, err := session.ParseProgressType(name); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertProgressCount:
		if _, err := session.ParseProgressType(a.Event); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for progress_count", index)
		}
	case AssertResult:
		if a.Complete == nil && a.Rows == nil && a.Failed == nil {
			return fmt.Errorf("assertions[%d]: result needs complete, rows or failed", index)
		}
	case AssertRow:
		if len(a.Row) == 0 {
			return fmt.Errorf("assertions[%d]: row is required for row", index)
		}
	case AssertDispatched:
		if a.Sources == nil {
			return fmt.Errorf("assertions[%d]: sources is required for dispatched", index)
		}
	case AssertRejected:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for rejected", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
