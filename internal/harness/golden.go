package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/session"
)

// Snapshot renders the deterministic part of a run as text: the dispatch
// plan, the progress trace, the result rows and the suggestions round.
// Query ids and sub-query text are left out so that snapshots survive
// changes to the query renderer.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "conversation: %s\n", result.Conversation)

	if result.DecompositionError != nil {
		fmt.Fprintf(&b, "decomposition: %s\n", decompose.CodeOf(result.DecompositionError))
	}

	b.WriteString("dispatched:\n")
	for _, d := range result.Dispatched {
		unit := "triples"
		if d.Triples == 1 {
			unit = "triple"
		}
		fmt.Fprintf(&b, "  %s (%d %s)", d.Source, d.Triples, unit)
		if d.Failed {
			b.WriteString(" unreachable")
		}
		b.WriteString("\n")
	}

	b.WriteString("progress:\n")
	for _, e := range result.Trace {
		fmt.Fprintf(&b, "  %d %s", e.Seq, e.Type)
		if v := string(e.Value); v != "" && v != "null" {
			b.WriteString(" " + v)
		}
		if e.Finished {
			b.WriteString(" finished")
		}
		for _, sr := range e.Subresults {
			fmt.Fprintf(&b, " [%s +%d", sr.Source, sr.Items)
			if sr.Finished {
				b.WriteString(" finished")
			}
			b.WriteString("]")
		}
		b.WriteString("\n")
	}

	writeOutcome(&b, result.Outcome)

	if len(result.Requested) > 0 {
		b.WriteString("requested:\n")
		writeSourceLists(&b, result.Requested)
	}
	if sr := result.Suggestions; sr != nil {
		b.WriteString("suggestions:\n")
		writeSourceLists(&b, sr.Items)
		if len(sr.Failed) > 0 {
			fmt.Fprintf(&b, "  failed: %v\n", sr.Failed)
		}
	}

	if len(result.Rejected) > 0 {
		b.WriteString("rejected:\n")
		for _, r := range result.Rejected {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}
	return []byte(b.String())
}

func writeOutcome(b *strings.Builder, res *session.Result) {
	if res == nil {
		b.WriteString("result: none\n")
		return
	}
	state := "complete"
	if !res.Complete {
		state = "incomplete"
	}
	fmt.Fprintf(b, "result: %s rows=%d size=%d", state, res.Len(), res.Size)
	if len(res.Failed) > 0 {
		fmt.Fprintf(b, " failed=%v", res.Failed)
	}
	b.WriteString("\n")

	rows := make([]string, 0, res.Len())
	for _, row := range res.Rows {
		var cells []string
		for _, v := range res.Vars {
			if t, ok := row[v]; ok {
				cells = append(cells, v+"="+t.Value)
			}
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	sort.Strings(rows)
	for _, r := range rows {
		fmt.Fprintf(b, "  %s\n", r)
	}
}

func writeSourceLists(b *strings.Builder, lists map[string][]string) {
	sources := make([]string, 0, len(lists))
	for s := range lists {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		items := slices.Clone(lists[s])
		sort.Strings(items)
		fmt.Fprintf(b, "  %s: %s\n", s, strings.Join(items, " "))
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the snapshot of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
