package decompose

import (
	"sort"
	"strings"

	"github.com/goldenagents/gafed/internal/rdf"
)

// AgentQuery is the part of a query one source answers.
type AgentQuery struct {
	Owner    string
	QueryID  string
	Prefixes rdf.PrefixMap
	Triples  []*TripleInfo
	Binds    []string
	Filters  []string
	// Values restricts variables to the listed URIs.
	Values map[string][]string
}

func newAgentQuery(owner string, qi *QueryInfo) *AgentQuery {
	return &AgentQuery{
		Owner:    owner,
		QueryID:  qi.ID(),
		Prefixes: qi.RelevantPrefixes(),
	}
}

// IsEmpty reports whether the sub-query asks for nothing.
func (a *AgentQuery) IsEmpty() bool { return len(a.Triples) == 0 }

// Variables returns the subject and object variables of the sub-query.
func (a *AgentQuery) Variables() []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range a.Triples {
		for _, v := range t.Variables() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// Construct renders the sub-query as a CONSTRUCT query whose template is
// the sub-query's own triple patterns.
func (a *AgentQuery) Construct() string {
	var b strings.Builder
	rule := strings.Repeat("#", len(a.Owner)+2)
	b.WriteString(rule + "\n")
	b.WriteString("# Golden Agents Framework\n")
	b.WriteString("# Generated construct query\n")
	b.WriteString("# " + a.Owner + "\n")
	b.WriteString(rule + "\n")

	for _, p := range a.Prefixes.Prefixes() {
		b.WriteString("PREFIX " + p + ": <" + a.Prefixes[p] + ">\n")
	}

	b.WriteString("CONSTRUCT {\n")
	for _, t := range a.Triples {
		b.WriteString("\t" + t.String() + " .\n")
	}
	b.WriteString("}\n")

	b.WriteString("WHERE {\n")
	for _, t := range a.Triples {
		b.WriteString("\t" + t.String() + " .\n")
	}
	for _, bind := range a.Binds {
		b.WriteString("\t" + bind + "\n")
	}
	for _, f := range a.Filters {
		b.WriteString("\t" + f + "\n")
	}
	vars := make([]string, 0, len(a.Values))
	for v := range a.Values {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		b.WriteString("\tVALUES " + v + " {")
		for _, uri := range a.Values[v] {
			b.WriteString(" " + valueTerm(uri))
		}
		b.WriteString(" }\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func valueTerm(uri string) string {
	if strings.HasPrefix(uri, "<") || !strings.Contains(uri, "://") {
		return uri
	}
	return "<" + uri + ">"
}
