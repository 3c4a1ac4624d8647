package algebra

import (
	"fmt"
	"strings"

	"github.com/goldenagents/gafed/internal/rdf"
)

// Render writes the body of a group graph pattern for e, without the
// enclosing braces. Terms are abbreviated with prefixes where possible; a nil
// prefix map renders full IRIs.
//
// Output is deterministic: the same expression always renders to the same
// text, which golden tests and isomorphism checks rely on.
func Render(e Expr, prefixes rdf.PrefixMap) string {
	r := &renderer{prefixes: prefixes}
	r.group(e, 1)
	return r.b.String()
}

// RenderSelect renders a complete SELECT query with PREFIX declarations.
func RenderSelect(s Select, prefixes rdf.PrefixMap) string {
	var b strings.Builder
	writePrefixes(&b, prefixes)

	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.Vars) == 0 {
		b.WriteString("*")
	} else {
		for i, v := range s.Vars {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("?" + v)
		}
	}
	b.WriteString("\nWHERE {\n")
	b.WriteString(Render(s.Where, prefixes))
	b.WriteString("}\n")
	return b.String()
}

// RenderPrefixes renders PREFIX declarations in prefix order.
func RenderPrefixes(prefixes rdf.PrefixMap) string {
	var b strings.Builder
	writePrefixes(&b, prefixes)
	return b.String()
}

func writePrefixes(b *strings.Builder, prefixes rdf.PrefixMap) {
	for _, p := range prefixes.Prefixes() {
		fmt.Fprintf(b, "PREFIX %s: <%s>\n", p, prefixes[p])
	}
	if len(prefixes) > 0 {
		b.WriteByte('\n')
	}
}

// RenderTriple renders a single triple pattern terminated by " .".
func RenderTriple(t rdf.Triple, prefixes rdf.PrefixMap) string {
	return fmt.Sprintf("%s %s %s .", prefixes.Format(t.Subject), prefixes.Format(t.Predicate), prefixes.Format(t.Object))
}

type renderer struct {
	prefixes rdf.PrefixMap
	b        strings.Builder
}

func (r *renderer) line(depth int, s string) {
	r.b.WriteString(strings.Repeat("  ", depth))
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

// group writes e as members of the current group.
func (r *renderer) group(e Expr, depth int) {
	switch v := e.(type) {
	case nil, Empty:
	case BGP:
		for _, t := range v.Triples {
			r.line(depth, RenderTriple(t, r.prefixes))
		}
	case Join:
		r.operand(v.Left, depth)
		r.operand(v.Right, depth)
	case Union:
		r.line(depth, "{")
		r.group(v.Left, depth+1)
		r.line(depth, "}")
		r.line(depth, "UNION")
		r.line(depth, "{")
		r.group(v.Right, depth+1)
		r.line(depth, "}")
	case Filter:
		r.group(v.Inner, depth)
		r.condition(v.Cond, depth)
	default:
		r.line(depth, fmt.Sprintf("# unsupported expression %T", e))
	}
}

// operand writes a join operand. Filters are scoped to their own group so
// they only constrain the operand they were attached to.
func (r *renderer) operand(e Expr, depth int) {
	if _, ok := e.(Filter); ok {
		r.line(depth, "{")
		r.group(e, depth+1)
		r.line(depth, "}")
		return
	}
	r.group(e, depth)
}

func (r *renderer) condition(c Condition, depth int) {
	switch v := c.(type) {
	case In:
		values := make([]string, len(v.Values))
		for i, t := range v.Values {
			values[i] = r.prefixes.Format(t)
		}
		r.line(depth, fmt.Sprintf("FILTER(?%s IN (%s))", v.Var, strings.Join(values, ", ")))
	case NotExists:
		r.line(depth, "FILTER NOT EXISTS {")
		r.group(v.Pattern, depth+1)
		r.line(depth, "}")
	default:
		r.line(depth, fmt.Sprintf("# unsupported condition %T", c))
	}
}
