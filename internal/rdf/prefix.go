package rdf

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known namespaces.
const (
	RDFNamespace  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNamespace = "http://www.w3.org/2000/01/rdf-schema#"
	XSDNamespace  = "http://www.w3.org/2001/XMLSchema#"
	GANamespace   = "https://goldenagents.com/ontology#"
)

// RDFType is the rdf:type predicate.
var RDFType = IRI(RDFNamespace + "type")

// PrefixMap maps prefixes (without trailing colon) to namespace IRIs.
type PrefixMap map[string]string

// DefaultPrefixes returns the prefixes every federation member understands.
func DefaultPrefixes() PrefixMap {
	return PrefixMap{
		"rdf":  RDFNamespace,
		"rdfs": RDFSNamespace,
		"xsd":  XSDNamespace,
		"ga":   GANamespace,
	}
}

// Clone returns an independent copy.
func (p PrefixMap) Clone() PrefixMap {
	out := make(PrefixMap, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Prefixes returns the prefixes in sorted order.
func (p PrefixMap) Prefixes() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PrefixFor returns the prefix bound to a namespace. When several prefixes
// share a namespace the lexically smallest wins so the answer is stable.
func (p PrefixMap) PrefixFor(namespace string) (string, bool) {
	for _, k := range p.Prefixes() {
		if p[k] == namespace {
			return k, true
		}
	}
	return "", false
}

// Expand resolves a prefixed name such as "ga:Book" to a full IRI.
func (p PrefixMap) Expand(curie string) (string, error) {
	i := strings.Index(curie, ":")
	if i < 0 {
		return "", fmt.Errorf("not a prefixed name: %q", curie)
	}
	ns, ok := p[curie[:i]]
	if !ok {
		return "", fmt.Errorf("unknown prefix %q in %q", curie[:i], curie)
	}
	return ns + curie[i+1:], nil
}

// Shorten abbreviates an IRI with a known prefix. The second return value
// is false when no prefix applies or the local part is not a valid name.
func (p PrefixMap) Shorten(iri string) (string, bool) {
	ns, local := SplitIRI(iri)
	prefix, ok := p.PrefixFor(ns)
	if !ok || !validLocalName(local) {
		return "", false
	}
	return prefix + ":" + local, true
}

// Restrict returns the sub-map whose namespaces are in use.
func (p PrefixMap) Restrict(namespaces []string) PrefixMap {
	out := PrefixMap{}
	for _, ns := range namespaces {
		if prefix, ok := p.PrefixFor(ns); ok {
			out[prefix] = ns
		}
	}
	return out
}

// Format renders a term using the prefixes where possible.
func (p PrefixMap) Format(t Term) string {
	switch t.Kind {
	case KindIRI:
		if s, ok := p.Shorten(t.Value); ok {
			return s
		}
		return t.String()
	case KindLiteral:
		if t.Datatype != "" && t.Lang == "" {
			if dt, ok := p.Shorten(t.Datatype); ok {
				return quote(t.Value) + "^^" + dt
			}
		}
		return t.String()
	default:
		return t.String()
	}
}

// ParseTerm reads a term from its textual pattern form. Accepted forms are
// "?var", "_:label", "<iri>", "prefix:local", "a" (rdf:type) and quoted
// literals with optional "@lang" or "^^datatype". Any other text is taken
// as a plain literal.
func (p PrefixMap) ParseTerm(text string) (Term, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return Term{}, fmt.Errorf("empty term")
	case text == "a":
		return RDFType, nil
	case strings.HasPrefix(text, "?") || strings.HasPrefix(text, "$"):
		return Var(text), nil
	case strings.HasPrefix(text, "_:"):
		return Blank(text[2:]), nil
	case strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">"):
		return IRI(text[1 : len(text)-1]), nil
	case strings.HasPrefix(text, `"`):
		return p.parseLiteral(text)
	case strings.Contains(text, ":"):
		iri, err := p.Expand(text)
		if err != nil {
			return Term{}, err
		}
		return IRI(iri), nil
	default:
		return Literal(text), nil
	}
}

func (p PrefixMap) parseLiteral(text string) (Term, error) {
	end := strings.LastIndex(text, `"`)
	if end <= 0 {
		return Term{}, fmt.Errorf("unterminated literal: %s", text)
	}
	value := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t").Replace(text[1:end])
	rest := text[end+1:]
	switch {
	case rest == "":
		return Literal(value), nil
	case strings.HasPrefix(rest, "@"):
		return LangLiteral(value, rest[1:]), nil
	case strings.HasPrefix(rest, "^^"):
		dt, err := p.ParseTerm(rest[2:])
		if err != nil {
			return Term{}, fmt.Errorf("literal datatype: %w", err)
		}
		if dt.Kind != KindIRI {
			return Term{}, fmt.Errorf("literal datatype must be an IRI: %s", rest[2:])
		}
		return TypedLiteral(value, dt.Value), nil
	default:
		return Term{}, fmt.Errorf("unexpected literal suffix %q", rest)
	}
}

func validLocalName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return !strings.HasSuffix(s, ".")
}
