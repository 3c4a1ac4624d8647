package rdf

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TermKind distinguishes the positions a term can take in a triple pattern.
type TermKind int

const (
	// KindIRI is a named resource.
	KindIRI TermKind = iota + 1
	// KindLiteral is a literal value with optional datatype or language.
	KindLiteral
	// KindBlank is a blank node label.
	KindBlank
	// KindVariable is a query variable (only valid in patterns).
	KindVariable
)

// String returns the kind name.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "blank"
	case KindVariable:
		return "variable"
	default:
		return fmt.Sprintf("TermKind(%d)", int(k))
	}
}

// Term is a single RDF term or pattern variable.
//
// Term is a comparable value type so it can be used directly as a map key
// and inside Triple keys of a Graph.
type Term struct {
	Kind     TermKind `json:"kind" yaml:"kind"`
	Value    string   `json:"value" yaml:"value"`
	Datatype string   `json:"datatype,omitempty" yaml:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty" yaml:"lang,omitempty"`
}

// IRI creates a named resource term.
func IRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// Literal creates a plain literal. The lexical form is NFC normalized so that
// visually identical strings compare equal.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: norm.NFC.String(value)}
}

// TypedLiteral creates a literal with a datatype IRI.
func TypedLiteral(value, datatype string) Term {
	return Term{Kind: KindLiteral, Value: norm.NFC.String(value), Datatype: datatype}
}

// LangLiteral creates a language tagged literal.
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: norm.NFC.String(value), Lang: strings.ToLower(lang)}
}

// Blank creates a blank node term.
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// Var creates a variable term. A leading '?' or '$' is stripped.
func Var(name string) Term {
	name = strings.TrimPrefix(strings.TrimPrefix(name, "?"), "$")
	return Term{Kind: KindVariable, Value: name}
}

// IsVariable reports whether the term is a pattern variable.
func (t Term) IsVariable() bool { return t.Kind == KindVariable }

// IsZero reports whether the term is unset.
func (t Term) IsZero() bool { return t.Kind == 0 }

// LocalName returns the part of an IRI after the last '#' or '/'.
// For non-IRI terms it returns the value unchanged.
func (t Term) LocalName() string {
	if t.Kind != KindIRI {
		return t.Value
	}
	_, local := SplitIRI(t.Value)
	return local
}

// Namespace returns the namespace part of an IRI, or "" for other kinds.
func (t Term) Namespace() string {
	if t.Kind != KindIRI {
		return ""
	}
	ns, _ := SplitIRI(t.Value)
	return ns
}

// String renders the term in N-Triples style without prefix abbreviation.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindLiteral:
		s := quote(t.Value)
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	case KindBlank:
		return "_:" + t.Value
	case KindVariable:
		return "?" + t.Value
	default:
		return ""
	}
}

// Signature returns a stable, kind-qualified key used for sorting and
// distinctness checks.
func (t Term) Signature() string {
	switch t.Kind {
	case KindIRI:
		return "iri:" + t.Value
	case KindBlank:
		return "blank:" + t.Value
	case KindVariable:
		return "var:" + t.Value
	case KindLiteral:
		return "lit:" + t.Value + "@" + t.Lang + "^^" + t.Datatype
	default:
		return ""
	}
}

// SplitIRI splits an IRI into namespace and local name at the last '#',
// falling back to the last '/'.
func SplitIRI(iri string) (namespace, local string) {
	if i := strings.LastIndex(iri, "#"); i >= 0 {
		return iri[:i+1], iri[i+1:]
	}
	if i := strings.LastIndex(iri, "/"); i >= 0 {
		return iri[:i+1], iri[i+1:]
	}
	return "", iri
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}
