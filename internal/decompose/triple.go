package decompose

import (
	"slices"
	"sort"
	"strings"
)

// ConceptPrefix marks terms of the shared ontology. Only these take part in
// matching sources to triple patterns.
const ConceptPrefix = "ga:"

// TypePredicate is the shortened rdf:type predicate.
const TypePredicate = "rdf:type"

// NodeType is the syntactic kind of a triple pattern position.
type NodeType int

const (
	NodeVariable NodeType = iota + 1
	NodeURI
	NodeLiteral
	NodeBlank
	NodePath
)

// String returns the upper-case kind name.
func (t NodeType) String() string {
	switch t {
	case NodeVariable:
		return "VARIABLE"
	case NodeURI:
		return "URI"
	case NodeLiteral:
		return "LITERAL"
	case NodeBlank:
		return "BLANK"
	case NodePath:
		return "PATH"
	default:
		return "UNKNOWN"
	}
}

// ParseNodeType classifies a subject or object as written in a query.
func ParseNodeType(s string) NodeType {
	switch {
	case strings.HasPrefix(s, "?") || strings.HasPrefix(s, "$"):
		return NodeVariable
	case strings.HasPrefix(s, "_:"):
		return NodeBlank
	case strings.HasPrefix(s, `"`):
		return NodeLiteral
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"), strings.Contains(s, ":"):
		return NodeURI
	default:
		return NodeLiteral
	}
}

// PathStep is one predicate of a property path.
type PathStep struct {
	IRI      string
	Inverse  bool
	Modifier string
}

// String renders the step.
func (s PathStep) String() string {
	out := s.IRI + s.Modifier
	if s.Inverse {
		out = "^" + out
	}
	return out
}

// Path is a predicate position: a single predicate or a sequence or
// alternative of predicates.
type Path struct {
	Steps      []PathStep
	Separators []string
}

// ParsePath parses a predicate as written in a query. "a" stands for
// rdf:type. Separators inside <...> do not split.
func ParsePath(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Path{}, badQuery("empty predicate")
	}
	if raw == "a" {
		return Path{Steps: []PathStep{{IRI: TypePredicate}}}, nil
	}

	var (
		p     Path
		start int
		depth int
	)
	for i := 0; i <= len(raw); i++ {
		if i < len(raw) {
			switch raw[i] {
			case '<':
				depth++
				continue
			case '>':
				depth--
				continue
			case '/', '|':
				if depth > 0 {
					continue
				}
			default:
				continue
			}
		}
		step, err := parseStep(raw[start:i])
		if err != nil {
			return Path{}, err
		}
		p.Steps = append(p.Steps, step)
		if i < len(raw) {
			p.Separators = append(p.Separators, string(raw[i]))
		}
		start = i + 1
	}
	return p, nil
}

func parseStep(s string) (PathStep, error) {
	s = strings.Trim(strings.TrimSpace(s), "()")
	var step PathStep
	if strings.HasPrefix(s, "^") {
		step.Inverse = true
		s = s[1:]
	}
	if n := len(s); n > 0 && strings.ContainsAny(s[n-1:], "*+?") {
		step.Modifier = s[n-1:]
		s = s[:n-1]
	}
	s = strings.Trim(s, "()")
	if s == "a" {
		s = TypePredicate
	}
	if s == "" {
		return PathStep{}, badQuery("empty step in property path")
	}
	step.IRI = s
	return step, nil
}

// IsSimple reports whether the path is one plain predicate.
func (p Path) IsSimple() bool {
	return len(p.Steps) == 1 && !p.Steps[0].Inverse && p.Steps[0].Modifier == ""
}

// Predicates returns the IRIs of every step.
func (p Path) Predicates() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.IRI
	}
	return out
}

// Contains reports whether some step uses iri.
func (p Path) Contains(iri string) bool {
	return slices.Contains(p.Predicates(), iri)
}

// String renders the path.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p.Steps {
		if i > 0 {
			b.WriteString(p.Separators[i-1])
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// TripleInfo is one triple pattern of a query together with the sources
// that could and the sources that will answer it.
type TripleInfo struct {
	Subject     string
	Predicate   Path
	Object      string
	SubjectType NodeType
	ObjectType  NodeType

	possible []string
	chosen   []string
}

// NewTripleInfo parses a triple pattern from its three positions.
func NewTripleInfo(subject, predicate, object string) (*TripleInfo, error) {
	subject, object = strings.TrimSpace(subject), strings.TrimSpace(object)
	if subject == "" || object == "" {
		return nil, badQuery("incomplete triple pattern %q %q %q", subject, predicate, object)
	}
	path, err := ParsePath(predicate)
	if err != nil {
		return nil, err
	}
	st := ParseNodeType(subject)
	if st == NodeLiteral {
		return nil, badQuery("literal in subject position: %s", subject)
	}
	return &TripleInfo{
		Subject:     subject,
		Predicate:   path,
		Object:      object,
		SubjectType: st,
		ObjectType:  ParseNodeType(object),
	}, nil
}

// String renders the pattern as "s p o".
func (t *TripleInfo) String() string {
	return t.Subject + " " + t.Predicate.String() + " " + t.Object
}

// Concepts returns the ontology concepts the pattern mentions, sorted.
func (t *TripleInfo) Concepts() []string {
	var out []string
	add := func(s string) {
		if strings.HasPrefix(s, ConceptPrefix) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	add(t.Subject)
	for _, p := range t.Predicate.Predicates() {
		add(p)
	}
	add(t.Object)
	sort.Strings(out)
	return out
}

// Contains reports whether the pattern mentions uri at any position.
func (t *TripleInfo) Contains(uri string) bool {
	return t.Subject == uri || t.Object == uri || t.Predicate.Contains(uri)
}

// IsTypeTriple reports whether the predicate is exactly rdf:type.
func (t *TripleInfo) IsTypeTriple() bool {
	return t.Predicate.IsSimple() && t.Predicate.Steps[0].IRI == TypePredicate
}

// Variables returns the variables in subject and object position.
func (t *TripleInfo) Variables() []string {
	var out []string
	if t.SubjectType == NodeVariable {
		out = append(out, t.Subject)
	}
	if t.ObjectType == NodeVariable && t.Object != t.Subject {
		out = append(out, t.Object)
	}
	return out
}

// PossibleSources returns the sources able to answer the pattern, sorted.
func (t *TripleInfo) PossibleSources() []string {
	return slices.Clone(t.possible)
}

// ChosenSources returns the sources selected to answer the pattern. When no
// selection was made every possible source is used.
func (t *TripleInfo) ChosenSources() []string {
	if len(t.chosen) == 0 {
		return t.PossibleSources()
	}
	return slices.Clone(t.chosen)
}

// IsPossible reports whether source may answer the pattern.
func (t *TripleInfo) IsPossible(source string) bool {
	_, ok := slices.BinarySearch(t.possible, source)
	return ok
}

// IsChosen reports whether source will answer the pattern.
func (t *TripleInfo) IsChosen(source string) bool {
	return slices.Contains(t.ChosenSources(), source)
}

func (t *TripleInfo) addPossible(source string) {
	t.possible = insertSorted(t.possible, source)
}

func (t *TripleInfo) choose(source string) {
	t.chosen = insertSorted(t.chosen, source)
}

func (t *TripleInfo) clone() *TripleInfo {
	c := *t
	c.Predicate.Steps = slices.Clone(t.Predicate.Steps)
	c.Predicate.Separators = slices.Clone(t.Predicate.Separators)
	c.possible = slices.Clone(t.possible)
	c.chosen = slices.Clone(t.chosen)
	return &c
}

func insertSorted(list []string, s string) []string {
	i, ok := slices.BinarySearch(list, s)
	if ok {
		return list
	}
	return slices.Insert(list, i, s)
}
