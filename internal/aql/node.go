package aql

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/goldenagents/gafed/internal/rdf"
)

// ID is the focus identity of a node. It is assigned once at creation and
// survives Copy, so a copy can be diffed against its original by identity.
type ID string

// IDGenerator produces fresh focus identities.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identities.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 in hyphenated form.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns "<prefix>1", "<prefix>2", ... and is used where
// identities must be reproducible, such as golden tests.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator with the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next identity in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

// Kind is the closed set of AQL node variants.
type Kind int

const (
	// KindMostGeneral is the wildcard leaf "?".
	KindMostGeneral Kind = iota + 1
	// KindType constrains the current entity to an rdf:type.
	KindType
	// KindNamedResource constrains the current entity to one IRI.
	KindNamedResource
	// KindNamedLiteral constrains the current value to one literal.
	KindNamedLiteral
	// KindCrossForward traverses a property towards its subject.
	KindCrossForward
	// KindCrossBackward traverses a property towards its object.
	KindCrossBackward
	// KindIntersection requires both children.
	KindIntersection
	// KindUnion accepts either child.
	KindUnion
	// KindExclusion negates its child.
	KindExclusion
)

var kindNames = map[Kind]string{
	KindMostGeneral:   "MostGeneralQuery",
	KindType:          "TypeSpecification",
	KindNamedResource: "NamedResource",
	KindNamedLiteral:  "NamedLiteral",
	KindCrossForward:  "CrossingForward",
	KindCrossBackward: "CrossingBackward",
	KindIntersection:  "Intersection",
	KindUnion:         "Union",
	KindExclusion:     "Exclusion",
}

// String returns the variant name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a variant name as produced by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// Arity returns the number of children a node of this kind has.
func (k Kind) Arity() int {
	switch k {
	case KindCrossForward, KindCrossBackward, KindExclusion:
		return 1
	case KindIntersection, KindUnion:
		return 2
	default:
		return 0
	}
}

// IsFeature reports whether the kind is a leaf constraint that can be
// intersected into a query.
func (k Kind) IsFeature() bool {
	switch k {
	case KindType, KindNamedResource, KindNamedLiteral:
		return true
	}
	return false
}

// IsBinary reports whether the kind is Intersection or Union.
func (k Kind) IsBinary() bool { return k.Arity() == 2 }

// IsCrossing reports whether the kind is a property crossing.
func (k Kind) IsCrossing() bool {
	return k == KindCrossForward || k == KindCrossBackward
}

// NodeType is the coarse tag used by presentation layers.
type NodeType string

const (
	TypeUnmarked NodeType = ""
	TypeClass    NodeType = "class"
	TypeProperty NodeType = "prop"
)

// Type returns the tag for a kind.
func (k Kind) Type() NodeType {
	switch {
	case k == KindType:
		return TypeClass
	case k.IsCrossing():
		return TypeProperty
	default:
		return TypeUnmarked
	}
}

// Node is one tree node. Nodes live in a Tree arena and refer to each other
// by ID only; the Tree is the sole owner.
type Node struct {
	ID       ID
	Parent   ID // empty for the root and for detached nodes
	Kind     Kind
	Resource rdf.Term // class, named resource, literal or crossed property
	Label    string
	Children []ID
}

// Type returns the node's CLASS/PROPERTY tag.
func (n Node) Type() NodeType { return n.Kind.Type() }

func (n *Node) clone() *Node {
	c := *n
	c.Children = append([]ID(nil), n.Children...)
	return &c
}

// Feature describes a leaf constraint to intersect into a query.
type Feature struct {
	Kind     Kind
	Resource rdf.Term
	Label    string
}

// TypeFeature constrains the focus to instances of class.
func TypeFeature(class rdf.Term, label string) Feature {
	return Feature{Kind: KindType, Resource: class, Label: label}
}

// ResourceFeature constrains the focus to one resource.
func ResourceFeature(resource rdf.Term, label string) Feature {
	return Feature{Kind: KindNamedResource, Resource: resource, Label: label}
}

// LiteralFeature constrains the focus to one literal value.
func LiteralFeature(literal rdf.Term) Feature {
	return Feature{Kind: KindNamedLiteral, Resource: literal, Label: literal.Value}
}
