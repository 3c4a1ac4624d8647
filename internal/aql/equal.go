package aql

import (
	"encoding/binary"
	"hash/fnv"
)

// Equal reports whether two trees are structurally equal from their roots.
func (t *Tree) Equal(other *Tree) bool {
	if t.root == "" || other.root == "" {
		return t.root == other.root
	}
	return EqualAt(t, t.root, other, other.root)
}

// EqualAt compares the subtree at a in ta with the subtree at b in tb.
//
// Equality is defined on (kind, resource, label, children) and never on
// focus identity, so independently built trees can be equal. Intersection
// and Union are commutative: swapped operands compare equal.
func EqualAt(ta *Tree, a ID, tb *Tree, b ID) bool {
	na, ok := ta.nodes[a]
	if !ok {
		return false
	}
	nb, ok := tb.nodes[b]
	if !ok {
		return false
	}
	if na.Kind != nb.Kind || na.Resource != nb.Resource || na.Label != nb.Label {
		return false
	}
	switch na.Kind.Arity() {
	case 0:
		return true
	case 1:
		return EqualAt(ta, na.Children[0], tb, nb.Children[0])
	default:
		l1, r1 := na.Children[0], na.Children[1]
		l2, r2 := nb.Children[0], nb.Children[1]
		return (EqualAt(ta, l1, tb, l2) && EqualAt(ta, r1, tb, r2)) ||
			(EqualAt(ta, l1, tb, r2) && EqualAt(ta, r1, tb, l2))
	}
}

// Hash returns a structural hash consistent with EqualAt: equal subtrees
// hash equally, including commuted binary operands.
func (t *Tree) Hash(id ID) uint64 {
	n, ok := t.nodes[id]
	if !ok {
		return 0
	}
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n.Kind))
	h.Write(buf[:])
	h.Write([]byte(n.Resource.Signature()))
	h.Write([]byte{0})
	h.Write([]byte(n.Label))

	switch n.Kind.Arity() {
	case 1:
		binary.BigEndian.PutUint64(buf[:], t.Hash(n.Children[0]))
		h.Write(buf[:])
	case 2:
		a, b := t.Hash(n.Children[0]), t.Hash(n.Children[1])
		if a > b {
			a, b = b, a
		}
		binary.BigEndian.PutUint64(buf[:], a)
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], b)
		h.Write(buf[:])
	}
	return h.Sum64()
}
