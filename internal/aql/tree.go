package aql

import (
	"sort"

	"github.com/goldenagents/gafed/internal/rdf"
)

// Tree is an arena of AQL nodes keyed by focus identity.
//
// Parent and child links are plain IDs, so the arena owns every node and no
// reference cycles exist. Nodes are created detached; attaching a node as a
// child (through a constructor or ReplaceChild) sets its parent. A node can
// have at most one parent.
//
// Tree is not safe for concurrent mutation.
type Tree struct {
	root  ID
	nodes map[ID]*Node
	ids   IDGenerator
}

// NewTree creates an empty arena. A nil generator defaults to UUIDv7.
func NewTree(ids IDGenerator) *Tree {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Tree{nodes: make(map[ID]*Node), ids: ids}
}

// Root returns the root identity, or "" when no root is set.
func (t *Tree) Root() ID { return t.root }

// SetRoot makes a detached node the root.
func (t *Tree) SetRoot(id ID) error {
	n, ok := t.nodes[id]
	if !ok {
		return invalidTree(id, "root node does not exist")
	}
	if n.Parent != "" {
		return invalidTree(id, "root node is attached to %s", n.Parent)
	}
	t.root = id
	return nil
}

// Node returns a copy of the node with the given identity.
func (t *Tree) Node(id ID) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n.clone(), true
}

// Has reports whether the identity exists in the arena.
func (t *Tree) Has(id ID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// IDs returns every identity in the arena, sorted.
func (t *Tree) IDs() []ID {
	out := make([]ID, 0, len(t.nodes))
	for id := range t.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Children returns the child identities of a node.
func (t *Tree) Children(id ID) []ID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return append([]ID(nil), n.Children...)
}

// Parent returns the parent identity of a node.
func (t *Tree) Parent(id ID) ID {
	if n, ok := t.nodes[id]; ok {
		return n.Parent
	}
	return ""
}

func (t *Tree) add(kind Kind, resource rdf.Term, label string) *Node {
	n := &Node{ID: ID(t.ids.Generate()), Kind: kind, Resource: resource, Label: label}
	t.nodes[n.ID] = n
	return n
}

// NewMostGeneral creates a detached wildcard leaf.
func (t *Tree) NewMostGeneral() ID {
	return t.add(KindMostGeneral, rdf.Term{}, "?").ID
}

// NewFeature creates a detached leaf constraint. The label defaults to the
// resource's local name.
func (t *Tree) NewFeature(f Feature) (ID, error) {
	if !f.Kind.IsFeature() {
		return "", &TreeError{Code: ErrCodeInvalidOperation, Message: "only leaf features can be created as features: " + f.Kind.String()}
	}
	label := f.Label
	if label == "" {
		label = f.Resource.LocalName()
	}
	return t.add(f.Kind, f.Resource, label).ID, nil
}

// NewCrossing creates a property crossing over a detached child.
func (t *Tree) NewCrossing(forward bool, property rdf.Term, label string, child ID) (ID, error) {
	kind := KindCrossBackward
	if forward {
		kind = KindCrossForward
	}
	if label == "" {
		label = property.LocalName()
	}
	return t.compose(kind, property, label, child)
}

// NewIntersection creates an intersection of two detached subtrees.
func (t *Tree) NewIntersection(left, right ID) (ID, error) {
	return t.compose(KindIntersection, rdf.Term{}, "and", left, right)
}

// NewUnion creates a union of two detached subtrees.
func (t *Tree) NewUnion(left, right ID) (ID, error) {
	return t.compose(KindUnion, rdf.Term{}, "or", left, right)
}

// NewExclusion creates the negation of a detached subtree.
func (t *Tree) NewExclusion(child ID) (ID, error) {
	return t.compose(KindExclusion, rdf.Term{}, "not", child)
}

func (t *Tree) compose(kind Kind, resource rdf.Term, label string, children ...ID) (ID, error) {
	seen := make(map[ID]bool, len(children))
	for _, c := range children {
		if err := t.checkDetached(c); err != nil {
			return "", err
		}
		if seen[c] {
			return "", invalidTree(c, "node used twice as a child")
		}
		seen[c] = true
	}
	n := t.add(kind, resource, label)
	n.Children = append([]ID(nil), children...)
	for _, c := range children {
		t.nodes[c].Parent = n.ID
	}
	return n.ID, nil
}

func (t *Tree) checkDetached(id ID) error {
	n, ok := t.nodes[id]
	if !ok {
		return invalidTree(id, "child node does not exist")
	}
	if n.Parent != "" {
		return invalidTree(id, "node already attached to %s", n.Parent)
	}
	if id == t.root {
		return invalidTree(id, "root node cannot be attached as a child")
	}
	return nil
}

// ReplaceChild swaps a direct child of parent for a detached node. The old
// child is detached but stays in the arena; call Remove to discard it.
func (t *Tree) ReplaceChild(parent, oldChild, newChild ID) error {
	p, ok := t.nodes[parent]
	if !ok {
		return invalidTree(parent, "parent node does not exist")
	}
	slot := indexOf(p.Children, oldChild)
	if slot < 0 {
		return invalidTree(parent, "child to be replaced does not exist on this node: %s", oldChild)
	}
	if err := t.checkDetached(newChild); err != nil {
		return err
	}
	p.Children[slot] = newChild
	t.nodes[newChild].Parent = parent
	if old, ok := t.nodes[oldChild]; ok {
		old.Parent = ""
	}
	return nil
}

// Wrap replaces target, in place, with a node built around it. build
// receives target in detached form and returns the replacement; the
// replacement takes target's old slot (or becomes the root).
func (t *Tree) Wrap(target ID, build func(detached ID) (ID, error)) (ID, error) {
	n, ok := t.nodes[target]
	if !ok {
		return "", &TreeError{Code: ErrCodeInvalidFocus, Message: "node does not exist", Node: target}
	}
	parent := n.Parent
	slot := -1
	switch {
	case parent != "":
		slot = indexOf(t.nodes[parent].Children, target)
		if slot < 0 {
			return "", invalidTree(target, "parent %s does not list node as a child", parent)
		}
	case target != t.root:
		return "", invalidTree(target, "no candidate node to put the replacement in")
	}

	// Detach, build, then re-attach the replacement in the same slot.
	n.Parent = ""
	if parent == "" {
		t.root = ""
	} else {
		t.nodes[parent].Children[slot] = ""
	}

	replacement, err := build(target)
	if err != nil {
		n.Parent = parent
		if parent == "" {
			t.root = target
		} else {
			t.nodes[parent].Children[slot] = target
		}
		return "", err
	}

	if parent == "" {
		t.root = replacement
	} else {
		t.nodes[parent].Children[slot] = replacement
		t.nodes[replacement].Parent = parent
	}
	return replacement, nil
}

// Remove deletes a detached subtree from the arena and returns the removed
// identities.
func (t *Tree) Remove(id ID) ([]ID, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, nil
	}
	if n.Parent != "" {
		return nil, invalidTree(id, "cannot remove attached node; parent is %s", n.Parent)
	}
	removed := t.Walk(id)
	for _, r := range removed {
		delete(t.nodes, r)
	}
	if t.root == id {
		t.root = ""
	}
	return removed, nil
}

// Walk returns the identities of the subtree at id in pre-order.
func (t *Tree) Walk(id ID) []ID {
	var out []ID
	var visit func(ID)
	visit = func(id ID) {
		n, ok := t.nodes[id]
		if !ok {
			return
		}
		out = append(out, id)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(id)
	return out
}

// CopyInto deep-clones the subtree at id into foci, preserving identities.
// The copied root gets parent as its parent identity.
func (t *Tree) CopyInto(id, parent ID, foci map[ID]*Node) error {
	n, ok := t.nodes[id]
	if !ok {
		return invalidTree(id, "node does not exist")
	}
	c := n.clone()
	c.Parent = parent
	foci[id] = c
	for _, child := range n.Children {
		if err := t.CopyInto(child, id, foci); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep clone of the tree reachable from the root. Detached
// nodes are not copied.
func (t *Tree) Copy() *Tree {
	c := &Tree{root: t.root, nodes: make(map[ID]*Node, len(t.nodes)), ids: t.ids}
	if t.root != "" {
		// The root exists by construction, so copying cannot fail.
		_ = t.CopyInto(t.root, "", c.nodes)
	}
	return c
}

// Subtree returns a new tree rooted at id holding a copy of its subtree.
func (t *Tree) Subtree(id ID) (*Tree, error) {
	c := &Tree{root: id, nodes: make(map[ID]*Node), ids: t.ids}
	if err := t.CopyInto(id, "", c.nodes); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks arena consistency: every child's parent equals the node
// that lists it, arities match their kinds, and every node is reachable from
// the root.
func (t *Tree) Validate() error {
	if t.root == "" {
		return invalidTree("", "tree has no root")
	}
	if _, ok := t.nodes[t.root]; !ok {
		return invalidTree(t.root, "root does not exist")
	}
	if p := t.nodes[t.root].Parent; p != "" {
		return invalidTree(t.root, "root has parent %s", p)
	}
	reached := map[ID]bool{}
	for _, id := range t.Walk(t.root) {
		if reached[id] {
			return invalidTree(id, "node reachable twice")
		}
		reached[id] = true
		n := t.nodes[id]
		if len(n.Children) != n.Kind.Arity() {
			return invalidTree(id, "%s has %d children, want %d", n.Kind, len(n.Children), n.Kind.Arity())
		}
		for _, c := range n.Children {
			child, ok := t.nodes[c]
			if !ok {
				return invalidTree(id, "missing child %q", c)
			}
			if child.Parent != id {
				return invalidTree(c, "parent is %q, want %s", child.Parent, id)
			}
		}
	}
	for id := range t.nodes {
		if !reached[id] {
			return invalidTree(id, "node not reachable from root")
		}
	}
	return nil
}

func indexOf(ids []ID, id ID) int {
	for i, c := range ids {
		if c == id {
			return i
		}
	}
	return -1
}
