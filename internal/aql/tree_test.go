package aql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/rdf"
)

func ga(local string) rdf.Term { return rdf.IRI(rdf.GANamespace + local) }

func newTestTree() *Tree { return NewTree(NewSequenceGenerator("n")) }

// buildAuthorTree builds: (a Author) and (authorOf : a Book)
func buildAuthorTree(t *testing.T, tree *Tree) ID {
	t.Helper()
	author, err := tree.NewFeature(TypeFeature(ga("Author"), ""))
	require.NoError(t, err)
	book, err := tree.NewFeature(TypeFeature(ga("Book"), ""))
	require.NoError(t, err)
	cross, err := tree.NewCrossing(false, ga("authorOf"), "", book)
	require.NoError(t, err)
	root, err := tree.NewIntersection(author, cross)
	require.NoError(t, err)
	require.NoError(t, tree.SetRoot(root))
	return root
}

func TestTree_ConstructionSetsParents(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)

	require.NoError(t, tree.Validate())
	for _, id := range tree.Walk(root) {
		for _, c := range tree.Children(id) {
			assert.Equal(t, id, tree.Parent(c), "child %s", c)
		}
	}
	assert.Equal(t, ID(""), tree.Parent(root))
	assert.Equal(t, 4, tree.Len())
}

func TestTree_NodeTypes(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)
	children := tree.Children(root)

	author, _ := tree.Node(children[0])
	cross, _ := tree.Node(children[1])
	rootNode, _ := tree.Node(root)

	assert.Equal(t, TypeClass, author.Type())
	assert.Equal(t, TypeProperty, cross.Type())
	assert.Equal(t, TypeUnmarked, rootNode.Type())
	assert.Equal(t, "authorOf", cross.Label)
}

func TestTree_AttachTwiceFails(t *testing.T) {
	tree := newTestTree()
	leaf := tree.NewMostGeneral()
	_, err := tree.NewExclusion(leaf)
	require.NoError(t, err)

	_, err = tree.NewExclusion(leaf)
	require.Error(t, err)
	assert.True(t, IsInvalidTree(err))

	other := tree.NewMostGeneral()
	_, err = tree.NewIntersection(other, other)
	assert.True(t, IsInvalidTree(err))
}

func TestTree_ReplaceChild(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)
	oldLeft := tree.Children(root)[0]

	replacement := tree.NewMostGeneral()
	require.NoError(t, tree.ReplaceChild(root, oldLeft, replacement))
	assert.Equal(t, replacement, tree.Children(root)[0])
	assert.Equal(t, root, tree.Parent(replacement))
	assert.Equal(t, ID(""), tree.Parent(oldLeft))

	removed, err := tree.Remove(oldLeft)
	require.NoError(t, err)
	assert.Equal(t, []ID{oldLeft}, removed)
	require.NoError(t, tree.Validate())
}

func TestTree_ReplaceChild_NotADirectChild(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)
	cross := tree.Children(root)[1]
	grandchild := tree.Children(cross)[0]

	err := tree.ReplaceChild(root, grandchild, tree.NewMostGeneral())
	require.Error(t, err)
	assert.True(t, IsInvalidTree(err))
	assert.Contains(t, err.Error(), "INVALID_TREE_STRUCTURE")

	err = tree.ReplaceChild(grandchild, root, tree.NewMostGeneral())
	assert.True(t, IsInvalidTree(err))
}

func TestTree_RemoveAttachedFails(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)
	_, err := tree.Remove(tree.Children(root)[0])
	assert.True(t, IsInvalidTree(err))
}

func TestTree_CopyPreservesIdentityAndStructure(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)

	c := tree.Copy()
	require.NoError(t, c.Validate())
	assert.True(t, tree.Equal(c))
	assert.Equal(t, tree.Hash(root), c.Hash(c.Root()))
	assert.Equal(t, root, c.Root())

	// Every node reachable from the original is in the copy's map, and every
	// identity in the copy's map is reachable from the original.
	assert.ElementsMatch(t, tree.Walk(root), c.IDs())

	// Mutating the copy leaves the original untouched.
	left := c.Children(root)[0]
	require.NoError(t, c.ReplaceChild(root, left, c.NewMostGeneral()))
	assert.False(t, tree.Equal(c))
	assert.Equal(t, left, tree.Children(root)[0])
}

func TestTree_CopyInto(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)
	cross := tree.Children(root)[1]

	foci := map[ID]*Node{}
	require.NoError(t, tree.CopyInto(cross, "elsewhere", foci))
	assert.Len(t, foci, 2)
	assert.Equal(t, ID("elsewhere"), foci[cross].Parent)

	sub, err := tree.Subtree(cross)
	require.NoError(t, err)
	require.NoError(t, sub.Validate())
	assert.Equal(t, "authorOf : a Book", sub.String(sub.Root()))
}

func TestTree_EqualIgnoresIdentityAndCommutes(t *testing.T) {
	a := NewTree(NewSequenceGenerator("a"))
	b := NewTree(NewSequenceGenerator("b"))

	l1, _ := a.NewFeature(TypeFeature(ga("Author"), ""))
	r1, _ := a.NewFeature(TypeFeature(ga("Book"), ""))
	u1, _ := a.NewUnion(l1, r1)
	require.NoError(t, a.SetRoot(u1))

	r2, _ := b.NewFeature(TypeFeature(ga("Book"), ""))
	l2, _ := b.NewFeature(TypeFeature(ga("Author"), ""))
	u2, _ := b.NewUnion(r2, l2)
	require.NoError(t, b.SetRoot(u2))

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(u1), b.Hash(u2))

	c := NewTree(nil)
	l3, _ := c.NewFeature(TypeFeature(ga("Author"), ""))
	r3, _ := c.NewFeature(TypeFeature(ga("Book"), ""))
	i3, _ := c.NewIntersection(l3, r3)
	require.NoError(t, c.SetRoot(i3))
	assert.False(t, a.Equal(c), "union and intersection differ")
}

func TestTree_EqualComparesCrossingLabel(t *testing.T) {
	a := newTestTree()
	e1 := a.NewMostGeneral()
	c1, _ := a.NewCrossing(true, ga("authorOf"), "wrote", e1)
	require.NoError(t, a.SetRoot(c1))

	b := newTestTree()
	e2 := b.NewMostGeneral()
	c2, _ := b.NewCrossing(true, ga("authorOf"), "", e2)
	require.NoError(t, b.SetRoot(c2))

	assert.False(t, a.Equal(b))
}

func TestTree_ValidateDetectsDetachedNodes(t *testing.T) {
	tree := newTestTree()
	buildAuthorTree(t, tree)
	tree.NewMostGeneral()

	err := tree.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestTree_Strings(t *testing.T) {
	tree := newTestTree()
	son := tree.NewMostGeneral()
	fwd, _ := tree.NewCrossing(true, ga("authorOf"), "", son)
	excluded, _ := tree.NewFeature(TypeFeature(ga("Book"), ""))
	not, _ := tree.NewExclusion(excluded)
	inter, _ := tree.NewIntersection(fwd, not)
	named, _ := tree.NewFeature(ResourceFeature(rdf.IRI("http://example.org/vondel"), "Vondel"))
	root, _ := tree.NewUnion(inter, named)
	require.NoError(t, tree.SetRoot(root))

	assert.Equal(t, "(authorOf of ? and not ( a Book )) or Vondel", tree.String(root))
	assert.Equal(t, "authorOf", tree.FirstResourceLabel(root))
	assert.Equal(t, "the authorOf of anything and not a Book or Vondel", tree.Describe(root))
	assert.Equal(t, []rdf.Term{rdf.IRI("http://example.org/vondel"), ga("Book"), ga("authorOf")}, tree.Resources(root))
}

func TestTree_DescribeSkipsWildcardOperand(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)
	assert.Equal(t, "a Author and things with authorOf a Book", tree.Describe(root))

	wild := tree.NewMostGeneral()
	book, _ := tree.NewFeature(TypeFeature(ga("Book"), ""))
	inter, _ := tree.NewIntersection(wild, book)
	assert.Equal(t, "a Book", tree.Describe(inter))
	assert.Equal(t, "", tree.Describe("absent"))
}
