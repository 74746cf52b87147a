package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/model"
)

func TestNewHasRootAtLevelZero(t *testing.T) {
	tree := New()

	root := tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, model.RootEntityName, root.Name)
	assert.Equal(t, 0, root.Level)
	assert.Equal(t, 1, tree.Len())
	require.NoError(t, tree.Validate())
}

func TestAttachPropagatesLevels(t *testing.T) {
	tree := New()
	tree.Insert("Natural Resources Agency")
	tree.Insert("Department of Water Resources")

	require.NoError(t, tree.Attach("Natural Resources Agency", model.RootEntityName))
	require.NoError(t, tree.Attach("Department of Water Resources", "Natural Resources Agency"))

	assert.Equal(t, 1, tree.Node("Natural Resources Agency").Level)
	assert.Equal(t, 2, tree.Node("Department of Water Resources").Level)
	require.NoError(t, tree.Validate())
}

func TestAttachUpdatesSubordinateCounts(t *testing.T) {
	tree := New()
	tree.Insert("Agency")
	tree.Insert("Department")
	tree.Insert("Division")

	require.NoError(t, tree.Attach("Agency", model.RootEntityName))
	require.NoError(t, tree.Attach("Department", "Agency"))
	require.NoError(t, tree.Attach("Division", "Department"))

	// Subordinate counts are transitive, not direct children only.
	assert.Equal(t, 0, tree.Node("Division").SubordinateCount)
	assert.Equal(t, 1, tree.Node("Department").SubordinateCount)
	assert.Equal(t, 2, tree.Node("Agency").SubordinateCount)
	assert.Equal(t, 3, tree.Root().SubordinateCount)
}

func TestReattachMovesSubtree(t *testing.T) {
	tree := New()
	tree.Insert("Agency A")
	tree.Insert("Agency B")
	tree.Insert("Department")
	tree.Insert("Division")

	require.NoError(t, tree.Attach("Agency A", model.RootEntityName))
	require.NoError(t, tree.Attach("Agency B", model.RootEntityName))
	require.NoError(t, tree.Attach("Department", "Agency A"))
	require.NoError(t, tree.Attach("Division", "Department"))

	require.NoError(t, tree.Attach("Department", "Agency B"))

	assert.Equal(t, 0, tree.Node("Agency A").SubordinateCount)
	assert.Equal(t, 2, tree.Node("Agency B").SubordinateCount)
	assert.Equal(t, 2, tree.Node("Department").Level)
	assert.Equal(t, 3, tree.Node("Division").Level)
	require.NoError(t, tree.Validate())
}

func TestAttachRejectsCycles(t *testing.T) {
	tree := New()
	tree.Insert("A")
	tree.Insert("B")
	tree.Insert("C")

	require.NoError(t, tree.Attach("A", model.RootEntityName))
	require.NoError(t, tree.Attach("B", "A"))
	require.NoError(t, tree.Attach("C", "B"))

	// A under its own grandchild closes a cycle.
	err := tree.Attach("A", "C")
	require.ErrorIs(t, err, common.ErrCycle)

	// The rejected attach left nothing half-moved.
	assert.Equal(t, model.RootEntityName, tree.Node("A").Parent)
	assert.Equal(t, 1, tree.Node("A").Level)
	require.NoError(t, tree.Validate())
}

func TestAttachRejectsSelfParent(t *testing.T) {
	tree := New()
	tree.Insert("A")
	assert.ErrorIs(t, tree.Attach("A", "A"), common.ErrCycle)
}

func TestAttachRejectsRootReattach(t *testing.T) {
	tree := New()
	tree.Insert("A")
	require.NoError(t, tree.Attach("A", model.RootEntityName))
	assert.ErrorIs(t, tree.Attach(model.RootEntityName, "A"), common.ErrCycle)
}

func TestAttachUnknownNodes(t *testing.T) {
	tree := New()
	tree.Insert("A")
	assert.ErrorIs(t, tree.Attach("A", "Nowhere"), common.ErrNotFound)
	assert.ErrorIs(t, tree.Attach("Nowhere", model.RootEntityName), common.ErrNotFound)
}

func TestBuildFromRegistry(t *testing.T) {
	entities := []*model.CanonicalEntity{
		{Name: "Department of Water Resources", ParentAgency: "Natural Resources Agency"},
		{Name: "Natural Resources Agency", ParentAgency: model.RootEntityName},
		{Name: "Orphan Department", ParentAgency: "Unknown Agency"},
	}

	tree := Build(entities)
	require.NoError(t, tree.Validate())

	assert.Equal(t, 1, tree.Node("Natural Resources Agency").Level)
	assert.Equal(t, 2, tree.Node("Department of Water Resources").Level)
	// Unknown parents fall back to the root.
	assert.Equal(t, model.RootEntityName, tree.Node("Orphan Department").Parent)
	assert.Equal(t, 1, tree.Node("Orphan Department").Level)
}

func TestBuildCyclicParentsFallBackToRoot(t *testing.T) {
	entities := []*model.CanonicalEntity{
		{Name: "A", ParentAgency: "B"},
		{Name: "B", ParentAgency: "A"},
	}

	tree := Build(entities)
	require.NoError(t, tree.Validate())

	// One leg of the cycle is kept; the offender hangs off the root.
	assert.Equal(t, "B", tree.Node("A").Parent)
	assert.Equal(t, model.RootEntityName, tree.Node("B").Parent)
}

func TestBuildIsDeterministic(t *testing.T) {
	entities := []*model.CanonicalEntity{
		{Name: "B", ParentAgency: "A"},
		{Name: "A", ParentAgency: model.RootEntityName},
		{Name: "C", ParentAgency: "B"},
	}
	reversed := []*model.CanonicalEntity{entities[2], entities[1], entities[0]}

	a := Build(entities)
	b := Build(reversed)

	a.Each(func(n *Node) {
		other := b.Node(n.Name)
		require.NotNil(t, other)
		assert.Equal(t, n.Parent, other.Parent, "node %s", n.Name)
		assert.Equal(t, n.Level, other.Level, "node %s", n.Name)
		assert.Equal(t, n.SubordinateCount, other.SubordinateCount, "node %s", n.Name)
	})
}

func TestValidateDetectsCorruptedLevel(t *testing.T) {
	tree := New()
	tree.Insert("A")
	require.NoError(t, tree.Attach("A", model.RootEntityName))

	tree.Node("A").Level = 5
	assert.ErrorIs(t, tree.Validate(), common.ErrConsistency)
}

func TestWalkVisitsSubtreeInOrder(t *testing.T) {
	tree := New()
	tree.Insert("A")
	tree.Insert("B")
	tree.Insert("C")
	require.NoError(t, tree.Attach("A", model.RootEntityName))
	require.NoError(t, tree.Attach("B", "A"))
	require.NoError(t, tree.Attach("C", "A"))

	var visited []string
	tree.Walk("A", func(n *Node) { visited = append(visited, n.Name) })
	assert.Equal(t, []string{"A", "B", "C"}, visited)
}
