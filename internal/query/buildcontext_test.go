package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/feature_export/internal/schema"
	"github.com/atlekbai/feature_export/internal/statement"
)

// bind adds the property step of path and its type step below root, the way
// the builder does when a path is compiled for the first time.
func bind(root *BuildContext, aliases *statement.AliasScope, path *schema.Path, logical LogicalOperator) *BuildContext {
	prop := path.Root().Child()
	table := aliases.Table("citydb", prop.Element().ElementName())
	sub := root.AddSubContext(prop, table, map[string]*statement.Table{}, logical)
	if typeNode := prop.Child(); typeNode != nil {
		sub.AddSubContext(typeNode, table, map[string]*statement.Table{}, logical)
	}
	return sub
}

func newRoot(t *testing.T, m *schema.Mapping, typeName string) (*BuildContext, *statement.AliasScope) {
	t.Helper()
	aliases := statement.NewAliasScope()
	ft := m.Get(typeName)
	require.NotNil(t, ft)
	return NewBuildContext(schema.NewNode(ft), aliases.Table(ft.Schema, ft.Table), map[string]*statement.Table{}), aliases
}

func TestReuseModePermits(t *testing.T) {
	assert.True(t, Reusable.Permits(And))
	assert.True(t, Reusable.Permits(Or))
	assert.False(t, Blocked.Permits(And))
	assert.False(t, Blocked.Permits(Or))
	assert.False(t, RequiresOr.Permits(And))
	assert.True(t, RequiresOr.Permits(Or))
}

func TestExpandingJoinUnderAndIsNeverReused(t *testing.T) {
	m := testMapping(t)
	root, aliases := newRoot(t, m, "Building")

	first := resolvePath(t, m, "Building", "consistsOfBuildingPart/measuredHeight")
	sub := bind(root, aliases, first, And)
	assert.Equal(t, Blocked, sub.ReuseMode())

	again := resolvePath(t, m, "Building", "consistsOfBuildingPart/storeysAboveGround")
	assert.Nil(t, root.FindSubContext(again.Root().Child(), And))
	assert.Nil(t, root.FindSubContext(again.Root().Child(), Or))
}

func TestExpandingJoinUnderOrIsReusedOnlyUnderOr(t *testing.T) {
	m := testMapping(t)
	root, aliases := newRoot(t, m, "Building")

	first := resolvePath(t, m, "Building", "consistsOfBuildingPart/measuredHeight")
	sub := bind(root, aliases, first, Or)
	assert.Equal(t, RequiresOr, sub.ReuseMode())

	again := resolvePath(t, m, "Building", "consistsOfBuildingPart/storeysAboveGround")
	assert.Same(t, sub, root.FindSubContext(again.Root().Child(), Or))
	assert.Nil(t, root.FindSubContext(again.Root().Child(), And))
}

func TestOneToOneJoinIsReusedUnderAnyOperator(t *testing.T) {
	m := testMapping(t)
	root, aliases := newRoot(t, m, "BuildingPart")

	first := resolvePath(t, m, "BuildingPart", "parent/measuredHeight")
	sub := bind(root, aliases, first, And)
	assert.Equal(t, Reusable, sub.ReuseMode())

	again := resolvePath(t, m, "BuildingPart", "parent/storeysAboveGround")
	assert.Same(t, sub, root.FindSubContext(again.Root().Child(), And))
	assert.Same(t, sub, root.FindSubContext(again.Root().Child(), Or))
}

func TestDifferentSubtypesDoNotShareBinding(t *testing.T) {
	m := testMapping(t)
	root, aliases := newRoot(t, m, "CityObjectGroup")

	toBuilding := resolvePath(t, m, "CityObjectGroup", "groupMember/Building/measuredHeight")
	sub := bind(root, aliases, toBuilding, Or)

	toPart := resolvePath(t, m, "CityObjectGroup", "groupMember/BuildingPart/measuredHeight")
	assert.Nil(t, root.FindSubContext(toPart.Root().Child(), Or))

	sameType := resolvePath(t, m, "CityObjectGroup", "groupMember/Building/storeysAboveGround")
	assert.Same(t, sub, root.FindSubContext(sameType.Root().Child(), Or))
}

func TestPropertyWithoutChildIsNotReused(t *testing.T) {
	m := testMapping(t)
	root, aliases := newRoot(t, m, "BuildingPart")

	bare := resolvePath(t, m, "BuildingPart", "parent")
	bind(root, aliases, bare, And)

	again := resolvePath(t, m, "BuildingPart", "parent")
	assert.Nil(t, root.FindSubContext(again.Root().Child(), And))
}

func TestFindSubContextNilNode(t *testing.T) {
	m := testMapping(t)
	root, aliases := newRoot(t, m, "Building")
	bind(root, aliases, resolvePath(t, m, "Building", "consistsOfBuildingPart/measuredHeight"), Or)

	assert.Nil(t, root.FindSubContext(nil, Or))
}

func TestRequiresDistinct(t *testing.T) {
	m := testMapping(t)

	t.Run("empty tree", func(t *testing.T) {
		root, _ := newRoot(t, m, "Building")
		assert.False(t, root.RequiresDistinct())
	})

	t.Run("one-to-one joins only", func(t *testing.T) {
		root, aliases := newRoot(t, m, "BuildingPart")
		bind(root, aliases, resolvePath(t, m, "BuildingPart", "parent/measuredHeight"), And)
		assert.False(t, root.RequiresDistinct())
	})

	t.Run("expanding join after a one-to-one sibling", func(t *testing.T) {
		root, aliases := newRoot(t, m, "BuildingPart")
		bind(root, aliases, resolvePath(t, m, "BuildingPart", "parent/measuredHeight"), And)
		bind(root, aliases, resolvePath(t, m, "BuildingPart", "consistsOfBuildingPart/measuredHeight"), Or)
		assert.True(t, root.RequiresDistinct())
	})

	t.Run("expanding join below a one-to-one join", func(t *testing.T) {
		root, aliases := newRoot(t, m, "BuildingPart")
		path := resolvePath(t, m, "BuildingPart", "parent/consistsOfBuildingPart/measuredHeight")

		parent := path.Root().Child()
		building := parent.Child()
		parts := building.Child()

		sub := root.AddSubContext(parent, aliases.Table("citydb", "building"), map[string]*statement.Table{}, And)
		typed := sub.AddSubContext(building, sub.Table(), map[string]*statement.Table{}, And)
		typed.AddSubContext(parts, aliases.Table("citydb", "building"), map[string]*statement.Table{}, And)

		assert.Equal(t, Reusable, sub.ReuseMode())
		assert.True(t, root.RequiresDistinct())
	})
}
