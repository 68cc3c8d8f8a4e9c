package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlekbai/feature_export/internal/schema"
)

// testMapping is a reduced CityGML building model:
//
//	CityObject (abstract)  <- AbstractBuilding (abstract) <- Building, BuildingPart
//	CityObject             <- CityObjectGroup
//	Address (complex type)
func testMapping(t *testing.T) *schema.Mapping {
	t.Helper()

	cityObjectJoin := func() *schema.SimpleJoin {
		return &schema.SimpleJoin{Schema: "citydb", Table: "cityobject", FromColumn: "id", ToColumn: "id", ToRole: schema.RoleParent}
	}

	cityObject := &schema.Type{
		Name: "CityObject", Feature: true, Abstract: true, Schema: "citydb", Table: "cityobject",
		Properties: []*schema.Property{
			{Name: "gmlId", Kind: schema.ElementSimpleAttribute, Column: "gmlid", ValueType: schema.ValueString},
		},
	}
	address := &schema.Type{
		Name: "Address", Schema: "citydb", Table: "address",
		Properties: []*schema.Property{
			{Name: "street", Kind: schema.ElementSimpleAttribute, Column: "street", ValueType: schema.ValueString},
			{Name: "city", Kind: schema.ElementSimpleAttribute, Column: "city", ValueType: schema.ValueString},
		},
	}
	abstractBuilding := &schema.Type{
		Name: "AbstractBuilding", ObjectClassID: 24, Feature: true, Abstract: true,
		Schema: "citydb", Table: "building", ExtendsName: "CityObject",
		Properties: []*schema.Property{
			{Name: "measuredHeight", Kind: schema.ElementSimpleAttribute, Column: "measured_height", ValueType: schema.ValueDouble},
			{Name: "storeysAboveGround", Kind: schema.ElementSimpleAttribute, Column: "storeys_above_ground", ValueType: schema.ValueInteger},
			{Name: "name", Kind: schema.ElementSimpleAttribute, Column: "name", ValueType: schema.ValueString, Join: cityObjectJoin()},
			{Name: "description", Kind: schema.ElementSimpleAttribute, Column: "description", ValueType: schema.ValueString, Join: cityObjectJoin()},
			{Name: "lod2MultiSurface", Kind: schema.ElementGeometryProperty, Column: "lod2_multi_surface_id", ValueType: schema.ValueInteger},
			{
				Name: "consistsOfBuildingPart", Kind: schema.ElementFeatureProperty, TargetName: "BuildingPart",
				Join: &schema.SimpleJoin{Schema: "citydb", Table: "building", FromColumn: "id", ToColumn: "building_parent_id", ToRole: schema.RoleChild},
			},
			{
				Name: "address", Kind: schema.ElementComplexProperty, TargetName: "Address",
				Join: &schema.JoinTable{
					Schema: "citydb", Table: "address_to_building",
					Join:        &schema.SimpleJoin{Schema: "citydb", Table: "address_to_building", FromColumn: "id", ToColumn: "building_id", ToRole: schema.RoleChild},
					InverseJoin: &schema.SimpleJoin{Schema: "citydb", Table: "address", FromColumn: "address_id", ToColumn: "id", ToRole: schema.RoleParent},
				},
			},
			{
				Name: "genericString", Kind: schema.ElementSimpleAttribute, Column: "strval", ValueType: schema.ValueString,
				Join: &schema.SimpleJoin{Schema: "citydb", Table: "cityobject_genericattrib", FromColumn: "id", ToColumn: "cityobject_id", ToRole: schema.RoleChild},
			},
		},
	}
	building := &schema.Type{Name: "Building", ObjectClassID: 26, Feature: true, ExtendsName: "AbstractBuilding"}
	buildingPart := &schema.Type{
		Name: "BuildingPart", ObjectClassID: 25, Feature: true, ExtendsName: "AbstractBuilding",
		Properties: []*schema.Property{
			{
				Name: "parent", Kind: schema.ElementFeatureProperty, TargetName: "Building",
				Join: &schema.SimpleJoin{Schema: "citydb", Table: "building", FromColumn: "building_parent_id", ToColumn: "id", ToRole: schema.RoleParent},
			},
		},
	}
	group := &schema.Type{
		Name: "CityObjectGroup", ObjectClassID: 23, Feature: true,
		Schema: "citydb", Table: "cityobjectgroup", ExtendsName: "CityObject",
		Properties: []*schema.Property{
			{Name: "class", Kind: schema.ElementSimpleAttribute, Column: "class", ValueType: schema.ValueString},
			{
				Name: "groupMember", Kind: schema.ElementFeatureProperty, TargetName: "CityObject",
				Join: &schema.JoinTable{
					Schema: "citydb", Table: "group_to_cityobject",
					Join:        &schema.SimpleJoin{Schema: "citydb", Table: "group_to_cityobject", FromColumn: "id", ToColumn: "cityobjectgroup_id", ToRole: schema.RoleChild},
					InverseJoin: &schema.SimpleJoin{Schema: "citydb", Table: "cityobject", FromColumn: "cityobject_id", ToColumn: "id", ToRole: schema.RoleParent},
				},
			},
		},
	}

	m, err := schema.NewMapping(cityObject, address, abstractBuilding, building, buildingPart, group)
	require.NoError(t, err)
	return m
}

func resolvePath(t *testing.T, m *schema.Mapping, typeName, expr string) *schema.Path {
	t.Helper()
	path, err := m.ResolvePath(m.Get(typeName), expr)
	require.NoError(t, err)
	return path
}
