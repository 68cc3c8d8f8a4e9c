package schema

import "strings"

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// PathElementType classifies a step of a schema path.
type PathElementType int

const (
	ElementFeatureType PathElementType = iota
	ElementComplexType
	ElementSimpleAttribute
	ElementGeometryProperty
	ElementFeatureProperty
	ElementComplexProperty
)

func (t PathElementType) String() string {
	switch t {
	case ElementFeatureType:
		return "feature type"
	case ElementComplexType:
		return "complex type"
	case ElementSimpleAttribute:
		return "simple attribute"
	case ElementGeometryProperty:
		return "geometry property"
	case ElementFeatureProperty:
		return "feature property"
	case ElementComplexProperty:
		return "complex property"
	default:
		return "unknown"
	}
}

// IsTypeProperty reports whether the element is a property whose value is
// itself a typed structure with properties of its own.
func (t PathElementType) IsTypeProperty() bool {
	return t == ElementFeatureProperty || t == ElementComplexProperty
}

// PathElement is anything a schema path can step through.
type PathElement interface {
	ElementName() string
	ElementType() PathElementType
	// ElementJoin returns the join needed to reach the element, or nil.
	ElementJoin() Join
}

type ValueType string

const (
	ValueString    ValueType = "string"
	ValueInteger   ValueType = "integer"
	ValueDouble    ValueType = "double"
	ValueBoolean   ValueType = "boolean"
	ValueDate      ValueType = "date"
	ValueTimestamp ValueType = "timestamp"
)

// IsNumeric returns true if the value type requires numeric conversion of literals.
func (v ValueType) IsNumeric() bool {
	return v == ValueInteger || v == ValueDouble
}

type Property struct {
	Name      string
	Kind      PathElementType
	Column    string
	ValueType ValueType
	// TargetName is the declared value type of a type property, Target its resolved form.
	TargetName string
	Target     *Type
	Join       Join
	// Declarer is the type that declares the property; its table holds Column
	// unless Join leads elsewhere.
	Declarer *Type
}

func (p *Property) ElementName() string          { return p.Name }
func (p *Property) ElementType() PathElementType { return p.Kind }

func (p *Property) ElementJoin() Join { return p.Join }

type Type struct {
	Name          string
	ObjectClassID int
	Feature       bool
	Abstract      bool
	Schema        string
	Table         string
	ExtendsName   string
	Extends       *Type
	Properties    []*Property
}

func (t *Type) ElementName() string { return t.Name }

func (t *Type) ElementType() PathElementType {
	if t.Feature {
		return ElementFeatureType
	}
	return ElementComplexType
}

func (t *Type) ElementJoin() Join { return nil }

// Property looks up a property by name, walking up the supertype chain.
func (t *Type) Property(name string) *Property {
	for cur := t; cur != nil; cur = cur.Extends {
		for _, p := range cur.Properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// IsSubtypeOf reports whether t equals other or derives from it.
func (t *Type) IsSubtypeOf(other *Type) bool {
	for cur := t; cur != nil; cur = cur.Extends {
		if cur == other {
			return true
		}
	}
	return false
}
