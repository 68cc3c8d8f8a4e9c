package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type mappingDoc struct {
	Types []typeDoc `yaml:"types"`
}

type typeDoc struct {
	Name          string        `yaml:"name"`
	ObjectClassID int           `yaml:"objectClassId"`
	Feature       bool          `yaml:"feature"`
	Abstract      bool          `yaml:"abstract"`
	Schema        string        `yaml:"schema"`
	Table         string        `yaml:"table"`
	Extends       string        `yaml:"extends"`
	Properties    []propertyDoc `yaml:"properties"`
}

type propertyDoc struct {
	Name      string        `yaml:"name"`
	Kind      string        `yaml:"kind"`
	Column    string        `yaml:"column"`
	ValueType string        `yaml:"valueType"`
	Target    string        `yaml:"target"`
	Join      *joinDoc      `yaml:"join"`
	JoinTable *joinTableDoc `yaml:"joinTable"`
}

type joinDoc struct {
	Schema     string `yaml:"schema"`
	Table      string `yaml:"table"`
	FromColumn string `yaml:"fromColumn"`
	ToColumn   string `yaml:"toColumn"`
	ToRole     string `yaml:"toRole"`
}

type joinTableDoc struct {
	Schema      string  `yaml:"schema"`
	Table       string  `yaml:"table"`
	Join        joinDoc `yaml:"join"`
	InverseJoin joinDoc `yaml:"inverseJoin"`
}

var propertyKinds = map[string]PathElementType{
	"simple":   ElementSimpleAttribute,
	"geometry": ElementGeometryProperty,
	"feature":  ElementFeatureProperty,
	"complex":  ElementComplexProperty,
}

// LoadMapping reads a YAML schema mapping document.
func LoadMapping(r io.Reader) (*Mapping, error) {
	var doc mappingDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}

	types := make([]*Type, 0, len(doc.Types))
	for _, td := range doc.Types {
		t := &Type{
			Name:          td.Name,
			ObjectClassID: td.ObjectClassID,
			Feature:       td.Feature,
			Abstract:      td.Abstract,
			Schema:        td.Schema,
			Table:         td.Table,
			ExtendsName:   td.Extends,
		}
		for _, pd := range td.Properties {
			p, err := pd.property(td.Schema)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", td.Name, err)
			}
			t.Properties = append(t.Properties, p)
		}
		types = append(types, t)
	}

	return NewMapping(types...)
}

func (pd propertyDoc) property(schema string) (*Property, error) {
	kind, ok := propertyKinds[pd.Kind]
	if !ok {
		return nil, fmt.Errorf("property %q: unknown kind %q", pd.Name, pd.Kind)
	}

	p := &Property{
		Name:       pd.Name,
		Kind:       kind,
		Column:     pd.Column,
		ValueType:  ValueType(pd.ValueType),
		TargetName: pd.Target,
	}
	if p.ValueType == "" {
		p.ValueType = ValueString
	}

	switch {
	case pd.Join != nil && pd.JoinTable != nil:
		return nil, fmt.Errorf("property %q: join and joinTable are mutually exclusive", pd.Name)
	case pd.Join != nil:
		j, err := pd.Join.simpleJoin(schema)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", pd.Name, err)
		}
		p.Join = j
	case pd.JoinTable != nil:
		jt, err := pd.JoinTable.joinTable(schema)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", pd.Name, err)
		}
		p.Join = jt
	}

	if kind.IsTypeProperty() && p.TargetName == "" {
		return nil, fmt.Errorf("property %q: %s requires a target type", pd.Name, kind)
	}
	if !kind.IsTypeProperty() && p.Column == "" {
		return nil, fmt.Errorf("property %q: %s requires a column", pd.Name, kind)
	}
	return p, nil
}

func (jd joinDoc) simpleJoin(schema string) (*SimpleJoin, error) {
	if jd.Table == "" || jd.FromColumn == "" || jd.ToColumn == "" {
		return nil, fmt.Errorf("join requires table, fromColumn and toColumn")
	}

	j := &SimpleJoin{
		Schema:     jd.Schema,
		Table:      jd.Table,
		FromColumn: jd.FromColumn,
		ToColumn:   jd.ToColumn,
	}
	if j.Schema == "" {
		j.Schema = schema
	}

	switch jd.ToRole {
	case "", "parent":
		j.ToRole = RoleParent
	case "child":
		j.ToRole = RoleChild
	default:
		return nil, fmt.Errorf("unknown join role %q", jd.ToRole)
	}
	return j, nil
}

func (jtd joinTableDoc) joinTable(schema string) (*JoinTable, error) {
	if jtd.Table == "" {
		return nil, fmt.Errorf("joinTable requires table")
	}
	if jtd.Schema == "" {
		jtd.Schema = schema
	}

	// Both legs are described relative to the bridge table.
	if jtd.Join.Table == "" {
		jtd.Join.Table = jtd.Table
	}
	join, err := jtd.Join.simpleJoin(jtd.Schema)
	if err != nil {
		return nil, fmt.Errorf("joinTable join: %w", err)
	}
	inverse, err := jtd.InverseJoin.simpleJoin(jtd.Schema)
	if err != nil {
		return nil, fmt.Errorf("joinTable inverseJoin: %w", err)
	}

	return &JoinTable{
		Schema:      jtd.Schema,
		Table:       jtd.Table,
		Join:        join,
		InverseJoin: inverse,
	}, nil
}
