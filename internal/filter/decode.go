package filter

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Query is a stored export query: the feature type to export and an
// optional filter over its properties.
type Query struct {
	FeatureType string
	Filter      Condition
	Limit       int
}

type queryDoc struct {
	FeatureType string        `yaml:"featureType"`
	Limit       int           `yaml:"limit"`
	Filter      *conditionDoc `yaml:"filter"`
}

type conditionDoc struct {
	And    *[]conditionDoc `yaml:"and"`
	Or     *[]conditionDoc `yaml:"or"`
	Not    *conditionDoc   `yaml:"not"`
	Path   string          `yaml:"path"`
	Op     string          `yaml:"op"`
	Value  any             `yaml:"value"`
	Like   *string         `yaml:"like"`
	ILike  *string         `yaml:"ilike"`
	IsNull *bool           `yaml:"isNull"`
	In     []any           `yaml:"in"`
}

var docOps = map[string]Op{
	"eq": OpEq, "neq": OpNeq, "gt": OpGt, "gte": OpGte, "lt": OpLt, "lte": OpLte,
	"=": OpEq, "!=": OpNeq, ">": OpGt, ">=": OpGte, "<": OpLt, "<=": OpLte,
}

// Decode reads a YAML query document.
func Decode(r io.Reader) (*Query, error) {
	var doc queryDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	if doc.FeatureType == "" {
		return nil, fmt.Errorf("decode query: featureType is required")
	}

	q := &Query{FeatureType: doc.FeatureType, Limit: doc.Limit}
	if doc.Filter != nil {
		cond, err := doc.Filter.condition()
		if err != nil {
			return nil, fmt.Errorf("decode query filter: %w", err)
		}
		q.Filter = cond
	}
	return q, nil
}

func (d *conditionDoc) condition() (Condition, error) {
	switch {
	case d.And != nil:
		ops, err := operands(*d.And)
		if err != nil {
			return nil, err
		}
		return And{Operands: ops}, nil
	case d.Or != nil:
		ops, err := operands(*d.Or)
		if err != nil {
			return nil, err
		}
		return Or{Operands: ops}, nil
	case d.Not != nil:
		inner, err := d.Not.condition()
		if err != nil {
			return nil, err
		}
		return Not{Operand: inner}, nil
	}

	if d.Path == "" {
		return nil, fmt.Errorf("condition requires and, or, not or path")
	}

	switch {
	case d.Like != nil:
		return Like{Path: d.Path, Pattern: *d.Like}, nil
	case d.ILike != nil:
		return Like{Path: d.Path, Pattern: *d.ILike, CaseInsensitive: true}, nil
	case d.IsNull != nil:
		return IsNull{Path: d.Path, Null: *d.IsNull}, nil
	case d.In != nil:
		return In{Path: d.Path, Values: d.In}, nil
	}

	op, ok := docOps[d.Op]
	if !ok {
		return nil, ErrUnknownOperator.New(d.Op)
	}
	return Comparison{Path: d.Path, Op: op, Value: d.Value}, nil
}

func operands(docs []conditionDoc) ([]Condition, error) {
	conds := make([]Condition, 0, len(docs))
	for i := range docs {
		c, err := docs[i].condition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}
