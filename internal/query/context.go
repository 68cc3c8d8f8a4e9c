package query

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/feature_export/internal/schema"
	"github.com/atlekbai/feature_export/internal/statement"
)

// LogicalOperator is the boolean operator of the predicate group a path is
// compiled under.
type LogicalOperator int

const (
	And LogicalOperator = iota
	Or
)

func (o LogicalOperator) String() string {
	if o == Or {
		return "OR"
	}
	return "AND"
}

// QueryContext is the compilation state of one query. It is created per
// compilation and must not be shared between goroutines.
type QueryContext struct {
	featureType  *schema.Type
	aliases      *statement.AliasScope
	buildContext *BuildContext

	sel        *statement.Select
	fromTable  *statement.Table
	toTable    *statement.Table
	predicates []sq.Sqlizer

	targetColumn    statement.Column
	hasTargetColumn bool
}

// NewQueryContext starts a compilation anchored at the table of featureType.
func NewQueryContext(featureType *schema.Type) *QueryContext {
	aliases := statement.NewAliasScope()
	from := aliases.Table(featureType.Schema, featureType.Table)

	sel := statement.NewSelect()
	sel.SetFrom(from)

	return &QueryContext{
		featureType:  featureType,
		aliases:      aliases,
		buildContext: NewBuildContext(schema.NewNode(featureType), from, make(map[string]*statement.Table)),
		sel:          sel,
		fromTable:    from,
		toTable:      from,
	}
}

func (c *QueryContext) FeatureType() *schema.Type       { return c.featureType }
func (c *QueryContext) Aliases() *statement.AliasScope  { return c.aliases }
func (c *QueryContext) BuildContext() *BuildContext     { return c.buildContext }
func (c *QueryContext) Select() *statement.Select       { return c.sel }
func (c *QueryContext) SetSelect(sel *statement.Select) { c.sel = sel }

func (c *QueryContext) FromTable() *statement.Table     { return c.fromTable }
func (c *QueryContext) SetFromTable(t *statement.Table) { c.fromTable = t }

// ToTable is the rightmost table reached so far; the next join starts there.
func (c *QueryContext) ToTable() *statement.Table     { return c.toTable }
func (c *QueryContext) SetToTable(t *statement.Table) { c.toTable = t }

// TargetColumn returns the column projected by a scalar property query.
func (c *QueryContext) TargetColumn() (statement.Column, bool) {
	return c.targetColumn, c.hasTargetColumn
}

func (c *QueryContext) SetTargetColumn(col statement.Column) {
	c.targetColumn = col
	c.hasTargetColumn = true
}

func (c *QueryContext) HasPredicates() bool { return len(c.predicates) > 0 }

// AddPredicate buffers a predicate without attaching it to the select.
func (c *QueryContext) AddPredicate(pred sq.Sqlizer) {
	c.predicates = append(c.predicates, pred)
}

func (c *QueryContext) AddPredicates(preds ...sq.Sqlizer) {
	for _, p := range preds {
		c.AddPredicate(p)
	}
}

// Predicates returns the buffered predicates in insertion order.
func (c *QueryContext) Predicates() []sq.Sqlizer { return c.predicates }

// UnsetPredicates discards the buffer without touching the select.
func (c *QueryContext) UnsetPredicates() { c.predicates = nil }

// ApplyPredicates moves the buffered predicates into the WHERE clause of the
// select, in insertion order, and clears the buffer.
func (c *QueryContext) ApplyPredicates() {
	for _, p := range c.predicates {
		c.sel.AddSelection(p)
	}
	c.predicates = nil
}

// takePredicates empties the buffer and returns what it held.
func (c *QueryContext) takePredicates() []sq.Sqlizer {
	preds := c.predicates
	c.predicates = nil
	return preds
}

// RequiresDistinct reports whether any join in the compiled query can
// multiply the anchor row.
func (c *QueryContext) RequiresDistinct() bool {
	return c.buildContext.RequiresDistinct()
}
