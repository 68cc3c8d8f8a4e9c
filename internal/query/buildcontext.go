package query

import (
	"github.com/atlekbai/feature_export/internal/schema"
	"github.com/atlekbai/feature_export/internal/statement"
)

// ReuseMode decides whether a bound path node may serve a later occurrence of
// the same node.
type ReuseMode int

const (
	// Reusable bindings are shared under any operator.
	Reusable ReuseMode = iota
	// Blocked bindings were created under AND through a join that expands
	// cardinality and are never shared.
	Blocked
	// RequiresOr bindings were created under OR through a join that expands
	// cardinality and are shared only with other OR operands.
	RequiresOr
)

func (m ReuseMode) String() string {
	switch m {
	case Blocked:
		return "blocked"
	case RequiresOr:
		return "requires-or"
	default:
		return "reusable"
	}
}

// Permits reports whether a binding in mode m may be reused under logical.
func (m ReuseMode) Permits(logical LogicalOperator) bool {
	switch m {
	case Blocked:
		return false
	case RequiresOr:
		return logical == Or
	default:
		return true
	}
}

func reuseModeFor(node *schema.Node, logical LogicalOperator) ReuseMode {
	join := node.Element().ElementJoin()
	if join == nil || !schema.ExpandsCardinality(join) {
		return Reusable
	}
	if logical == And {
		return Blocked
	}
	return RequiresOr
}

// BuildContext binds one occurrence of a schema path node to the table it was
// compiled onto. Children mirror the deeper path steps compiled below it.
type BuildContext struct {
	node         *schema.Node
	table        *statement.Table
	tableContext map[string]*statement.Table
	reuseMode    ReuseMode
	children     []*BuildContext
}

func NewBuildContext(node *schema.Node, table *statement.Table, tableContext map[string]*statement.Table) *BuildContext {
	return &BuildContext{
		node:         node,
		table:        table,
		tableContext: tableContext,
	}
}

func (b *BuildContext) Node() *schema.Node      { return b.node }
func (b *BuildContext) Table() *statement.Table { return b.table }
func (b *BuildContext) ReuseMode() ReuseMode    { return b.reuseMode }

// TableContext maps join keys to tables already joined from this context's
// table through joins that do not expand cardinality.
func (b *BuildContext) TableContext() map[string]*statement.Table { return b.tableContext }

func (b *BuildContext) HasSubContexts() bool { return len(b.children) > 0 }

func (b *BuildContext) SubContexts() []*BuildContext { return b.children }

// AddSubContext records that node was compiled onto table below b under the
// given operator, and returns the new context.
func (b *BuildContext) AddSubContext(node *schema.Node, table *statement.Table, tableContext map[string]*statement.Table, logical LogicalOperator) *BuildContext {
	sub := NewBuildContext(node, table, tableContext)
	sub.reuseMode = reuseModeFor(node, logical)
	b.children = append(b.children, sub)
	return sub
}

// FindSubContext returns the first child binding that may serve node under
// logical, or nil. For type properties the remaining child path of node must
// resolve inside the candidate as well, so differently shaped paths never
// share a binding.
func (b *BuildContext) FindSubContext(node *schema.Node, logical LogicalOperator) *BuildContext {
	if node == nil {
		return nil
	}

	for _, child := range b.children {
		if !child.reuseMode.Permits(logical) || !child.node.IsEqualTo(node, false) {
			continue
		}
		if node.Element().ElementType().IsTypeProperty() && child.FindSubContext(node.Child(), logical) == nil {
			continue
		}
		return child
	}

	return nil
}

// RequiresDistinct reports whether any context below b was reached through a
// join that expands cardinality.
func (b *BuildContext) RequiresDistinct() bool {
	for _, child := range b.children {
		if join := child.node.Element().ElementJoin(); join != nil && schema.ExpandsCardinality(join) {
			return true
		}
		if child.RequiresDistinct() {
			return true
		}
	}
	return false
}
