package query

import (
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/atlekbai/feature_export/internal/filter"
	"github.com/atlekbai/feature_export/internal/schema"
	"github.com/atlekbai/feature_export/internal/statement"
)

const (
	idColumn          = "id"
	objectClassColumn = "objectclass_id"
)

var (
	ErrUnknownFeatureType   = errors.NewKind("no feature type registered with name %q")
	ErrUnsupportedCondition = errors.NewKind("unsupported condition type %T")
	ErrNotComparable        = errors.NewKind("path %s does not end in a comparable value")
	ErrNullLiteral          = errors.NewKind("%s: operator %s needs a non-null value")
)

// Options controls paging of id queries. Paging is keyset based on the
// anchor id.
type Options struct {
	Limit   uint64
	AfterID int64
}

// Result is a rendered statement together with its select list, which
// row mappers use to locate columns.
type Result struct {
	SQL      string
	Args     []any
	Columns  []string
	Distinct bool
	Joins    int
}

// Builder compiles filter trees over a schema mapping into SQL.
// It holds no per-query state and is safe for concurrent use.
type Builder struct {
	mapping *schema.Mapping
}

func NewBuilder(mapping *schema.Mapping) *Builder {
	return &Builder{mapping: mapping}
}

// FeatureType looks up a feature type by name.
func (b *Builder) FeatureType(name string) (*schema.Type, error) {
	ft := b.mapping.Get(name)
	if ft == nil || !ft.Feature {
		return nil, ErrUnknownFeatureType.New(name)
	}
	return ft, nil
}

// Compile starts a query context for ft and compiles cond into it. The
// object class restriction and the filter are left in the predicate buffer
// so callers can add to them before applying.
func (b *Builder) Compile(ft *schema.Type, cond filter.Condition) (*QueryContext, error) {
	qc := NewQueryContext(ft)

	if ids := b.mapping.ObjectClassIDs(ft); len(ids) > 0 {
		qc.AddPredicate(sq.Eq{qc.FromTable().Column(objectClassColumn).String(): ids})
	}

	if cond != nil {
		pred, err := b.compileCondition(qc, cond, And)
		if err != nil {
			return nil, err
		}
		if pred != nil {
			qc.AddPredicate(pred)
		}
	}

	return qc, nil
}

// BuildIDQuery selects the id and object class of every feature of ft
// matching cond, ordered by id.
func (b *Builder) BuildIDQuery(ft *schema.Type, cond filter.Condition, opts Options) (*Result, error) {
	qc, err := b.Compile(ft, cond)
	if err != nil {
		return nil, err
	}

	id := qc.FromTable().Column(idColumn)
	if opts.AfterID > 0 {
		qc.AddPredicate(sq.Gt{id.String(): opts.AfterID})
	}
	qc.ApplyPredicates()

	sel := qc.Select()
	sel.AddColumns(id, qc.FromTable().Column(objectClassColumn))
	sel.SetDistinct(qc.RequiresDistinct())
	sel.AddOrderBy(id.String() + " ASC")
	if opts.Limit > 0 {
		sel.SetLimit(opts.Limit)
	}

	return newResult(qc)
}

// BuildCount counts the features of ft matching cond.
func (b *Builder) BuildCount(ft *schema.Type, cond filter.Condition) (*Result, error) {
	qc, err := b.Compile(ft, cond)
	if err != nil {
		return nil, err
	}
	qc.ApplyPredicates()

	if qc.RequiresDistinct() {
		qc.Select().AddProjection(fmt.Sprintf("count(DISTINCT %s)", qc.FromTable().Column(idColumn)))
	} else {
		qc.Select().AddProjection("count(*)")
	}

	return newResult(qc)
}

// BuildEstimate returns a cheap statement for use with EXPLAIN (FORMAT JSON).
func (b *Builder) BuildEstimate(ft *schema.Type, cond filter.Condition) (*Result, error) {
	qc, err := b.Compile(ft, cond)
	if err != nil {
		return nil, err
	}
	qc.ApplyPredicates()

	sel := qc.Select()
	if qc.RequiresDistinct() {
		sel.AddColumns(qc.FromTable().Column(idColumn))
		sel.SetDistinct(true)
	} else {
		sel.AddProjection("1")
	}

	return newResult(qc)
}

// BuildPropertyQuery selects the feature id and the value found at path for
// every feature of ft matching cond.
func (b *Builder) BuildPropertyQuery(ft *schema.Type, path string, cond filter.Condition, opts Options) (*Result, error) {
	qc, err := b.Compile(ft, cond)
	if err != nil {
		return nil, err
	}

	ref, err := b.resolve(qc, path, And)
	if err != nil {
		return nil, err
	}
	qc.AddPredicates(ref.restrictions...)
	qc.SetTargetColumn(ref.column)

	id := qc.FromTable().Column(idColumn)
	if opts.AfterID > 0 {
		qc.AddPredicate(sq.Gt{id.String(): opts.AfterID})
	}
	qc.ApplyPredicates()

	sel := qc.Select()
	target, _ := qc.TargetColumn()
	sel.AddColumns(id, target)
	sel.SetDistinct(qc.RequiresDistinct())
	sel.AddOrderBy(id.String() + " ASC")
	if opts.Limit > 0 {
		sel.SetLimit(opts.Limit)
	}

	return newResult(qc)
}

func newResult(qc *QueryContext) (*Result, error) {
	sel := qc.Select()
	sqlStr, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("render %s query: %w", qc.FeatureType().Name, err)
	}
	return &Result{
		SQL:      sqlStr,
		Args:     args,
		Columns:  slices.Clone(sel.Projections()),
		Distinct: sel.IsDistinct(),
		Joins:    len(sel.Joins()),
	}, nil
}

// --- Condition compilation ---

func (b *Builder) compileCondition(qc *QueryContext, cond filter.Condition, logical LogicalOperator) (sq.Sqlizer, error) {
	switch c := cond.(type) {
	case filter.And:
		return b.compileGroup(qc, c.Operands, And)

	case filter.Or:
		return b.compileGroup(qc, c.Operands, Or)

	case filter.Not:
		inner, err := b.compileCondition(qc, c.Operand, logical)
		if err != nil || inner == nil {
			return nil, err
		}
		innerSQL, innerArgs, err := inner.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+innerSQL+")", innerArgs...), nil

	case filter.Comparison:
		ref, err := b.resolve(qc, c.Path, logical)
		if err != nil {
			return nil, err
		}
		if c.Value == nil {
			switch c.Op {
			case filter.OpEq:
				return ref.where(sq.Eq{ref.column.String(): nil}), nil
			case filter.OpNeq:
				return ref.where(sq.NotEq{ref.column.String(): nil}), nil
			default:
				return nil, ErrNullLiteral.New(c.Path, c.Op)
			}
		}
		value, err := coerce(c.Value, ref.valueType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Path, err)
		}
		return ref.where(comparisonExpr(ref.column.String(), c.Op, value)), nil

	case filter.Like:
		ref, err := b.resolve(qc, c.Path, logical)
		if err != nil {
			return nil, err
		}
		if c.CaseInsensitive {
			return ref.where(sq.ILike{ref.column.String(): c.Pattern}), nil
		}
		return ref.where(sq.Like{ref.column.String(): c.Pattern}), nil

	case filter.IsNull:
		ref, err := b.resolve(qc, c.Path, logical)
		if err != nil {
			return nil, err
		}
		if c.Null {
			return ref.where(sq.Eq{ref.column.String(): nil}), nil
		}
		return ref.where(sq.NotEq{ref.column.String(): nil}), nil

	case filter.In:
		ref, err := b.resolve(qc, c.Path, logical)
		if err != nil {
			return nil, err
		}
		values, err := coerceAll(c.Values, ref.valueType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Path, err)
		}
		return ref.where(sq.Eq{ref.column.String(): values}), nil

	default:
		return nil, ErrUnsupportedCondition.New(cond)
	}
}

// compileGroup compiles the operands of an AND or OR group. The operands are
// collected in the predicate buffer, which is restored to its previous content
// afterwards. An empty group yields no predicate.
func (b *Builder) compileGroup(qc *QueryContext, operands []filter.Condition, logical LogicalOperator) (sq.Sqlizer, error) {
	outer := qc.takePredicates()
	defer func() {
		qc.UnsetPredicates()
		qc.AddPredicates(outer...)
	}()

	for _, op := range operands {
		pred, err := b.compileCondition(qc, op, logical)
		if err != nil {
			return nil, err
		}
		if pred != nil {
			qc.AddPredicate(pred)
		}
	}

	if !qc.HasPredicates() {
		return nil, nil
	}

	preds := slices.Clone(qc.Predicates())
	if len(preds) == 1 {
		return preds[0], nil
	}
	if logical == Or {
		return sq.Or(preds), nil
	}
	return sq.And(preds), nil
}

func comparisonExpr(col string, op filter.Op, val any) sq.Sqlizer {
	switch op {
	case filter.OpEq:
		return sq.Eq{col: val}
	case filter.OpNeq:
		return sq.NotEq{col: val}
	case filter.OpGt:
		return sq.Gt{col: val}
	case filter.OpGte:
		return sq.GtOrEq{col: val}
	case filter.OpLt:
		return sq.Lt{col: val}
	case filter.OpLte:
		return sq.LtOrEq{col: val}
	default:
		return sq.Expr(fmt.Sprintf(`%s %s ?`, col, op), val)
	}
}

// --- Path traversal ---

// valueRef is a resolved path: the column holding its value and the type
// restrictions the path imposes on intermediate tables.
type valueRef struct {
	path         *schema.Path
	column       statement.Column
	valueType    schema.ValueType
	restrictions []sq.Sqlizer
}

func (r valueRef) where(pred sq.Sqlizer) sq.Sqlizer {
	if len(r.restrictions) == 0 {
		return pred
	}
	return append(sq.And(slices.Clone(r.restrictions)), pred)
}

// resolve walks expr from the anchor of qc, reusing existing bindings where
// the build context tree allows it and joining new tables otherwise.
func (b *Builder) resolve(qc *QueryContext, expr string, logical LogicalOperator) (valueRef, error) {
	path, err := b.mapping.ResolvePath(qc.FeatureType(), expr)
	if err != nil {
		return valueRef{}, err
	}

	var (
		ref      = valueRef{path: path}
		cur      = qc.BuildContext()
		table    = cur.Table()
		declared *schema.Type
	)

	for node := path.Root().Child(); node != nil; node = node.Child() {
		leaf := node.Child() == nil

		switch el := node.Element().(type) {
		case *schema.Type:
			sub := cur.FindSubContext(node, logical)
			if sub == nil {
				bound := table
				if storedApart(el, table) {
					bound = b.join(qc, table, idJoin(el))
				}
				sub = cur.AddSubContext(node, bound, make(map[string]*statement.Table), logical)
			}
			cur, table = sub, sub.Table()

			if declared != nil && el != declared {
				ref.restrictions = append(ref.restrictions,
					sq.Eq{table.Column(objectClassColumn).String(): b.mapping.ObjectClassIDs(el)})
			}
			if leaf {
				ref.column, ref.valueType = table.Column(idColumn), schema.ValueInteger
			}

		case *schema.Property:
			switch {
			case el.Kind.IsTypeProperty() || (el.Join != nil && schema.ExpandsCardinality(el.Join)):
				sub := cur.FindSubContext(node, logical)
				if sub == nil {
					bound := b.declaringTable(qc, cur, table, el)
					if el.Join != nil {
						bound = b.join(qc, bound, el.Join)
					}
					sub = cur.AddSubContext(node, bound, make(map[string]*statement.Table), logical)
				}
				cur, table = sub, sub.Table()
				declared = el.Target
			case el.Join != nil:
				table = b.joinShared(qc, cur, b.declaringTable(qc, cur, table, el), el.Join)
			default:
				table = b.declaringTable(qc, cur, table, el)
			}

			if leaf {
				col, vt, err := leafColumn(path, el, table)
				if err != nil {
					return valueRef{}, err
				}
				ref.column, ref.valueType = col, vt
			}
		}
	}

	qc.SetToTable(table)
	return ref, nil
}

// leafColumn returns the column compared when a path ends at prop. A path
// ending at a joined type property compares the join key on the far side,
// which is NULL exactly when nothing was matched.
func leafColumn(path *schema.Path, prop *schema.Property, table *statement.Table) (statement.Column, schema.ValueType, error) {
	if !prop.Kind.IsTypeProperty() {
		return table.Column(prop.Column), prop.ValueType, nil
	}

	switch j := prop.Join.(type) {
	case *schema.SimpleJoin:
		return table.Column(j.ToColumn), schema.ValueInteger, nil
	case *schema.JoinTable:
		return table.Column(j.InverseJoin.ToColumn), schema.ValueInteger, nil
	default:
		return statement.Column{}, "", ErrNotComparable.New(path.String())
	}
}

// declaringTable returns the table holding the columns of the type that
// declares prop. An inherited property stored in a supertype's table is
// reached through a shared id join.
func (b *Builder) declaringTable(qc *QueryContext, bc *BuildContext, table *statement.Table, prop *schema.Property) *statement.Table {
	if prop.Declarer == nil || !storedApart(prop.Declarer, table) {
		return table
	}
	return b.joinShared(qc, bc, table, idJoin(prop.Declarer))
}

func storedApart(t *schema.Type, table *statement.Table) bool {
	return t.Table != "" && (t.Table != table.Name || t.Schema != table.Schema)
}

// idJoin reaches the table of t from a table sharing its primary key.
func idJoin(t *schema.Type) *schema.SimpleJoin {
	return &schema.SimpleJoin{
		Schema:     t.Schema,
		Table:      t.Table,
		FromColumn: idColumn,
		ToColumn:   idColumn,
		ToRole:     schema.RoleParent,
	}
}

// joinShared joins j from table unless the build context already holds a
// table reached through an identical join. Only joins that keep cardinality
// may be shared this way.
func (b *Builder) joinShared(qc *QueryContext, bc *BuildContext, from *statement.Table, j schema.Join) *statement.Table {
	key := joinKey(from, j)
	if t, ok := bc.TableContext()[key]; ok {
		return t
	}
	t := b.join(qc, from, j)
	bc.TableContext()[key] = t
	return t
}

func joinKey(from *statement.Table, j schema.Join) string {
	switch j := j.(type) {
	case *schema.SimpleJoin:
		return fmt.Sprintf("%s:%s.%s.%s=%s", from.Alias, j.Schema, j.Table, j.ToColumn, j.FromColumn)
	case *schema.JoinTable:
		return fmt.Sprintf("%s:%s.%s:%s", from.Alias, j.Schema, j.Table, j.InverseJoin.Table)
	default:
		return from.Alias
	}
}

// join appends the joins needed to follow j from table and returns the
// table at the far end, which becomes the context's to-table.
func (b *Builder) join(qc *QueryContext, from *statement.Table, j schema.Join) *statement.Table {
	var to *statement.Table
	switch j := j.(type) {
	case *schema.SimpleJoin:
		to = joinSimple(qc, from, j)
	case *schema.JoinTable:
		bridge := joinSimple(qc, from, j.Join)
		to = joinSimple(qc, bridge, j.InverseJoin)
	}
	qc.SetToTable(to)
	return to
}

// joinSimple emits a LEFT JOIN so that operands of an OR group never remove
// rows matched by their siblings.
func joinSimple(qc *QueryContext, from *statement.Table, j *schema.SimpleJoin) *statement.Table {
	to := qc.Aliases().Table(j.Schema, j.Table)
	on := sq.Expr(fmt.Sprintf("%s = %s", to.Column(j.ToColumn), from.Column(j.FromColumn)))
	qc.Select().AddJoin(to, on)
	return to
}
