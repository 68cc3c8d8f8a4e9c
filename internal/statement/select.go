package statement

import sq "github.com/Masterminds/squirrel"

// Join is a LEFT JOIN of a table under its ON condition.
type Join struct {
	Table *Table
	On    sq.Sqlizer
}

// Select accumulates the parts of a SELECT statement. Callers append to it
// directly while a query is being compiled.
type Select struct {
	from       *Table
	columns    []string
	joins      []Join
	selections []sq.Sqlizer
	orderBy    []string
	distinct   bool
	limit      uint64
}

func NewSelect() *Select {
	return &Select{}
}

func (s *Select) From() *Table        { return s.from }
func (s *Select) SetFrom(from *Table) { s.from = from }

// AddProjection appends raw SQL expressions to the select list.
func (s *Select) AddProjection(exprs ...string) {
	s.columns = append(s.columns, exprs...)
}

// AddColumns appends column references to the select list.
func (s *Select) AddColumns(cols ...Column) {
	for _, c := range cols {
		s.columns = append(s.columns, c.String())
	}
}

func (s *Select) Projections() []string { return s.columns }

func (s *Select) AddJoin(table *Table, on sq.Sqlizer) {
	s.joins = append(s.joins, Join{Table: table, On: on})
}

func (s *Select) Joins() []Join { return s.joins }

// AddSelection appends a predicate to the WHERE clause. Selections are AND'd.
func (s *Select) AddSelection(pred sq.Sqlizer) {
	s.selections = append(s.selections, pred)
}

func (s *Select) Selections() []sq.Sqlizer { return s.selections }

func (s *Select) SetDistinct(distinct bool) { s.distinct = distinct }
func (s *Select) IsDistinct() bool          { return s.distinct }

func (s *Select) AddOrderBy(clauses ...string) {
	s.orderBy = append(s.orderBy, clauses...)
}

func (s *Select) SetLimit(limit uint64) { s.limit = limit }

// Builder converts the statement into a squirrel builder using $n placeholders.
func (s *Select) Builder() (sq.SelectBuilder, error) {
	qb := sq.Select(s.columns...).PlaceholderFormat(sq.Dollar)
	if s.distinct {
		qb = qb.Distinct()
	}
	if s.from != nil {
		qb = qb.From(s.from.Ref())
	}

	for _, j := range s.joins {
		clause := j.Table.Ref()
		var args []any
		if j.On != nil {
			onSQL, onArgs, err := j.On.ToSql()
			if err != nil {
				return qb, err
			}
			clause += " ON " + onSQL
			args = onArgs
		}
		qb = qb.LeftJoin(clause, args...)
	}

	for _, pred := range s.selections {
		qb = qb.Where(pred)
	}
	if len(s.orderBy) > 0 {
		qb = qb.OrderBy(s.orderBy...)
	}
	if s.limit > 0 {
		qb = qb.Limit(s.limit)
	}
	return qb, nil
}

func (s *Select) ToSql() (string, []any, error) {
	qb, err := s.Builder()
	if err != nil {
		return "", nil, err
	}
	return qb.ToSql()
}
