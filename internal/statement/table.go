// Package statement assembles SELECT statements for the feature queries.
// Rendering is delegated to Masterminds/squirrel.
package statement

import (
	"strconv"

	"github.com/atlekbai/feature_export/internal/schema"
)

// QI is shorthand for schema.QuoteIdent.
func QI(name string) string { return schema.QuoteIdent(name) }

// Table is a relation bound to an alias that is unique within one statement.
type Table struct {
	Schema string
	Name   string
	Alias  string
}

// QualifiedName returns the quoted, schema qualified table name.
func (t *Table) QualifiedName() string {
	if t.Schema != "" {
		return QI(t.Schema) + "." + QI(t.Name)
	}
	return QI(t.Name)
}

// Ref returns the table as it appears in a FROM or JOIN clause.
func (t *Table) Ref() string {
	return t.QualifiedName() + " " + QI(t.Alias)
}

func (t *Table) Column(name string) Column {
	return Column{Table: t, Name: name}
}

// Column is a table qualified column reference.
type Column struct {
	Table *Table
	Name  string
}

func (c Column) String() string {
	return QI(c.Table.Alias) + "." + QI(c.Name)
}

// AliasScope hands out table aliases. Each compiled statement owns its own
// scope, so aliases never collide inside a statement and scopes are never
// shared between statements.
type AliasScope struct {
	prefix string
	next   int
}

func NewAliasScope() *AliasScope {
	return &AliasScope{prefix: "t"}
}

// Table binds a new alias to the named relation.
func (s *AliasScope) Table(schemaName, name string) *Table {
	s.next++
	return &Table{
		Schema: schemaName,
		Name:   name,
		Alias:  s.prefix + strconv.Itoa(s.next),
	}
}
