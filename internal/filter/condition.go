// Package filter defines the storage-agnostic predicate tree evaluated
// against the properties of a feature type. Paths are slash separated
// property paths relative to the queried feature type.
package filter

// Condition is a node of the predicate tree.
type Condition interface {
	condition()
}

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Comparison: path op value
type Comparison struct {
	Path  string
	Op    Op
	Value any
}

// Like: path LIKE pattern, or ILIKE when CaseInsensitive is set.
type Like struct {
	Path            string
	Pattern         string
	CaseInsensitive bool
}

// IsNull: path IS NULL, or IS NOT NULL when Null is false.
type IsNull struct {
	Path string
	Null bool
}

// In: path = ANY(values)
type In struct {
	Path   string
	Values []any
}

// And holds operands that must all match.
type And struct{ Operands []Condition }

// Or holds operands of which at least one must match.
type Or struct{ Operands []Condition }

// Not negates its operand.
type Not struct{ Operand Condition }

func (Comparison) condition() {}
func (Like) condition()       {}
func (IsNull) condition()     {}
func (In) condition()         {}
func (And) condition()        {}
func (Or) condition()         {}
func (Not) condition()        {}

// AllOf returns an And over conds, collapsing the trivial cases.
func AllOf(conds ...Condition) Condition {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return And{Operands: conds}
	}
}

// AnyOf returns an Or over conds, collapsing the trivial cases.
func AnyOf(conds ...Condition) Condition {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return Or{Operands: conds}
	}
}
