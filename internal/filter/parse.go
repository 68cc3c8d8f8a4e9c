package filter

import (
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	ErrInvalidFormat   = errors.NewKind("invalid filter format %q, expected op.value")
	ErrUnknownOperator = errors.NewKind("unknown filter operator %q")
	ErrInvalidIsValue  = errors.NewKind("is operator only accepts null or not_null, got %q")
	ErrInvalidTerm     = errors.NewKind("invalid filter term %q, expected path=op.value")
)

// ParseCondition parses a filter string like "eq.Berlin" into a condition
// on path.
func ParseCondition(path, raw string) (Condition, error) {
	before, value, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, ErrInvalidFormat.New(raw)
	}

	switch before {
	case "eq":
		return Comparison{Path: path, Op: OpEq, Value: value}, nil
	case "neq":
		return Comparison{Path: path, Op: OpNeq, Value: value}, nil
	case "gt":
		return Comparison{Path: path, Op: OpGt, Value: value}, nil
	case "gte":
		return Comparison{Path: path, Op: OpGte, Value: value}, nil
	case "lt":
		return Comparison{Path: path, Op: OpLt, Value: value}, nil
	case "lte":
		return Comparison{Path: path, Op: OpLte, Value: value}, nil
	case "like":
		return Like{Path: path, Pattern: value}, nil
	case "ilike":
		return Like{Path: path, Pattern: value, CaseInsensitive: true}, nil
	case "in":
		parts := strings.Split(value, ",")
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = p
		}
		return In{Path: path, Values: values}, nil
	case "is":
		if value != "null" && value != "not_null" {
			return nil, ErrInvalidIsValue.New(value)
		}
		return IsNull{Path: path, Null: value == "null"}, nil
	default:
		return nil, ErrUnknownOperator.New(before)
	}
}

// ParseTerm parses "path=op.value".
func ParseTerm(term string) (Condition, error) {
	path, raw, ok := strings.Cut(term, "=")
	if !ok || strings.TrimSpace(path) == "" {
		return nil, ErrInvalidTerm.New(term)
	}
	return ParseCondition(strings.TrimSpace(path), raw)
}
