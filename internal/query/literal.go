package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/atlekbai/feature_export/internal/schema"
)

// coerce converts a filter literal to the Go type matching the property's
// value type, so string input from flags compares correctly against typed
// columns. Null literals are rejected; callers compile them to IS NULL.
func coerce(value any, vt schema.ValueType) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("null literal is not a valid %s", vt)
	}
	if s, ok := value.(string); ok && vt.IsNumeric() {
		return parseNumber(strings.TrimSpace(s), vt)
	}

	var (
		v   any
		err error
	)
	switch vt {
	case schema.ValueInteger:
		v, err = cast.ToInt64E(value)
	case schema.ValueDouble:
		v, err = cast.ToFloat64E(value)
	case schema.ValueBoolean:
		v, err = cast.ToBoolE(value)
	case schema.ValueDate, schema.ValueTimestamp:
		v, err = cast.ToTimeE(value)
	default:
		v, err = cast.ToStringE(value)
	}
	if err != nil {
		return nil, fmt.Errorf("literal %v is not a valid %s: %w", value, vt, err)
	}
	return v, nil
}

// parseNumber reads decimal literals only. Leading zeros do not switch the
// base.
func parseNumber(s string, vt schema.ValueType) (any, error) {
	if vt == schema.ValueInteger {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("literal %q is not a valid %s", s, vt)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("literal %q is not a valid %s", s, vt)
	}
	return f, nil
}

func coerceAll(values []any, vt schema.ValueType) ([]any, error) {
	result := make([]any, len(values))
	for i, v := range values {
		c, err := coerce(v, vt)
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}
