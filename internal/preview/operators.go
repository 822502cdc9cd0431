// internal/preview/operators.go
package preview

import (
	"strings"
	"time"
	"unicode/utf8"
)

/*
 * Condition comparators.
 *
 * Catalog operator keys map to Operator values at compile time; keys with
 * no comparator fail compilation with ErrUnsupportedOperator. Values are
 * coerced before they reach Compare.
 *
 * Null handling follows SQL: every comparison involving a null operand is
 * false, except the null and emptiness tests. between and not_between use
 * inclusive bounds. like/not_like use SQL wildcards (% any run, _ one rune).
 */

// Operator is a compiled condition comparator.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEqual
	OpNotEqual
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpBetween
	OpNotBetween
	OpIsNull
	OpIsNotNull
	OpIsEmpty
	OpIsNotEmpty
	OpLike
	OpNotLike
	OpStartsWith
	OpEndsWith
	OpContains
)

var operatorKeys = map[string]Operator{
	"equal":            OpEqual,
	"not_equal":        OpNotEqual,
	"less":             OpLess,
	"less_or_equal":    OpLessOrEqual,
	"greater":          OpGreater,
	"greater_or_equal": OpGreaterOrEqual,
	"between":          OpBetween,
	"not_between":      OpNotBetween,
	"is_null":          OpIsNull,
	"is_not_null":      OpIsNotNull,
	"is_empty":         OpIsEmpty,
	"is_not_empty":     OpIsNotEmpty,
	"like":             OpLike,
	"not_like":         OpNotLike,
	"starts_with":      OpStartsWith,
	"ends_with":        OpEndsWith,
	"contains":         OpContains,
}

// LookupOperator maps a catalog operator key to its comparator.
func LookupOperator(key string) (Operator, bool) {
	op, ok := operatorKeys[key]
	return op, ok
}

// operands returns how many right-hand values op compares against.
func (op Operator) operands() int {
	switch op {
	case OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty:
		return 0
	case OpBetween, OpNotBetween:
		return 2
	}
	return 1
}

// Compare applies op to value and the right-hand targets.
func Compare(op Operator, value any, targets []any) bool {
	switch op {
	case OpIsNull:
		return value == nil
	case OpIsNotNull:
		return value != nil
	case OpIsEmpty:
		return isEmpty(value)
	case OpIsNotEmpty:
		return !isEmpty(value)
	}
	if value == nil || len(targets) < op.operands() {
		return false
	}
	for _, t := range targets {
		if t == nil {
			return false
		}
	}

	switch op {
	case OpEqual:
		return compareEqual(value, targets[0])
	case OpNotEqual:
		return !compareEqual(value, targets[0])
	case OpLess:
		c, ok := compareOrdered(value, targets[0])
		return ok && c < 0
	case OpLessOrEqual:
		c, ok := compareOrdered(value, targets[0])
		return ok && c <= 0
	case OpGreater:
		c, ok := compareOrdered(value, targets[0])
		return ok && c > 0
	case OpGreaterOrEqual:
		c, ok := compareOrdered(value, targets[0])
		return ok && c >= 0
	case OpBetween:
		return between(value, targets[0], targets[1])
	case OpNotBetween:
		return !between(value, targets[0], targets[1])
	case OpLike:
		return compareStrings(value, targets[0], likeMatch)
	case OpNotLike:
		return !compareStrings(value, targets[0], likeMatch)
	case OpStartsWith:
		return compareStrings(value, targets[0], strings.HasPrefix)
	case OpEndsWith:
		return compareStrings(value, targets[0], strings.HasSuffix)
	case OpContains:
		return compareStrings(value, targets[0], strings.Contains)
	}
	return false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func compareEqual(a, b any) bool {
	if c, ok := compareOrdered(a, b); ok {
		return c == 0
	}
	return a == b
}

// compareOrdered performs a three-way comparison of two numbers, strings or
// times. ok is false for mixed or unordered types.
func compareOrdered(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, x == y
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func between(v, lo, hi any) bool {
	cl, ok1 := compareOrdered(v, lo)
	ch, ok2 := compareOrdered(v, hi)
	return ok1 && ok2 && cl >= 0 && ch <= 0
}

func compareStrings(value, target any, fn func(s, t string) bool) bool {
	vs, ok1 := value.(string)
	ts, ok2 := target.(string)
	if !ok1 || !ok2 {
		return false
	}
	return fn(vs, ts)
}

// likeMatch reports whether s matches the SQL LIKE pattern p.
func likeMatch(s, p string) bool {
	// star/mark remember the last % for backtracking
	star, mark := -1, 0
	i, j := 0, 0
	for i < len(s) {
		if j < len(p) {
			switch p[j] {
			case '%':
				star, mark = j, i
				j++
				continue
			case '_':
				_, n := utf8.DecodeRuneInString(s[i:])
				i += n
				j++
				continue
			default:
				if s[i] == p[j] {
					i++
					j++
					continue
				}
			}
		}
		if star < 0 {
			return false
		}
		j = star + 1
		_, n := utf8.DecodeRuneInString(s[mark:])
		mark += n
		i = mark
	}
	for j < len(p) && p[j] == '%' {
		j++
	}
	return j == len(p)
}
