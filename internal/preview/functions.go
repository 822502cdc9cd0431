// internal/preview/functions.go
package preview

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Built-in functions and arithmetic.
 *
 * Function names match case-insensitively. Null arguments propagate for
 * scalar functions (UPPER, LOWER, LENGTH, ABS, ROUND) and are skipped by
 * aggregating ones (CONCAT, SUM, MIN, MAX); an aggregate over nothing but
 * nulls is null, except CONCAT which yields "".
 *
 * Arithmetic symbols: + - * / over numbers, || over text. "+" with a
 * non-number operand concatenates, whatever type the group was inferred to
 * have.
 */

type builtin func(args []any) (any, error)

var builtins = map[string]builtin{
	"TEXT.CONCAT": textConcat,
	"TEXT.UPPER":  textUnary(strings.ToUpper),
	"TEXT.LOWER":  textUnary(strings.ToLower),
	"TEXT.LENGTH": textLength,
	"MATH.SUM":    mathFold(func(a, b float64) float64 { return a + b }),
	"MATH.MIN":    mathFold(math.Min),
	"MATH.MAX":    mathFold(math.Max),
	"MATH.ABS":    mathAbs,
	"MATH.ROUND":  mathRound,
}

func lookupBuiltin(name string) (builtin, bool) {
	fn, ok := builtins[strings.ToUpper(name)]
	return fn, ok
}

func text(v any) (string, error) {
	res, err := coerceText(v)
	if err != nil {
		return "", err
	}
	return res.Value.(string), nil
}

func number(v any) (float64, error) {
	res, err := coerceNumber(v)
	if err != nil {
		return 0, err
	}
	return res.Value.(float64), nil
}

func textConcat(args []any) (any, error) {
	var sb strings.Builder
	for _, a := range args {
		if a == nil {
			continue
		}
		s, err := text(a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func textUnary(fn func(string) string) builtin {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: want 1 argument, got %d", types.ErrArgumentMismatch, len(args))
		}
		if args[0] == nil {
			return nil, nil
		}
		s, err := text(args[0])
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func textLength(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: want 1 argument, got %d", types.ErrArgumentMismatch, len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	s, err := text(args[0])
	if err != nil {
		return nil, err
	}
	return float64(utf8.RuneCountInString(s)), nil
}

func mathFold(fn func(a, b float64) float64) builtin {
	return func(args []any) (any, error) {
		var (
			acc  float64
			seen bool
		)
		for _, a := range args {
			if a == nil {
				continue
			}
			n, err := number(a)
			if err != nil {
				return nil, err
			}
			if !seen {
				acc, seen = n, true
				continue
			}
			acc = fn(acc, n)
		}
		if !seen {
			return nil, nil
		}
		return acc, nil
	}
}

func mathAbs(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: want 1 argument, got %d", types.ErrArgumentMismatch, len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	n, err := number(args[0])
	if err != nil {
		return nil, err
	}
	return math.Abs(n), nil
}

// mathRound rounds half away from zero to the given number of digits
// (default 0).
func mathRound(args []any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: want 1 or 2 arguments, got %d", types.ErrArgumentMismatch, len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	n, err := number(args[0])
	if err != nil {
		return nil, err
	}
	digits := 0.0
	if len(args) == 2 && args[1] != nil {
		if digits, err = number(args[1]); err != nil {
			return nil, err
		}
	}
	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(n*scale) / scale, nil
}

type arithFunc func(a, b any) (any, error)

var arithmetic = map[string]arithFunc{
	"+":  add,
	"-":  numeric(func(a, b float64) (float64, error) { return a - b, nil }),
	"*":  numeric(func(a, b float64) (float64, error) { return a * b, nil }),
	"/":  numeric(divide),
	"||": concat,
}

func add(a, b any) (any, error) {
	x, okx := a.(float64)
	y, oky := b.(float64)
	if okx && oky {
		return x + y, nil
	}
	return concat(a, b)
}

func concat(a, b any) (any, error) {
	x, err := text(a)
	if err != nil {
		return nil, err
	}
	y, err := text(b)
	if err != nil {
		return nil, err
	}
	return x + y, nil
}

func numeric(fn func(a, b float64) (float64, error)) arithFunc {
	return func(a, b any) (any, error) {
		x, err := number(a)
		if err != nil {
			return nil, err
		}
		y, err := number(b)
		if err != nil {
			return nil, err
		}
		return fn(x, y)
	}
}

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, types.ErrDivisionByZero
	}
	return a / b, nil
}
