// internal/preview/coercion.go
package preview

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Type coercion for preview evaluation.
 *
 * Record values and literals are converted to the Go form of their catalog
 * type before comparison:
 *   - number:  float64. Strict: numeric strings are accepted, booleans are not
 *   - text:    string. Lenient: every scalar is rendered as text
 *   - boolean: bool. Strict: no "true"/1 guessing
 *   - date:    time.Time from RFC 3339, "2006-01-02", "2006-01-02 15:04:05"
 *              or Unix seconds
 *   - any other catalog type keeps the decoded value
 *
 * Null and coercion failure are distinct: nil input is IsNull, impossible
 * conversions fail with ErrCoercionFailed and are handled by the
 * OnCoercionFail policy.
 */

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// Coerce converts value to the Go form of t.
func Coerce(value any, t types.Type) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}
	switch t {
	case types.TypeNumber:
		return coerceNumber(value)
	case types.TypeText:
		return coerceText(value)
	case types.TypeBoolean:
		return coerceBoolean(value)
	case types.TypeDate:
		return coerceDate(value)
	default:
		return CoercionResult{Value: value}, nil
	}
}

// coerceNumber converts value to float64. Whitespace-only strings fail.
func coerceNumber(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case float64:
		return CoercionResult{Value: v}, nil
	case int:
		return CoercionResult{Value: float64(v)}, nil
	case int64:
		return CoercionResult{Value: float64(v)}, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

// coerceText renders any scalar as a string.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case json.Number:
		return CoercionResult{Value: v.String()}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case int:
		return CoercionResult{Value: strconv.Itoa(v)}, nil
	case int64:
		return CoercionResult{Value: strconv.FormatInt(v, 10)}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case time.Time:
		return CoercionResult{Value: v.Format(time.RFC3339)}, nil
	}
	return CoercionResult{Value: fmt.Sprintf("%v", value)}, nil
}

func coerceBoolean(value any) (CoercionResult, error) {
	if v, ok := value.(bool); ok {
		return CoercionResult{Value: v}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

func coerceDate(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case time.Time:
		return CoercionResult{Value: v}, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return CoercionResult{Value: ts.UTC()}, nil
			}
		}
		return CoercionResult{}, types.ErrCoercionFailed
	case json.Number, float64, int, int64:
		n, err := coerceNumber(v)
		if err != nil {
			return CoercionResult{}, err
		}
		sec := n.Value.(float64)
		return CoercionResult{Value: time.Unix(int64(sec), 0).UTC()}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}
