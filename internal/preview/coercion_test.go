// internal/preview/coercion_test.go
package preview

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

func TestCoerce(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		value     any
		typ       types.Type
		wantValue any
		wantNull  bool
		wantErr   error
	}{
		// number
		{name: "number: json.Number", value: json.Number("42.5"), typ: types.TypeNumber, wantValue: 42.5},
		{name: "number: string", value: "25", typ: types.TypeNumber, wantValue: 25.0},
		{name: "number: string with whitespace", value: "  7 ", typ: types.TypeNumber, wantValue: 7.0},
		{name: "number: scientific notation", value: "1e3", typ: types.TypeNumber, wantValue: 1000.0},
		{name: "number: int", value: 100, typ: types.TypeNumber, wantValue: 100.0},
		{name: "number: int64", value: int64(999), typ: types.TypeNumber, wantValue: 999.0},
		{name: "number: non-numeric string fails", value: "abc", typ: types.TypeNumber, wantErr: types.ErrCoercionFailed},
		{name: "number: whitespace-only string fails", value: "   ", typ: types.TypeNumber, wantErr: types.ErrCoercionFailed},
		{name: "number: boolean fails", value: true, typ: types.TypeNumber, wantErr: types.ErrCoercionFailed},
		{name: "number: nil returns null", value: nil, typ: types.TypeNumber, wantNull: true},

		// text
		{name: "text: string passthrough", value: "hello", typ: types.TypeText, wantValue: "hello"},
		{name: "text: json.Number keeps digits", value: json.Number("1.50"), typ: types.TypeText, wantValue: "1.50"},
		{name: "text: float64", value: 3.25, typ: types.TypeText, wantValue: "3.25"},
		{name: "text: int", value: 12, typ: types.TypeText, wantValue: "12"},
		{name: "text: boolean", value: false, typ: types.TypeText, wantValue: "false"},
		{name: "text: nil returns null", value: nil, typ: types.TypeText, wantNull: true},

		// boolean
		{name: "boolean: true passthrough", value: true, typ: types.TypeBoolean, wantValue: true},
		{name: "boolean: string fails", value: "true", typ: types.TypeBoolean, wantErr: types.ErrCoercionFailed},
		{name: "boolean: number fails", value: json.Number("1"), typ: types.TypeBoolean, wantErr: types.ErrCoercionFailed},

		// date
		{name: "date: ISO day", value: "2024-03-01", typ: types.TypeDate, wantValue: day},
		{name: "date: RFC 3339", value: "2024-03-01T00:00:00Z", typ: types.TypeDate, wantValue: day},
		{name: "date: date and time", value: "2024-03-01 00:00:00", typ: types.TypeDate, wantValue: day},
		{name: "date: unix seconds", value: json.Number("1709251200"), typ: types.TypeDate, wantValue: day},
		{name: "date: garbage fails", value: "yesterday", typ: types.TypeDate, wantErr: types.ErrCoercionFailed},
		{name: "date: boolean fails", value: true, typ: types.TypeDate, wantErr: types.ErrCoercionFailed},

		// catalog-defined types keep the decoded value
		{name: "custom: value preserved", value: "EUR", typ: types.Type("currency"), wantValue: "EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Coerce(tt.value, tt.typ)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() unexpected error = %v", err)
			}
			if result.IsNull != tt.wantNull {
				t.Errorf("Coerce() IsNull = %v, want %v", result.IsNull, tt.wantNull)
			}
			if tt.wantNull {
				return
			}
			if want, ok := tt.wantValue.(time.Time); ok {
				got, ok := result.Value.(time.Time)
				if !ok || !got.Equal(want) {
					t.Errorf("Coerce() Value = %v, want %v", result.Value, want)
				}
				return
			}
			if result.Value != tt.wantValue {
				t.Errorf("Coerce() Value = %#v, want %#v", result.Value, tt.wantValue)
			}
		})
	}
}

func TestCoerceNumberEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantValue float64
		wantErr   error
	}{
		{name: "NaN string", value: "NaN", wantValue: math.NaN()},
		{name: "positive infinity", value: "Inf", wantValue: math.Inf(1)},
		{name: "negative infinity", value: "-Inf", wantValue: math.Inf(-1)},
		{name: "invalid mixed string", value: "123abc", wantErr: types.ErrCoercionFailed},
		{name: "multiple decimals", value: "1.2.3", wantErr: types.ErrCoercionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Coerce(tt.value, types.TypeNumber)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() unexpected error = %v", err)
			}
			got, ok := result.Value.(float64)
			if !ok {
				t.Fatalf("Coerce() Value type = %T, want float64", result.Value)
			}
			switch {
			case math.IsNaN(tt.wantValue):
				if !math.IsNaN(got) {
					t.Errorf("Coerce() Value = %v, want NaN", got)
				}
			case got != tt.wantValue:
				t.Errorf("Coerce() Value = %v, want %v", got, tt.wantValue)
			}
		})
	}
}
