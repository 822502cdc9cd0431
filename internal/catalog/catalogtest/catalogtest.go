// Package catalogtest provides the catalog fixture shared by package tests.
package catalogtest

import (
	"testing"

	"github.com/solatis/rulekeeper/internal/catalog"
)

// JSON is a small catalog in the catalog service's wire shape. Functions use
// flat dotted keys to exercise regrouping; fields use explicit categories.
const JSON = `{
  "fields": {
    "customer": {
      "label": "Customer",
      "children": {
        "age": {"label": "Age", "type": "number"},
        "name": {"label": "Name", "type": "text"},
        "vip": {"label": "VIP", "type": "boolean"},
        "since": {"label": "Customer since", "type": "date"}
      }
    },
    "order": {
      "label": "Order",
      "children": {
        "total": {"label": "Total", "type": "number"},
        "status": {"label": "Status", "type": "text"},
        "placed": {"label": "Placed at", "type": "date"}
      }
    },
    "score": {"label": "Score", "type": "number"}
  },
  "funcs": {
    "TEXT.CONCAT": {
      "label": "Concatenate",
      "returnType": "text",
      "dynamicArgs": {"argType": "text", "minArgs": 2, "maxArgs": 5, "defaultValue": ""}
    },
    "TEXT.UPPER": {
      "label": "Upper case",
      "returnType": "text",
      "args": {"value": {"type": "text", "label": "Value"}}
    },
    "TEXT.LENGTH": {
      "label": "Length",
      "returnType": "number",
      "args": {"value": {"type": "text", "label": "Value"}}
    },
    "MATH.SUM": {
      "label": "Sum",
      "returnType": "number",
      "dynamicArgs": {"argType": "number", "minArgs": 2, "maxArgs": 10, "defaultValue": 0}
    },
    "MATH.ROUND": {
      "label": "Round",
      "returnType": "number",
      "args": {
        "value": {"type": "number", "label": "Value"},
        "digits": {"type": "number", "label": "Digits"}
      }
    }
  },
  "operators": {
    "equal": {"label": "equals", "cardinality": 1},
    "not_equal": {"label": "does not equal", "cardinality": 1},
    "less": {"label": "less than", "cardinality": 1, "appliesTo": ["number", "date"]},
    "greater": {"label": "greater than", "cardinality": 1, "appliesTo": ["number", "date"]},
    "between": {"label": "between", "cardinality": 2, "appliesTo": ["number", "date"]},
    "is_null": {"label": "is empty", "cardinality": 0},
    "is_not_null": {"label": "is not empty", "cardinality": 0},
    "starts_with": {"label": "starts with", "cardinality": 1, "appliesTo": ["text"]}
  },
  "expressionOperators": {
    "add": {"symbol": "+", "label": "plus"},
    "subtract": {"symbol": "-", "label": "minus"},
    "multiply": {"symbol": "*", "label": "times"},
    "divide": {"symbol": "/", "label": "divided by"},
    "concat": {"symbol": "||", "label": "followed by"}
  },
  "types": {
    "number": {
      "label": "Number",
      "defaultValue": 0,
      "operators": ["equal", "not_equal", "less", "greater", "between", "is_null", "is_not_null"],
      "defaultConditionOperator": "equal",
      "validExpressionOperators": ["add", "subtract", "multiply", "divide"],
      "defaultExpressionOperator": "add"
    },
    "text": {
      "label": "Text",
      "defaultValue": "",
      "operators": ["equal", "not_equal", "starts_with", "is_null", "is_not_null"],
      "defaultConditionOperator": "equal",
      "validExpressionOperators": ["concat"]
    },
    "date": {
      "label": "Date",
      "defaultConditionOperator": "greater"
    },
    "boolean": {
      "label": "Boolean",
      "defaultValue": false,
      "operators": ["equal", "is_null"]
    }
  },
  "settings": {"fieldSeparator": ".", "defaultConjunction": "AND"}
}`

// Load parses JSON and fails the test on error.
func Load(t testing.TB) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load([]byte(JSON))
	if err != nil {
		t.Fatalf("catalog.Load() error = %v, want nil", err)
	}
	return c
}
