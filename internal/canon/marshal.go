// internal/canon/marshal.go
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Persisted JSON encoding.
 *
 * Struct field order fixes key order, so output is byte-stable.
 *
 * Expression discriminator ("type"):
 *   value           {type, returnType, value}
 *   field           {type, returnType, field}
 *   function        {type, returnType, function: {name, args}}
 *   ruleRef         {type, returnType, id, uuId, version}
 *   expressionGroup {type, returnType, expressions, operators}
 *
 * Fixed function args persist as [{name, value}], dynamic ones as a bare
 * expression array. A condition's right side is null, one expression or an
 * array, following the operator's cardinality. Condition groups always
 * carry a conditions array, which is how they are told apart from
 * conditions.
 */

const (
	kindValue = "value"
	kindField = "field"
	kindFunc  = "function"
	kindRef   = "ruleRef"
	kindGroup = "expressionGroup"
)

type ruleJSON struct {
	Structure  types.Structure `json:"structure"`
	ReturnType types.Type      `json:"returnType"`
	RuleType   string          `json:"ruleType"`
	UUID       types.RuleUUID  `json:"uuId"`
	Version    int             `json:"version"`
	Metadata   metadataJSON    `json:"metadata"`
	Definition any             `json:"definition"`
}

type metadataJSON struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type groupJSON struct {
	Name        string            `json:"name"`
	Conjunction types.Conjunction `json:"conjunction"`
	Not         bool              `json:"not"`
	Conditions  []any             `json:"conditions"`
}

type conditionJSON struct {
	Name     string `json:"name"`
	Left     any    `json:"left"`
	Operator string `json:"operator"`
	Right    any    `json:"right"`
}

type caseJSON struct {
	WhenClauses    []whenJSON `json:"whenClauses"`
	ElseClause     any        `json:"elseClause"`
	ElseResultName string     `json:"elseResultName"`
}

type whenJSON struct {
	When       groupJSON `json:"when"`
	Then       any       `json:"then"`
	ResultName string    `json:"resultName"`
}

type valueJSON struct {
	Type       string     `json:"type"`
	ReturnType types.Type `json:"returnType"`
	Value      any        `json:"value"`
}

type fieldJSON struct {
	Type       string     `json:"type"`
	ReturnType types.Type `json:"returnType"`
	Field      string     `json:"field"`
}

type functionJSON struct {
	Type       string     `json:"type"`
	ReturnType types.Type `json:"returnType"`
	Function   callJSON   `json:"function"`
}

type callJSON struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

type namedArgJSON struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type ruleRefJSON struct {
	Type       string         `json:"type"`
	ReturnType types.Type     `json:"returnType"`
	ID         string         `json:"id"`
	UUID       types.RuleUUID `json:"uuId"`
	Version    int            `json:"version"`
}

type exprGroupJSON struct {
	Type        string     `json:"type"`
	ReturnType  types.Type `json:"returnType"`
	Expressions []any      `json:"expressions"`
	Operators   []string   `json:"operators"`
}

// Marshal encodes r in compact persisted form.
func Marshal(r rules.Rule) ([]byte, error) {
	return encode(r, "")
}

// MarshalIndent encodes r in persisted form with the given indent.
func MarshalIndent(r rules.Rule, indent string) ([]byte, error) {
	return encode(r, indent)
}

// MarshalDefinition encodes a definition alone.
func MarshalDefinition(d rules.Definition) ([]byte, error) {
	v, err := definition(d)
	if err != nil {
		return nil, err
	}
	return write(v, "")
}

func encode(r rules.Rule, indent string) ([]byte, error) {
	def, err := definition(r.Definition)
	if err != nil {
		return nil, err
	}
	return write(ruleJSON{
		Structure:  r.Structure,
		ReturnType: r.ReturnType,
		RuleType:   r.RuleType,
		UUID:       r.UUID,
		Version:    r.Version,
		Metadata:   metadataJSON{ID: r.Metadata.ID, Description: r.Metadata.Description},
		Definition: def,
	}, indent)
}

func write(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func definition(d rules.Definition) (any, error) {
	switch x := d.(type) {
	case rules.ConditionGroup:
		return group(x)
	case rules.Case:
		return caseDef(x)
	case rules.Expression:
		return expr(x)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown definition %T", types.ErrInvalidRule, d)
	}
}

func group(g rules.ConditionGroup) (groupJSON, error) {
	out := groupJSON{
		Name:        g.Name,
		Conjunction: g.Conjunction,
		Not:         g.Not,
		Conditions:  make([]any, 0, len(g.Children)),
	}
	for _, child := range g.Children {
		var (
			v   any
			err error
		)
		switch n := child.(type) {
		case rules.Condition:
			v, err = condition(n)
		case rules.ConditionGroup:
			v, err = group(n)
		default:
			err = fmt.Errorf("%w: unknown node %T", types.ErrInvalidRule, child)
		}
		if err != nil {
			return groupJSON{}, err
		}
		out.Conditions = append(out.Conditions, v)
	}
	return out, nil
}

func condition(c rules.Condition) (conditionJSON, error) {
	left, err := expr(c.Left)
	if err != nil {
		return conditionJSON{}, err
	}
	out := conditionJSON{Name: c.Name, Left: left, Operator: c.Operator}
	switch len(c.Right) {
	case 0:
	case 1:
		if out.Right, err = expr(c.Right[0]); err != nil {
			return conditionJSON{}, err
		}
	default:
		right := make([]any, len(c.Right))
		for i, e := range c.Right {
			if right[i], err = expr(e); err != nil {
				return conditionJSON{}, err
			}
		}
		out.Right = right
	}
	return out, nil
}

func caseDef(c rules.Case) (caseJSON, error) {
	out := caseJSON{
		WhenClauses:    make([]whenJSON, 0, len(c.WhenClauses)),
		ElseResultName: c.ElseResultName,
	}
	for _, w := range c.WhenClauses {
		when, err := group(w.When)
		if err != nil {
			return caseJSON{}, err
		}
		then, err := expr(w.Then)
		if err != nil {
			return caseJSON{}, err
		}
		out.WhenClauses = append(out.WhenClauses, whenJSON{When: when, Then: then, ResultName: w.ResultName})
	}
	var err error
	if out.ElseClause, err = expr(c.Else); err != nil {
		return caseJSON{}, err
	}
	return out, nil
}

func expr(e rules.Expression) (any, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil
	case rules.Value:
		return valueJSON{Type: kindValue, ReturnType: x.Type, Value: x.Value}, nil
	case rules.FieldRef:
		return fieldJSON{Type: kindField, ReturnType: x.Type, Field: x.Field}, nil
	case rules.RuleRef:
		return ruleRefJSON{Type: kindRef, ReturnType: x.Type, ID: x.ID, UUID: x.UUID, Version: x.Version}, nil
	case rules.FunctionCall:
		call := callJSON{Name: x.Name, Args: []any{}}
		switch args := x.Args.(type) {
		case rules.FixedArgs:
			for _, a := range args {
				v, err := expr(a.Value)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, namedArgJSON{Name: a.Name, Value: v})
			}
		case rules.VariadicArgs:
			for _, a := range args {
				v, err := expr(a)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, v)
			}
		}
		return functionJSON{Type: kindFunc, ReturnType: x.Type, Function: call}, nil
	case rules.ExpressionGroup:
		out := exprGroupJSON{
			Type:        kindGroup,
			ReturnType:  x.Type,
			Expressions: make([]any, 0, len(x.Expressions)),
			Operators:   append([]string{}, x.Operators...),
		}
		for _, sub := range x.Expressions {
			v, err := expr(sub)
			if err != nil {
				return nil, err
			}
			out.Expressions = append(out.Expressions, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown expression %T", types.ErrInvalidRule, e)
	}
}
