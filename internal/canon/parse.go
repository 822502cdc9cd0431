// internal/canon/parse.go
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Persisted JSON decoding.
 *
 * Parse needs no catalog: types come from the cached returnType fields and
 * are checked later by rules.Check. Unknown keys, including legacy
 * presentation keys, are ignored. Literal numbers decode as json.Number so
 * they re-encode byte-for-byte.
 *
 * Malformed text fails with ErrInvalidJSON (as *SyntaxError when a position
 * is known); well-formed JSON of the wrong shape fails with ErrInvalidRule.
 */

// SyntaxError locates malformed rule JSON. Unwraps to types.ErrInvalidJSON.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v at line %d, column %d: %s", types.ErrInvalidJSON, e.Line, e.Column, e.Msg)
}

// Unwrap returns types.ErrInvalidJSON.
func (e *SyntaxError) Unwrap() error {
	return types.ErrInvalidJSON
}

type ruleIn struct {
	Structure  types.Structure `json:"structure"`
	ReturnType types.Type      `json:"returnType"`
	RuleType   string          `json:"ruleType"`
	UUID       types.RuleUUID  `json:"uuId"`
	Version    int             `json:"version"`
	Metadata   metadataJSON    `json:"metadata"`
	Definition json.RawMessage `json:"definition"`
}

type groupIn struct {
	Name        string            `json:"name"`
	Conjunction types.Conjunction `json:"conjunction"`
	Not         bool              `json:"not"`
	Conditions  []json.RawMessage `json:"conditions"`
}

type conditionIn struct {
	Name     string          `json:"name"`
	Left     json.RawMessage `json:"left"`
	Operator string          `json:"operator"`
	Right    json.RawMessage `json:"right"`
}

type caseIn struct {
	WhenClauses []struct {
		When       json.RawMessage `json:"when"`
		Then       json.RawMessage `json:"then"`
		ResultName string          `json:"resultName"`
	} `json:"whenClauses"`
	ElseClause     json.RawMessage `json:"elseClause"`
	ElseResultName string          `json:"elseResultName"`
}

type exprIn struct {
	Type       string          `json:"type"`
	ReturnType types.Type      `json:"returnType"`
	Value      json.RawMessage `json:"value"`
	Field      string          `json:"field"`
	Function   *struct {
		Name string            `json:"name"`
		Args []json.RawMessage `json:"args"`
	} `json:"function"`
	ID          string            `json:"id"`
	UUID        types.RuleUUID    `json:"uuId"`
	Version     int               `json:"version"`
	Expressions []json.RawMessage `json:"expressions"`
	Operators   []string          `json:"operators"`
}

// Parse decodes persisted rule JSON.
func Parse(data []byte) (rules.Rule, error) {
	var in ruleIn
	if err := json.Unmarshal(data, &in); err != nil {
		return rules.Rule{}, syntaxError(data, err)
	}
	if !in.Structure.Valid() {
		return rules.Rule{}, fmt.Errorf("%w: structure %q", types.ErrInvalidRule, in.Structure)
	}
	r := rules.Rule{
		Structure:  in.Structure,
		ReturnType: in.ReturnType,
		RuleType:   in.RuleType,
		UUID:       in.UUID,
		Version:    in.Version,
		Metadata:   rules.Metadata{ID: in.Metadata.ID, Description: in.Metadata.Description},
	}
	def, err := ParseDefinition(in.Structure, in.Definition)
	if err != nil {
		return rules.Rule{}, err
	}
	r.Definition = def
	return r, nil
}

// ParseDefinition decodes a bare definition of the given structure.
func ParseDefinition(s types.Structure, data []byte) (rules.Definition, error) {
	if isNull(data) {
		return nil, fmt.Errorf("%w: missing definition", types.ErrInvalidRule)
	}
	if !json.Valid(data) {
		var v any
		return nil, syntaxError(data, json.Unmarshal(data, &v))
	}
	d := decoder{}
	switch s {
	case types.StructureCondition:
		return d.group("definition", data, 0)
	case types.StructureCase:
		return d.caseDef("definition", data)
	case types.StructureExpression:
		return d.expr("definition", data, 0)
	}
	return nil, fmt.Errorf("%w: structure %q", types.ErrInvalidRule, s)
}

type decoder struct{}

func (decoder) shapeErr(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrInvalidRule, path, err)
}

func (d decoder) group(path string, data []byte, depth int) (rules.ConditionGroup, error) {
	if depth >= types.MaxNestingDepth {
		return rules.ConditionGroup{}, fmt.Errorf("%w: %s: nesting exceeds %d levels", types.ErrInvalidRule, path, types.MaxNestingDepth)
	}
	var in groupIn
	if err := json.Unmarshal(data, &in); err != nil {
		return rules.ConditionGroup{}, d.shapeErr(path, err)
	}
	if in.Conditions == nil {
		return rules.ConditionGroup{}, fmt.Errorf("%w: %s: condition group without conditions", types.ErrInvalidRule, path)
	}
	conj := types.Conjunction(strings.ToUpper(string(in.Conjunction)))
	if conj == "" {
		conj = types.ConjunctionAnd
	}
	g := rules.ConditionGroup{
		Name:        in.Name,
		Conjunction: conj,
		Not:         in.Not,
		Children:    make([]rules.Node, 0, len(in.Conditions)),
	}
	for i, raw := range in.Conditions {
		cp := fmt.Sprintf("%s.conditions[%d]", path, i)
		n, err := d.node(cp, raw, depth+1)
		if err != nil {
			return rules.ConditionGroup{}, err
		}
		g.Children = append(g.Children, n)
	}
	return g, nil
}

// node decodes a group child; groups are the objects with a conditions key.
func (d decoder) node(path string, data []byte, depth int) (rules.Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, d.shapeErr(path, err)
	}
	if _, ok := fields["conditions"]; ok {
		return d.group(path, data, depth)
	}
	return d.condition(path, data, depth)
}

func (d decoder) condition(path string, data []byte, depth int) (rules.Condition, error) {
	var in conditionIn
	if err := json.Unmarshal(data, &in); err != nil {
		return rules.Condition{}, d.shapeErr(path, err)
	}
	c := rules.Condition{Name: in.Name, Operator: in.Operator}
	if isNull(in.Left) {
		return rules.Condition{}, fmt.Errorf("%w: %s.left: missing", types.ErrInvalidRule, path)
	}
	left, err := d.expr(path+".left", in.Left, depth+1)
	if err != nil {
		return rules.Condition{}, err
	}
	c.Left = left

	raw := bytes.TrimSpace(in.Right)
	switch {
	case isNull(raw):
	case raw[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return rules.Condition{}, d.shapeErr(path+".right", err)
		}
		for i, item := range items {
			e, err := d.expr(fmt.Sprintf("%s.right[%d]", path, i), item, depth+1)
			if err != nil {
				return rules.Condition{}, err
			}
			c.Right = append(c.Right, e)
		}
	default:
		e, err := d.expr(path+".right", raw, depth+1)
		if err != nil {
			return rules.Condition{}, err
		}
		c.Right = []rules.Expression{e}
	}
	return c, nil
}

func (d decoder) caseDef(path string, data []byte) (rules.Case, error) {
	var in caseIn
	if err := json.Unmarshal(data, &in); err != nil {
		return rules.Case{}, d.shapeErr(path, err)
	}
	c := rules.Case{ElseResultName: in.ElseResultName}
	for i, w := range in.WhenClauses {
		wp := fmt.Sprintf("%s.whenClauses[%d]", path, i)
		when, err := d.group(wp+".when", w.When, 1)
		if err != nil {
			return rules.Case{}, err
		}
		then, err := d.expr(wp+".then", w.Then, 1)
		if err != nil {
			return rules.Case{}, err
		}
		c.WhenClauses = append(c.WhenClauses, rules.WhenClause{When: when, Then: then, ResultName: w.ResultName})
	}
	if isNull(in.ElseClause) {
		return rules.Case{}, fmt.Errorf("%w: %s.elseClause: missing", types.ErrInvalidRule, path)
	}
	e, err := d.expr(path+".elseClause", in.ElseClause, 1)
	if err != nil {
		return rules.Case{}, err
	}
	c.Else = e
	return c, nil
}

func (d decoder) expr(path string, data []byte, depth int) (rules.Expression, error) {
	if depth >= types.MaxNestingDepth {
		return nil, fmt.Errorf("%w: %s: nesting exceeds %d levels", types.ErrInvalidRule, path, types.MaxNestingDepth)
	}
	if isNull(data) {
		return nil, fmt.Errorf("%w: %s: missing expression", types.ErrInvalidRule, path)
	}
	var in exprIn
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, d.shapeErr(path, err)
	}

	switch in.Type {
	case kindValue:
		v, err := literal(in.Value)
		if err != nil {
			return nil, d.shapeErr(path+".value", err)
		}
		return rules.Value{Type: in.ReturnType, Value: v}, nil
	case kindField:
		return rules.FieldRef{Type: in.ReturnType, Field: in.Field}, nil
	case kindRef:
		return rules.RuleRef{Type: in.ReturnType, ID: in.ID, UUID: in.UUID, Version: in.Version}, nil
	case kindFunc:
		if in.Function == nil {
			return nil, fmt.Errorf("%w: %s.function: missing", types.ErrInvalidRule, path)
		}
		args, err := d.args(path+".function.args", in.Function.Args, depth)
		if err != nil {
			return nil, err
		}
		return rules.FunctionCall{Type: in.ReturnType, Name: in.Function.Name, Args: args}, nil
	case kindGroup:
		if len(in.Expressions) > types.MaxGroupOperands {
			return nil, fmt.Errorf("%w: %s: more than %d operands", types.ErrInvalidRule, path, types.MaxGroupOperands)
		}
		g := rules.ExpressionGroup{
			Type:        in.ReturnType,
			Expressions: make([]rules.Expression, 0, len(in.Expressions)),
			Operators:   append([]string{}, in.Operators...),
		}
		for i, raw := range in.Expressions {
			e, err := d.expr(fmt.Sprintf("%s.expressions[%d]", path, i), raw, depth+1)
			if err != nil {
				return nil, err
			}
			g.Expressions = append(g.Expressions, e)
		}
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s: unknown expression type %q", types.ErrInvalidRule, path, in.Type)
}

// args decodes function arguments. Objects with a "type" key are bare
// expressions (dynamic args); anything else is a {name, value} pair. An
// empty list decodes as empty fixed args.
func (d decoder) args(path string, raws []json.RawMessage, depth int) (rules.FunctionArgs, error) {
	if len(raws) == 0 {
		return rules.FixedArgs{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raws[0], &fields); err != nil {
		return nil, d.shapeErr(path+"[0]", err)
	}
	if _, bare := fields["type"]; bare {
		out := make(rules.VariadicArgs, 0, len(raws))
		for i, raw := range raws {
			e, err := d.expr(fmt.Sprintf("%s[%d]", path, i), raw, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}

	out := make(rules.FixedArgs, 0, len(raws))
	for i, raw := range raws {
		ap := fmt.Sprintf("%s[%d]", path, i)
		var a struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, d.shapeErr(ap, err)
		}
		e, err := d.expr(ap+".value", a.Value, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, rules.NamedArg{Name: a.Name, Value: e})
	}
	return out, nil
}

// literal decodes a value keeping numbers as json.Number.
func literal(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// syntaxError converts a decode error into a positioned *SyntaxError when
// the error carries an offset.
func syntaxError(data []byte, err error) error {
	var (
		se *json.SyntaxError
		te *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &se):
		line, col := position(data, se.Offset)
		return &SyntaxError{Line: line, Column: col, Msg: se.Error()}
	case errors.As(err, &te):
		line, col := position(data, te.Offset)
		return &SyntaxError{Line: line, Column: col, Msg: te.Error()}
	case err != nil && strings.Contains(err.Error(), "unexpected end of JSON input"):
		line, col := position(data, int64(len(data)))
		return &SyntaxError{Line: line, Column: col, Msg: err.Error()}
	}
	return fmt.Errorf("%w: %v", types.ErrInvalidJSON, err)
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, c := range data[:offset] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
