package catalog

import (
	"fmt"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

// LookupError reports a catalog reference that does not resolve.
// Unwraps to Kind (ErrUnknownField, ErrUnknownFunction, ErrUnknownOperator,
// ErrUnknownType) so callers can match with errors.Is.
type LookupError struct {
	Kind       error
	Path       string
	Suggestion string
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%v %q", e.Kind, e.Path)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap returns the sentinel kind.
func (e *LookupError) Unwrap() error {
	return e.Kind
}

// Split breaks a dotted path into segments using the catalog separator.
func (c *Catalog) Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, c.settings.FieldSeparator)
}

// Join builds a dotted path from segments.
func (c *Catalog) Join(segments ...string) string {
	return strings.Join(segments, c.settings.FieldSeparator)
}

// lookup walks t segment by segment. A missing segment or a leaf in the
// middle of the path yields nil.
func (c *Catalog) lookup(t Tree, path string) Node {
	segs := c.Split(path)
	if len(segs) == 0 || len(segs) > types.MaxPathSegments {
		return nil
	}
	cur := t
	for i, seg := range segs {
		n := cur.get(seg)
		if n == nil {
			return nil
		}
		if i == len(segs)-1 {
			return n
		}
		cat, ok := n.(*Category)
		if !ok {
			return nil
		}
		cur = cat.Children
	}
	return nil
}

func (t Tree) get(name string) Node {
	for _, e := range t {
		if e.Name == name {
			return e.Node
		}
	}
	return nil
}

// ResolveField resolves a dotted path to a field definition.
func (c *Catalog) ResolveField(path string) (*Field, error) {
	if f, ok := c.lookup(c.fields, path).(*Field); ok {
		return f, nil
	}
	return nil, &LookupError{Kind: types.ErrUnknownField, Path: path, Suggestion: c.Suggest(types.ErrUnknownField, path)}
}

// ResolveFunction resolves a dotted path to a function definition.
func (c *Catalog) ResolveFunction(path string) (*Function, error) {
	if f, ok := c.lookup(c.functions, path).(*Function); ok {
		return f, nil
	}
	return nil, &LookupError{Kind: types.ErrUnknownFunction, Path: path, Suggestion: c.Suggest(types.ErrUnknownFunction, path)}
}

// ResolveOperator resolves a condition operator key.
func (c *Catalog) ResolveOperator(key string) (*Operator, error) {
	if i, ok := c.operatorIdx[key]; ok {
		return &c.operators[i], nil
	}
	return nil, &LookupError{Kind: types.ErrUnknownOperator, Path: key, Suggestion: c.Suggest(types.ErrUnknownOperator, key)}
}

// ResolveType resolves a type definition.
func (c *Catalog) ResolveType(t types.Type) (*TypeDef, error) {
	if i, ok := c.typeIdx[t]; ok {
		return &c.typeDefs[i], nil
	}
	return nil, &LookupError{Kind: types.ErrUnknownType, Path: string(t), Suggestion: c.Suggest(types.ErrUnknownType, string(t))}
}

// ResolveExpressionOperator resolves an expression operator key.
func (c *Catalog) ResolveExpressionOperator(key string) (*ExpressionOperator, error) {
	if i, ok := c.exprOpIdx[key]; ok {
		return &c.exprOps[i], nil
	}
	return nil, &LookupError{Kind: types.ErrUnknownOperator, Path: key}
}

// ExpressionOperatorBySymbol finds the first expression operator with symbol.
func (c *Catalog) ExpressionOperatorBySymbol(symbol string) (*ExpressionOperator, bool) {
	for i := range c.exprOps {
		if c.exprOps[i].Symbol == symbol {
			return &c.exprOps[i], true
		}
	}
	return nil, false
}

// DefaultValue returns the literal a new operand of type t starts with:
// the type's declared DefaultValue, else the zero value of a built-in type.
func (c *Catalog) DefaultValue(t types.Type) any {
	if td, err := c.ResolveType(t); err == nil && td.DefaultValue != nil {
		return td.DefaultValue
	}
	switch t {
	case types.TypeNumber:
		return 0
	case types.TypeBoolean:
		return false
	default:
		return ""
	}
}

// ListOperators returns the condition operators valid for t in catalog order.
// A type listing explicit operators restricts to that list; otherwise the
// operators whose AppliesTo admits t are returned.
func (c *Catalog) ListOperators(t types.Type) []Operator {
	if td, err := c.ResolveType(t); err == nil && len(td.Operators) > 0 {
		out := make([]Operator, 0, len(td.Operators))
		for _, key := range td.Operators {
			out = append(out, c.operators[c.operatorIdx[key]])
		}
		return out
	}
	var out []Operator
	for _, op := range c.operators {
		if op.Applies(t) {
			out = append(out, op)
		}
	}
	return out
}

// OperatorValidFor reports whether key may be used with a left operand of type t.
func (c *Catalog) OperatorValidFor(key string, t types.Type) bool {
	for _, op := range c.ListOperators(t) {
		if op.Key == key {
			return true
		}
	}
	return false
}

// DefaultConditionOperator returns the operator a new condition over t starts
// with: the type's declared default, else the first valid operator.
func (c *Catalog) DefaultConditionOperator(t types.Type) (*Operator, error) {
	if td, err := c.ResolveType(t); err == nil && td.DefaultConditionOperator != "" {
		return c.ResolveOperator(td.DefaultConditionOperator)
	}
	ops := c.ListOperators(t)
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no condition operator for type %q", types.ErrIncompatibleType, t)
	}
	return c.ResolveOperator(ops[0].Key)
}

// FirstField returns the first field in declaration order whose type is t,
// or the first field of any type when t is empty.
func (c *Catalog) FirstField(t types.Type) (string, *Field, bool) {
	var (
		found *Field
		path  string
	)
	c.walk(c.fields, nil, func(segs []string, n Node) bool {
		f, ok := n.(*Field)
		if !ok || (t != "" && f.Type != t) {
			return true
		}
		found, path = f, c.Join(segs...)
		return false
	})
	return path, found, found != nil
}

// walk visits leaves depth-first in declaration order until fn returns false.
func (c *Catalog) walk(t Tree, prefix []string, fn func(segs []string, n Node) bool) bool {
	for _, e := range t {
		segs := append(append([]string(nil), prefix...), e.Name)
		if cat, ok := e.Node.(*Category); ok {
			if !c.walk(cat.Children, segs, fn) {
				return false
			}
			continue
		}
		if !fn(segs, e.Node) {
			return false
		}
	}
	return true
}
