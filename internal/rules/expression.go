// internal/rules/expression.go
package rules

import "github.com/solatis/rulekeeper/internal/types"

/*
 * Expression sum type.
 *
 * Every value-producing node implements Expression. Variants are plain
 * values; a tree is never written in place. Operations that change a node
 * build new slices for the parts they touch and share the rest, so holding
 * an old tree value is always safe.
 *
 * Variants:
 *   - Value: literal of a declared type
 *   - FieldRef: dotted path into the field catalog
 *   - FunctionCall: dotted path into the function catalog plus arguments
 *   - RuleRef: reference to another rule by identity
 *   - ExpressionGroup: operator chain, len(Expressions) == len(Operators)+1
 *
 * Consumers switch over the concrete type; the unexported marker keeps the
 * set closed.
 */

// Definition is the root of a rule definition: a ConditionGroup, a Case or
// any Expression.
type Definition interface {
	isDefinition()
}

// Expression is a value-producing AST node.
type Expression interface {
	Definition
	ReturnType() types.Type
	isExpression()
}

// Value is a literal. Numbers decoded from persisted JSON are json.Number.
type Value struct {
	Type  types.Type
	Value any
}

// FieldRef references a catalog field. Type caches the field's declared type.
type FieldRef struct {
	Type  types.Type
	Field string
}

// FunctionCall invokes a catalog function.
// Args is FixedArgs for fixed-signature functions, VariadicArgs otherwise.
type FunctionCall struct {
	Type types.Type
	Name string
	Args FunctionArgs
}

// RuleRef references another rule. Type is a cached copy of the referenced
// rule's return type and is not re-validated.
type RuleRef struct {
	Type    types.Type
	ID      string
	UUID    types.RuleUUID
	Version int
}

// ExpressionGroup is a left-to-right operator chain. Operators holds the
// expression operator symbols. A single-element group is equivalent to its
// only expression.
type ExpressionGroup struct {
	Type        types.Type
	Expressions []Expression
	Operators   []string
}

func (v Value) ReturnType() types.Type           { return v.Type }
func (f FieldRef) ReturnType() types.Type        { return f.Type }
func (f FunctionCall) ReturnType() types.Type    { return f.Type }
func (r RuleRef) ReturnType() types.Type         { return r.Type }
func (g ExpressionGroup) ReturnType() types.Type { return g.Type }

func (Value) isExpression()           {}
func (FieldRef) isExpression()        {}
func (FunctionCall) isExpression()    {}
func (RuleRef) isExpression()         {}
func (ExpressionGroup) isExpression() {}

func (Value) isDefinition()           {}
func (FieldRef) isDefinition()        {}
func (FunctionCall) isDefinition()    {}
func (RuleRef) isDefinition()         {}
func (ExpressionGroup) isDefinition() {}

// FunctionArgs is the argument list of a FunctionCall.
type FunctionArgs interface {
	Len() int
	// At returns the i-th argument expression.
	At(i int) Expression
	isArgs()
}

// NamedArg is one argument of a fixed-signature call.
type NamedArg struct {
	Name  string
	Value Expression
}

// FixedArgs mirrors the ordered argument map of a fixed-signature function.
type FixedArgs []NamedArg

// VariadicArgs is the argument list of a dynamic-arg function.
type VariadicArgs []Expression

func (a FixedArgs) Len() int               { return len(a) }
func (a FixedArgs) At(i int) Expression    { return a[i].Value }
func (a VariadicArgs) Len() int            { return len(a) }
func (a VariadicArgs) At(i int) Expression { return a[i] }
func (FixedArgs) isArgs()                  {}
func (VariadicArgs) isArgs()               {}

// Unwrap returns the sole expression of a single-element group, recursively,
// and e itself otherwise.
func Unwrap(e Expression) Expression {
	for {
		g, ok := e.(ExpressionGroup)
		if !ok || len(g.Expressions) != 1 {
			return e
		}
		e = g.Expressions[0]
	}
}

// WalkExpressions visits e and every nested expression depth-first in
// document order. fn returning false skips the node's children.
func WalkExpressions(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case FunctionCall:
		if x.Args == nil {
			return
		}
		for i := 0; i < x.Args.Len(); i++ {
			WalkExpressions(x.Args.At(i), fn)
		}
	case ExpressionGroup:
		for _, sub := range x.Expressions {
			WalkExpressions(sub, fn)
		}
	}
}
