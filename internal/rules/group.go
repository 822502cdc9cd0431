// internal/rules/group.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Expression group mutation.
 *
 * Every operation returns a new group and leaves its input untouched. The
 * arity invariant len(Expressions) == len(Operators)+1 >= 1 holds before and
 * after every call, and the cached Type is recomputed on every change.
 */

// AppendOperand appends a default operand of the group's inferred type.
//
// opKey selects the expression operator; it must be valid for the type.
// When empty, the type's default expression operator is used, else its
// first valid one. A type with no valid expression operators fails with
// ErrIncompatibleType.
func (b *Builder) AppendOperand(g ExpressionGroup, opKey string) (ExpressionGroup, error) {
	if err := checkArity(g); err != nil {
		return ExpressionGroup{}, err
	}
	if len(g.Expressions) >= types.MaxGroupOperands {
		return ExpressionGroup{}, fmt.Errorf("%w: group already has %d operands", types.ErrIndexOutOfRange, len(g.Expressions))
	}
	t := b.Infer(g)
	symbol, err := b.pairOperator(t, opKey)
	if err != nil {
		return ExpressionGroup{}, err
	}

	out := ExpressionGroup{
		Expressions: append(cloneExprs(g.Expressions), b.DefaultExpression(t)),
		Operators:   append(cloneStrings(g.Operators), symbol),
	}
	return b.retype(out), nil
}

// pairOperator picks the symbol joining a new operand of type t.
func (b *Builder) pairOperator(t types.Type, opKey string) (string, error) {
	td, err := b.cat.ResolveType(t)
	if err != nil || len(td.ValidExpressionOperators) == 0 {
		return "", fmt.Errorf("%w: type %q supports no expression operators", types.ErrIncompatibleType, t)
	}
	key := opKey
	if key == "" {
		key = td.DefaultExpressionOperator
	}
	if key == "" {
		key = td.ValidExpressionOperators[0]
	}
	valid := false
	for _, k := range td.ValidExpressionOperators {
		if k == key {
			valid = true
			break
		}
	}
	if !valid {
		return "", fmt.Errorf("%w: expression operator %q is not valid for %q", types.ErrIncompatibleType, key, t)
	}
	op, err := b.cat.ResolveExpressionOperator(key)
	if err != nil {
		return "", err
	}
	return op.Symbol, nil
}

// RemoveOperand removes the operand at index together with the operator
// preceding it, or following it when index is 0.
func (b *Builder) RemoveOperand(g ExpressionGroup, index int) (ExpressionGroup, error) {
	if err := checkArity(g); err != nil {
		return ExpressionGroup{}, err
	}
	if index < 0 || index >= len(g.Expressions) {
		return ExpressionGroup{}, fmt.Errorf("%w: operand %d of %d", types.ErrIndexOutOfRange, index, len(g.Expressions))
	}
	if len(g.Expressions) == 1 {
		return ExpressionGroup{}, types.ErrCannotRemoveLastOperand
	}
	opIndex := index - 1
	if index == 0 {
		opIndex = 0
	}
	out := ExpressionGroup{
		Expressions: removeAt(g.Expressions, index),
		Operators:   removeAt(g.Operators, opIndex),
	}
	return b.retype(out), nil
}

// ReplaceOperand substitutes the operand at index.
func (b *Builder) ReplaceOperand(g ExpressionGroup, index int, e Expression) (ExpressionGroup, error) {
	if index < 0 || index >= len(g.Expressions) {
		return ExpressionGroup{}, fmt.Errorf("%w: operand %d of %d", types.ErrIndexOutOfRange, index, len(g.Expressions))
	}
	if e == nil {
		return ExpressionGroup{}, fmt.Errorf("%w: nil operand", types.ErrIncompatibleType)
	}
	exprs := cloneExprs(g.Expressions)
	exprs[index] = e
	return b.retype(ExpressionGroup{Expressions: exprs, Operators: cloneStrings(g.Operators)}), nil
}

// SetGroupOperator substitutes the operator at index with the expression
// operator opKey.
func (b *Builder) SetGroupOperator(g ExpressionGroup, index int, opKey string) (ExpressionGroup, error) {
	if index < 0 || index >= len(g.Operators) {
		return ExpressionGroup{}, fmt.Errorf("%w: operator %d of %d", types.ErrIndexOutOfRange, index, len(g.Operators))
	}
	op, err := b.cat.ResolveExpressionOperator(opKey)
	if err != nil {
		return ExpressionGroup{}, err
	}
	ops := cloneStrings(g.Operators)
	ops[index] = op.Symbol
	return b.retype(ExpressionGroup{Expressions: cloneExprs(g.Expressions), Operators: ops}), nil
}

func checkArity(g ExpressionGroup) error {
	if len(g.Expressions) == 0 || len(g.Expressions) != len(g.Operators)+1 {
		return fmt.Errorf("%w: group has %d expressions and %d operators",
			types.ErrInvalidRule, len(g.Expressions), len(g.Operators))
	}
	return nil
}

/*
 * Function argument mutation.
 */

// AppendArg appends an argument to a dynamic-arg call. A nil e appends the
// function's default value. Exceeding MaxArgs fails with
// ErrMalformedDynamicArgs.
func (b *Builder) AppendArg(call FunctionCall, e Expression) (FunctionCall, error) {
	fn, err := b.cat.ResolveFunction(call.Name)
	if err != nil {
		return FunctionCall{}, err
	}
	// An empty argument list decodes as FixedArgs; it is a valid start.
	args, ok := call.Args.(VariadicArgs)
	if !fn.IsDynamic() || (!ok && call.Args != nil && call.Args.Len() > 0) {
		return FunctionCall{}, fmt.Errorf("%w: %s has a fixed signature", types.ErrArgumentMismatch, call.Name)
	}
	if len(args)+1 > fn.Dynamic.MaxArgs {
		return FunctionCall{}, fmt.Errorf("%w: %s takes at most %d arguments",
			types.ErrMalformedDynamicArgs, call.Name, fn.Dynamic.MaxArgs)
	}
	if e == nil {
		e = b.dynamicDefault(fn.Dynamic)
	}
	if err := checkArgType(call.Name, len(args), fn.Dynamic.ArgType, e); err != nil {
		return FunctionCall{}, err
	}
	call.Args = VariadicArgs(append(cloneExprs(args), e))
	return call, nil
}

// RemoveArg removes an argument of a dynamic-arg call. Going below MinArgs
// fails with ErrMalformedDynamicArgs.
func (b *Builder) RemoveArg(call FunctionCall, index int) (FunctionCall, error) {
	fn, err := b.cat.ResolveFunction(call.Name)
	if err != nil {
		return FunctionCall{}, err
	}
	args, ok := call.Args.(VariadicArgs)
	if !fn.IsDynamic() || !ok {
		return FunctionCall{}, fmt.Errorf("%w: %s has a fixed signature", types.ErrArgumentMismatch, call.Name)
	}
	if index < 0 || index >= len(args) {
		return FunctionCall{}, fmt.Errorf("%w: argument %d of %d", types.ErrIndexOutOfRange, index, len(args))
	}
	if len(args)-1 < fn.Dynamic.MinArgs {
		return FunctionCall{}, fmt.Errorf("%w: %s takes at least %d arguments",
			types.ErrMalformedDynamicArgs, call.Name, fn.Dynamic.MinArgs)
	}
	call.Args = VariadicArgs(removeAt([]Expression(args), index))
	return call, nil
}

// SetArg replaces the argument at index. The expression must have the
// declared argument type.
func (b *Builder) SetArg(call FunctionCall, index int, e Expression) (FunctionCall, error) {
	fn, err := b.cat.ResolveFunction(call.Name)
	if err != nil {
		return FunctionCall{}, err
	}
	if call.Args == nil || index < 0 || index >= call.Args.Len() {
		return FunctionCall{}, fmt.Errorf("%w: argument %d", types.ErrIndexOutOfRange, index)
	}
	switch args := call.Args.(type) {
	case VariadicArgs:
		if !fn.IsDynamic() {
			return FunctionCall{}, fmt.Errorf("%w: %s has a fixed signature", types.ErrArgumentMismatch, call.Name)
		}
		if err := checkArgType(call.Name, index, fn.Dynamic.ArgType, e); err != nil {
			return FunctionCall{}, err
		}
		out := cloneExprs(args)
		out[index] = e
		call.Args = VariadicArgs(out)
	case FixedArgs:
		if fn.IsDynamic() || index >= len(fn.Args) {
			return FunctionCall{}, fmt.Errorf("%w: %s", types.ErrArgumentMismatch, call.Name)
		}
		if err := checkArgType(call.Name, index, fn.Args[index].Type, e); err != nil {
			return FunctionCall{}, err
		}
		out := append(FixedArgs(nil), args...)
		out[index] = NamedArg{Name: args[index].Name, Value: e}
		call.Args = out
	}
	return call, nil
}

func cloneExprs[S ~[]Expression](s S) []Expression {
	return append([]Expression(nil), s...)
}

func cloneStrings(s []string) []string {
	return append([]string(nil), s...)
}

// removeAt returns a new slice without element i.
func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
