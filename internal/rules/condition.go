// internal/rules/condition.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Conditions and operator cardinality.
 *
 * Right holds exactly Cardinality expressions of the operator: none for a
 * unary operator (persisted as null), one for a binary operator (persisted
 * as a single expression) and N for an N-ary one (persisted as an array).
 *
 * Operator switching reconciles Right by keeping the first min(old, new)
 * expressions and padding with defaults of the left operand's type:
 *
 *   1 -> 1   keep
 *   1 -> 0   drop
 *   0 -> N   synthesize defaults
 *   1 -> N   wrap as element 0, pad
 *   N -> 1   element 0 survives
 *   N -> M   keep min(N, M), pad or truncate
 *
 * So data is never dropped when the cardinality stays or grows, and the
 * first element wins when it shrinks.
 */

// Condition compares a left expression against zero or more right operands.
// NamePinned marks a user-chosen name that auto-numbering must not touch.
type Condition struct {
	Name       string
	NamePinned bool
	Left       Expression
	Operator   string
	Right      []Expression
}

// NewCondition builds a condition over the first catalog field with the
// field type's default operator and matching default operands.
func (b *Builder) NewCondition(name string) (Condition, error) {
	path, f, ok := b.cat.FirstField("")
	if !ok {
		return Condition{}, fmt.Errorf("%w: catalog declares no fields", types.ErrUnknownField)
	}
	op, err := b.cat.DefaultConditionOperator(f.Type)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Name:     name,
		Left:     FieldRef{Type: f.Type, Field: path},
		Operator: op.Key,
		Right:    b.defaults(f.Type, op.Cardinality),
	}, nil
}

func (b *Builder) defaults(t types.Type, n int) []Expression {
	if n == 0 {
		return nil
	}
	out := make([]Expression, n)
	for i := range out {
		out[i] = b.DefaultExpression(t)
	}
	return out
}

// leftType is the type operators and right-hand defaults are chosen for.
func (c Condition) leftType() types.Type {
	if c.Left == nil {
		return ""
	}
	return c.Left.ReturnType()
}

// SetOperator switches the operator and reconciles Right with the new
// cardinality. Operators not valid for the left type fail with
// ErrIncompatibleType.
func (b *Builder) SetOperator(c Condition, key string) (Condition, error) {
	op, err := b.cat.ResolveOperator(key)
	if err != nil {
		return Condition{}, err
	}
	t := c.leftType()
	if !b.cat.OperatorValidFor(key, t) {
		return Condition{}, fmt.Errorf("%w: operator %q is not valid for %q", types.ErrIncompatibleType, key, t)
	}
	c.Operator = key
	c.Right = b.reconcile(c.Right, op.Cardinality, t)
	return c, nil
}

func (b *Builder) reconcile(right []Expression, n int, t types.Type) []Expression {
	if n == 0 {
		return nil
	}
	out := make([]Expression, n)
	keep := copy(out, right)
	for i := keep; i < n; i++ {
		out[i] = b.DefaultExpression(t)
	}
	return out
}

// SetLeft replaces the left operand. When its type changes, an operator not
// valid for the new type is reset to the type's default and Right is rebuilt
// from defaults of the new type.
func (b *Builder) SetLeft(c Condition, e Expression) (Condition, error) {
	if e == nil {
		return Condition{}, fmt.Errorf("%w: nil left operand", types.ErrIncompatibleType)
	}
	oldType := c.leftType()
	c.Left = e
	t := e.ReturnType()
	if t == oldType {
		return c, nil
	}

	key := c.Operator
	if !b.cat.OperatorValidFor(key, t) {
		op, err := b.cat.DefaultConditionOperator(t)
		if err != nil {
			return Condition{}, err
		}
		key = op.Key
	}
	op, err := b.cat.ResolveOperator(key)
	if err != nil {
		return Condition{}, err
	}
	c.Operator = key
	c.Right = b.defaults(t, op.Cardinality)
	return c, nil
}

// SetRight replaces the right operands. The count must equal the operator's
// cardinality and every operand must have the left operand's type.
func (b *Builder) SetRight(c Condition, right ...Expression) (Condition, error) {
	op, err := b.cat.ResolveOperator(c.Operator)
	if err != nil {
		return Condition{}, err
	}
	if len(right) != op.Cardinality {
		return Condition{}, fmt.Errorf("%w: operator %q takes %d operands, got %d",
			types.ErrArgumentMismatch, c.Operator, op.Cardinality, len(right))
	}
	t := c.leftType()
	for i, e := range right {
		if e == nil || e.ReturnType() != t {
			return Condition{}, fmt.Errorf("%w: right operand %d does not match left type %q",
				types.ErrIncompatibleType, i, t)
		}
	}
	if len(right) == 0 {
		c.Right = nil
	} else {
		c.Right = cloneExprs(right)
	}
	return c, nil
}

// Rename sets a user-chosen name and pins it.
func (c Condition) Rename(name string) Condition {
	c.Name = name
	c.NamePinned = true
	return c
}
