// internal/rules/infer.go
package rules

import "github.com/solatis/rulekeeper/internal/types"

// Infer returns the return type of an expression group.
//
// Any operator in the catalog's numeric set (+ - * / unless the catalog
// overrides it) makes the group a number, whatever its operands are. This
// holds even for text operands joined by "+": arithmetic always forces
// number. Otherwise the group takes the type of its first expression,
// recursing into nested groups.
func (b *Builder) Infer(g ExpressionGroup) types.Type {
	for _, op := range g.Operators {
		if b.cat.IsNumericOperator(op) {
			return types.TypeNumber
		}
	}
	if len(g.Expressions) == 0 {
		return g.Type
	}
	if sub, ok := g.Expressions[0].(ExpressionGroup); ok {
		return b.Infer(sub)
	}
	if g.Expressions[0] == nil {
		return g.Type
	}
	return g.Expressions[0].ReturnType()
}

// retype recomputes g.Type from its members.
func (b *Builder) retype(g ExpressionGroup) ExpressionGroup {
	g.Type = b.Infer(g)
	return g
}
