// Package rulestest builds random, catalog-valid rules for property tests.
// It relies on the fixture catalog in catalogtest.
package rulestest

import (
	"fmt"
	"math/rand"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Random builds a rule of a random structure by applying a random sequence
// of builder mutations. The result passes rules.Check against catalogtest.
func Random(b *rules.Builder, rng *rand.Rand) (rules.Rule, error) {
	g := gen{b: b, rng: rng}
	switch rng.Intn(3) {
	case 0:
		return g.conditionRule()
	case 1:
		return g.caseRule()
	default:
		return g.expressionRule()
	}
}

type gen struct {
	b   *rules.Builder
	rng *rand.Rand
}

var (
	leafTypes = []types.Type{types.TypeNumber, types.TypeText}
	operators = map[types.Type][]string{
		types.TypeNumber:  {"equal", "not_equal", "less", "greater", "between", "is_null", "is_not_null"},
		types.TypeText:    {"equal", "not_equal", "starts_with", "is_null", "is_not_null"},
		types.TypeDate:    {"greater", "less", "between"},
		types.TypeBoolean: {"equal", "is_null"},
	}
	fieldsByType = map[types.Type][]string{
		types.TypeNumber:  {"customer.age", "order.total", "score"},
		types.TypeText:    {"customer.name", "order.status"},
		types.TypeDate:    {"customer.since", "order.placed"},
		types.TypeBoolean: {"customer.vip"},
	}
)

func (g gen) conditionRule() (rules.Rule, error) {
	r, err := g.b.NewConditionRule("random")
	if err != nil {
		return rules.Rule{}, err
	}
	root, err := g.tree(r.Conditions())
	if err != nil {
		return rules.Rule{}, err
	}
	r.Metadata = rules.Metadata{ID: fmt.Sprintf("R-%d", g.rng.Intn(1000)), Description: "random rule"}
	return r.WithDefinition(root), nil
}

func (g gen) caseRule() (rules.Rule, error) {
	rt := leafTypes[g.rng.Intn(len(leafTypes))]
	r, err := g.b.NewCaseRule("random", rt)
	if err != nil {
		return rules.Rule{}, err
	}
	c := r.Case()
	for n := g.rng.Intn(3); n > 0; n-- {
		if c, err = g.b.AddWhenClause(c); err != nil {
			return rules.Rule{}, err
		}
	}
	for i := range c.WhenClauses {
		if c, err = rules.UpdateWhen(c, i, g.tree); err != nil {
			return rules.Rule{}, err
		}
		e, err := g.expr(rt, 0)
		if err != nil {
			return rules.Rule{}, err
		}
		if c, err = rules.SetThen(c, i, e); err != nil {
			return rules.Rule{}, err
		}
		if g.rng.Intn(4) == 0 {
			if c, err = rules.RenameResult(c, i, fmt.Sprintf("branch %d", i)); err != nil {
				return rules.Rule{}, err
			}
		}
	}
	if len(c.WhenClauses) > 1 && g.rng.Intn(2) == 0 {
		if c, err = rules.RemoveWhenClause(c, g.rng.Intn(len(c.WhenClauses))); err != nil {
			return rules.Rule{}, err
		}
	}
	e, err := g.expr(rt, 0)
	if err != nil {
		return rules.Rule{}, err
	}
	if c, err = rules.SetElse(c, e); err != nil {
		return rules.Rule{}, err
	}
	return r.WithDefinition(c), nil
}

func (g gen) expressionRule() (rules.Rule, error) {
	rt := leafTypes[g.rng.Intn(len(leafTypes))]
	r, err := g.b.NewExpressionRule("random", rt)
	if err != nil {
		return rules.Rule{}, err
	}
	e, err := g.group(rt, 0)
	if err != nil {
		return rules.Rule{}, err
	}
	return r.WithDefinition(e), nil
}

// tree grows root with random additions, removals, moves and setting
// changes.
func (g gen) tree(root rules.ConditionGroup) (rules.ConditionGroup, error) {
	var err error
	for steps := g.rng.Intn(8); steps > 0; steps-- {
		var groups []rules.Path
		rules.Walk(root, func(p rules.Path, n rules.Node) bool {
			if _, ok := n.(rules.ConditionGroup); ok {
				groups = append(groups, p)
			}
			return true
		})
		p := groups[g.rng.Intn(len(groups))]
		parent, _ := root.GroupAt(p)

		switch g.rng.Intn(7) {
		case 0, 1:
			root, err = g.b.AddCondition(root, p)
		case 2:
			if len(p) < 3 {
				root, err = g.b.AddConditionGroup(root, p)
			}
		case 3:
			if len(parent.Children) > 1 {
				root, err = rules.RemoveChild(root, p, g.rng.Intn(len(parent.Children)))
			}
		case 4:
			n := len(parent.Children)
			root, err = rules.ReorderChildren(root, p, g.rng.Intn(n), g.rng.Intn(n))
		case 5:
			if root, err = rules.SetConjunction(root, p, types.ConjunctionOr); err == nil {
				root, err = rules.SetNot(root, p, g.rng.Intn(2) == 0)
			}
		case 6:
			root, err = rules.RenameNode(root, p.Child(g.rng.Intn(len(parent.Children))), "custom")
		}
		if err != nil {
			return rules.ConditionGroup{}, err
		}
	}

	var conds []rules.Path
	rules.Walk(root, func(p rules.Path, n rules.Node) bool {
		if _, ok := n.(rules.Condition); ok {
			conds = append(conds, p)
		}
		return true
	})
	for _, p := range conds {
		if root, err = root.UpdateCondition(p, g.condition); err != nil {
			return rules.ConditionGroup{}, err
		}
	}
	return root, nil
}

// condition picks a random left side and operator, then fills the right
// side with random operands.
func (g gen) condition(c rules.Condition) (rules.Condition, error) {
	t := []types.Type{types.TypeNumber, types.TypeText, types.TypeDate, types.TypeBoolean}[g.rng.Intn(4)]
	var (
		left rules.Expression
		err  error
	)
	if t == types.TypeNumber || t == types.TypeText {
		left, err = g.expr(t, 1)
	} else {
		left, err = g.field(t)
	}
	if err != nil {
		return rules.Condition{}, err
	}
	if c, err = g.b.SetLeft(c, left); err != nil {
		return rules.Condition{}, err
	}
	ops := operators[t]
	if c, err = g.b.SetOperator(c, ops[g.rng.Intn(len(ops))]); err != nil {
		return rules.Condition{}, err
	}
	if t != types.TypeNumber && t != types.TypeText {
		return c, nil
	}
	right := make([]rules.Expression, len(c.Right))
	for i := range right {
		if right[i], err = g.expr(t, 1); err != nil {
			return rules.Condition{}, err
		}
	}
	if len(right) == 0 {
		return c, nil
	}
	return g.b.SetRight(c, right...)
}

func (g gen) field(t types.Type) (rules.Expression, error) {
	fs := fieldsByType[t]
	return g.b.Field(fs[g.rng.Intn(len(fs))])
}

// expr returns a random expression of type t (number or text).
func (g gen) expr(t types.Type, depth int) (rules.Expression, error) {
	k := g.rng.Intn(6)
	if depth >= 2 {
		k = g.rng.Intn(2)
	}
	switch k {
	case 0:
		return g.literal(t), nil
	case 1:
		return g.field(t)
	case 2:
		return g.b.RuleRef(fmt.Sprintf("REF-%d", g.rng.Intn(10)), types.RuleUUID(fmt.Sprintf("u%d", g.rng.Intn(100))), 1+g.rng.Intn(3), t), nil
	case 3:
		return g.call(t, depth)
	default:
		return g.group(t, depth)
	}
}

func (g gen) literal(t types.Type) rules.Value {
	if t == types.TypeNumber {
		if g.rng.Intn(2) == 0 {
			return rules.Value{Type: t, Value: g.rng.Intn(1000) - 500}
		}
		return rules.Value{Type: t, Value: g.rng.Float64() * 100}
	}
	return rules.Value{Type: t, Value: []string{"", "a", "<b>", "x & y", "ünï"}[g.rng.Intn(5)]}
}

func (g gen) call(t types.Type, depth int) (rules.Expression, error) {
	if t == types.TypeText {
		call, err := g.b.Function("TEXT.CONCAT")
		if err != nil {
			return nil, err
		}
		for n := g.rng.Intn(3); n > 0; n-- {
			e, err := g.expr(types.TypeText, depth+1)
			if err != nil {
				return nil, err
			}
			if call, err = g.b.AppendArg(call, e); err != nil {
				return nil, err
			}
		}
		return call, nil
	}
	if g.rng.Intn(2) == 0 {
		arg, err := g.expr(types.TypeText, depth+1)
		if err != nil {
			return nil, err
		}
		return g.b.Function("TEXT.LENGTH", arg)
	}
	a, err := g.expr(types.TypeNumber, depth+1)
	if err != nil {
		return nil, err
	}
	return g.b.Function("MATH.SUM", a, g.literal(types.TypeNumber))
}

// group builds an operator chain of type t. Text chains use concatenation
// so inference keeps them text.
func (g gen) group(t types.Type, depth int) (rules.Expression, error) {
	first, err := g.expr(t, depth+1)
	if err != nil {
		return nil, err
	}
	grp := g.b.Group(first, t)
	for n := g.rng.Intn(4); n > 0; n-- {
		if grp, err = g.b.AppendOperand(grp, ""); err != nil {
			return nil, err
		}
		e, err := g.expr(t, depth+1)
		if err != nil {
			return nil, err
		}
		if grp, err = g.b.ReplaceOperand(grp, len(grp.Expressions)-1, e); err != nil {
			return nil, err
		}
	}
	if len(grp.Expressions) > 2 && g.rng.Intn(3) == 0 {
		if grp, err = g.b.RemoveOperand(grp, g.rng.Intn(len(grp.Expressions))); err != nil {
			return nil, err
		}
	}
	return grp, nil
}
