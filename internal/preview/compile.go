// internal/preview/compile.go
package preview

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule compilation.
 *
 * Compile checks a rule against the catalog and turns it into a Program:
 * operators resolved to comparators, functions to built-ins, field paths
 * pre-split, literals pre-coerced and rule references compiled in place.
 * Everything that can fail for a given rule fails here; Evaluate only fails
 * on record-dependent problems (coercion, division by zero).
 *
 * Compilation workflow:
 *   1. rules.Check; any error diagnostic rejects the rule
 *   2. compile expressions to closures, conditions to comparators
 *   3. order each group's children by ascending cost (stable)
 *
 * Rule references are resolved through Options.Resolver, with cycle
 * detection and a MaxReferenceDepth bound.
 */

// OnCoercionPolicy selects what happens when a record value cannot be
// coerced to its field's type.
type OnCoercionPolicy int

const (
	// OnCoercionError fails evaluation with ErrCoercionFailed.
	OnCoercionError OnCoercionPolicy = iota
	// OnCoercionNull treats the value as null.
	OnCoercionNull
)

// RuleResolver fetches rules referenced by RuleRef expressions.
type RuleResolver interface {
	ResolveRule(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error)
}

// Options tunes compilation.
type Options struct {
	Resolver       RuleResolver
	OnCoercionFail OnCoercionPolicy
}

type env struct {
	record any
}

type evalFunc func(e *env) (any, error)

type compiledExpr struct {
	eval evalFunc
	cost int
}

// CompiledCondition is a condition ready for evaluation.
type CompiledCondition struct {
	Name     string
	Operator Operator
	Type     types.Type
	Cost     int
	left     compiledExpr
	right    []compiledExpr
}

// CompiledGroup is a condition group with children ordered by cost.
type CompiledGroup struct {
	Name        string
	Conjunction types.Conjunction
	Not         bool
	Nodes       []CompiledNode
	Cost        int
}

// CompiledNode holds exactly one of Condition or Group.
type CompiledNode struct {
	Condition *CompiledCondition
	Group     *CompiledGroup
}

func (n CompiledNode) cost() int {
	if n.Group != nil {
		return n.Group.Cost
	}
	return n.Condition.Cost
}

// CompiledClause is one when clause of a case rule.
type CompiledClause struct {
	ResultName string
	When       *CompiledGroup
	then       compiledExpr
}

// Program is a compiled rule.
type Program struct {
	Structure  types.Structure
	ReturnType types.Type
	UUID       types.RuleUUID
	Version    int

	Root           *CompiledGroup   // condition rules
	Clauses        []CompiledClause // case rules, in evaluation order
	ElseResultName string
	elseExpr       compiledExpr
	expr           compiledExpr // expression rules
}

// Compile checks r against cat and compiles it for preview.
func Compile(ctx context.Context, r rules.Rule, cat *catalog.Catalog, opts Options) (*Program, error) {
	c := &compiler{ctx: ctx, cat: cat, opts: opts, sep: cat.Settings().FieldSeparator}
	if r.UUID != "" {
		c.stack = []types.RuleUUID{r.UUID}
	}
	return c.rule(r)
}

type compiler struct {
	ctx   context.Context
	cat   *catalog.Catalog
	opts  Options
	sep   string
	stack []types.RuleUUID
}

func (c *compiler) rule(r rules.Rule) (*Program, error) {
	if err := rules.Check(r, c.cat).Err(types.ErrInvalidRule); err != nil {
		return nil, err
	}
	p := &Program{Structure: r.Structure, ReturnType: r.ReturnType, UUID: r.UUID, Version: r.Version}

	var err error
	switch d := r.Definition.(type) {
	case rules.ConditionGroup:
		p.Root, err = c.group(d)
	case rules.Case:
		for _, w := range d.EvaluateOrder() {
			when, err := c.group(w.When)
			if err != nil {
				return nil, err
			}
			then, err := c.expr(w.Then)
			if err != nil {
				return nil, err
			}
			p.Clauses = append(p.Clauses, CompiledClause{ResultName: w.ResultName, When: when, then: then})
		}
		p.ElseResultName = d.ElseResultName
		p.elseExpr, err = c.expr(d.Else)
	case rules.Expression:
		p.expr, err = c.expr(d)
	default:
		err = fmt.Errorf("%w: definition %T", types.ErrInvalidRule, r.Definition)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *compiler) group(g rules.ConditionGroup) (*CompiledGroup, error) {
	out := &CompiledGroup{
		Name:        g.Name,
		Conjunction: g.Conjunction,
		Not:         g.Not,
		Nodes:       make([]CompiledNode, 0, len(g.Children)),
	}
	for _, child := range g.Children {
		var node CompiledNode
		switch n := child.(type) {
		case rules.Condition:
			cc, err := c.condition(n)
			if err != nil {
				return nil, err
			}
			node.Condition = cc
		case rules.ConditionGroup:
			sub, err := c.group(n)
			if err != nil {
				return nil, err
			}
			node.Group = sub
		}
		out.Nodes = append(out.Nodes, node)
		out.Cost += node.cost()
	}

	// Stable: equal-cost children keep document order.
	sort.SliceStable(out.Nodes, func(i, j int) bool {
		return out.Nodes[i].cost() < out.Nodes[j].cost()
	})
	return out, nil
}

func (c *compiler) condition(cond rules.Condition) (*CompiledCondition, error) {
	op, ok := LookupOperator(cond.Operator)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedOperator, cond.Operator)
	}
	left, err := c.expr(cond.Left)
	if err != nil {
		return nil, err
	}
	out := &CompiledCondition{
		Name:     cond.Name,
		Operator: op,
		Type:     cond.Left.ReturnType(),
		left:     left,
	}
	costs := []int{left.cost}
	for _, e := range cond.Right {
		ce, err := c.expr(e)
		if err != nil {
			return nil, err
		}
		out.right = append(out.right, ce)
		costs = append(costs, ce.cost)
	}
	out.Cost = conditionCost(op, out.Type, costs)
	return out, nil
}

func (c *compiler) expr(e rules.Expression) (compiledExpr, error) {
	switch x := e.(type) {
	case rules.Value:
		res, err := Coerce(x.Value, x.Type)
		if err != nil {
			return compiledExpr{}, fmt.Errorf("%w: literal %v is not a valid %s", types.ErrInvalidRule, x.Value, x.Type)
		}
		v := res.Value
		return compiledExpr{eval: func(*env) (any, error) { return v, nil }}, nil
	case rules.FieldRef:
		return c.field(x)
	case rules.FunctionCall:
		return c.call(x)
	case rules.RuleRef:
		return c.ruleRef(x)
	case rules.ExpressionGroup:
		return c.chain(x)
	}
	return compiledExpr{}, fmt.Errorf("%w: expression %T", types.ErrInvalidRule, e)
}

func (c *compiler) field(f rules.FieldRef) (compiledExpr, error) {
	path, err := ParsePath(f.Field, c.sep)
	if err != nil {
		return compiledExpr{}, fmt.Errorf("field %q: %w", f.Field, err)
	}
	t, policy := f.Type, c.opts.OnCoercionFail
	eval := func(e *env) (any, error) {
		res := Resolve(path, e.record)
		if !res.Found {
			return nil, nil
		}
		v, err := Coerce(res.Value, t)
		if err != nil {
			if policy == OnCoercionNull {
				return nil, nil
			}
			return nil, fmt.Errorf("field %q: %w", f.Field, err)
		}
		return v.Value, nil
	}
	return compiledExpr{eval: eval, cost: fieldCost(path)}, nil
}

func (c *compiler) call(f rules.FunctionCall) (compiledExpr, error) {
	fn, ok := lookupBuiltin(f.Name)
	if !ok {
		return compiledExpr{}, fmt.Errorf("%w: %q", types.ErrUnsupportedFunction, f.Name)
	}
	n := 0
	if f.Args != nil {
		n = f.Args.Len()
	}
	args := make([]compiledExpr, n)
	cost := CostCall
	for i := range args {
		a, err := c.expr(f.Args.At(i))
		if err != nil {
			return compiledExpr{}, err
		}
		args[i] = a
		cost += a.cost
	}
	eval := func(e *env) (any, error) {
		vals := make([]any, len(args))
		for i, a := range args {
			v, err := a.eval(e)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		v, err := fn(vals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		return v, nil
	}
	return compiledExpr{eval: eval, cost: cost}, nil
}

func (c *compiler) ruleRef(ref rules.RuleRef) (compiledExpr, error) {
	if c.opts.Resolver == nil {
		return compiledExpr{}, fmt.Errorf("%w: reference to %s v%d without a resolver", types.ErrRuleNotFound, ref.UUID, ref.Version)
	}
	for _, u := range c.stack {
		if u == ref.UUID {
			return compiledExpr{}, fmt.Errorf("%w: %s", types.ErrReferenceCycle, ref.UUID)
		}
	}
	if len(c.stack) >= types.MaxReferenceDepth {
		return compiledExpr{}, fmt.Errorf("%w: references nest deeper than %d", types.ErrReferenceCycle, types.MaxReferenceDepth)
	}

	r, err := c.opts.Resolver.ResolveRule(c.ctx, ref.UUID, ref.Version)
	if err != nil {
		return compiledExpr{}, fmt.Errorf("rule reference %s v%d: %w", ref.UUID, ref.Version, err)
	}
	c.stack = append(c.stack, ref.UUID)
	sub, err := c.rule(r)
	c.stack = c.stack[:len(c.stack)-1]
	if err != nil {
		return compiledExpr{}, fmt.Errorf("rule reference %s v%d: %w", ref.UUID, ref.Version, err)
	}
	eval := func(e *env) (any, error) {
		res, err := sub.evaluate(e)
		if err != nil {
			return nil, err
		}
		return res.Value, nil
	}
	return compiledExpr{eval: eval, cost: CostRuleRef}, nil
}

// chain compiles an expression group, applied left to right.
func (c *compiler) chain(g rules.ExpressionGroup) (compiledExpr, error) {
	operands := make([]compiledExpr, len(g.Expressions))
	cost := 0
	for i, sub := range g.Expressions {
		ce, err := c.expr(sub)
		if err != nil {
			return compiledExpr{}, err
		}
		operands[i] = ce
		cost += ce.cost
	}
	ops := make([]arithFunc, len(g.Operators))
	for i, sym := range g.Operators {
		fn, ok := arithmetic[strings.TrimSpace(sym)]
		if !ok {
			return compiledExpr{}, fmt.Errorf("%w: expression operator %q", types.ErrUnsupportedOperator, sym)
		}
		ops[i] = fn
	}
	if len(operands) == 0 {
		return compiledExpr{}, fmt.Errorf("%w: empty expression group", types.ErrInvalidRule)
	}

	eval := func(e *env) (any, error) {
		acc, err := operands[0].eval(e)
		if err != nil {
			return nil, err
		}
		for i, fn := range ops {
			v, err := operands[i+1].eval(e)
			if err != nil {
				return nil, err
			}
			if acc == nil || v == nil {
				acc = nil
				continue
			}
			if acc, err = fn(acc, v); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	return compiledExpr{eval: eval, cost: cost}, nil
}
