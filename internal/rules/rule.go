// internal/rules/rule.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

// Metadata is the descriptive part of a rule.
type Metadata struct {
	ID          string
	Description string
}

// Rule is the root of a rule tree. Definition is a ConditionGroup for
// StructureCondition, a Case for StructureCase and an Expression for
// StructureExpression.
type Rule struct {
	Structure  types.Structure
	ReturnType types.Type
	RuleType   string
	UUID       types.RuleUUID
	Version    int
	Metadata   Metadata
	Definition Definition
}

// NewConditionRule builds a boolean rule whose root group holds one default
// condition.
func (b *Builder) NewConditionRule(ruleType string) (Rule, error) {
	root, err := b.NewConditionGroup(nil)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		Structure:  types.StructureCondition,
		ReturnType: types.TypeBoolean,
		RuleType:   ruleType,
		UUID:       b.ids.NewRuleUUID(),
		Version:    1,
		Definition: root,
	}, nil
}

// NewCaseRule builds a case rule returning returnType.
func (b *Builder) NewCaseRule(ruleType string, returnType types.Type) (Rule, error) {
	c, err := b.NewCase(returnType)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		Structure:  types.StructureCase,
		ReturnType: returnType,
		RuleType:   ruleType,
		UUID:       b.ids.NewRuleUUID(),
		Version:    1,
		Definition: c,
	}, nil
}

// NewExpressionRule builds an expression rule returning returnType, starting
// as a single-element group around a default value.
func (b *Builder) NewExpressionRule(ruleType string, returnType types.Type) (Rule, error) {
	if err := b.knownType(returnType); err != nil {
		return Rule{}, err
	}
	return Rule{
		Structure:  types.StructureExpression,
		ReturnType: returnType,
		RuleType:   ruleType,
		UUID:       b.ids.NewRuleUUID(),
		Version:    1,
		Definition: b.Group(b.DefaultExpression(returnType), returnType),
	}, nil
}

// Conditions returns the root group of a condition rule.
// Panics for other structures.
func (r Rule) Conditions() ConditionGroup {
	g, ok := r.Definition.(ConditionGroup)
	if !ok {
		panic(fmt.Sprintf("rules: Conditions on %s rule", r.Structure))
	}
	return g
}

// Case returns the definition of a case rule. Panics for other structures.
func (r Rule) Case() Case {
	c, ok := r.Definition.(Case)
	if !ok {
		panic(fmt.Sprintf("rules: Case on %s rule", r.Structure))
	}
	return c
}

// Expression returns the definition of an expression rule.
// Panics for other structures.
func (r Rule) Expression() Expression {
	e, ok := r.Definition.(Expression)
	if !ok {
		panic(fmt.Sprintf("rules: Expression on %s rule", r.Structure))
	}
	return e
}

// WithDefinition returns r with d as its definition.
func (r Rule) WithDefinition(d Definition) Rule {
	r.Definition = d
	return r
}

// Validate checks the structural invariants that hold without a catalog:
// the definition matches the structure, its net type matches ReturnType,
// every expression group satisfies its arity, and cases have clauses.
func (r Rule) Validate() error {
	return r.structural().Err(types.ErrInvalidRule)
}

func (r Rule) structural() types.Diagnostics {
	var ds types.Diagnostics
	if !r.Structure.Valid() {
		ds.Add("structure", "unknown structure %q", r.Structure)
	}
	if r.ReturnType == "" {
		ds.Add("returnType", "missing return type")
	}

	switch d := r.Definition.(type) {
	case ConditionGroup:
		if r.Structure != types.StructureCondition {
			ds.Add("definition", "condition group under %s structure", r.Structure)
		}
		if r.ReturnType != "" && r.ReturnType != types.TypeBoolean {
			ds.Add("returnType", "condition rules return boolean, not %s", r.ReturnType)
		}
		validateGroup(&ds, "definition", d, 0)
	case Case:
		if r.Structure != types.StructureCase {
			ds.Add("definition", "case under %s structure", r.Structure)
		}
		validateCase(&ds, "definition", d, r.ReturnType)
	case Expression:
		if r.Structure != types.StructureExpression {
			ds.Add("definition", "expression under %s structure", r.Structure)
		}
		if t := d.ReturnType(); r.ReturnType != "" && t != r.ReturnType {
			mismatch(&ds, "definition", d, "expression returns %s, rule returns %s", t, r.ReturnType)
		}
		validateExpr(&ds, "definition", d)
	case nil:
		ds.Add("definition", "missing definition")
	}
	return ds
}

// mismatch reports a type mismatch on e. Rule references carry a cached
// type that may be stale, so their mismatches are warnings.
func mismatch(ds *types.Diagnostics, path string, e Expression, format string, args ...any) {
	if _, ok := Unwrap(e).(RuleRef); ok {
		ds.Warn(path, format, args...)
		return
	}
	ds.Add(path, format, args...)
}

func validateGroup(ds *types.Diagnostics, path string, g ConditionGroup, depth int) {
	if depth >= types.MaxNestingDepth {
		ds.Add(path, "nesting exceeds %d levels", types.MaxNestingDepth)
		return
	}
	if !g.Conjunction.Valid() {
		ds.Add(path+".conjunction", "invalid conjunction %q", g.Conjunction)
	}
	for i, child := range g.Children {
		cp := fmt.Sprintf("%s.conditions[%d]", path, i)
		switch n := child.(type) {
		case Condition:
			if n.Left == nil {
				ds.Add(cp+".left", "missing left operand")
			} else {
				validateExpr(ds, cp+".left", n.Left)
			}
			for k, e := range n.Right {
				validateExpr(ds, rightPath(cp, k, len(n.Right)), e)
			}
		case ConditionGroup:
			validateGroup(ds, cp, n, depth+1)
		default:
			ds.Add(cp, "unknown node %T", child)
		}
	}
}

func validateCase(ds *types.Diagnostics, path string, c Case, want types.Type) {
	if len(c.WhenClauses) == 0 {
		ds.Add(path+".whenClauses", "case needs at least one when clause")
	}
	for i, w := range c.WhenClauses {
		wp := fmt.Sprintf("%s.whenClauses[%d]", path, i)
		validateGroup(ds, wp+".when", w.When, 1)
		if w.Then == nil {
			ds.Add(wp+".then", "missing then branch")
			continue
		}
		validateExpr(ds, wp+".then", w.Then)
		if want != "" && w.Then.ReturnType() != want {
			mismatch(ds, wp+".then", w.Then, "then branch returns %s, rule returns %s", w.Then.ReturnType(), want)
		}
	}
	if c.Else == nil {
		ds.Add(path+".elseClause", "missing else branch")
		return
	}
	validateExpr(ds, path+".elseClause", c.Else)
	if want != "" && c.Else.ReturnType() != want {
		mismatch(ds, path+".elseClause", c.Else, "else branch returns %s, rule returns %s", c.Else.ReturnType(), want)
	}
}

func validateExpr(ds *types.Diagnostics, path string, e Expression) {
	switch x := e.(type) {
	case nil:
		ds.Add(path, "missing expression")
	case ExpressionGroup:
		if len(x.Expressions) == 0 || len(x.Expressions) != len(x.Operators)+1 {
			ds.Add(path, "group has %d expressions and %d operators", len(x.Expressions), len(x.Operators))
		}
		for i, sub := range x.Expressions {
			validateExpr(ds, fmt.Sprintf("%s.expressions[%d]", path, i), sub)
		}
	case FunctionCall:
		if x.Args == nil {
			return
		}
		for i := 0; i < x.Args.Len(); i++ {
			validateExpr(ds, argPath(path, x.Args, i), x.Args.At(i))
		}
	}
}

func rightPath(cond string, k, n int) string {
	if n == 1 {
		return cond + ".right"
	}
	return fmt.Sprintf("%s.right[%d]", cond, k)
}

func argPath(call string, args FunctionArgs, i int) string {
	if _, ok := args.(FixedArgs); ok {
		return fmt.Sprintf("%s.function.args[%d].value", call, i)
	}
	return fmt.Sprintf("%s.function.args[%d]", call, i)
}
