// internal/rules/check.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Local rule checking.
 *
 * Check runs the structural invariants of Validate and then resolves every
 * catalog reference, collecting all problems rather than stopping at the
 * first. Paths follow the persisted JSON shape, e.g.
 * "definition.conditions[1].left.field".
 *
 * Checked against the catalog:
 *   - field and function paths resolve and cached types are current
 *   - function arguments match the signature (shape, count, types)
 *   - condition operators exist, suit the left type and have the right
 *     number of operands of the left type
 *   - expression group operators exist and the cached type is the
 *     inferred one
 *
 * Rule references are not resolved; type mismatches involving them are
 * warnings.
 */

// Check validates r against cat and returns every diagnostic found.
// Use Diagnostics.Err(types.ErrInvalidRule) to turn errors into a failure.
func (b *Builder) Check(r Rule) types.Diagnostics {
	ds := r.structural()
	c := checker{b: b, ds: &ds}
	switch d := r.Definition.(type) {
	case ConditionGroup:
		c.group("definition", d)
	case Case:
		for i, w := range d.WhenClauses {
			wp := fmt.Sprintf("definition.whenClauses[%d]", i)
			c.group(wp+".when", w.When)
			c.expr(wp+".then", w.Then)
		}
		c.expr("definition.elseClause", d.Else)
	case Expression:
		c.expr("definition", d)
	}
	return ds
}

// Check validates r against cat.
func Check(r Rule, cat *catalog.Catalog) types.Diagnostics {
	return NewBuilder(cat, nil).Check(r)
}

type checker struct {
	b  *Builder
	ds *types.Diagnostics
}

func (c checker) cat() *catalog.Catalog { return c.b.cat }

func (c checker) group(path string, g ConditionGroup) {
	for i, child := range g.Children {
		cp := fmt.Sprintf("%s.conditions[%d]", path, i)
		switch n := child.(type) {
		case Condition:
			c.condition(cp, n)
		case ConditionGroup:
			c.group(cp, n)
		}
	}
}

func (c checker) condition(path string, cond Condition) {
	if cond.Left == nil {
		return
	}
	c.expr(path+".left", cond.Left)
	for k, e := range cond.Right {
		c.expr(rightPath(path, k, len(cond.Right)), e)
	}

	t := cond.Left.ReturnType()
	op, err := c.cat().ResolveOperator(cond.Operator)
	if err != nil {
		c.ds.Add(path+".operator", "%v", err)
		return
	}
	if !c.cat().OperatorValidFor(op.Key, t) {
		c.ds.Add(path+".operator", "operator %q is not valid for %s", op.Key, t)
	}
	if len(cond.Right) != op.Cardinality {
		c.ds.Add(path+".right", "operator %q takes %d operands, got %d", op.Key, op.Cardinality, len(cond.Right))
	}
	for k, e := range cond.Right {
		if e != nil && e.ReturnType() != t {
			mismatch(c.ds, rightPath(path, k, len(cond.Right)), e, "operand is %s, left operand is %s", e.ReturnType(), t)
		}
	}
}

func (c checker) expr(path string, e Expression) {
	switch x := e.(type) {
	case Value:
		if err := c.b.knownType(x.Type); err != nil {
			c.ds.Add(path+".returnType", "%v", err)
		}
	case FieldRef:
		f, err := c.cat().ResolveField(x.Field)
		if err != nil {
			c.ds.Add(path+".field", "%v", err)
			return
		}
		if f.Type != x.Type {
			c.ds.Add(path+".returnType", "field %q is %s, not %s", x.Field, f.Type, x.Type)
		}
	case FunctionCall:
		c.call(path, x)
	case ExpressionGroup:
		for i, sub := range x.Expressions {
			c.expr(fmt.Sprintf("%s.expressions[%d]", path, i), sub)
		}
		for i, sym := range x.Operators {
			if _, ok := c.cat().ExpressionOperatorBySymbol(sym); !ok {
				c.ds.Add(fmt.Sprintf("%s.operators[%d]", path, i), "unknown expression operator %q", sym)
			}
		}
		if want := c.b.Infer(x); len(x.Expressions) > 0 && x.Type != want {
			c.ds.Add(path+".returnType", "group is %s, inferred %s", x.Type, want)
		}
	case RuleRef:
		if x.UUID == "" {
			c.ds.Add(path+".uuId", "rule reference without uuid")
		}
	}
}

func (c checker) call(path string, x FunctionCall) {
	fn, err := c.cat().ResolveFunction(x.Name)
	if err != nil {
		c.ds.Add(path+".function.name", "%v", err)
		return
	}
	if fn.ReturnType != x.Type {
		c.ds.Add(path+".returnType", "function %q returns %s, not %s", x.Name, fn.ReturnType, x.Type)
	}

	n := 0
	if x.Args != nil {
		n = x.Args.Len()
	}
	argsPath := path + ".function.args"
	args, fixed := x.Args.(FixedArgs)
	if fixed && len(args) == 0 && fn.IsDynamic() {
		fixed = false
	}
	if !fixed {
		if !fn.IsDynamic() {
			if len(fn.Args) > 0 {
				c.ds.Add(argsPath, "%s takes named arguments", x.Name)
			}
			return
		}
		if n < fn.Dynamic.MinArgs || n > fn.Dynamic.MaxArgs {
			c.ds.Add(argsPath, "%v: %s takes %d..%d arguments, got %d",
				types.ErrMalformedDynamicArgs, x.Name, fn.Dynamic.MinArgs, fn.Dynamic.MaxArgs, n)
		}
		for i := 0; i < n; i++ {
			c.argType(argPath(path, x.Args, i), x.Args.At(i), fn.Dynamic.ArgType)
		}
	} else {
		if fn.IsDynamic() {
			c.ds.Add(argsPath, "%s takes a variable argument list", x.Name)
			return
		}
		if len(args) != len(fn.Args) {
			c.ds.Add(argsPath, "%v: %s takes %d arguments, got %d", types.ErrArgumentMismatch, x.Name, len(fn.Args), len(args))
			return
		}
		for i, a := range args {
			if a.Name != fn.Args[i].Name {
				c.ds.Add(fmt.Sprintf("%s[%d].name", argsPath, i), "argument %d is %q, want %q", i, a.Name, fn.Args[i].Name)
			}
			c.argType(argPath(path, x.Args, i), a.Value, fn.Args[i].Type)
		}
	}
}

func (c checker) argType(path string, e Expression, want types.Type) {
	if e == nil {
		return
	}
	c.expr(path, e)
	if e.ReturnType() != want {
		mismatch(c.ds, path, e, "argument is %s, want %s", e.ReturnType(), want)
	}
}
