// Package catalog holds the read-only registry a rule is authored against:
// hierarchical fields and functions, condition operators, expression
// operators and scalar types.
//
// A Catalog is built once (New or Load) and never mutated afterwards, so a
// single snapshot can be shared by any number of editing sessions.
// Declaration order is preserved everywhere because it is observable: the
// first field of a type is the default left-hand side of a new condition.
package catalog

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

// Node is a catalog tree node: *Category, *Field or *Function.
type Node interface {
	isNode()
}

// Entry is a named node in a Tree.
type Entry struct {
	Name string
	Node Node
}

// Tree is an ordered list of named nodes.
type Tree []Entry

// Category groups nodes; it is never selectable itself.
type Category struct {
	Label    string
	Children Tree
}

// Field is a selectable leaf of the field tree.
type Field struct {
	Label string
	Type  types.Type
}

// Arg describes one fixed function argument.
type Arg struct {
	Name  string
	Label string
	Type  types.Type
}

// DynamicArgs describes a variable-length argument list of a single type.
type DynamicArgs struct {
	ArgType      types.Type
	MinArgs      int
	MaxArgs      int
	DefaultValue any
}

// Function is a selectable leaf of the function tree.
// Exactly one of Args (possibly empty) and Dynamic describes the arguments.
type Function struct {
	Label      string
	ReturnType types.Type
	Args       []Arg
	Dynamic    *DynamicArgs
}

func (*Category) isNode() {}
func (*Field) isNode()    {}
func (*Function) isNode() {}

// IsDynamic reports whether f takes a variable-length argument list.
func (f *Function) IsDynamic() bool {
	return f.Dynamic != nil
}

// Operator is a condition operator. Cardinality is the number of right-hand
// operands it consumes: 0 (unary), 1 (binary) or N > 1.
type Operator struct {
	Key         string
	Label       string
	Cardinality int
	AppliesTo   []types.Type // empty = all types
}

// Applies reports whether the operator may be used with t.
func (o *Operator) Applies(t types.Type) bool {
	if len(o.AppliesTo) == 0 {
		return true
	}
	for _, at := range o.AppliesTo {
		if at == t {
			return true
		}
	}
	return false
}

// ExpressionOperator is a binary arithmetic or concatenation operator used in
// expression groups. Groups store the Symbol.
type ExpressionOperator struct {
	Key    string
	Symbol string
	Label  string
}

// TypeDef declares a scalar type and its operator defaults.
type TypeDef struct {
	Name                      types.Type
	Label                     string
	DefaultValue              any
	Operators                 []string // valid condition operators, empty = derive from AppliesTo
	DefaultConditionOperator  string
	ValidExpressionOperators  []string
	DefaultExpressionOperator string
}

// Settings holds catalog-wide options.
type Settings struct {
	FieldSeparator     string
	DefaultConjunction types.Conjunction

	// NumericOperators are the expression operator symbols that force an
	// expression group's inferred type to number.
	NumericOperators []string
}

// DefaultNumericOperators is used when a catalog does not declare its own set.
var DefaultNumericOperators = []string{"+", "-", "*", "/"}

// Catalog is an immutable snapshot of fields, functions, operators and types.
type Catalog struct {
	fields    Tree
	functions Tree
	operators []Operator
	exprOps   []ExpressionOperator
	typeDefs  []TypeDef
	settings  Settings

	operatorIdx map[string]int
	exprOpIdx   map[string]int
	typeIdx     map[types.Type]int
}

// Definition is the input to New.
type Definition struct {
	Fields              Tree
	Functions           Tree
	Operators           []Operator
	ExpressionOperators []ExpressionOperator
	Types               []TypeDef
	Settings            Settings
}

// New validates def and builds a Catalog.
// Rejects duplicate keys, dangling operator references, dynamic-arg bounds
// with MinArgs > MaxArgs, and functions declaring both fixed and dynamic args.
func New(def Definition) (*Catalog, error) {
	c := &Catalog{
		fields:      def.Fields,
		functions:   def.Functions,
		operators:   def.Operators,
		exprOps:     def.ExpressionOperators,
		typeDefs:    def.Types,
		settings:    def.Settings,
		operatorIdx: make(map[string]int, len(def.Operators)),
		exprOpIdx:   make(map[string]int, len(def.ExpressionOperators)),
		typeIdx:     make(map[types.Type]int, len(def.Types)),
	}
	if c.settings.FieldSeparator == "" {
		c.settings.FieldSeparator = "."
	}
	if c.settings.DefaultConjunction == "" {
		c.settings.DefaultConjunction = types.ConjunctionAnd
	}
	if c.settings.NumericOperators == nil {
		c.settings.NumericOperators = DefaultNumericOperators
	}
	if !c.settings.DefaultConjunction.Valid() {
		return nil, fmt.Errorf("settings: invalid default conjunction %q", c.settings.DefaultConjunction)
	}

	for i, op := range c.operators {
		if _, dup := c.operatorIdx[op.Key]; dup {
			return nil, fmt.Errorf("operators: duplicate key %q", op.Key)
		}
		if op.Cardinality < 0 {
			return nil, fmt.Errorf("operators: %q has negative cardinality", op.Key)
		}
		c.operatorIdx[op.Key] = i
	}
	for i, op := range c.exprOps {
		if _, dup := c.exprOpIdx[op.Key]; dup {
			return nil, fmt.Errorf("expressionOperators: duplicate key %q", op.Key)
		}
		if op.Symbol == "" {
			return nil, fmt.Errorf("expressionOperators: %q has no symbol", op.Key)
		}
		c.exprOpIdx[op.Key] = i
	}
	for i, td := range c.typeDefs {
		if _, dup := c.typeIdx[td.Name]; dup {
			return nil, fmt.Errorf("types: duplicate type %q", td.Name)
		}
		for _, key := range td.Operators {
			if _, ok := c.operatorIdx[key]; !ok {
				return nil, fmt.Errorf("types: %q lists %w %q", td.Name, types.ErrUnknownOperator, key)
			}
		}
		if td.DefaultConditionOperator != "" {
			if _, ok := c.operatorIdx[td.DefaultConditionOperator]; !ok {
				return nil, fmt.Errorf("types: %q default %w %q", td.Name, types.ErrUnknownOperator, td.DefaultConditionOperator)
			}
		}
		for _, key := range td.ValidExpressionOperators {
			if _, ok := c.exprOpIdx[key]; !ok {
				return nil, fmt.Errorf("types: %q lists unknown expression operator %q", td.Name, key)
			}
		}
		if td.DefaultExpressionOperator != "" {
			if _, ok := c.exprOpIdx[td.DefaultExpressionOperator]; !ok {
				return nil, fmt.Errorf("types: %q default expression operator %q unknown", td.Name, td.DefaultExpressionOperator)
			}
		}
		c.typeIdx[td.Name] = i
	}

	if err := checkTree(c.fields, "fields", 0); err != nil {
		return nil, err
	}
	if err := checkTree(c.functions, "funcs", 0); err != nil {
		return nil, err
	}
	return c, nil
}

// checkTree validates names and leaf shapes recursively.
func checkTree(t Tree, where string, depth int) error {
	if depth > types.MaxPathSegments {
		return fmt.Errorf("%s: nesting exceeds %d levels", where, types.MaxPathSegments)
	}
	seen := make(map[string]bool, len(t))
	for _, e := range t {
		if e.Name == "" {
			return fmt.Errorf("%s: empty name", where)
		}
		if seen[e.Name] {
			return fmt.Errorf("%s: duplicate name %q", where, e.Name)
		}
		seen[e.Name] = true
		path := where + "." + e.Name
		switch n := e.Node.(type) {
		case *Category:
			if err := checkTree(n.Children, path, depth+1); err != nil {
				return err
			}
		case *Field:
			if n.Type == "" {
				return fmt.Errorf("%s: field has no type", path)
			}
		case *Function:
			if n.ReturnType == "" {
				return fmt.Errorf("%s: function has no return type", path)
			}
			if n.Dynamic != nil {
				if len(n.Args) > 0 {
					return fmt.Errorf("%s: fixed and dynamic args are mutually exclusive", path)
				}
				if n.Dynamic.MinArgs < 0 || n.Dynamic.MaxArgs < n.Dynamic.MinArgs {
					return fmt.Errorf("%s: invalid dynamic arg bounds [%d, %d]", path, n.Dynamic.MinArgs, n.Dynamic.MaxArgs)
				}
			}
		default:
			return fmt.Errorf("%s: nil node", path)
		}
	}
	return nil
}

// Fields returns the field tree. Callers must not modify it.
func (c *Catalog) Fields() Tree { return c.fields }

// Functions returns the function tree. Callers must not modify it.
func (c *Catalog) Functions() Tree { return c.functions }

// Operators returns condition operators in declaration order.
func (c *Catalog) Operators() []Operator { return c.operators }

// ExpressionOperators returns expression operators in declaration order.
func (c *Catalog) ExpressionOperators() []ExpressionOperator { return c.exprOps }

// Types returns type definitions in declaration order.
func (c *Catalog) Types() []TypeDef { return c.typeDefs }

// Settings returns the catalog settings with defaults applied.
func (c *Catalog) Settings() Settings { return c.settings }

// IsNumericOperator reports whether symbol forces numeric inference.
func (c *Catalog) IsNumericOperator(symbol string) bool {
	for _, s := range c.settings.NumericOperators {
		if s == symbol {
			return true
		}
	}
	return false
}
