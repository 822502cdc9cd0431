// internal/rules/builder.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Catalog-driven construction.
 *
 * Builder owns the two dependencies every constructor needs: the catalog
 * snapshot (defaults, resolution, operator validity) and the IDGenerator
 * (rule uuids). It holds no other state and is safe for concurrent use.
 *
 * Defaults:
 *   - literal: Catalog.DefaultValue(type)
 *   - condition: first field in catalog order, type's default condition
 *     operator, right-hand defaults matching the operator's cardinality
 *   - operand pair: type's default expression operator, else the first
 *     valid one
 *   - dynamic-arg call: exactly minArgs arguments of defaultValue
 */

// Builder constructs and mutates rule trees against a catalog.
type Builder struct {
	cat *catalog.Catalog
	ids types.IDGenerator
}

// NewBuilder returns a Builder. A nil ids uses types.UUIDGenerator.
func NewBuilder(cat *catalog.Catalog, ids types.IDGenerator) *Builder {
	if ids == nil {
		ids = types.UUIDGenerator{}
	}
	return &Builder{cat: cat, ids: ids}
}

// Catalog returns the builder's catalog snapshot.
func (b *Builder) Catalog() *catalog.Catalog {
	return b.cat
}

func (b *Builder) knownType(t types.Type) error {
	switch t {
	case types.TypeNumber, types.TypeText, types.TypeDate, types.TypeBoolean:
		return nil
	}
	_, err := b.cat.ResolveType(t)
	return err
}

// Value builds a literal of type t.
func (b *Builder) Value(t types.Type, v any) (Value, error) {
	if err := b.knownType(t); err != nil {
		return Value{}, err
	}
	return Value{Type: t, Value: v}, nil
}

// DefaultValue builds the default literal of type t.
func (b *Builder) DefaultValue(t types.Type) Value {
	return Value{Type: t, Value: b.cat.DefaultValue(t)}
}

// Field builds a reference to the field at path.
func (b *Builder) Field(path string) (FieldRef, error) {
	f, err := b.cat.ResolveField(path)
	if err != nil {
		return FieldRef{}, err
	}
	return FieldRef{Type: f.Type, Field: path}, nil
}

// RuleRef builds a reference to another rule.
func (b *Builder) RuleRef(id string, uuid types.RuleUUID, version int, returnType types.Type) RuleRef {
	return RuleRef{Type: returnType, ID: id, UUID: uuid, Version: version}
}

// Function builds a call to the function at path.
//
// With no args, a dynamic-arg function gets exactly MinArgs default
// arguments and a fixed-arg function gets one default per declared arg.
// Explicit args must match the signature: dynamic counts outside
// [MinArgs, MaxArgs] fail with ErrMalformedDynamicArgs, fixed counts other
// than the declared count fail with ErrArgumentMismatch, and any argument
// whose type differs from the declared one fails with ErrIncompatibleType.
func (b *Builder) Function(path string, args ...Expression) (FunctionCall, error) {
	fn, err := b.cat.ResolveFunction(path)
	if err != nil {
		return FunctionCall{}, err
	}
	call := FunctionCall{Type: fn.ReturnType, Name: path}

	if fn.IsDynamic() {
		d := fn.Dynamic
		if len(args) == 0 {
			out := make(VariadicArgs, d.MinArgs)
			for i := range out {
				out[i] = b.dynamicDefault(d)
			}
			call.Args = out
			return call, nil
		}
		if len(args) < d.MinArgs || len(args) > d.MaxArgs {
			return FunctionCall{}, fmt.Errorf("%w: %s takes %d..%d arguments, got %d",
				types.ErrMalformedDynamicArgs, path, d.MinArgs, d.MaxArgs, len(args))
		}
		for i, a := range args {
			if err := checkArgType(path, i, d.ArgType, a); err != nil {
				return FunctionCall{}, err
			}
		}
		call.Args = append(VariadicArgs(nil), args...)
		return call, nil
	}

	if len(args) == 0 {
		out := make(FixedArgs, len(fn.Args))
		for i, a := range fn.Args {
			out[i] = NamedArg{Name: a.Name, Value: b.DefaultValue(a.Type)}
		}
		call.Args = out
		return call, nil
	}
	if len(args) != len(fn.Args) {
		return FunctionCall{}, fmt.Errorf("%w: %s takes %d arguments, got %d",
			types.ErrArgumentMismatch, path, len(fn.Args), len(args))
	}
	out := make(FixedArgs, len(args))
	for i, a := range args {
		if err := checkArgType(path, i, fn.Args[i].Type, a); err != nil {
			return FunctionCall{}, err
		}
		out[i] = NamedArg{Name: fn.Args[i].Name, Value: a}
	}
	call.Args = out
	return call, nil
}

func (b *Builder) dynamicDefault(d *catalog.DynamicArgs) Value {
	if d.DefaultValue != nil {
		return Value{Type: d.ArgType, Value: d.DefaultValue}
	}
	return b.DefaultValue(d.ArgType)
}

func checkArgType(fn string, i int, want types.Type, got Expression) error {
	if got == nil {
		return fmt.Errorf("%w: %s argument %d is empty", types.ErrArgumentMismatch, fn, i)
	}
	if got.ReturnType() != want {
		return fmt.Errorf("%w: %s argument %d is %s, want %s",
			types.ErrIncompatibleType, fn, i, got.ReturnType(), want)
	}
	return nil
}

// Group wraps initial in a single-element expression group. An empty
// returnType is inferred from initial.
func (b *Builder) Group(initial Expression, returnType types.Type) ExpressionGroup {
	g := ExpressionGroup{Expressions: []Expression{initial}}
	if returnType != "" {
		g.Type = returnType
	} else {
		g.Type = b.Infer(g)
	}
	return g
}

// DefaultExpression returns the expression a new operand or branch of type t
// starts with.
func (b *Builder) DefaultExpression(t types.Type) Expression {
	return b.DefaultValue(t)
}
