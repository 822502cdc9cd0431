// internal/preview/evaluate.go
package preview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Program evaluation.
 *
 * Evaluates a compiled rule against one JSON record:
 *   - condition rules yield a bool
 *   - case rules yield the first matching clause's then value and its
 *     index, or the else value and -1
 *   - expression rules yield the expression value
 *
 * Group semantics: AND short-circuits on the first false child, OR on the
 * first true one, children in cost order. An empty AND is true and an empty
 * OR is false. Not negates after the conjunction is applied.
 *
 * Records are decoded with json.Number so integers survive; missing fields
 * evaluate to null.
 */

// Result is the outcome of evaluating a program.
type Result struct {
	// Value is a bool, float64, string, time.Time or nil.
	Value any
	// Clause is the matching when clause of a case rule, -1 for the else
	// branch and for other structures.
	Clause int
	// ResultName names the chosen case branch.
	ResultName string
}

// Matched reports whether a condition rule evaluated to true.
func (r Result) Matched() bool {
	b, _ := r.Value.(bool)
	return b
}

// DecodeRecord decodes a preview record, keeping numbers as json.Number.
func DecodeRecord(data json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: record: %v", types.ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: record: trailing data", types.ErrInvalidJSON)
	}
	return v, nil
}

// Evaluate runs p against record.
func (p *Program) Evaluate(record json.RawMessage) (Result, error) {
	v, err := DecodeRecord(record)
	if err != nil {
		return Result{}, err
	}
	return p.evaluate(&env{record: v})
}

// EvaluateValue runs p against an already decoded record.
func (p *Program) EvaluateValue(record any) (Result, error) {
	return p.evaluate(&env{record: record})
}

func (p *Program) evaluate(e *env) (Result, error) {
	switch {
	case p.Root != nil:
		ok, err := evaluateGroup(p.Root, e)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: ok, Clause: -1}, nil

	case p.Structure == types.StructureCase:
		for i, c := range p.Clauses {
			ok, err := evaluateGroup(c.When, e)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				continue
			}
			v, err := c.then.eval(e)
			if err != nil {
				return Result{}, err
			}
			return Result{Value: v, Clause: i, ResultName: c.ResultName}, nil
		}
		v, err := p.elseExpr.eval(e)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: v, Clause: -1, ResultName: p.ElseResultName}, nil

	default:
		v, err := p.expr.eval(e)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: v, Clause: -1}, nil
	}
}

func evaluateGroup(g *CompiledGroup, e *env) (bool, error) {
	result := g.Conjunction != types.ConjunctionOr
	for _, n := range g.Nodes {
		var (
			ok  bool
			err error
		)
		if n.Group != nil {
			ok, err = evaluateGroup(n.Group, e)
		} else {
			ok, err = evaluateCondition(n.Condition, e)
		}
		if err != nil {
			return false, err
		}
		if g.Conjunction == types.ConjunctionOr && ok {
			result = true
			break
		}
		if g.Conjunction != types.ConjunctionOr && !ok {
			result = false
			break
		}
	}
	if g.Not {
		return !result, nil
	}
	return result, nil
}

func evaluateCondition(c *CompiledCondition, e *env) (bool, error) {
	left, err := c.left.eval(e)
	if err != nil {
		return false, err
	}
	targets := make([]any, len(c.right))
	for i, r := range c.right {
		if targets[i], err = r.eval(e); err != nil {
			return false, err
		}
	}
	return Compare(c.Operator, left, targets), nil
}
