// internal/rules/case.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * CASE expressions.
 *
 * When clauses are tested strictly in list order and the first whose
 * condition group holds decides the result; Else is used when none does.
 * List order is priority order, so no operation here reorders clauses
 * except ReorderWhenClauses, which does exactly the move it is asked for.
 */

// WhenClause is one WHEN ... THEN ... branch.
type WhenClause struct {
	When       ConditionGroup
	Then       Expression
	ResultName string
	NamePinned bool
}

// Case is an ordered list of when clauses plus an else branch.
type Case struct {
	WhenClauses    []WhenClause
	Else           Expression
	ElseResultName string
}

func (Case) isDefinition() {}

// ReturnType is the type of the first then branch, or of Else when there
// are no clauses.
func (c Case) ReturnType() types.Type {
	if len(c.WhenClauses) > 0 && c.WhenClauses[0].Then != nil {
		return c.WhenClauses[0].Then.ReturnType()
	}
	if c.Else != nil {
		return c.Else.ReturnType()
	}
	return ""
}

// EvaluateOrder returns the clauses in testing order.
func (c Case) EvaluateOrder() []WhenClause {
	return append([]WhenClause(nil), c.WhenClauses...)
}

// Select returns the then branch of the first clause whose group satisfies
// holds, with its index, or Else and -1 when none does.
func (c Case) Select(holds func(ConditionGroup) bool) (Expression, int) {
	for i, w := range c.WhenClauses {
		if holds(w.When) {
			return w.Then, i
		}
	}
	return c.Else, -1
}

// NewCase builds a case of returnType with one default clause and a default
// else branch.
func (b *Builder) NewCase(returnType types.Type) (Case, error) {
	if err := b.knownType(returnType); err != nil {
		return Case{}, err
	}
	c := Case{
		Else:           b.DefaultExpression(returnType),
		ElseResultName: DefaultElseName,
	}
	return b.AddWhenClause(c)
}

func (b *Builder) newWhenClause(i int, t types.Type) (WhenClause, error) {
	when, err := b.NewConditionGroup(nil)
	if err != nil {
		return WhenClause{}, err
	}
	return WhenClause{
		When:       when,
		Then:       b.DefaultExpression(t),
		ResultName: ResultName(i),
	}, nil
}

// AddWhenClause appends a clause with one default condition, a default then
// branch and a free "Result N" name.
func (b *Builder) AddWhenClause(c Case) (Case, error) {
	w, err := b.newWhenClause(freeResult(c), c.ReturnType())
	if err != nil {
		return Case{}, err
	}
	c.WhenClauses = append(append([]WhenClause(nil), c.WhenClauses...), w)
	return c, nil
}

// RemoveWhenClause removes clause i and renumbers the following result names
// that still match their old position. The last clause cannot be removed.
func RemoveWhenClause(c Case, i int) (Case, error) {
	if i < 0 || i >= len(c.WhenClauses) {
		return Case{}, fmt.Errorf("%w: clause %d of %d", types.ErrIndexOutOfRange, i, len(c.WhenClauses))
	}
	if len(c.WhenClauses) == 1 {
		return Case{}, types.ErrCannotRemoveLastClause
	}
	clauses := removeAt(c.WhenClauses, i)
	for k := i; k < len(clauses); k++ {
		w := &clauses[k]
		if w.NamePinned || w.ResultName != ResultName(k+1) || resultTaken(clauses, k, ResultName(k)) {
			continue
		}
		w.ResultName = ResultName(k)
	}
	c.WhenClauses = clauses
	return c, nil
}

func resultTaken(clauses []WhenClause, k int, name string) bool {
	for j, w := range clauses {
		if j != k && w.ResultName == name {
			return true
		}
	}
	return false
}

// ReorderWhenClauses moves clause from to index to. Names are unchanged.
func ReorderWhenClauses(c Case, from, to int) (Case, error) {
	clauses, err := move(c.WhenClauses, from, to)
	if err != nil {
		return Case{}, err
	}
	c.WhenClauses = clauses
	return c, nil
}

func (c Case) updateClause(i int, fn func(WhenClause) (WhenClause, error)) (Case, error) {
	if i < 0 || i >= len(c.WhenClauses) {
		return Case{}, fmt.Errorf("%w: clause %d of %d", types.ErrIndexOutOfRange, i, len(c.WhenClauses))
	}
	w, err := fn(c.WhenClauses[i])
	if err != nil {
		return Case{}, err
	}
	clauses := append([]WhenClause(nil), c.WhenClauses...)
	clauses[i] = w
	c.WhenClauses = clauses
	return c, nil
}

// SetWhen replaces the condition group of clause i.
func SetWhen(c Case, i int, g ConditionGroup) (Case, error) {
	return c.updateClause(i, func(w WhenClause) (WhenClause, error) {
		w.When = g
		return w, nil
	})
}

// UpdateWhen applies fn to the condition group of clause i.
func UpdateWhen(c Case, i int, fn func(ConditionGroup) (ConditionGroup, error)) (Case, error) {
	return c.updateClause(i, func(w WhenClause) (WhenClause, error) {
		g, err := fn(w.When)
		if err != nil {
			return WhenClause{}, err
		}
		w.When = g
		return w, nil
	})
}

// SetThen replaces the then branch of clause i. Its type must match the
// case's return type.
func SetThen(c Case, i int, e Expression) (Case, error) {
	if e == nil {
		return Case{}, fmt.Errorf("%w: nil then branch", types.ErrIncompatibleType)
	}
	if want := c.ReturnType(); e.ReturnType() != want {
		return Case{}, fmt.Errorf("%w: then branch is %s, case returns %s", types.ErrIncompatibleType, e.ReturnType(), want)
	}
	return c.updateClause(i, func(w WhenClause) (WhenClause, error) {
		w.Then = e
		return w, nil
	})
}

// SetElse replaces the else branch.
func SetElse(c Case, e Expression) (Case, error) {
	if e == nil {
		return Case{}, fmt.Errorf("%w: nil else branch", types.ErrIncompatibleType)
	}
	if want := c.ReturnType(); want != "" && e.ReturnType() != want {
		return Case{}, fmt.Errorf("%w: else branch is %s, case returns %s", types.ErrIncompatibleType, e.ReturnType(), want)
	}
	c.Else = e
	return c, nil
}

// RenameResult renames and pins the result name of clause i, or the else
// branch when i is -1.
func RenameResult(c Case, i int, name string) (Case, error) {
	if i == -1 {
		c.ElseResultName = name
		return c, nil
	}
	return c.updateClause(i, func(w WhenClause) (WhenClause, error) {
		w.ResultName = name
		w.NamePinned = true
		return w, nil
	})
}
