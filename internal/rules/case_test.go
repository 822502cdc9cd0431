// internal/rules/case_test.go
package rules_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

func newCase(t *testing.T, b *rules.Builder, clauses int) rules.Case {
	t.Helper()
	c, err := b.NewCase(types.TypeText)
	if err != nil {
		t.Fatalf("NewCase() error = %v, want nil", err)
	}
	for len(c.WhenClauses) < clauses {
		if c, err = b.AddWhenClause(c); err != nil {
			t.Fatalf("AddWhenClause() error = %v, want nil", err)
		}
	}
	return c
}

func resultNames(c rules.Case) []string {
	var out []string
	for _, w := range c.WhenClauses {
		out = append(out, w.ResultName)
	}
	return out
}

func TestNewCase(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 1)

	if c.ReturnType() != types.TypeText {
		t.Errorf("ReturnType() = %v, want text", c.ReturnType())
	}
	if c.Else != text("") || c.ElseResultName != rules.DefaultElseName {
		t.Errorf("else = %#v %q, want default text", c.Else, c.ElseResultName)
	}
	w := c.WhenClauses[0]
	if w.ResultName != "Result 1" || len(w.When.Children) != 1 {
		t.Errorf("clause = %+v, want Result 1 with one condition", w)
	}
	if _, err := b.NewCase("money"); !errors.Is(err, types.ErrUnknownType) {
		t.Errorf("NewCase(money) error = %v, want ErrUnknownType", err)
	}
}

func TestCase_FirstMatchWins(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 2)

	var err error
	if c, err = rules.SetThen(c, 0, text("A")); err != nil {
		t.Fatalf("SetThen(0) error = %v, want nil", err)
	}
	if c, err = rules.SetThen(c, 1, text("B")); err != nil {
		t.Fatalf("SetThen(1) error = %v, want nil", err)
	}

	always := func(rules.ConditionGroup) bool { return true }
	got, idx := c.Select(always)
	if got != text("A") || idx != 0 {
		t.Errorf("Select() = %v, %d, want A, 0", got, idx)
	}

	never := func(rules.ConditionGroup) bool { return false }
	got, idx = c.Select(never)
	if got != c.Else || idx != -1 {
		t.Errorf("Select(never) = %v, %d, want else, -1", got, idx)
	}

	order := c.EvaluateOrder()
	if len(order) != 2 || order[0].Then != text("A") || order[1].Then != text("B") {
		t.Errorf("EvaluateOrder() = %+v, want [A B]", order)
	}
}

func TestAddWhenClause_Names(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 3)

	if got, want := resultNames(c), []string{"Result 1", "Result 2", "Result 3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("result names = %v, want %v", got, want)
	}
}

func TestRemoveWhenClause(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 4)

	c, err := rules.RenameResult(c, 2, "Gold")
	if err != nil {
		t.Fatalf("RenameResult() error = %v, want nil", err)
	}
	got, err := rules.RemoveWhenClause(c, 0)
	if err != nil {
		t.Fatalf("RemoveWhenClause() error = %v, want nil", err)
	}
	if want := []string{"Result 1", "Gold", "Result 3"}; !reflect.DeepEqual(resultNames(got), want) {
		t.Errorf("result names = %v, want %v", resultNames(got), want)
	}
	if want := []string{"Result 1", "Result 2", "Gold", "Result 4"}; !reflect.DeepEqual(resultNames(c), want) {
		t.Errorf("input names = %v, want %v", resultNames(c), want)
	}

	one := newCase(t, b, 1)
	if _, err := rules.RemoveWhenClause(one, 0); !errors.Is(err, types.ErrCannotRemoveLastClause) {
		t.Errorf("RemoveWhenClause(last) error = %v, want ErrCannotRemoveLastClause", err)
	}
}

func TestReorderWhenClauses(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 3)

	got, err := rules.ReorderWhenClauses(c, 2, 0)
	if err != nil {
		t.Fatalf("ReorderWhenClauses() error = %v, want nil", err)
	}
	if want := []string{"Result 3", "Result 1", "Result 2"}; !reflect.DeepEqual(resultNames(got), want) {
		t.Errorf("result names = %v, want %v", resultNames(got), want)
	}
}

func TestResultNames_StayUniqueAfterReorder(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 3)

	c, err := rules.ReorderWhenClauses(c, 2, 0)
	if err != nil {
		t.Fatalf("ReorderWhenClauses() error = %v, want nil", err)
	}
	if c, err = rules.RemoveWhenClause(c, 1); err != nil {
		t.Fatalf("RemoveWhenClause() error = %v, want nil", err)
	}
	if want := []string{"Result 3", "Result 2"}; !reflect.DeepEqual(resultNames(c), want) {
		t.Fatalf("after remove = %v, want %v", resultNames(c), want)
	}
	if c, err = b.AddWhenClause(c); err != nil {
		t.Fatalf("AddWhenClause() error = %v, want nil", err)
	}
	if want := []string{"Result 3", "Result 2", "Result 1"}; !reflect.DeepEqual(resultNames(c), want) {
		t.Errorf("after add = %v, want %v", resultNames(c), want)
	}

	pinned := rules.PinResultNames(c)
	for _, w := range pinned.WhenClauses {
		if w.NamePinned {
			t.Errorf("auto result name %q pinned", w.ResultName)
		}
	}
}

func TestSetThenAndElse_TypeChecked(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 1)

	if _, err := rules.SetThen(c, 0, num(1)); !errors.Is(err, types.ErrIncompatibleType) {
		t.Errorf("SetThen(number) error = %v, want ErrIncompatibleType", err)
	}
	if _, err := rules.SetElse(c, num(1)); !errors.Is(err, types.ErrIncompatibleType) {
		t.Errorf("SetElse(number) error = %v, want ErrIncompatibleType", err)
	}
	got, err := rules.SetElse(c, text("none"))
	if err != nil {
		t.Fatalf("SetElse() error = %v, want nil", err)
	}
	if got.Else != text("none") {
		t.Errorf("Else = %#v, want none", got.Else)
	}
	if _, err := rules.SetThen(c, 5, text("x")); !errors.Is(err, types.ErrIndexOutOfRange) {
		t.Errorf("SetThen(5) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestUpdateWhen(t *testing.T) {
	b := newBuilder(t)
	c := newCase(t, b, 2)

	got, err := rules.UpdateWhen(c, 1, func(g rules.ConditionGroup) (rules.ConditionGroup, error) {
		return b.AddCondition(g, nil)
	})
	if err != nil {
		t.Fatalf("UpdateWhen() error = %v, want nil", err)
	}
	if n := len(got.WhenClauses[1].When.Children); n != 2 {
		t.Errorf("len(When.Children) = %d, want 2", n)
	}
	if !reflect.DeepEqual(got.WhenClauses[0], c.WhenClauses[0]) {
		t.Errorf("clause 0 changed")
	}
}
